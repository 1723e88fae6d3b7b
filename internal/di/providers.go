package di

import (
	"context"
	"fmt"
	"os"
	"time"

	"RiskCast/internal/domain/repository"
	"RiskCast/internal/handler/api"
	internalrepo "RiskCast/internal/repository"
	"RiskCast/internal/service/alphavantage"
	"RiskCast/internal/services/features"
	"RiskCast/internal/services/ml"
	"RiskCast/internal/services/registry"
	"RiskCast/internal/usecase"
	"RiskCast/pkg/cache"
	pkgch "RiskCast/pkg/clickhouse"
	"RiskCast/pkg/config"
	pkgkafka "RiskCast/pkg/kafka"
	applogger "RiskCast/pkg/logger"
	"RiskCast/pkg/metrics"
	"RiskCast/pkg/queue"
	"RiskCast/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

// ProvideLogger builds the process logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() repository.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideClickHouseClient connects to ClickHouse and ensures the bar table. It
// returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithCompression(cfg.ClickHouse.Compression),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.BarSchema(barTable(cfg))); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

func barTable(cfg *config.Config) string {
	return cfg.ClickHouse.Database + ".daily_bars"
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates the model-event consumer, or nil when Kafka is disabled.
// The hostname is appended to the group id so every serving replica sees every event.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	group := cfg.Kafka.Consumer.GroupID
	if host, err := os.Hostname(); err == nil && host != "" {
		group += "-" + host
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(group),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetHook(pkgkafka.LoggingHook(l))
	return consumer, nil
}

// ProvideRedisCache connects to Redis, or returns nil when Redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache layers memory over Redis when Redis is available.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache()
	}
	return cache.NewLayeredCache(rc, cache.WithLayeredLocalTTL(cfg.Prediction.CacheTTL))
}

// ProvideJobQueue creates the Redis training queue, or nil without Redis.
func ProvideJobQueue(cfg *config.Config, rc *cache.RedisCache, l *applogger.Logger) *queue.RedisQueue {
	if rc == nil {
		return nil
	}
	return queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), queue.ModeProducerConsumer, queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
}

// ProvideAlphaVantage creates the daily-bar provider client.
func ProvideAlphaVantage(cfg *config.Config, l *applogger.Logger) *alphavantage.Client {
	return alphavantage.New(cfg.AlphaVantage.APIKey,
		alphavantage.WithBaseURL(cfg.AlphaVantage.BaseURL),
		alphavantage.WithRequestsPerMinute(cfg.AlphaVantage.RequestsPerMinute),
		alphavantage.WithOutputSize(cfg.AlphaVantage.OutputSize),
		alphavantage.WithTimeout(cfg.AlphaVantage.Timeout),
		alphavantage.WithLogger(l),
	)
}

// ProvideBarSource selects ClickHouse or the CSV cache in front of AlphaVantage.
func ProvideBarSource(cfg *config.Config, av *alphavantage.Client, ch *pkgch.Client, l *applogger.Logger) repository.BarSource {
	var store *internalrepo.CHBarStore
	if ch != nil {
		store = internalrepo.NewCHBarStore(ch.DB(), barTable(cfg))
		store.SetLogger(l)
	}
	if cfg.Data.Source == "clickhouse" && store != nil {
		return store
	}
	opts := []internalrepo.CachedBarSourceOption{internalrepo.WithCacheLogger(l)}
	if cfg.Data.Archive && store != nil {
		opts = append(opts, internalrepo.WithArchive(store))
	}
	return internalrepo.NewCachedBarSource(cfg.Data.CacheDir, cfg.Data.CacheTTL, av, opts...)
}

// ProvideArtifactStore stores bundle artifacts under models.dir.
func ProvideArtifactStore(cfg *config.Config) repository.ArtifactStore {
	return internalrepo.NewFileArtifactStore(cfg.Models.Dir)
}

func ProvideRegistry(store repository.ArtifactStore, l *applogger.Logger) *registry.Registry {
	return registry.New(store, registry.WithLogger(l))
}

// ProvideMetricsStore writes evaluation reports under experiments.dir.
func ProvideMetricsStore(cfg *config.Config) repository.MetricsStore {
	return internalrepo.NewFileMetricsStore(cfg.Experiments.Dir)
}

// ProvideEventPublisher publishes model events to Kafka when a producer exists.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NopEventPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topic)
}

func ProvideBundleLoader(reg *registry.Registry, m repository.Metrics, l *applogger.Logger) *usecase.BundleLoader {
	return usecase.NewBundleLoader(reg, m, l)
}

func ProvidePredictionService(
	cfg *config.Config,
	src repository.BarSource,
	loader *usecase.BundleLoader,
	c cache.Service,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.PredictionService {
	return usecase.NewPredictionService(src, loader, c, m, usecase.PredictionConfig{
		Universe:   cfg.Data.Tickers,
		RiskLevels: cfg.Models.RiskLevels,
		CacheTTL:   cfg.Prediction.CacheTTL,
		Workers:    cfg.Prediction.Workers,
	}, l)
}

// TrainingConfigFrom maps the training section onto the pipeline settings.
func TrainingConfigFrom(cfg *config.Config) usecase.TrainingConfig {
	model := ml.DefaultTrainConfig()
	if len(cfg.Training.Features) > 0 {
		model.Features = append([]string(nil), cfg.Training.Features...)
	}
	model.RidgeAlpha = cfg.Training.RidgeAlpha
	model.PCAComponents = cfg.Training.PCAComponents
	model.KMeans.K = cfg.Training.Clusters
	model.KMeans.Seed = cfg.Training.Seed
	return usecase.TrainingConfig{
		Tickers:       cfg.Data.Tickers,
		TestSize:      features.SizeFromFloat(cfg.Training.TestSize),
		AlignedCutoff: cfg.Training.DateAlignedCutoff,
		Model:         model,
		Retries:       cfg.Training.IngestRetries,
		RetryDelay:    cfg.Training.IngestRetryDelay,
		MinRows:       cfg.Training.MinRowsPerTicker,
		DriftZ:        cfg.Training.DriftZThreshold,
	}
}

func ProvideTrainingService(
	cfg *config.Config,
	src repository.BarSource,
	reg *registry.Registry,
	reports repository.MetricsStore,
	pub repository.EventPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.TrainingService {
	return usecase.NewTrainingService(src, reg, reports, pub, m, TrainingConfigFrom(cfg), l)
}

func ProvideTrainJob(cfg *config.Config, svc *usecase.TrainingService, c cache.Service, l *applogger.Logger) *usecase.TrainJob {
	return usecase.NewTrainJob(svc, c, cfg.Training.LockTTL, l)
}

func ProvideModelEventsHandler(cfg *config.Config, loader *usecase.BundleLoader, c cache.Service, l *applogger.Logger) *usecase.ModelEventsHandler {
	return usecase.NewModelEventsHandler(cfg.Kafka.Topic, loader, c, l)
}

// ProvideRiskHandler builds the HTTP handler. Training requests need the queue.
func ProvideRiskHandler(
	l *applogger.Logger,
	ps *usecase.PredictionService,
	loader *usecase.BundleLoader,
	reports repository.MetricsStore,
	q *queue.RedisQueue,
) *api.RiskEchoHandler {
	var jobs queue.Publisher
	if q != nil {
		jobs = q
	}
	return api.NewRiskEchoHandler(l, ps, loader, reports, jobs)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.RiskEchoHandler,
	training *usecase.TrainingService,
	loader *usecase.BundleLoader,
	job *usecase.TrainJob,
	events *usecase.ModelEventsHandler,
	q *queue.RedisQueue,
	consumer *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	pub repository.EventPublisher,
	c cache.Service,
	ch *pkgch.Client,
) *server.App {
	return server.New(cfg, l, server.Components{
		Handler:    handler,
		Training:   training,
		Loader:     loader,
		TrainJob:   job,
		Events:     events,
		Queue:      q,
		Consumer:   consumer,
		Producer:   producer,
		Publisher:  pub,
		Cache:      c,
		ClickHouse: ch,
	})
}
