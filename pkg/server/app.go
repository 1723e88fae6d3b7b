package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"RiskCast/internal/domain/models"
	"RiskCast/internal/domain/repository"
	"RiskCast/internal/handler/api"
	"RiskCast/internal/service/ratelimit"
	"RiskCast/internal/usecase"
	"RiskCast/pkg/cache"
	pkgch "RiskCast/pkg/clickhouse"
	"RiskCast/pkg/config"
	xhttp "RiskCast/pkg/http"
	pkgkafka "RiskCast/pkg/kafka"
	applogger "RiskCast/pkg/logger"
	"RiskCast/pkg/queue"
)

// Components are the wired dependencies an App drives. Nil infrastructure
// fields mean the matching feature is disabled.
type Components struct {
	Handler    *api.RiskEchoHandler
	Training   *usecase.TrainingService
	Loader     *usecase.BundleLoader
	TrainJob   *usecase.TrainJob
	Events     *usecase.ModelEventsHandler
	Queue      *queue.RedisQueue
	Consumer   *pkgkafka.Consumer
	Producer   *pkgkafka.Producer
	Publisher  repository.EventPublisher
	Cache      cache.Service
	ClickHouse *pkgch.Client
}

// App encapsulates the application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	c          Components
	httpServer *xhttp.Server
	digest     *applogger.Digest
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, c Components) *App {
	a := &App{cfg: cfg, l: l, c: c}
	if cfg.Log.DigestTopic != "" && c.Producer != nil {
		a.digest = applogger.NewDigest(applogger.DigestConfig{
			Interval:  cfg.Log.DigestInterval,
			Topic:     cfg.Log.DigestTopic,
			Publisher: c.Producer,
		})
		l.AttachDigest(a.digest)
	}
	return a
}

// Run serves HTTP, consumes model events and processes queued training jobs
// until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	limiter := ratelimit.New(a.cfg.Server.RateLimitRPS, a.cfg.Server.RateLimitBurst)
	go a.sweep(ctx, limiter)

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	a.httpServer = xhttp.NewServer(a.c.Handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(a.cfg.Server.CORSOrigins...),
		xhttp.WithBodyLimit(a.cfg.Server.BodyLimit),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(a.l),
		xhttp.WithMiddleware(limiter.Middleware()),
	)

	// A missing bundle is not fatal: the API reports "Not Loaded" until a run completes.
	if _, _, err := a.c.Loader.Get(ctx); err != nil {
		a.l.Warn("no model bundle at startup", applogger.Error(err))
	}

	if err := a.startConsumer(); err != nil {
		return err
	}
	if err := a.startQueue(); err != nil {
		a.l.Warn("job queue unavailable, training must run from the CLI", applogger.Error(err))
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.Close()
}

// RunWorker only processes queued training jobs until SIGINT or SIGTERM.
func (a *App) RunWorker() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if a.c.Queue == nil {
		return errors.New("worker requires redis.enabled")
	}
	if err := a.startQueue(); err != nil {
		return err
	}
	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.Close()
}

// Train runs the pipeline once in the foreground.
func (a *App) Train(ctx context.Context, req usecase.TrainRequest) (*models.TrainingResult, error) {
	return a.c.Training.Run(ctx, req)
}

func (a *App) startConsumer() error {
	if a.c.Consumer == nil || a.c.Events == nil {
		return nil
	}
	a.c.Consumer.RegisterHandler(a.c.Events)
	if err := a.c.Consumer.Start(); err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	a.l.Info("kafka consumer started", applogger.String("topic", a.c.Events.Topic()))
	return nil
}

func (a *App) startQueue() error {
	if a.c.Queue == nil {
		return nil
	}
	if a.c.TrainJob != nil {
		a.c.Queue.RegisterJob(a.c.TrainJob)
	}
	return a.c.Queue.Start()
}

func (a *App) sweep(ctx context.Context, l *ratelimit.Limiter) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := l.Sweep(); n > 0 {
				a.l.Debug("rate limiter swept idle clients", applogger.Int("removed", n))
			}
		}
	}
}

// Close stops every started component and releases clients. It is safe to call
// after a foreground Train.
func (a *App) Close() error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http: %w", err))
		}
	}
	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("kafka consumer: %w", err))
		}
	}
	if a.c.Queue != nil {
		if err := a.c.Queue.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("queue: %w", err))
		}
	}
	if a.digest != nil {
		a.l.DetachDigest()
		a.digest.Close()
	}
	if a.c.Publisher != nil {
		if err := a.c.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka producer: %w", err))
		}
	}
	if closer, ok := a.c.Cache.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
	}
	if a.c.ClickHouse != nil {
		if err := a.c.ClickHouse.Close(); err != nil {
			errs = append(errs, fmt.Errorf("clickhouse: %w", err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		a.l.Warn("shutdown completed with errors", applogger.Error(err))
		return err
	}
	a.l.Info("shutdown complete")
	return nil
}
