package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"RiskCast/pkg/util"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8000"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		RateLimitRPS    float64       `yaml:"rate_limit_rps" default:"20"`
		RateLimitBurst  int           `yaml:"rate_limit_burst" default:"40"`
		CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
		BodyLimit       string        `yaml:"body_limit" default:"1M"`
	} `yaml:"server"`
	Log struct {
		Level      string `yaml:"level" default:"info"`
		Format     string `yaml:"format" default:"console"`
		Output     string `yaml:"output" default:"stdout"`
		MaxSizeMB  int    `yaml:"max_size_mb" default:"100"`
		MaxAgeDays int    `yaml:"max_age_days" default:"14"`
		MaxBackups int    `yaml:"max_backups" default:"5"`
		Compress   bool   `yaml:"compress"`
		// DigestTopic enables the warn/error digest published to Kafka.
		DigestTopic    string        `yaml:"digest_topic"`
		DigestInterval time.Duration `yaml:"digest_interval" default:"1m"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Data struct {
		// Source is "alphavantage" or "clickhouse".
		Source   string        `yaml:"source" default:"alphavantage"`
		Tickers  []string      `yaml:"tickers" default:"[\"AAPL\",\"MSFT\",\"GOOGL\",\"AMZN\",\"TSLA\"]"`
		CacheDir string        `yaml:"cache_dir" default:"data/raw"`
		CacheTTL time.Duration `yaml:"cache_ttl" default:"24h"`
		Archive  bool          `yaml:"archive"`
	} `yaml:"data"`
	AlphaVantage struct {
		APIKey            string        `yaml:"api_key"`
		BaseURL           string        `yaml:"base_url" default:"https://www.alphavantage.co"`
		RequestsPerMinute int           `yaml:"requests_per_minute" default:"5"`
		OutputSize        string        `yaml:"output_size" default:"compact"`
		Timeout           time.Duration `yaml:"timeout" default:"30s"`
	} `yaml:"alphavantage"`
	Models struct {
		Dir        string   `yaml:"dir" default:"models"`
		RiskLevels []string `yaml:"risk_levels" default:"[\"Low\",\"Medium\",\"High\"]"`
	} `yaml:"models"`
	Training struct {
		// TestSize in (0, 1) is a fraction of rows; a whole number >= 1 is a row count.
		TestSize          float64       `yaml:"test_size" default:"0.2"`
		DateAlignedCutoff bool          `yaml:"date_aligned_cutoff"`
		Features          []string      `yaml:"features"`
		RidgeAlpha        float64       `yaml:"ridge_alpha" default:"1"`
		PCAComponents     int           `yaml:"pca_components" default:"3"`
		Clusters          int           `yaml:"clusters" default:"3"`
		Seed              int64         `yaml:"seed" default:"42"`
		IngestRetries     int           `yaml:"ingest_retries" default:"3"`
		IngestRetryDelay  time.Duration `yaml:"ingest_retry_delay" default:"5s"`
		MinRowsPerTicker  int           `yaml:"min_rows_per_ticker" default:"50"`
		DriftZThreshold   float64       `yaml:"drift_z_threshold" default:"3"`
		LockTTL           time.Duration `yaml:"lock_ttl" default:"30m"`
	} `yaml:"training"`
	Experiments struct {
		Dir string `yaml:"dir" default:"experiments"`
	} `yaml:"experiments"`
	Prediction struct {
		CacheTTL time.Duration `yaml:"cache_ttl" default:"5m"`
		Workers  int           `yaml:"workers" default:"4"`
	} `yaml:"prediction"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers" default:"[\"localhost:9092\"]"`
		Topic        string        `yaml:"topic" default:"riskcast.model.events"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"snappy"`
		MaxAttempts  int           `yaml:"max_attempts" default:"5"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		Consumer     struct {
			GroupID    string        `yaml:"group_id" default:"riskcast-serving"`
			Workers    int           `yaml:"workers" default:"1"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"riskcast"`
	} `yaml:"redis"`
	Queue struct {
		Workers    int           `yaml:"workers" default:"1"`
		RetryLimit int           `yaml:"retry_limit" default:"3"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
	} `yaml:"queue"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"riskcast"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		Compression      string        `yaml:"compression" default:"lz4"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
}

// Default returns a configuration populated from struct tag defaults only.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.normalize()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		c.AlphaVantage.APIKey = v
	}
	if v := getenv("TICKERS"); v != "" {
		c.Data.Tickers = util.ParseTickers(v)
	}
	if v := getenv("DATA_SOURCE"); v != "" {
		c.Data.Source = v
	}
	if v := getenv("DATA_CACHE_TTL"); v != "" {
		c.Data.CacheTTL = util.ParseDurationDefault(v, c.Data.CacheTTL)
	}
	if v := getenv("MODELS_DIR"); v != "" {
		c.Models.Dir = v
	}
	if v := getenv("EXPERIMENTS_DIR"); v != "" {
		c.Experiments.Dir = v
	}
	if v := getenv("PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
		c.Redis.Enabled = true
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
}

func (c *Config) normalize() {
	c.Data.Tickers = util.NormalizeTickers(c.Data.Tickers)
	c.Data.Source = strings.ToLower(strings.TrimSpace(c.Data.Source))
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if len(c.Data.Tickers) == 0 {
		return fmt.Errorf("data.tickers cannot be empty")
	}
	if c.Data.Source != "alphavantage" && c.Data.Source != "clickhouse" {
		return fmt.Errorf("data.source must be 'alphavantage' or 'clickhouse', got '%s'", c.Data.Source)
	}
	if c.Data.Source == "clickhouse" && !c.ClickHouse.Enabled {
		return fmt.Errorf("data.source 'clickhouse' requires clickhouse.enabled")
	}
	if c.Data.Archive && !c.ClickHouse.Enabled {
		return fmt.Errorf("data.archive requires clickhouse.enabled")
	}
	if c.AlphaVantage.RequestsPerMinute <= 0 {
		return fmt.Errorf("alphavantage.requests_per_minute must be positive")
	}
	if len(c.Models.RiskLevels) != 3 {
		return fmt.Errorf("models.risk_levels must have 3 entries, got %d", len(c.Models.RiskLevels))
	}
	if ts := c.Training.TestSize; ts <= 0 || (ts >= 1 && ts != math.Trunc(ts)) {
		return fmt.Errorf("training.test_size must be a fraction in (0, 1) or a whole row count, got %v", ts)
	}
	if c.Training.PCAComponents <= 0 || c.Training.Clusters <= 0 {
		return fmt.Errorf("training.pca_components and training.clusters must be positive")
	}
	if c.Prediction.Workers <= 0 {
		return fmt.Errorf("prediction.workers must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
