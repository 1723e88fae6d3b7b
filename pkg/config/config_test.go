package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	assert.Equal(t, 8000, c.Server.Port)
	assert.Equal(t, []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA"}, c.Data.Tickers)
	assert.Equal(t, 24*time.Hour, c.Data.CacheTTL)
	assert.Equal(t, []string{"Low", "Medium", "High"}, c.Models.RiskLevels)
	assert.Equal(t, 0.2, c.Training.TestSize)
	assert.Equal(t, "riskcast.model.events", c.Kafka.Topic)
	require.NoError(t, c.Validate())
}

func TestParse_OverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
data:
  tickers: [aapl, " msft", AAPL]
  cache_ttl: 2h
training:
  test_size: 0.25
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, c.Data.Tickers)
	assert.Equal(t, 2*time.Hour, c.Data.CacheTTL)
	assert.Equal(t, 0.25, c.Training.TestSize)
	assert.Equal(t, 3, c.Training.PCAComponents)
}

func TestParse_TestSizeAsRowCount(t *testing.T) {
	c, err := Parse([]byte("training:\n  test_size: 30\n"))
	require.NoError(t, err)
	assert.Equal(t, 30.0, c.Training.TestSize)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"test size":   "training:\n  test_size: 1.5\n",
		"zero size":   "training:\n  test_size: 0\n",
		"source":      "data:\n  source: csv\n",
		"clickhouse":  "data:\n  source: clickhouse\n",
		"risk levels": "models:\n  risk_levels: [Low, High]\n",
		"yaml":        "server: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	env := map[string]string{
		"ALPHAVANTAGE_API_KEY": "secret",
		"TICKERS":              "nvda,amd",
		"KAFKA_BROKERS":        "k1:9092,k2:9092",
		"PORT":                 "9001",
		"DATA_CACHE_TTL":       "2h",
	}
	c.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "secret", c.AlphaVantage.APIKey)
	assert.Equal(t, []string{"NVDA", "AMD"}, c.Data.Tickers)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, 9001, c.Server.Port)
	assert.Equal(t, 2*time.Hour, c.Data.CacheTTL)
	assert.False(t, c.Redis.Enabled)
}

func TestLoadSampleFile(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "alphavantage", c.Data.Source)
	assert.Len(t, c.Training.Features, 8)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
