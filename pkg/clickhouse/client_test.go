package clickhouse

import (
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
)

func TestOptions(t *testing.T) {
	cfg := &ClientConfig{
		Host:     "ch",
		Port:     9000,
		Database: "riskcast",
		User:     "default",
		Password: "pw",
	}
	opt := options(cfg)
	assert.Equal(t, []string{"ch:9000"}, opt.Addr)
	assert.Equal(t, clickhouse.Auth{Database: "riskcast", Username: "default", Password: "pw"}, opt.Auth)
	assert.Equal(t, clickhouse.Native, opt.Protocol)
	assert.Nil(t, opt.Compression)
	assert.Empty(t, opt.Settings)

	cfg.UseHTTP = true
	cfg.Compression = "lz4"
	cfg.MaxExecTime = time.Minute
	cfg.AsyncInsert = true
	cfg.WaitForAsync = true
	opt = options(cfg)
	assert.Equal(t, clickhouse.HTTP, opt.Protocol)
	assert.Equal(t, clickhouse.CompressionLZ4, opt.Compression.Method)
	assert.Equal(t, clickhouse.Settings{
		"max_execution_time":    60,
		"async_insert":          1,
		"wait_for_async_insert": 1,
	}, opt.Settings)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient(WithPort(9000))
	assert.ErrorContains(t, err, "host is required")
}
