package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.DebugLevel).With(String("component", "registry"))

	l.Info("saved", String("version", "version_20240101_000000"), Int("roles", 6),
		Float64("r2", 0.25), Duration("took", 1500*time.Millisecond), Error(errors.New("boom")), Bool("ok", true))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "registry", entry["component"])
	assert.Equal(t, "version_20240101_000000", entry["version"])
	assert.Equal(t, 6.0, entry["roles"])
	assert.Equal(t, 0.25, entry["r2"])
	assert.Equal(t, 1500.0, entry["took"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, true, entry["ok"])
}

func TestNew_RejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.Error(t, err)
}

type fakePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]DigestEntry
}

func (p *fakePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]DigestEntry))
	return nil
}

func TestDigest_Deduplicates(t *testing.T) {
	pub := &fakePublisher{}
	d := NewDigest(DigestConfig{Interval: time.Hour, CountThreshold: 50, Topic: "riskcast.logs", Publisher: pub})
	defer d.Close()

	l := NewWithWriter(&bytes.Buffer{}, zerolog.DebugLevel)
	l.AttachDigest(d)
	for i := 0; i < 3; i++ {
		l.Warn("candidate failed", String("ticker", "TSLA"))
	}
	l.Error("fetch failed", String("ticker", "MSFT"))
	l.Info("not collected")
	d.Flush()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	batch := pub.batches[0]
	require.Len(t, batch, 2)
	assert.Equal(t, "riskcast.logs", pub.topic)
	assert.Equal(t, 3, batch[0].Count)
	assert.Equal(t, "warn", batch[0].Level)
	assert.Equal(t, "TSLA", batch[0].Fields["ticker"])
	assert.Equal(t, "error", batch[1].Level)
}
