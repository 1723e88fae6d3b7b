package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "gzip")

	require.NoError(t, p.Publish(context.Background(), "riskcast.model.events", []byte("v1"), map[string]int{"train_rows": 10}))
	require.NoError(t, p.PublishMessage(context.Background(), "riskcast.logs", "raw"))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "v1", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"train_rows":10}`, string(w.msgs[0].Value))
	assert.NotEmpty(t, ExtractTraceID(w.msgs[0]))
	assert.Equal(t, "raw", string(w.msgs[1].Value))

	w.err = errors.New("broker down")
	err := p.Publish(context.Background(), "t", nil, []byte("x"))
	assert.ErrorContains(t, err, "broker down")

	_, err = NewProducer()
	assert.Error(t, err, "brokers are required")
}

type fakeReader struct {
	mu        sync.Mutex
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

type flakyHandler struct {
	failures int
	calls    int
	traceIDs []string
}

func (h *flakyHandler) Topic() string { return "events" }

func (h *flakyHandler) Handle(ctx context.Context, _ []byte) error {
	h.calls++
	h.traceIDs = append(h.traceIDs, TraceID(ctx))
	if h.calls <= h.failures {
		return errors.New("transient")
	}
	return nil
}

func testConsumer(h MessageHandler, dlq messageWriter) (*Consumer, *fakeReader) {
	c := newConsumer(&ConsumerConfig{WorkerCount: 1, BufferSize: 1, RetryMax: 2, BackoffMin: time.Millisecond, BackoffMax: 2 * time.Millisecond, DLQTopic: "events.dlq"})
	c.dlq = dlq
	c.RegisterHandler(h)
	r := &fakeReader{}
	c.readers[h.Topic()] = r
	return c, r
}

func TestConsumer_RetriesThenCommits(t *testing.T) {
	h := &flakyHandler{failures: 2}
	c, r := testConsumer(h, nil)
	c.SetHook(LoggingHook(c.log))

	msg := kafka.Message{Topic: "events", Value: []byte(`{}`), Headers: []kafka.Header{{Key: TraceHeader, Value: []byte("abc")}}}
	assert.True(t, c.process(msg))
	assert.Equal(t, 3, h.calls)
	assert.Equal(t, []string{"abc", "abc", "abc"}, h.traceIDs)
	assert.Len(t, r.committed, 1)
}

func TestConsumer_ExhaustedRetriesGoToDLQ(t *testing.T) {
	h := &flakyHandler{failures: 10}
	dlq := &fakeWriter{}
	c, r := testConsumer(h, dlq)

	assert.True(t, c.process(kafka.Message{Topic: "events", Value: []byte("poison")}))
	assert.Equal(t, 3, h.calls, "first attempt plus RetryMax")
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "events.dlq", dlq.msgs[0].Topic)
	assert.Len(t, r.committed, 1, "committed after dead-lettering")
}

func TestConsumer_NoDLQLeavesOffset(t *testing.T) {
	h := &flakyHandler{failures: 10}
	c, r := testConsumer(h, nil)
	assert.False(t, c.process(kafka.Message{Topic: "events"}))
	assert.Empty(t, r.committed)
}

func TestConsumer_StartStop(t *testing.T) {
	h := &flakyHandler{}
	c := newConsumer(&ConsumerConfig{WorkerCount: 2, BufferSize: 4})
	c.newReader = func(string) messageReader { return &fakeReader{} }
	assert.Error(t, c.Start(), "nothing registered")

	c.RegisterHandler(h)
	require.NoError(t, c.Start())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, c.Stop(ctx))
	assert.NoError(t, c.Stop(ctx), "idempotent")
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt < 10; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 100*time.Millisecond, attempt)
		assert.LessOrEqual(t, d, 100*time.Millisecond)
		assert.Greater(t, d, time.Duration(0))
	}
}

func TestEncode(t *testing.T) {
	b, err := encode(struct {
		A int `json:"a"`
	}{1})
	require.NoError(t, err)
	var m map[string]int
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, 1, m["a"])

	_, err = encode(make(chan int))
	assert.Error(t, err)
}
