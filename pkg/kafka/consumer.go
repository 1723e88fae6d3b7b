package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	applogger "RiskCast/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer fetches from one reader per registered topic and hands messages to a
// worker pool. Offsets are committed after success, or after a DLQ write.
type Consumer struct {
	cfg       *ConsumerConfig
	log       *applogger.Logger
	handlers  map[string]MessageHandler
	readers   map[string]messageReader
	newReader func(topic string) messageReader
	dlq       messageWriter
	hook      ConsumerHook
	msgs      chan kafka.Message
	stop      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "riskcast",
		WorkerCount: 1,
		BufferSize:  16,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := newConsumer(cfg)
	c.newReader = func(topic string) messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		})
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}
	return c, nil
}

func newConsumer(cfg *ConsumerConfig) *Consumer {
	log := cfg.Logger
	if log == nil {
		log = applogger.Nop()
	}
	initConsumerMetrics()
	return &Consumer{
		cfg:      cfg,
		log:      log,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]messageReader),
		hook:     NoopHook{},
		msgs:     make(chan kafka.Message, max(cfg.BufferSize, 1)),
		stop:     make(chan struct{}),
	}
}

// RegisterHandler registers a handler; a second handler for the same topic is ignored.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("kafka handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// SetHook installs lifecycle hooks around Handle.
func (c *Consumer) SetHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start launches readers and workers. It returns immediately.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}
	for topic := range c.handlers {
		c.readers[topic] = c.newReader(topic)
	}
	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.wg.Add(1)
		go c.worker()
	}
	for topic, r := range c.readers {
		c.wg.Add(1)
		go c.fetch(topic, r)
	}
	c.log.Info("kafka consumer started",
		applogger.Int("topics", len(c.readers)),
		applogger.Int("workers", c.cfg.WorkerCount),
		applogger.String("group", c.cfg.GroupID),
	)
	return nil
}

// Stop signals every goroutine, waits for them within ctx, and closes readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		close(c.stop)
		for topic, r := range c.readers {
			if err := r.Close(); err != nil {
				c.log.Warn("kafka reader close failed", applogger.String("topic", topic), applogger.Error(err))
			}
		}
		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		}
		if c.dlq != nil {
			_ = c.dlq.Close()
		}
	})
	return stopErr
}

func (c *Consumer) fetch(topic string, r messageReader) {
	defer c.wg.Done()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.stop
		cancel()
	}()

	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("kafka fetch failed", applogger.String("topic", topic), applogger.Error(err))
			select {
			case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, 2)):
				continue
			case <-c.stop:
				return
			}
		}
		select {
		case c.msgs <- msg:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(c.msgs)))
		case <-c.stop:
			return
		}
	}
}

func (c *Consumer) worker() {
	defer c.wg.Done()
	for {
		select {
		case msg := <-c.msgs:
			c.process(msg)
		case <-c.stop:
			return
		}
	}
}

// process runs the handler with retries and reports whether the offset was committed.
func (c *Consumer) process(km kafka.Message) bool {
	handler, ok := c.handlers[km.Topic]
	if !ok {
		return false
	}
	start := time.Now()
	defer func() {
		consumerHandleLatency.WithLabelValues(km.Topic).Observe(time.Since(start).Seconds())
	}()

	err := c.handleWithRetry(handler, km)
	result := "ok"
	if err != nil {
		result = "error"
		c.hook.OnError(context.Background(), km.Topic, km, km.Value, err)
		c.log.Error("kafka message failed",
			applogger.String("topic", km.Topic),
			applogger.Int64("offset", km.Offset),
			applogger.Error(err),
		)
		if !c.deadLetter(km) {
			consumerMessagesTotal.WithLabelValues(km.Topic, result).Inc()
			return false
		}
	}
	consumerMessagesTotal.WithLabelValues(km.Topic, result).Inc()

	if r := c.readers[km.Topic]; r != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.CommitMessages(ctx, km); err != nil {
			c.log.Warn("kafka commit failed", applogger.String("topic", km.Topic), applogger.Error(err))
			return false
		}
	}
	return true
}

func (c *Consumer) handleWithRetry(handler MessageHandler, km kafka.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	for attempt := 1; ; attempt++ {
		ctx, msg, data, berr := c.hook.BeforeHandle(context.Background(), km.Topic, km, km.Value)
		if berr != nil {
			return berr
		}
		err = handler.Handle(ctx, data)
		c.hook.AfterHandle(ctx, km.Topic, msg, data, err)
		if err == nil || attempt > c.cfg.RetryMax {
			return err
		}
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-c.stop:
			return err
		}
	}
}

// deadLetter forwards a failed message; without a DLQ the offset stays uncommitted.
func (c *Consumer) deadLetter(km kafka.Message) bool {
	if c.dlq == nil || c.cfg.DLQTopic == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Key:     km.Key,
		Value:   km.Value,
		Time:    time.Now(),
		Headers: append(km.Headers, kafka.Header{Key: "source_topic", Value: []byte(km.Topic)}),
	})
	if err != nil {
		c.log.Error("kafka dlq write failed", applogger.String("topic", c.cfg.DLQTopic), applogger.Error(err))
		return false
	}
	return true
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := min << uint(attempt-1)
	if exp > max || exp <= 0 {
		exp = max
	}
	half := int64(exp) / 2
	if half <= 0 {
		return exp
	}
	return exp - time.Duration(rand.Int63n(half))
}

var (
	consumerQueueDepth    *prometheus.GaugeVec
	consumerMessagesTotal *prometheus.CounterVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerOnce          sync.Once
)

func initConsumerMetrics() {
	consumerOnce.Do(func() {
		consumerQueueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "riskcast_kafka_consumer_queue_depth", Help: "Messages waiting for a worker"},
			[]string{"topic"},
		)
		consumerMessagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "riskcast_kafka_consumer_messages_total", Help: "Messages handled by result"},
			[]string{"topic", "result"},
		)
		consumerHandleLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "riskcast_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		)
	})
}
