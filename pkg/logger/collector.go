package logger

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher ships a digest batch somewhere, typically a Kafka topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type DigestConfig struct {
	Interval       time.Duration // flush period
	CountThreshold int           // flush early once this many distinct entries are pending
	Topic          string
	Publisher      Publisher
}

// DigestEntry is one distinct warning or error with its repeat count.
type DigestEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// Digest deduplicates warnings and errors and publishes them in batches, so a
// failing ticker during a recommendation fan-out becomes one entry with a count.
type Digest struct {
	cfg     DigestConfig
	mu      sync.Mutex
	pending map[string]*DigestEntry
	now     func() time.Time
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewDigest(cfg DigestConfig) *Digest {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Digest{
		cfg:     cfg,
		pending: make(map[string]*DigestEntry),
		now:     time.Now,
		cancel:  cancel,
	}
	d.wg.Add(1)
	go d.loop(ctx)
	return d
}

func (d *Digest) Add(level, message string, fields map[string]interface{}, caller string) {
	key := digestKey(level, message, fields, caller)
	now := d.now()

	d.mu.Lock()
	if e, ok := d.pending[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		d.pending[key] = &DigestEntry{
			Level: level, Message: message, Fields: fields, Caller: caller,
			Count: 1, FirstSeen: now, LastSeen: now,
		}
	}
	var batch []DigestEntry
	if len(d.pending) >= d.cfg.CountThreshold {
		batch = d.drainLocked()
	}
	d.mu.Unlock()

	if batch != nil {
		go d.publish(batch)
	}
}

// Flush publishes whatever is pending and waits for the publish to return.
func (d *Digest) Flush() {
	d.mu.Lock()
	batch := d.drainLocked()
	d.mu.Unlock()
	if batch != nil {
		d.publish(batch)
	}
}

func (d *Digest) Close() {
	d.cancel()
	d.wg.Wait()
}

func (d *Digest) loop(ctx context.Context) {
	defer d.wg.Done()
	t := time.NewTicker(d.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			d.Flush()
		case <-ctx.Done():
			d.Flush()
			return
		}
	}
}

// drainLocked returns pending entries, most frequent first.
func (d *Digest) drainLocked() []DigestEntry {
	if len(d.pending) == 0 {
		return nil
	}
	out := make([]DigestEntry, 0, len(d.pending))
	for _, e := range d.pending {
		out = append(out, *e)
	}
	d.pending = make(map[string]*DigestEntry)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].FirstSeen.Before(out[j].FirstSeen)
	})
	return out
}

func (d *Digest) publish(batch []DigestEntry) {
	if d.cfg.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.cfg.Publisher.PublishMessage(ctx, d.cfg.Topic, batch); err != nil {
		// the logger itself may be what routes here; avoid recursion
		fmt.Fprintf(os.Stderr, "log digest: publish %d entries: %v\n", len(batch), err)
	}
}

func digestKey(level, message string, fields map[string]interface{}, caller string) string {
	data, _ := json.Marshal(struct {
		L string                 `json:"l"`
		M string                 `json:"m"`
		F map[string]interface{} `json:"f"`
		C string                 `json:"c"`
	}{level, message, fields, caller})
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
