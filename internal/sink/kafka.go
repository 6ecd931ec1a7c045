// Package sink forwards newly seen disaster alerts to Kafka.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/jpalmerr/disasterboard/internal/api"
	"github.com/jpalmerr/disasterboard/internal/observability"
)

// Defaults for [Config].
const (
	DefaultSeenSize     = 4096
	DefaultQueueSize    = 16
	DefaultWriteTimeout = 10 * time.Second
)

// MessageWriter is the subset of *kafkago.Writer the forwarder uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NewKafkaWriter creates a producer for topic.
func NewKafkaWriter(brokers []string, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// Config configures a [Forwarder].
type Config struct {
	SeenSize     int
	QueueSize    int
	WriteTimeout time.Duration
	Clock        clockwork.Clock
	Logger       *slog.Logger
	Metrics      *observability.Metrics
}

type batch struct {
	view   string
	events []api.DisasterEvent
}

// Forwarder publishes each disaster event once, remembering the most recent
// keys it has published.
//
// Submit is non-blocking so it can be called from a poller observer; the
// batches are written by the goroutine started with Start.
type Forwarder struct {
	writer  MessageWriter
	seen    *lru.Cache[string, struct{}]
	timeout time.Duration
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	queue chan batch

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewForwarder creates a forwarder writing to w.
func NewForwarder(w MessageWriter, cfg Config) (*Forwarder, error) {
	if w == nil {
		return nil, errors.New("sink: writer is required")
	}
	if cfg.SeenSize <= 0 {
		cfg.SeenSize = DefaultSeenSize
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	seen, err := lru.New[string, struct{}](cfg.SeenSize)
	if err != nil {
		return nil, fmt.Errorf("sink: create seen cache: %w", err)
	}

	return &Forwarder{
		writer:  w,
		seen:    seen,
		timeout: cfg.WriteTimeout,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		queue:   make(chan batch, cfg.QueueSize),
	}, nil
}

// Forward publishes the events of view that have not been published
// before and returns how many were written. Keys are marked as seen only
// after a successful write.
func (f *Forwarder) Forward(ctx context.Context, view string, events []api.DisasterEvent) (int, error) {
	now := f.clock.Now().UTC()

	var (
		msgs []kafkago.Message
		keys []string
	)
	batchKeys := make(map[string]struct{}, len(events))
	for i := range events {
		key := events[i].Key()
		if _, dup := batchKeys[key]; dup || f.seen.Contains(key) {
			continue
		}
		batchKeys[key] = struct{}{}

		msg, err := serializeToMessage(view, events[i], now)
		if err != nil {
			return 0, err
		}
		msgs = append(msgs, msg)
		keys = append(keys, key)
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if err := f.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, fmt.Errorf("sink: write %d alerts: %w", len(msgs), err)
	}

	for _, k := range keys {
		f.seen.Add(k, struct{}{})
	}
	f.metrics.AlertForwarded(len(msgs))
	return len(msgs), nil
}

// Submit queues events for publishing. The batch is dropped when the queue
// is full or the forwarder is closed.
func (f *Forwarder) Submit(view string, events []api.DisasterEvent) {
	if len(events) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}

	select {
	case f.queue <- batch{view: view, events: append([]api.DisasterEvent(nil), events...)}:
	default:
		f.logger.Warn("alert sink queue full, dropping batch", "view", view, "events", len(events))
	}
}

// Start launches the goroutine draining the queue. Subsequent calls are
// no-ops.
func (f *Forwarder) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started || f.closed {
		return
	}
	f.started = true

	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.wg.Add(1)
	go f.run(ctx)
}

func (f *Forwarder) run(ctx context.Context) {
	defer f.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-f.queue:
			n, err := f.Forward(ctx, b.view, b.events)
			if err != nil {
				f.logger.Error("failed to forward alerts", "view", b.view, "error", err.Error())
				continue
			}
			if n > 0 {
				f.logger.Info("alerts forwarded", "view", b.view, "count", n)
			}
		}
	}
}

// Close stops the drain goroutine and closes the writer.
func (f *Forwarder) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	if f.cancel != nil {
		f.cancel()
	}
	f.mu.Unlock()

	f.wg.Wait()
	return f.writer.Close()
}

// serializeToMessage marshals a DisasterEvent into a Kafka message keyed
// by the event ID.
func serializeToMessage(view string, event api.DisasterEvent, publishedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize disaster event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Key()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "view", Value: []byte(view)},
			{Key: "source", Value: []byte(event.Source)},
			{Key: "published_at", Value: []byte(publishedAt.Format(time.RFC3339))},
		},
	}, nil
}
