package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"careflow/internal/outbox"
	"careflow/internal/platform/kafka/producer"
	"careflow/internal/platform/metrics"
)

// Store is the outbox access the worker needs.
type Store interface {
	FetchPending(ctx context.Context, limit int) ([]outbox.Entry, error)
	MarkProcessed(ctx context.Context, ids []uuid.UUID) error
}

// Producer is the broker handoff used for republication.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Worker drains pending outbox entries to the broker in the background.
// Entries the broker still refuses stay pending and are retried on the next
// poll.
type Worker struct {
	store    Store
	producer Producer
	logger   *slog.Logger
	metrics  *metrics.Metrics

	topic        string
	pollInterval time.Duration
	batchSize    int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Worker.
type Option func(*Worker)

func WithTopic(topic string) Option {
	return func(w *Worker) { w.topic = topic }
}

func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

func WithBatchSize(size int) Option {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

func New(store Store, prod Producer, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		store:        store,
		producer:     prod,
		topic:        "patient.events",
		pollInterval: 5 * time.Second,
		batchSize:    50,
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Start begins polling in a background goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.drain()
		}
	}
}

// drain publishes one batch of pending entries and marks the accepted ones
// processed.
func (w *Worker) drain() {
	entries, err := w.store.FetchPending(w.ctx, w.batchSize)
	if err != nil {
		w.logError("fetch pending outbox entries failed", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	var processed []uuid.UUID
	for _, entry := range entries {
		msg := &producer.Message{
			Topic: w.topic,
			Key:   []byte(entry.AggregateID),
			Value: entry.Payload,
			Headers: map[string]string{
				"event_type": entry.EventType,
				"retried":    "true",
			},
		}
		if err := w.producer.Produce(w.ctx, msg); err != nil {
			w.logError("outbox republish failed", err)
			// Leave pending; order within one aggregate must hold, so
			// stop the batch at the first failure.
			break
		}
		processed = append(processed, entry.ID)
		if w.metrics != nil {
			w.metrics.OutboxRetries.Inc()
		}
	}

	if len(processed) == 0 {
		return
	}
	if err := w.store.MarkProcessed(w.ctx, processed); err != nil {
		w.logError("mark outbox entries processed failed", err)
	}
}

// Stop halts polling and waits for the in-flight drain to finish.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) logError(msg string, err error) {
	if w.logger != nil {
		w.logger.Error(msg, "error", err)
	}
}
