package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careflow/internal/outbox"
	"careflow/internal/outbox/store/memory"
	"careflow/internal/platform/kafka/producer"
)

type fakeProducer struct {
	mu       sync.Mutex
	messages []*producer.Message
	err      error
}

func (p *fakeProducer) Produce(_ context.Context, msg *producer.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *fakeProducer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func (p *fakeProducer) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func TestWorkerDrainsPendingEntries(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	prod := &fakeProducer{}

	entry := outbox.NewEntry("patient", "patient-1", "CREATED", []byte(`{"eventType":"CREATED"}`))
	require.NoError(t, store.Append(ctx, entry))

	w := New(store, prod,
		WithTopic("patient.events"),
		WithPollInterval(10*time.Millisecond),
		WithBatchSize(10),
	)
	w.Start()

	assert.Eventually(t, func() bool {
		count, _ := store.CountPending(ctx)
		return count == 0
	}, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, w.Stop(stopCtx))

	require.Equal(t, 1, prod.count())
	msg := prod.messages[0]
	assert.Equal(t, "patient.events", msg.Topic)
	assert.Equal(t, "patient-1", string(msg.Key))
	assert.Equal(t, "CREATED", msg.Headers["event_type"])
}

func TestWorkerKeepsEntriesOnProduceFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	prod := &fakeProducer{}
	prod.setErr(errors.New("broker unavailable"))

	require.NoError(t, store.Append(ctx, outbox.NewEntry("patient", "patient-1", "CREATED", []byte(`{}`))))

	w := New(store, prod, WithPollInterval(10*time.Millisecond))
	w.Start()

	// Give the worker a few polls; the entry must stay pending.
	time.Sleep(100 * time.Millisecond)
	count, err := store.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Once the broker recovers, the entry drains.
	prod.setErr(nil)
	assert.Eventually(t, func() bool {
		count, _ := store.CountPending(ctx)
		return count == 0
	}, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, w.Stop(stopCtx))
}
