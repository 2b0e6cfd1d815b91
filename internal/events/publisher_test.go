package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careflow/internal/platform/kafka/producer"
	dErrors "careflow/pkg/domain-errors"
)

type captureProducer struct {
	messages []*producer.Message
	err      error
}

func (p *captureProducer) Produce(_ context.Context, msg *producer.Message) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func testEvent() PatientEvent {
	return PatientEvent{
		EventID:     "evt-1",
		EventType:   TypeCreated,
		PatientID:   "9e4a4f0e-0000-0000-0000-000000000001",
		Name:        "John Doe",
		Email:       "john@demo.com",
		Address:     "123 Main St",
		DateOfBirth: "1995-09-09",
		EmittedAt:   time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestPublishKeyAndPayload(t *testing.T) {
	prod := &captureProducer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := NewPublisher(prod, "patient.events", time.Second, logger)

	evt := testEvent()
	require.NoError(t, pub.Publish(context.Background(), evt))
	require.Len(t, prod.messages, 1)

	msg := prod.messages[0]
	assert.Equal(t, "patient.events", msg.Topic)
	// Key is the patient id for per-patient partition ordering.
	assert.Equal(t, evt.PatientID, string(msg.Key))
	assert.Equal(t, "evt-1", msg.Headers["event_id"])
	assert.Equal(t, TypeCreated, msg.Headers["event_type"])

	var decoded PatientEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, evt, decoded)
}

func TestPublishBrokerFailure(t *testing.T) {
	prod := &captureProducer{err: errors.New("no brokers reachable")}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := NewPublisher(prod, "patient.events", time.Second, logger)

	err := pub.Publish(context.Background(), testEvent())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}
