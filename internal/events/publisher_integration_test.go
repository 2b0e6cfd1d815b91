//go:build integration

package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"careflow/internal/platform/kafka/producer"
	"careflow/pkg/testutil/containers"
)

func TestPublisherDeliversToBroker(t *testing.T) {
	ctx := context.Background()
	kc := containers.GetManager().GetKafka(t)

	topic := "patient.events.test"
	require.NoError(t, kc.CreateTopic(ctx, topic, 1, 1))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	prod, err := producer.New(producer.Config{
		Brokers:         kc.Brokers,
		Retries:         3,
		DeliveryTimeout: 10 * time.Second,
	}, logger)
	require.NoError(t, err)
	defer prod.Close()

	publisher := NewPublisher(prod, topic, 10*time.Second, logger)

	evt := PatientEvent{
		EventID:     uuid.NewString(),
		EventType:   TypeCreated,
		PatientID:   uuid.NewString(),
		Name:        "Jane Doe",
		Email:       "jane.doe@example.com",
		Address:     "12 Main Street",
		DateOfBirth: "1990-04-15",
		EmittedAt:   time.Now().UTC(),
	}
	require.NoError(t, publisher.Publish(ctx, evt))

	client, err := kc.NewConsumer("publisher-test", topic)
	require.NoError(t, err)
	defer client.Close()

	record := kc.WaitForMessage(ctx, client, 30*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == evt.PatientID
	})
	require.NotNil(t, record, "expected the published event on the topic")

	var got PatientEvent
	require.NoError(t, json.Unmarshal(record.Value, &got))
	assert.Equal(t, evt.EventID, got.EventID)
	assert.Equal(t, TypeCreated, got.EventType)

	var eventType string
	for _, h := range record.Headers {
		if h.Key == "event_type" {
			eventType = string(h.Value)
		}
	}
	assert.Equal(t, TypeCreated, eventType)
}
