package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"careflow/internal/platform/kafka/producer"
	dErrors "careflow/pkg/domain-errors"
)

// Producer is the broker handoff the publisher needs; satisfied by the
// Kafka producer and its noop variant.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Publisher hands patient domain events to the broker. The handoff carries
// its own short deadline so a dead broker can never hold a request thread.
type Publisher struct {
	producer Producer
	topic    string
	timeout  time.Duration
	logger   *slog.Logger
}

func NewPublisher(p Producer, topic string, timeout time.Duration, logger *slog.Logger) *Publisher {
	return &Publisher{
		producer: p,
		topic:    topic,
		timeout:  timeout,
		logger:   logger,
	}
}

// Topic reports the topic events are published to.
func (p *Publisher) Topic() string {
	return p.topic
}

// Publish hands one event to the broker and waits, bounded, for the ack.
// Once the broker accepts it, delivery to subscribers is at-least-once.
func (p *Publisher) Publish(ctx context.Context, evt PatientEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode patient event")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.producer.Produce(ctx, &producer.Message{
		Topic: p.topic,
		Key:   []byte(evt.PatientID),
		Value: payload,
		Headers: map[string]string{
			"event_id":   evt.EventID,
			"event_type": evt.EventType,
		},
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "broker did not accept event")
	}
	return nil
}
