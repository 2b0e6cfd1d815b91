// Package outbox is the retry queue for events the broker did not accept on
// the request path. The orchestrator appends an entry only when a direct
// publish fails; the worker republishes pending entries out of band, so the
// request never blocks on broker recovery.
package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Status of an outbox entry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
)

// Entry is one queued event awaiting (re)publication.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Status        Status
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

// NewEntry builds a pending entry for the given aggregate and payload.
func NewEntry(aggregateType, aggregateID, eventType string, payload []byte) Entry {
	return Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
	}
}
