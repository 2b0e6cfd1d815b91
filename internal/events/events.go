// Package events defines the patient domain event and its publisher. An
// event is constructed only after the domain write has durably succeeded;
// delivery downstream is at-least-once, so consumers must tolerate
// duplicates (the EventID exists for exactly that).
package events

import "time"

// Event types carried in PatientEvent.EventType.
const (
	TypeCreated = "CREATED"
	TypeUpdated = "UPDATED"
	TypeDeleted = "DELETED"
)

// PatientEvent is the payload published to the patient events topic. The
// message key is the patient id so brokers that support it keep per-patient
// partition ordering.
type PatientEvent struct {
	EventID     string    `json:"eventId"`
	EventType   string    `json:"eventType"`
	PatientID   string    `json:"patientId"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Address     string    `json:"address"`
	DateOfBirth string    `json:"dateOfBirth"`
	EmittedAt   time.Time `json:"emittedAt"`
}
