package patient

import (
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"

	dErrors "careflow/pkg/domain-errors"
)

// DateLayout is the wire format for date fields.
const DateLayout = "2006-01-02"

// Patient is the domain record. The identifier is assigned on creation and
// immutable; it is the join key for the billing call and the emitted event.
type Patient struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Address        string    `json:"address"`
	DateOfBirth    string    `json:"dateOfBirth"`
	RegisteredDate string    `json:"registeredDate"`
}

// State tracks where an operation got to. Terminal states are StateDone,
// StateRejected, and StatePersistedOnly; everything after StatePersisted is
// best-effort and never rolls the write back.
type State string

const (
	StateReceived      State = "RECEIVED"
	StateValidated     State = "VALIDATED"
	StatePersisted     State = "PERSISTED"
	StateBilled        State = "BILLED"
	StateEmitted       State = "EMITTED"
	StateDone          State = "DONE"
	StateRejected      State = "REJECTED"
	StatePersistedOnly State = "PERSISTED_ONLY"
)

// Result is what an orchestrated operation reports back. State distinguishes
// full from degraded success for logs and metrics; transport reports success
// either way.
type Result struct {
	Patient          Patient
	State            State
	BillingAccountID string
}

// CreateRequest is the input for creating a patient.
type CreateRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Address        string `json:"address"`
	DateOfBirth    string `json:"dateOfBirth"`
	RegisteredDate string `json:"registeredDate"`
}

func (r *CreateRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Address = strings.TrimSpace(r.Address)
	r.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
	r.RegisteredDate = strings.TrimSpace(r.RegisteredDate)
}

// Validate checks input shape before any write happens. Messages carry the
// field name so clients get field-level detail.
func (r CreateRequest) Validate() error {
	if err := validateCommon(r.Name, r.Email, r.Address, r.DateOfBirth); err != nil {
		return err
	}
	if err := validateDate("registeredDate", r.RegisteredDate); err != nil {
		return err
	}
	return nil
}

// UpdateRequest is the input for updating a patient. The registration date
// is set once at creation and not updatable.
type UpdateRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Address     string `json:"address"`
	DateOfBirth string `json:"dateOfBirth"`
}

func (r *UpdateRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Address = strings.TrimSpace(r.Address)
	r.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
}

func (r UpdateRequest) Validate() error {
	return validateCommon(r.Name, r.Email, r.Address, r.DateOfBirth)
}

func validateCommon(name, email, address, dateOfBirth string) error {
	if name == "" {
		return dErrors.New(dErrors.CodeValidation, "name: is required")
	}
	if !govalidator.StringLength(name, "1", "255") {
		return dErrors.New(dErrors.CodeValidation, "name: must be at most 255 characters")
	}
	if !govalidator.IsEmail(email) {
		return dErrors.New(dErrors.CodeValidation, "email: must be a valid email address")
	}
	if address == "" {
		return dErrors.New(dErrors.CodeValidation, "address: is required")
	}
	return validateDate("dateOfBirth", dateOfBirth)
}

func validateDate(field, value string) error {
	if value == "" {
		return dErrors.New(dErrors.CodeValidation, field+": is required")
	}
	if _, err := time.Parse(DateLayout, value); err != nil {
		return dErrors.New(dErrors.CodeValidation, field+": must be a date in YYYY-MM-DD format")
	}
	return nil
}
