// Package service holds the patient lifecycle orchestrator. Each operation
// is an explicit sequence (validate, persist, bill, emit) so the failure
// policy is visible and testable in one place instead of hidden in
// interceptor chains.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"careflow/internal/billing"
	"careflow/internal/events"
	"careflow/internal/outbox"
	"careflow/internal/patient"
	"careflow/internal/platform/metrics"
	"careflow/internal/platform/middleware"
	dErrors "careflow/pkg/domain-errors"
	"careflow/pkg/sentinel"
)

// Store owns patient persistence. The write is the durability boundary:
// once Create/Update/Delete succeeds, the operation's outcome is fixed
// regardless of what the side effects do.
type Store interface {
	Create(ctx context.Context, p patient.Patient) error
	Update(ctx context.Context, p patient.Patient) error
	Get(ctx context.Context, id uuid.UUID) (patient.Patient, error)
	List(ctx context.Context) ([]patient.Patient, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// BillingClient is the synchronous billing dependency; see the billing package.
type BillingClient interface {
	CreateAccount(ctx context.Context, patientID uuid.UUID, name, email string) (*billing.Account, error)
}

// Publisher hands domain events to the broker.
type Publisher interface {
	Publish(ctx context.Context, evt events.PatientEvent) error
}

// OutboxStore queues events whose direct publish failed.
type OutboxStore interface {
	Append(ctx context.Context, entry outbox.Entry) error
}

// Service orchestrates the patient lifecycle: domain write first, then the
// billing call, then event emission. Billing and publish failures are
// degraded success: they never roll back or fail the operation.
type Service struct {
	store     Store
	billing   BillingClient
	publisher Publisher
	outbox    OutboxStore
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the event timestamp source for testability.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(store Store, billingClient BillingClient, publisher Publisher, outboxStore OutboxStore,
	logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Service {
	s := &Service{
		store:     store,
		billing:   billingClient,
		publisher: publisher,
		outbox:    outboxStore,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create validates input, persists the patient, then drives the two side
// effects. State transitions:
//
//	RECEIVED -> VALIDATED -> PERSISTED -> BILLED -> EMITTED -> DONE
//	                \-> REJECTED          (validation failure, nothing written)
//	     PERSISTED -> PERSISTED_ONLY      (billing or emit failed, write kept)
func (s *Service) Create(ctx context.Context, req patient.CreateRequest) (*patient.Result, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.logRejected(ctx, "create", err)
		return nil, err
	}

	p := patient.Patient{
		ID:             uuid.New(),
		Name:           req.Name,
		Email:          req.Email,
		Address:        req.Address,
		DateOfBirth:    req.DateOfBirth,
		RegisteredDate: req.RegisteredDate,
	}

	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a patient with this email already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "patient write failed")
	}
	if s.metrics != nil {
		s.metrics.PatientsCreated.Inc()
	}

	// The patient now exists whatever happens below.
	result := &patient.Result{Patient: p, State: patient.StatePersisted}

	billed := s.invokeBilling(ctx, result)
	emitted := s.emit(ctx, events.TypeCreated, p)

	if billed && emitted {
		result.State = patient.StateDone
	} else {
		result.State = patient.StatePersistedOnly
		if s.metrics != nil {
			s.metrics.DegradedSuccess.Inc()
		}
	}

	s.logger.InfoContext(ctx, "patient created",
		"patient_id", p.ID,
		"state", result.State,
		"request_id", middleware.GetRequestID(ctx),
	)
	return result, nil
}

// Update writes first, then emits a best-effort UPDATED event. Billing is
// not re-invoked on update.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req patient.UpdateRequest) (*patient.Result, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.logRejected(ctx, "update", err)
		return nil, err
	}

	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.mapStoreError(err, "patient lookup failed")
	}

	updated := patient.Patient{
		ID:             existing.ID,
		Name:           req.Name,
		Email:          req.Email,
		Address:        req.Address,
		DateOfBirth:    req.DateOfBirth,
		RegisteredDate: existing.RegisteredDate,
	}

	if err := s.store.Update(ctx, updated); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a patient with this email already exists")
		}
		return nil, s.mapStoreError(err, "patient write failed")
	}
	if s.metrics != nil {
		s.metrics.PatientsUpdated.Inc()
	}

	result := &patient.Result{Patient: updated, State: patient.StatePersisted}
	if s.emit(ctx, events.TypeUpdated, updated) {
		result.State = patient.StateDone
	} else {
		result.State = patient.StatePersistedOnly
		if s.metrics != nil {
			s.metrics.DegradedSuccess.Inc()
		}
	}

	s.logger.InfoContext(ctx, "patient updated",
		"patient_id", updated.ID,
		"state", result.State,
		"request_id", middleware.GetRequestID(ctx),
	)
	return result, nil
}

// Delete removes the record, then emits a best-effort DELETED event built
// from the pre-delete snapshot.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (*patient.Result, error) {
	snapshot, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.mapStoreError(err, "patient lookup failed")
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return nil, s.mapStoreError(err, "patient delete failed")
	}
	if s.metrics != nil {
		s.metrics.PatientsDeleted.Inc()
	}

	result := &patient.Result{Patient: snapshot, State: patient.StatePersisted}
	if s.emit(ctx, events.TypeDeleted, snapshot) {
		result.State = patient.StateDone
	} else {
		result.State = patient.StatePersistedOnly
		if s.metrics != nil {
			s.metrics.DegradedSuccess.Inc()
		}
	}

	s.logger.InfoContext(ctx, "patient deleted",
		"patient_id", id,
		"state", result.State,
		"request_id", middleware.GetRequestID(ctx),
	)
	return result, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (patient.Patient, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return patient.Patient{}, s.mapStoreError(err, "patient lookup failed")
	}
	return p, nil
}

func (s *Service) List(ctx context.Context) ([]patient.Patient, error) {
	patients, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "patient list failed")
	}
	return patients, nil
}

// invokeBilling performs the bounded synchronous billing call. Every failure
// kind (unavailable, timeout, rejected) is logged and absorbed: patient
// existence is not contingent on the billing system. Returns true on success.
func (s *Service) invokeBilling(ctx context.Context, result *patient.Result) bool {
	p := result.Patient
	account, err := s.billing.CreateAccount(ctx, p.ID, p.Name, p.Email)
	if err != nil {
		kind := dErrors.CodeOf(err)
		s.logger.WarnContext(ctx, "billing account creation failed, continuing without it",
			"patient_id", p.ID,
			"kind", string(kind),
			"error", err.Error(),
			"request_id", middleware.GetRequestID(ctx),
		)
		if s.metrics != nil {
			s.metrics.BillingCalls.WithLabelValues(string(kind)).Inc()
		}
		return false
	}

	result.BillingAccountID = account.AccountID
	if s.metrics != nil {
		s.metrics.BillingCalls.WithLabelValues("ok").Inc()
	}
	return true
}

// emit constructs the event from post-write state and hands it to the
// publisher. On failure the event goes to the outbox for out-of-band retry;
// the request itself never waits on broker recovery. Returns true when the
// broker accepted the event directly.
func (s *Service) emit(ctx context.Context, eventType string, p patient.Patient) bool {
	evt := events.PatientEvent{
		EventID:     uuid.NewString(),
		EventType:   eventType,
		PatientID:   p.ID.String(),
		Name:        p.Name,
		Email:       p.Email,
		Address:     p.Address,
		DateOfBirth: p.DateOfBirth,
		EmittedAt:   s.now().UTC(),
	}

	err := s.publisher.Publish(ctx, evt)
	if err == nil {
		if s.metrics != nil {
			s.metrics.EventsPublished.WithLabelValues(eventType).Inc()
		}
		return true
	}

	s.logger.WarnContext(ctx, "event publish failed, queuing for retry",
		"patient_id", evt.PatientID,
		"event_type", eventType,
		"error", err.Error(),
		"request_id", middleware.GetRequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.PublishFailures.Inc()
	}

	s.enqueue(ctx, evt)
	return false
}

func (s *Service) enqueue(ctx context.Context, evt events.PatientEvent) {
	if s.outbox == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		s.logger.ErrorContext(ctx, "encode event for outbox failed", "error", err.Error())
		return
	}
	entry := outbox.NewEntry("patient", evt.PatientID, evt.EventType, payload)
	if err := s.outbox.Append(ctx, entry); err != nil {
		// Outbox failure must not fail the operation either; the event for
		// this attempt is lost, which at-least-once consumers tolerate.
		s.logger.ErrorContext(ctx, "outbox append failed, event dropped",
			"patient_id", evt.PatientID,
			"event_type", evt.EventType,
			"error", err.Error(),
		)
	}
}

func (s *Service) mapStoreError(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "patient not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (s *Service) logRejected(ctx context.Context, op string, err error) {
	s.logger.WarnContext(ctx, "patient operation rejected",
		"operation", op,
		"error", err.Error(),
		"request_id", middleware.GetRequestID(ctx),
	)
}
