package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careflow/internal/billing"
	"careflow/internal/events"
	outboxmem "careflow/internal/outbox/store/memory"
	"careflow/internal/patient"
	"careflow/internal/patient/store"
	dErrors "careflow/pkg/domain-errors"
)

type fakeBilling struct {
	calls int
	err   error
}

func (b *fakeBilling) CreateAccount(_ context.Context, patientID uuid.UUID, _, _ string) (*billing.Account, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	return &billing.Account{AccountID: "acct-" + patientID.String()}, nil
}

type fakePublisher struct {
	published []events.PatientEvent
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, evt events.PatientEvent) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, evt)
	return nil
}

type fixture struct {
	service   *Service
	store     *store.Memory
	billing   *fakeBilling
	publisher *fakePublisher
	outbox    *outboxmem.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     store.NewMemory(),
		billing:   &fakeBilling{},
		publisher: &fakePublisher{},
		outbox:    outboxmem.New(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f.service = New(f.store, f.billing, f.publisher, f.outbox, logger, nil,
		WithClock(func() time.Time { return fixed }))
	return f
}

func validCreate() patient.CreateRequest {
	return patient.CreateRequest{
		Name:           "Jane Doe",
		Email:          "jane.doe@example.com",
		Address:        "12 Main Street",
		DateOfBirth:    "1990-04-15",
		RegisteredDate: "2025-06-01",
	}
}

func TestCreateFullSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	result, err := f.service.Create(ctx, validCreate())
	require.NoError(t, err)

	assert.Equal(t, patient.StateDone, result.State)
	assert.NotEmpty(t, result.BillingAccountID)
	assert.Equal(t, 1, f.billing.calls)

	require.Len(t, f.publisher.published, 1)
	evt := f.publisher.published[0]
	assert.Equal(t, events.TypeCreated, evt.EventType)
	assert.Equal(t, result.Patient.ID.String(), evt.PatientID)
	assert.Equal(t, "jane.doe@example.com", evt.Email)
	assert.NotEmpty(t, evt.EventID)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), evt.EmittedAt)

	stored, err := f.store.Get(ctx, result.Patient.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", stored.Name)
}

func TestCreateBillingFailureIsDegradedSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.billing.err = dErrors.New(dErrors.CodeUnavailable, "billing service unreachable")

	result, err := f.service.Create(ctx, validCreate())
	require.NoError(t, err)

	assert.Equal(t, patient.StatePersistedOnly, result.State)
	assert.Empty(t, result.BillingAccountID)

	// The write is kept and the event still goes out.
	_, err = f.store.Get(ctx, result.Patient.ID)
	require.NoError(t, err)
	require.Len(t, f.publisher.published, 1)
	assert.Equal(t, events.TypeCreated, f.publisher.published[0].EventType)
}

func TestCreatePublishFailureQueuesToOutbox(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.publisher.err = dErrors.New(dErrors.CodeUnavailable, "broker unreachable")

	result, err := f.service.Create(ctx, validCreate())
	require.NoError(t, err)

	assert.Equal(t, patient.StatePersistedOnly, result.State)
	assert.Equal(t, 1, f.billing.calls)

	pending, err := f.outbox.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, result.Patient.ID.String(), pending[0].AggregateID)
	assert.Equal(t, events.TypeCreated, pending[0].EventType)
	assert.Contains(t, string(pending[0].Payload), `"eventType":"CREATED"`)
}

func TestCreateValidationFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req := validCreate()
	req.Email = "not-an-email"

	_, err := f.service.Create(ctx, req)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	patients, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, patients)
	assert.Zero(t, f.billing.calls)
	assert.Empty(t, f.publisher.published)
}

func TestCreateDuplicateEmailConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.Create(ctx, validCreate())
	require.NoError(t, err)

	_, err = f.service.Create(ctx, validCreate())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	assert.Equal(t, 1, f.billing.calls)
}

func TestUpdateEmitsEventWithoutBilling(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.service.Create(ctx, validCreate())
	require.NoError(t, err)
	billingCallsAfterCreate := f.billing.calls

	result, err := f.service.Update(ctx, created.Patient.ID, patient.UpdateRequest{
		Name:        "Jane Smith",
		Email:       "jane.smith@example.com",
		Address:     "34 Oak Avenue",
		DateOfBirth: "1990-04-15",
	})
	require.NoError(t, err)

	assert.Equal(t, patient.StateDone, result.State)
	assert.Equal(t, billingCallsAfterCreate, f.billing.calls)
	assert.Equal(t, created.Patient.RegisteredDate, result.Patient.RegisteredDate)

	require.Len(t, f.publisher.published, 2)
	evt := f.publisher.published[1]
	assert.Equal(t, events.TypeUpdated, evt.EventType)
	assert.Equal(t, "Jane Smith", evt.Name)
}

func TestUpdateMissingPatient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.Update(ctx, uuid.New(), patient.UpdateRequest{
		Name:        "Jane Smith",
		Email:       "jane.smith@example.com",
		Address:     "34 Oak Avenue",
		DateOfBirth: "1990-04-15",
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	assert.Empty(t, f.publisher.published)
}

func TestDeleteEmitsSnapshotEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.service.Create(ctx, validCreate())
	require.NoError(t, err)

	result, err := f.service.Delete(ctx, created.Patient.ID)
	require.NoError(t, err)
	assert.Equal(t, patient.StateDone, result.State)

	_, err = f.store.Get(ctx, created.Patient.ID)
	require.Error(t, err)

	require.Len(t, f.publisher.published, 2)
	evt := f.publisher.published[1]
	assert.Equal(t, events.TypeDeleted, evt.EventType)
	assert.Equal(t, created.Patient.ID.String(), evt.PatientID)
	assert.Equal(t, "jane.doe@example.com", evt.Email)
}

func TestDeleteMissingPatient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.Delete(ctx, uuid.New())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestGetAndList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.service.Create(ctx, validCreate())
	require.NoError(t, err)

	got, err := f.service.Get(ctx, created.Patient.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Patient, got)

	_, err = f.service.Get(ctx, uuid.New())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	patients, err := f.service.List(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 1)
}
