// Package handler exposes the patient lifecycle over HTTP. Every route sits
// behind the token gate; the handler translates transport concerns and leaves
// orchestration to the service.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"careflow/internal/patient"
	"careflow/internal/platform/middleware"
	dErrors "careflow/pkg/domain-errors"
	"careflow/pkg/httputil"
)

// Service is the orchestrator surface the handler drives.
type Service interface {
	Create(ctx context.Context, req patient.CreateRequest) (*patient.Result, error)
	Update(ctx context.Context, id uuid.UUID, req patient.UpdateRequest) (*patient.Result, error)
	Delete(ctx context.Context, id uuid.UUID) (*patient.Result, error)
	Get(ctx context.Context, id uuid.UUID) (patient.Patient, error)
	List(ctx context.Context) ([]patient.Patient, error)
}

// Handler handles patient endpoints.
type Handler struct {
	logger    *slog.Logger
	service   Service
	validator middleware.TokenValidator
}

func New(service Service, validator middleware.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator,
	}
}

// Register mounts the patient routes behind the token gate. The shared
// middleware chain is applied by the parent router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		r.Use(middleware.RequireAuth(h.validator, h.logger))

		r.Get("/api/patients", h.handleList)
		r.Get("/api/patients/{id}", h.handleGet)

		r.Group(func(r chi.Router) {
			r.Use(middleware.ContentTypeJSON)
			r.Post("/api/patients", h.handleCreate)
			r.Put("/api/patients/{id}", h.handleUpdate)
		})

		r.Delete("/api/patients/{id}", h.handleDelete)
	})
}

// PatientResponse is the envelope for single-patient responses. The billing
// account id is present only when the synchronous billing call succeeded.
type PatientResponse struct {
	patient.Patient
	BillingAccountID string `json:"billingAccountId,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req patient.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.service.Create(ctx, req)
	if err != nil {
		h.logFailure(ctx, "create patient failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, PatientResponse{
		Patient:          result.Patient,
		BillingAccountID: result.BillingAccountID,
	})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req patient.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.service.Update(ctx, id, req)
	if err != nil {
		h.logFailure(ctx, "update patient failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, PatientResponse{Patient: result.Patient})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if _, err := h.service.Delete(ctx, id); err != nil {
		h.logFailure(ctx, "delete patient failed", err)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	p, err := h.service.Get(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, PatientResponse{Patient: p})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	patients, err := h.service.List(r.Context())
	if err != nil {
		h.logFailure(r.Context(), "list patients failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, patients)
}

func parseID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "id: must be a valid UUID")
	}
	return id, nil
}

// logFailure records unexpected failures; expected client errors already
// carry their detail in the response.
func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeValidation, dErrors.CodeBadRequest, dErrors.CodeNotFound, dErrors.CodeConflict:
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"error", err.Error(),
		"request_id", middleware.GetRequestID(ctx),
	)
}
