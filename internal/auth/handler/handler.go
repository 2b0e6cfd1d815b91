package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"careflow/internal/auth"
	"careflow/internal/platform/metrics"
	"careflow/internal/platform/middleware"
	dErrors "careflow/pkg/domain-errors"
	"careflow/pkg/httputil"
)

// Service defines the interface for token issuance.
type Service interface {
	Login(ctx context.Context, req *auth.LoginRequest) (*auth.LoginResult, error)
}

// Handler handles authentication endpoints.
type Handler struct {
	logger    *slog.Logger
	service   Service
	metrics   *metrics.Metrics
	validator middleware.TokenValidator
}

func New(service Service, validator middleware.TokenValidator, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		metrics:   m,
		validator: validator,
	}
}

// Register mounts the auth routes. Login is explicitly registered on the
// public group; validate sits behind the gate like every protected route.
// The shared middleware chain (recovery, request id, logging, timeouts,
// latency) is applied by the parent router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))
		r.Use(middleware.ContentTypeJSON)
		r.Post("/auth/login", h.handleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Get("/auth/validate", h.handleValidate)
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.service.Login(ctx, &req)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeUnauthorized) && !dErrors.HasCode(err, dErrors.CodeValidation) {
			h.logger.ErrorContext(ctx, "login failed",
				"error", err.Error(),
				"request_id", middleware.GetRequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// ValidateResponse echoes the verified claims back to the caller.
type ValidateResponse struct {
	Subject string `json:"subject"`
	Email   string `json:"email"`
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	httputil.WriteJSON(w, http.StatusOK, ValidateResponse{
		Subject: middleware.GetSubject(ctx),
		Email:   middleware.GetEmail(ctx),
	})
}
