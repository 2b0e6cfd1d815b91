package service

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"careflow/internal/auth"
	"careflow/internal/jwttoken"
	"careflow/internal/platform/metrics"
	"careflow/internal/platform/middleware"
	dErrors "careflow/pkg/domain-errors"
	"careflow/pkg/sentinel"
)

// UserStore is the credential lookup the authority performs on issue.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (auth.User, error)
}

// Service is the credential authority: it verifies stored credentials and
// mints time-bound signed tokens. Verification of issued tokens lives in
// jwttoken and needs no state beyond the signing key.
type Service struct {
	users   UserStore
	tokens  *jwttoken.Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(users UserStore, tokens *jwttoken.Service, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		users:   users,
		tokens:  tokens,
		logger:  logger,
		metrics: m,
	}
}

// Login verifies the subject's credential against the stored bcrypt hash and
// mints a token on success. Unknown email and wrong password collapse to the
// same unauthorized outcome so the endpoint cannot be used for user
// enumeration; the distinction stays in the logs.
func (s *Service) Login(ctx context.Context, req *auth.LoginRequest) (*auth.LoginResult, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.recordFailure(ctx, "unknown email")
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "credential lookup failed")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.recordFailure(ctx, "password mismatch")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	token, _, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "token issuance failed")
	}

	return &auth.LoginResult{
		Token:     token,
		ExpiresIn: int64(s.tokens.TTL().Seconds()),
	}, nil
}

func (s *Service) recordFailure(ctx context.Context, reason string) {
	s.logger.WarnContext(ctx, "login failed",
		"reason", reason,
		"request_id", middleware.GetRequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.AuthFailures.Inc()
	}
}
