package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "careflow/pkg/domain-errors"
)

// Claims represents the JWT claims for careflow access tokens.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Clock returns the current time; injectable for deterministic expiry tests.
type Clock func() time.Time

// Service mints and verifies signed identity tokens. Verification is a pure
// function of the token and the signing key, which is read-only after
// construction, so the service is safe for concurrent use by many request
// workers.
type Service struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	clock      Clock
}

// Option configures a Service instance.
type Option func(*Service)

// WithClock sets the clock function for testability.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewService(signingKey, issuer string, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// TTL reports the fixed time-to-live tokens are issued with.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue mints a token for the subject with the service's fixed TTL.
// It returns the signed token and its expiry instant.
func (s *Service) Issue(subject uuid.UUID, email string) (string, time.Time, error) {
	now := s.clock()
	expiresAt := now.Add(s.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks the signature and expiry of a token and returns its claims.
// All failure kinds collapse to an unauthorized domain error; the underlying
// kind stays wrapped for logging.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(s.clock))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}

	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	return claims, nil
}
