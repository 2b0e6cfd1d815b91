package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator struct {
	claims *TokenClaims
	err    error
	calls  int
}

func (v *stubValidator) ValidateToken(string) (*TokenClaims, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	return v.claims, nil
}

func newGatedHandler(t *testing.T, validator TokenValidator) (http.Handler, *int) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	downstream := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		downstream++
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(GetSubject(r.Context())))
	})
	return RequireAuth(validator, logger)(next), &downstream
}

func TestRequireAuthMissingToken(t *testing.T) {
	validator := &stubValidator{}
	handler, downstream := newGatedHandler(t, validator)

	req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	// A missing token must be rejected before the validator or anything
	// downstream runs.
	assert.Equal(t, 0, validator.calls)
	assert.Equal(t, 0, *downstream)
}

func TestRequireAuthMalformedHeader(t *testing.T) {
	validator := &stubValidator{}
	handler, downstream := newGatedHandler(t, validator)

	req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, validator.calls)
	assert.Equal(t, 0, *downstream)
}

func TestRequireAuthInvalidToken(t *testing.T) {
	validator := &stubValidator{err: errors.New("token has expired")}
	handler, downstream := newGatedHandler(t, validator)

	req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 1, validator.calls)
	assert.Equal(t, 0, *downstream)
	// Verification internals must not leak to the client.
	assert.NotContains(t, w.Body.String(), "expired")
}

func TestRequireAuthValidToken(t *testing.T) {
	validator := &stubValidator{claims: &TokenClaims{Subject: "user-123", Email: "john@demo.com"}}
	handler, downstream := newGatedHandler(t, validator)

	req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, *downstream)
	assert.Equal(t, "user-123", w.Body.String())
}
