package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func TestLivenessAlwaysOK(t *testing.T) {
	router := newRouter(New("test"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")
}

func TestReadinessRunsChecksWithContext(t *testing.T) {
	h := New("test")
	h.RegisterCheck("database", func(ctx context.Context) error {
		// The probe must hand each check a live, deadline-bound context.
		if ctx == nil {
			return errors.New("no context")
		}
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline")
		}
		return ctx.Err()
	})
	router := newRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "ok", resp.Checks["database"])
}

func TestReadinessFailingCheckReturns503(t *testing.T) {
	h := New("test")
	h.RegisterCheck("database", func(context.Context) error { return nil })
	h.RegisterCheck("kafka", func(context.Context) error {
		return errors.New("kafka unreachable")
	})
	router := newRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "ok", resp.Checks["database"])
	assert.Equal(t, "kafka unreachable", resp.Checks["kafka"])
}

func TestStatusReportsEnvironment(t *testing.T) {
	router := newRouter(New("staging"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "staging", resp.Environment)
	assert.Equal(t, "ok", resp.Status)
}
