package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func serveHealthz(t *testing.T, handler *Handler) (*httptest.ResponseRecorder, Response) {
	t.Helper()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var response Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	return rec, response
}

func TestHandlerAllHealthy(t *testing.T) {
	t.Parallel()

	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("postgres", NewSimpleChecker("postgres", func() error { return nil }))
	handler.RegisterChecker("redis", NewSimpleChecker("redis", func() error { return nil }))

	rec, response := serveHealthz(t, handler)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, StatusHealthy, response.Status)
	require.Equal(t, "v1.0.0", response.Version)
	require.Len(t, response.Checks, 2)
}

func TestHandlerSingleFailureTurnsUnhealthy(t *testing.T) {
	t.Parallel()

	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("postgres", NewSimpleChecker("postgres", func() error { return nil }))
	handler.RegisterChecker("redis", NewSimpleChecker("redis", func() error {
		return errors.New("connection refused")
	}))

	rec, response := serveHealthz(t, handler)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, StatusUnhealthy, response.Status)
	require.Equal(t, "connection refused", response.Checks["redis"].Message)
}

func TestLivenessHandlerAlwaysOK(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestReadinessHandler(t *testing.T) {
	t.Parallel()

	t.Run("ready", func(t *testing.T) {
		t.Parallel()

		handler := NewHandler("v1.0.0")
		handler.RegisterChecker("postgres", NewSimpleChecker("postgres", func() error { return nil }))

		rec := httptest.NewRecorder()
		handler.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "ready", rec.Body.String())
	})

	t.Run("not ready", func(t *testing.T) {
		t.Parallel()

		handler := NewHandler("v1.0.0")
		handler.RegisterChecker("postgres", NewSimpleChecker("postgres", func() error {
			return errors.New("down")
		}))

		rec := httptest.NewRecorder()
		handler.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Equal(t, "not ready", rec.Body.String())
	})
}

func TestSimpleChecker(t *testing.T) {
	t.Parallel()

	healthy := NewSimpleChecker("db", func() error { return nil }).Check()
	require.Equal(t, StatusHealthy, healthy.Status)
	require.Empty(t, healthy.Message)

	failing := NewSimpleChecker("db", func() error { return errors.New("timeout") }).Check()
	require.Equal(t, StatusUnhealthy, failing.Status)
	require.Equal(t, "timeout", failing.Message)
}
