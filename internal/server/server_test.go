package server_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debugmarathon/apiserver/internal/auth"
	"github.com/debugmarathon/apiserver/internal/handlers"
	"github.com/debugmarathon/apiserver/internal/logging"
	"github.com/debugmarathon/apiserver/internal/metrics"
	"github.com/debugmarathon/apiserver/internal/server"
	"github.com/debugmarathon/apiserver/internal/services"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()

	tokens, err := auth.NewTokenService([]byte("server-test-secret"), time.Hour)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	metrics.RegisterMetrics(registry)
	metrics.RecordLogin("admin", metrics.OutcomeSuccess)

	return server.NewRouter(server.RouterDeps{
		Gate:     services.NewAccessGate(services.AccessGateDeps{Tokens: tokens}),
		Sessions: services.NewSessionResolver(nil, tokens),
		Gatherer: registry,
		Options:  handlers.Options{Logger: slog.New(slog.DiscardHandler)},
	})
}

func TestRouter_Health(t *testing.T) {
	router := newRouter(t)

	for _, path := range []string{"/healthz", "/api/health"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		require.Equal(t, http.StatusOK, rec.Code, path)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	}
}

func TestRouter_Metrics(t *testing.T) {
	router := newRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "marathon_login_attempts_total"))
}

func TestRouter_AuthMounted(t *testing.T) {
	router := newRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/admin/pending", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_RequestLogsUseConfiguredLogger(t *testing.T) {
	tokens, err := auth.NewTokenService([]byte("server-test-secret"), time.Hour)
	require.NoError(t, err)

	var buf bytes.Buffer
	router := server.NewRouter(server.RouterDeps{
		Gate:     services.NewAccessGate(services.AccessGateDeps{Tokens: tokens}),
		Sessions: services.NewSessionResolver(nil, tokens),
		Options:  handlers.Options{Logger: logging.Setup("marathon", "test", "json", "info", &buf)},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	assert.Equal(t, "request completed", entry["msg"])
	assert.Equal(t, "/healthz", entry["path"])
	assert.NotEmpty(t, entry["request_id"])
}
