package core

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payhook/internal/config"
	"payhook/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServer(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(&config.Config{}, testLogger())
	require.NoError(t, err)
	return srv
}

func TestRecoverer_PanicBecomesGeneric500(t *testing.T) {
	srv := testServer(t)
	h := srv.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom: secret detail")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-Id"))
}

func TestRequestIDMiddleware_PropagatesIncomingID(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req_upstream_1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req_upstream_1", seen)
	assert.Equal(t, "req_upstream_1", rec.Header().Get("X-Request-Id"))
}

func TestRequestLogger_RedactsSignatureHeader(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := RequestLogger(logger, []string{"X-Razorpay-Signature"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodPost, "/webhook/payments", nil)
	req.Header.Set("X-Razorpay-Signature", "aabbccddeeff")
	h.ServeHTTP(httptest.NewRecorder(), req)

	logged := buf.String()
	assert.Contains(t, logged, "[REDACTED]")
	assert.NotContains(t, logged, "aabbccddeeff")
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	srv := testServer(t)
	h := srv.SecurityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

// recordingCollector captures metric observations for assertions.
type recordingCollector struct {
	method, endpoint, status string
	duration                 time.Duration
	calls                    int
}

func (c *recordingCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	c.calls++
	c.method = method
	c.endpoint = endpoint
	c.status = status
	c.duration = duration
}

func TestMetricsMiddleware_RecordsRequest(t *testing.T) {
	srv := testServer(t)
	collector := &recordingCollector{}
	srv.Metrics = collector

	h := srv.MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/webhook/payments", nil))

	require.Equal(t, 1, collector.calls)
	assert.Equal(t, http.MethodPost, collector.method)
	assert.Equal(t, "/webhook/payments", collector.endpoint)
	assert.Equal(t, "403", collector.status)
}

func TestMetricsMiddleware_NilCollectorPassesThrough(t *testing.T) {
	srv := testServer(t)

	h := srv.MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
