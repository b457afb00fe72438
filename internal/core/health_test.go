package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProbe struct {
	name string
	err  error
}

func (p *fakeProbe) Name() string                  { return p.name }
func (p *fakeProbe) Check(_ context.Context) error { return p.err }

func TestHandleHealth_AlwaysHealthy(t *testing.T) {
	// Liveness must not consult any dependency, so it reports healthy even
	// with a failing probe registered.
	srv := testServer(t)
	srv.HealthProbes = append(srv.HealthProbes, &fakeProbe{name: "database", err: errors.New("down")})

	rec := httptest.NewRecorder()
	srv.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "healthy", got["status"])

	ts, err := time.Parse(time.RFC3339, got["timestamp"])
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), ts, time.Minute)
}

func TestHandleReady_AllProbesHealthy(t *testing.T) {
	srv := testServer(t)
	srv.HealthProbes = append(srv.HealthProbes, &fakeProbe{name: "database"})

	rec := httptest.NewRecorder()
	srv.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","components":{"database":{"status":"healthy"}}}`, rec.Body.String())
}

func TestHandleReady_FailingProbe(t *testing.T) {
	srv := testServer(t)
	srv.HealthProbes = append(srv.HealthProbes,
		&fakeProbe{name: "database", err: errors.New("connection refused")},
	)

	rec := httptest.NewRecorder()
	srv.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var got struct {
		Status     string `json:"status"`
		Components map[string]struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "unhealthy", got.Status)
	assert.Equal(t, "unhealthy", got.Components["database"].Status)
	assert.Contains(t, got.Components["database"].Message, "connection refused")
}

func TestHandleReady_NoProbes(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleReady_PanickingProbe(t *testing.T) {
	srv := testServer(t)
	srv.HealthProbes = append(srv.HealthProbes, &panicProbe{})

	rec := httptest.NewRecorder()
	srv.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "probe panicked")
}

type panicProbe struct{}

func (p *panicProbe) Name() string                  { return "flaky" }
func (p *panicProbe) Check(_ context.Context) error { panic("probe bug") }
