package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// readyCheckTimeout is the maximum time allowed for all readiness probes to
// complete. If any probe exceeds this deadline, the readiness check returns
// 503 Service Unavailable.
const readyCheckTimeout = 2 * time.Second

// HealthProbe defines the interface for a subsystem readiness check.
// Each probe represents a dependency (the event store) that must be
// operational for the service to do useful work.
type HealthProbe interface {
	// Name returns a human-readable identifier for the probe (e.g., "database").
	Name() string

	// Check performs the check against the subsystem. It should respect the
	// context deadline and return an error if the subsystem is unreachable.
	Check(ctx context.Context) error
}

// componentStatus represents the readiness state of a single subsystem.
type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthResponse is the response body for GET /health.
type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// readyResponse is the response body for GET /ready.
type readyResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth is the liveness endpoint. It reports healthy unconditionally
// and deliberately touches no dependency: a wedged event store must not make
// the process look dead to the orchestrator.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReady executes all registered readiness probes concurrently with a
// short timeout. Returns 200 OK if every probe reports healthy, 503 Service
// Unavailable if any subsystem fails or the deadline is exceeded.
func (s *Server) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
	defer cancel()

	probes := s.HealthProbes
	if len(probes) == 0 {
		JSON(w, r, http.StatusOK, readyResponse{Status: "healthy"})
		return
	}

	var (
		mu      sync.Mutex
		results = make(map[string]error, len(probes))
	)

	// Probes run concurrently; failures are collected rather than
	// short-circuiting so the response names every unhealthy component.
	g, ctx := errgroup.WithContext(ctx)
	for _, probe := range probes {
		probe := probe
		g.Go(func() error {
			var err error
			func() {
				defer func() {
					if rvr := recover(); rvr != nil {
						err = fmt.Errorf("probe panicked: %v", rvr)
					}
				}()
				err = probe.Check(ctx)
			}()

			mu.Lock()
			results[probe.Name()] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	components := make(map[string]componentStatus, len(probes))
	allHealthy := true
	for _, probe := range probes {
		name := probe.Name()
		if err, ok := results[name]; ok && err == nil {
			components[name] = componentStatus{Status: "healthy"}
			continue
		}
		allHealthy = false
		msg := "readiness check timed out"
		if err := results[name]; err != nil {
			msg = err.Error()
		}
		components[name] = componentStatus{Status: "unhealthy", Message: msg}
	}

	resp := readyResponse{Components: components}
	if allHealthy {
		resp.Status = "healthy"
		JSON(w, r, http.StatusOK, resp)
		return
	}
	resp.Status = "unhealthy"
	JSON(w, r, http.StatusServiceUnavailable, resp)
}
