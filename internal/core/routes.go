package core

import "net/http"

// defaultRedactedHeaders lists header names whose values are masked in
// request logs. The provider signature header is added from config at mount
// time; it is derived from the shared secret and must never be logged.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
}

// MountRoutes registers the global middleware chain, the domain routes
// (via RouteRegistrars), and the health endpoints.
//
// Middleware ordering rationale:
//  1. Recoverer       - catches panics; outermost to catch all failures.
//  2. RequestID       - correlation ID for tracing.
//  3. SecurityHeaders - present on every response, including errors.
//  4. RequestLogger   - structured logging with redacted headers.
//  5. Metrics         - request latency and count recording.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, s.redactedHeaders()))
	s.router.Use(s.MetricsMiddleware)

	for _, registrar := range s.RouteRegistrars {
		registrar(s.router)
	}

	s.router.Get("/health", s.HandleHealth)
	s.router.Get("/ready", s.HandleReady)

	// Unknown routes and wrong methods answer in the same JSON error shape
	// as the rest of the API.
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		JSON(w, r, http.StatusNotFound, errorBody{Error: "Endpoint not found"})
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		JSON(w, r, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
	})
}

// redactedHeaders returns the header names to mask in request logs: the
// defaults plus the configured provider signature header.
func (s *Server) redactedHeaders() []string {
	headers := append([]string{}, defaultRedactedHeaders...)
	if s.Config != nil && s.Config.Webhook.SignatureHeader != "" {
		headers = append(headers, s.Config.Webhook.SignatureHeader)
	}
	return headers
}
