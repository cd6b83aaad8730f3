// Package server exposes the gateway over a JSON HTTP API so editor
// plugins, dashboards, and CI jobs can route prompts and read budgets
// without speaking MCP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/config"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/gateway"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/resilience"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/store"
)

// maxBodyBytes caps request bodies. Route requests carry prompts, not
// documents; anything larger is a caller bug.
const maxBodyBytes = 1 << 20

// Server serves the HTTP API over a gateway.
type Server struct {
	gw   *gateway.Gateway
	cfg  config.ServerConfig
	http *http.Server
}

// New builds a Server listening on the configured port.
func New(gw *gateway.Gateway, cfg config.ServerConfig) *Server {
	s := &Server{gw: gw, cfg: cfg}
	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler assembles the route tree. Exported so tests can drive the
// API through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/route", s.handleSuggestRoute)
		r.Post("/outcomes", s.handleRecordOutcome)
		r.Post("/estimate", s.handleEstimate)

		r.Route("/orgs/{org}", func(r chi.Router) {
			r.Get("/budget", s.handleBudgetStatus)
			r.Get("/budget/history", s.handleBudgetHistory)
			r.Get("/usage", s.handleUsage)
			r.Get("/metrics", s.handleTeamMetrics)
			r.Get("/report", s.handleReport)
			r.Get("/recommendations", s.handleRecommendations)
			r.Post("/outcomes/import", s.handleImportOutcomes)
		})
	})

	return r
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	zap.L().Info("server: listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	zap.L().Info("server: shutting down")
	return s.http.Shutdown(ctx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// decode reads a JSON request body into v, answering 400 on malformed
// input.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError maps the error chain to a status code. Client mistakes
// come back verbatim; transient store trouble answers 503 so callers
// retry; other server faults are logged and answered with a generic
// message.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusServiceUnavailable:
		zap.L().Warn("server: store unavailable", zap.Error(err))
		writeJSON(w, status, map[string]any{"error": "temporarily unavailable"})
	case http.StatusInternalServerError:
		zap.L().Error("server: request failed", zap.Error(err))
		writeJSON(w, status, map[string]any{"error": "internal error"})
	default:
		writeJSON(w, status, errorBody(err))
	}
}

func statusFor(err error) int {
	var invalid *model.InvalidFeaturesError
	switch {
	case errors.As(err, &invalid), errors.Is(err, gateway.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case resilience.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error) map[string]any {
	body := map[string]any{"error": err.Error()}
	var invalid *model.InvalidFeaturesError
	if errors.As(err, &invalid) {
		body["reasons"] = invalid.Reasons
	}
	return body
}
