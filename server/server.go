// Package server exposes dashboard sessions over a JSON API. Each browser
// gets its own session, keyed by a cookie.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/felixge/httpsnoop"

	"power_dashboard/config"
	"power_dashboard/export"
	"power_dashboard/history"
	"power_dashboard/logger"
	"power_dashboard/plot"
	"power_dashboard/session"
	"power_dashboard/table"
)

const sessionKey = "dashboard_id"

// Server serves the dashboard API
type Server struct {
	cfg      *config.Config
	sessions *scs.SessionManager
	registry *Registry
	sink     export.Sink
	mux      *http.ServeMux
}

// New creates a server. sink may be nil when no database is configured.
func New(cfg *config.Config, sink export.Sink) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	lifetime := time.Duration(cfg.Server.SessionLifetimeMinutes) * time.Minute

	sm := scs.New()
	sm.Lifetime = lifetime
	sm.Cookie.Name = "powerdash_session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode

	s := &Server{
		cfg:      cfg,
		sessions: sm,
		registry: NewRegistry(cfg, lifetime),
		sink:     sink,
		mux:      http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

// Registry returns the session registry
func (s *Server) Registry() *Registry {
	return s.registry
}

// Handler returns the root handler with session loading and access logging
func (s *Server) Handler() http.Handler {
	return accessLog(s.sessions.LoadAndSave(s.mux))
}

// Run serves on the configured address until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Printf("Serving power dashboard on %s\n", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Printf("Server stopped\n")
	return nil
}

// accessLog logs method, path, status and duration of every request
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		logger.Printf("%s %s %d %dB %v\n", r.Method, r.URL.Path, m.Code, m.Written, m.Duration)
	})
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

// withSession resolves the caller's dashboard session and holds its lock for
// the duration of h
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := s.sessions.GetString(r.Context(), sessionKey)
		if id == "" {
			id = NewID()
			s.sessions.Put(r.Context(), sessionKey, id)
		}
		sess, release := s.registry.Acquire(id)
		defer release()
		h(w, r, sess)
	}
}

type errorResponse struct {
	Error  string          `json:"error"`
	Status *session.Status `json:"status,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("failed to encode response: %v\n", err)
	}
}

func writeError(w http.ResponseWriter, err error, sess *session.Session) {
	resp := errorResponse{Error: err.Error()}
	if sess != nil {
		resp.Status = sess.Status()
	}
	writeJSON(w, statusCode(err), resp)
}

// statusCode maps domain errors to HTTP status codes
func statusCode(err error) int {
	switch {
	case errors.Is(err, session.ErrLocked):
		return http.StatusLocked
	case errors.Is(err, table.ErrEmptyInput),
		errors.Is(err, table.ErrNotANumber),
		errors.Is(err, table.ErrOutOfRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, table.ErrIndex), errors.Is(err, history.ErrIndex):
		return http.StatusNotFound
	case errors.Is(err, export.ErrEmptyTable), errors.Is(err, plot.ErrNoData):
		return http.StatusConflict
	case errors.Is(err, export.ErrUnknownFormat), errors.Is(err, plot.ErrInvalidOptions), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
