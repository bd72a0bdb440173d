// Package server exposes the course catalog and progress tracking over HTTP.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/p-n-ai/pai-courses/internal/auth"
	"github.com/p-n-ai/pai-courses/internal/catalog"
	"github.com/p-n-ai/pai-courses/internal/notify"
	"github.com/p-n-ai/pai-courses/internal/progress"
	"github.com/p-n-ai/pai-courses/internal/session"
	"github.com/p-n-ai/pai-courses/internal/view"
)

const healthTimeout = 2 * time.Second

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config holds dependencies for the HTTP server.
type Config struct {
	Sessions *session.Manager
	Verifier *auth.Verifier
	Hub      *notify.Hub              // nil disables the notification stream
	Checks   map[string]HealthChecker // consulted by /readyz
}

// Server routes HTTP requests to sessions.
type Server struct {
	sessions *session.Manager
	catalog  *catalog.Catalog
	verifier *auth.Verifier
	hub      *notify.Hub
	checks   map[string]HealthChecker
	mux      *http.ServeMux
}

// New creates a server and registers its routes.
func New(cfg Config) *Server {
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = session.NewManager(session.ManagerConfig{})
	}
	verifier := cfg.Verifier
	if verifier == nil {
		verifier = auth.NewVerifier("", false)
	}
	s := &Server{
		sessions: sessions,
		catalog:  sessions.Catalog(),
		verifier: verifier,
		hub:      cfg.Hub,
		checks:   cfg.Checks,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

// Handler returns the root handler with request logging.
func (s *Server) Handler() http.Handler {
	return logRequests(s.mux)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)

	s.mux.Handle("POST /api/session", s.authed(s.handleOpenSession))
	s.mux.Handle("DELETE /api/session", s.authed(s.handleCloseSession))
	s.mux.Handle("GET /api/courses", s.authed(s.handleCourses))
	s.mux.Handle("GET /api/courses/{courseID}", s.authed(s.handleCourse))
	s.mux.Handle("POST /api/courses/{courseID}/lessons/{lessonID}/toggle", s.authed(s.handleToggle))
	s.mux.Handle("GET /api/progress", s.authed(s.handleProgress))
	s.mux.Handle("POST /api/progress/reload", s.authed(s.handleReload))
	s.mux.Handle("GET /api/progress/export.xlsx", s.authed(s.handleExport))
	s.mux.Handle("GET /api/view", s.authed(s.handleView))
	s.mux.Handle("POST /api/view/actions", s.authed(s.handleViewAction))
	if s.hub != nil {
		s.mux.Handle("GET /api/notifications/ws", s.authed(s.handleStream))
	}
}

func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return s.verifier.Middleware(h)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	failed := map[string]string{}
	for name, check := range s.checks {
		if err := check.HealthCheck(ctx); err != nil {
			slog.Warn("readiness check failed", "check", name, "error", err)
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// currentSession returns the open session of the authenticated user.
func (s *Server) currentSession(r *http.Request) (*session.Session, error) {
	userID, ok := auth.UserFrom(r.Context())
	if !ok {
		return nil, progress.ErrNoUser
	}
	return s.sessions.Get(userID)
}

type errorResponse struct {
	Error     string `json:"error"`
	Completed *bool  `json:"completed,omitempty"`
}

// statusFor maps domain errors to HTTP status codes and client-safe messages.
// Store failures never reach the client verbatim.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, progress.ErrNoUser):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, session.ErrNoSession):
		return http.StatusConflict, err.Error()
	case errors.Is(err, progress.ErrNotReady), errors.Is(err, progress.ErrSessionChanged):
		return http.StatusConflict, err.Error()
	case errors.Is(err, progress.ErrUnknownLesson),
		errors.Is(err, catalog.ErrCourseNotFound),
		errors.Is(err, catalog.ErrLessonNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, view.ErrUnknownAction), errors.Is(err, view.ErrUnknownSection):
		return http.StatusBadRequest, err.Error()
	case progress.IsWriteError(err):
		return http.StatusBadGateway, "failed to update progress"
	case progress.IsFetchError(err):
		return http.StatusBadGateway, "could not load progress"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack is needed for the websocket upgrade.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
