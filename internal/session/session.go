// Package session maps authenticated users to their progress reconciler and
// view state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/p-n-ai/pai-courses/internal/catalog"
	"github.com/p-n-ai/pai-courses/internal/notify"
	"github.com/p-n-ai/pai-courses/internal/progress"
	"github.com/p-n-ai/pai-courses/internal/view"
)

const defaultIdleTimeout = 30 * time.Minute

// ErrNoSession is returned when the user has no open session.
var ErrNoSession = errors.New("no open session")

// ManagerConfig holds dependencies for the session manager.
type ManagerConfig struct {
	Catalog     *catalog.Catalog
	Repository  progress.Repository
	Notifier    notify.Notifier
	CallTimeout time.Duration // bound on each store call (default 10s)
	IdleTimeout time.Duration // sessions unused this long are closed by Sweep (default 30m)
	Clock       func() time.Time
}

// Manager owns one Session per signed-in user.
type Manager struct {
	catalog     *catalog.Catalog
	repo        progress.Repository
	notifier    notify.Notifier
	callTimeout time.Duration
	idleTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig) *Manager {
	cat := cfg.Catalog
	if cat == nil {
		cat = catalog.MustBuiltin()
	}
	repo := cfg.Repository
	if repo == nil {
		repo = progress.NewMemoryRepository()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	idle := cfg.IdleTimeout
	if idle == 0 {
		idle = defaultIdleTimeout
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Manager{
		catalog:     cat,
		repo:        repo,
		notifier:    notifier,
		callTimeout: cfg.CallTimeout,
		idleTimeout: idle,
		now:         now,
		sessions:    make(map[string]*Session),
	}
}

// Catalog returns the catalog sessions are built on.
func (m *Manager) Catalog() *catalog.Catalog {
	return m.catalog
}

// Open returns the user's session, creating and loading it on first use.
// A concurrent Open of the same user returns the session while it is still
// loading.
func (m *Manager) Open(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, progress.ErrNoUser
	}

	m.mu.Lock()
	if s, ok := m.sessions[userID]; ok {
		s.touch(m.now())
		m.mu.Unlock()
		return s, nil
	}
	s := &Session{
		userID: userID,
		reconciler: progress.NewReconciler(progress.ReconcilerConfig{
			Catalog:    m.catalog,
			Repository: m.repo,
			Notifier:   m.notifier,
			Timeout:    m.callTimeout,
		}),
		catalog:  m.catalog,
		state:    view.Initial(),
		lastSeen: m.now(),
	}
	m.sessions[userID] = s
	m.mu.Unlock()

	slog.Info("session opened", "user_id", userID)
	if err := s.reconciler.Start(ctx, userID); err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}
	return s, nil
}

// Get returns the user's open session.
func (m *Manager) Get(userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, ErrNoSession
	}
	s.touch(m.now())
	return s, nil
}

// Close signs the user out and discards the completion map.
// It reports whether a session was open.
func (m *Manager) Close(userID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.reconciler.Reset()
	slog.Info("session closed", "user_id", userID)
	return true
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than the idle timeout and returns
// how many were closed.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.idleTimeout)

	m.mu.Lock()
	var idle []string
	for id, s := range m.sessions {
		if s.seen().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.Unlock()

	closed := 0
	for _, id := range idle {
		if m.Close(id) {
			closed++
		}
	}
	if closed > 0 {
		slog.Info("idle sessions closed", "count", closed)
	}
	return closed
}

// Run sweeps idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Session is one signed-in user's reconciler plus UI state.
type Session struct {
	userID     string
	reconciler *progress.Reconciler
	catalog    *catalog.Catalog

	mu       sync.Mutex
	state    view.State
	lastSeen time.Time
}

// UserID returns the owner of the session.
func (s *Session) UserID() string { return s.userID }

// Reconciler returns the session's progress reconciler.
func (s *Session) Reconciler() *progress.Reconciler { return s.reconciler }

// State returns a copy of the view state.
func (s *Session) State() view.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Apply runs a view action against the session state.
func (s *Session) Apply(a view.Action) (view.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := view.Reduce(s.catalog, s.state, a)
	if err != nil {
		return s.state, err
	}
	s.state = next
	return next, nil
}

// Toggle flips a lesson through the reconciler and records the confirmed
// outcome in the view state.
func (s *Session) Toggle(ctx context.Context, courseID, lessonID string) (bool, error) {
	completed, err := s.reconciler.Toggle(ctx, courseID, lessonID)
	if err != nil {
		return completed, err
	}
	if _, err := s.Apply(view.Action{
		Type:      view.ActionLessonToggled,
		CourseID:  courseID,
		LessonID:  lessonID,
		Completed: completed,
	}); err != nil {
		return completed, err
	}
	return completed, nil
}

// Page renders the current view state.
func (s *Session) Page() (view.Page, error) {
	return view.Render(s.catalog, s.reconciler, s.State())
}

func (s *Session) touch(t time.Time) {
	s.mu.Lock()
	s.lastSeen = t
	s.mu.Unlock()
}

func (s *Session) seen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
