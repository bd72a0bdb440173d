// Package notify delivers progress notifications (toasts) to the user's channels.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Kind is the outcome class of a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindFailure Kind = "failure"
	KindWarning Kind = "warning"
)

// Cause is the event behind a notification.
type Cause string

const (
	CauseLessonCompleted Cause = "lesson_completed"
	CauseLessonReset     Cause = "lesson_reset"
	CauseWriteFailed     Cause = "write_failed"
	CauseFetchFailed     Cause = "fetch_failed"
)

// Notification is one user-facing event.
//
// Error holds the raw store failure for server-side channels (the event log).
// It is never serialized, so streamed notifications carry only the cause.
type Notification struct {
	UserID    string    `json:"user_id"`
	Kind      Kind      `json:"kind"`
	Cause     Cause     `json:"cause"`
	CourseID  string    `json:"course_id,omitempty"`
	LessonID  string    `json:"lesson_id,omitempty"`
	Message   string    `json:"message"`
	Error     string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier accepts notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Channel is one delivery target registered on a Gateway.
type Channel interface {
	Deliver(ctx context.Context, n Notification) error
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) error {
	return nil
}

// Gateway stamps notifications and fans them out to every registered channel.
type Gateway struct {
	messages *Messages
	channels map[string]Channel
	order    []string
	mu       sync.RWMutex
}

// NewGateway creates a gateway that renders wording with messages.
// A nil messages uses English.
func NewGateway(messages *Messages) *Gateway {
	if messages == nil {
		messages = NewMessages("en")
	}
	return &Gateway{
		messages: messages,
		channels: make(map[string]Channel),
	}
}

// Register adds a channel to the gateway.
func (g *Gateway) Register(name string, ch Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.channels[name]; !exists {
		g.order = append(g.order, name)
	}
	g.channels[name] = ch
	slog.Info("notification channel registered", "channel", name)
}

// HasChannel returns true if the named channel is registered.
func (g *Gateway) HasChannel(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.channels[name]
	return ok
}

// Notify delivers n to every channel. A failing channel does not stop the others.
func (g *Gateway) Notify(ctx context.Context, n Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.Message == "" {
		n.Message = g.messages.Text(n.Cause)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error
	for _, name := range g.order {
		if err := g.channels[name].Deliver(ctx, n); err != nil {
			slog.Warn("notification delivery failed", "channel", name, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogChannel writes notifications to the default logger.
type LogChannel struct{}

func (LogChannel) Deliver(_ context.Context, n Notification) error {
	level := slog.LevelInfo
	switch n.Kind {
	case KindFailure:
		level = slog.LevelError
	case KindWarning:
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "notification",
		"user_id", n.UserID,
		"kind", n.Kind,
		"cause", n.Cause,
		"course_id", n.CourseID,
		"lesson_id", n.LessonID,
	)
	return nil
}

// Memory stores notifications in memory for tests.
type Memory struct {
	mu            sync.Mutex
	notifications []Notification
	Err           error
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Notify(ctx context.Context, n Notification) error {
	return m.Deliver(ctx, n)
}

func (m *Memory) Deliver(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *Memory) Notifications() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification{}, m.notifications...)
}

// Last returns the most recent notification.
func (m *Memory) Last() (Notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.notifications) == 0 {
		return Notification{}, false
	}
	return m.notifications[len(m.notifications)-1], true
}
