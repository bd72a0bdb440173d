package progress

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/p-n-ai/pai-courses/internal/catalog"
	"github.com/p-n-ai/pai-courses/internal/notify"
)

// State is the reconciler lifecycle for one user session.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// ReconcilerConfig holds dependencies for a Reconciler.
type ReconcilerConfig struct {
	Catalog    *catalog.Catalog
	Repository Repository
	Notifier   notify.Notifier
	Timeout    time.Duration // bound on each remote call (default 10s)
}

const defaultCallTimeout = 10 * time.Second

// Reconciler owns the in-memory completion map of the signed-in user.
//
// The map only ever holds confirmed remote state: a toggle mutates it after
// the upsert succeeds, never before. Toggles of the same lesson are
// serialized; different lessons proceed independently.
//
// epoch changes only when the bound user changes, so a reload of the same
// user keeps writes confirmed while it runs. gen changes on every load and
// marks older fetches as stale.
type Reconciler struct {
	catalog  *catalog.Catalog
	repo     Repository
	notifier notify.Notifier
	timeout  time.Duration

	mu        sync.RWMutex
	state     State
	userID    string
	epoch     uint64
	gen       uint64
	completed map[Key]bool
	confirmed map[Key]bool // writes confirmed while a load is in flight
	loadErr   error

	locks keyedMutex
}

// NewReconciler creates a reconciler in the Uninitialized state.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	cat := cfg.Catalog
	if cat == nil {
		cat = catalog.MustBuiltin()
	}
	repo := cfg.Repository
	if repo == nil {
		repo = NewMemoryRepository()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCallTimeout
	}
	return &Reconciler{
		catalog:  cat,
		repo:     repo,
		notifier: notifier,
		timeout:  timeout,
	}
}

// Start binds the reconciler to userID and loads the user's records.
// An empty userID resets the reconciler. A failed fetch is not returned:
// the reconciler becomes Ready with an empty map and a warning is emitted.
func (r *Reconciler) Start(ctx context.Context, userID string) error {
	if userID == "" {
		r.Reset()
		return ErrNoUser
	}

	r.mu.Lock()
	if r.state == StateUninitialized || r.userID != userID {
		r.epoch++
		r.confirmed = nil
	}
	r.gen++
	gen := r.gen
	r.state = StateLoading
	r.userID = userID
	r.completed = make(map[Key]bool)
	if r.confirmed == nil {
		r.confirmed = make(map[Key]bool)
	}
	r.loadErr = nil
	r.mu.Unlock()

	return r.load(ctx, userID, gen)
}

// Reload rebuilds the map from the store for the current user.
// Toggles confirmed while the fetch runs are kept on top of the fetched records.
func (r *Reconciler) Reload(ctx context.Context) error {
	r.mu.RLock()
	userID := r.userID
	r.mu.RUnlock()
	if userID == "" {
		return ErrNoUser
	}
	return r.Start(ctx, userID)
}

func (r *Reconciler) load(ctx context.Context, userID string, gen uint64) error {
	callCtx, cancel := r.callContext(ctx)
	records, err := r.repo.FetchAll(callCtx, userID)
	cancel()

	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		return ErrSessionChanged
	}
	r.state = StateReady
	if err != nil {
		r.loadErr = fetchError(userID, err)
		r.completed = r.confirmed
		r.confirmed = nil
		r.mu.Unlock()

		slog.Warn("failed to load progress, continuing with empty progress",
			"user_id", userID,
			"error", err,
		)
		r.emit(ctx, notify.Notification{
			UserID: userID,
			Kind:   notify.KindWarning,
			Cause:  notify.CauseFetchFailed,
			Error:  err.Error(),
		})
		return nil
	}

	m := make(map[Key]bool, len(records))
	for _, rec := range records {
		m[rec.Key()] = rec.Completed
	}
	for k, v := range r.confirmed {
		m[k] = v
	}
	r.completed = m
	r.confirmed = nil
	r.mu.Unlock()

	slog.Info("progress loaded", "user_id", userID, "records", len(records))
	return nil
}

// Reset discards the map and returns to Uninitialized (logout or user change).
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epoch++
	r.gen++
	r.state = StateUninitialized
	r.userID = ""
	r.completed = nil
	r.confirmed = nil
	r.loadErr = nil
}

// Toggle flips the completion of one lesson and returns the confirmed state.
// On a failed write the map is left untouched and the previous state is
// returned together with a *RepositoryError. The lesson is keyed by its
// canonical catalog id whatever spelling the caller used.
func (r *Reconciler) Toggle(ctx context.Context, courseID, lessonID string) (bool, error) {
	r.mu.RLock()
	state, userID, epoch := r.state, r.userID, r.epoch
	r.mu.RUnlock()

	switch state {
	case StateUninitialized:
		return false, ErrNoUser
	case StateLoading:
		return false, ErrNotReady
	}

	lesson, err := r.catalog.Lesson(courseID, lessonID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnknownLesson, err)
	}
	lessonID = lesson.ID()

	key := Key{CourseID: courseID, LessonID: lessonID}
	unlock := r.locks.Lock(key)
	defer unlock()

	r.mu.RLock()
	if r.epoch != epoch {
		r.mu.RUnlock()
		return false, ErrSessionChanged
	}
	if r.state != StateReady {
		r.mu.RUnlock()
		return false, ErrNotReady
	}
	current := r.completed[key]
	r.mu.RUnlock()

	callCtx, cancel := r.callContext(ctx)
	_, err = r.repo.Upsert(callCtx, Record{
		UserID:    userID,
		CourseID:  courseID,
		LessonID:  lessonID,
		Completed: !current,
	})
	cancel()

	if err != nil {
		err = writeError(userID, err)
		slog.Error("failed to update progress",
			"user_id", userID,
			"course_id", courseID,
			"lesson_id", lessonID,
			"error", err,
		)
		r.emit(ctx, notify.Notification{
			UserID:   userID,
			Kind:     notify.KindFailure,
			Cause:    notify.CauseWriteFailed,
			CourseID: courseID,
			LessonID: lessonID,
			Error:    err.Error(),
		})
		return current, err
	}

	r.mu.Lock()
	if r.epoch != epoch {
		r.mu.Unlock()
		return current, ErrSessionChanged
	}
	r.completed[key] = !current
	if r.confirmed != nil {
		r.confirmed[key] = !current
	}
	r.mu.Unlock()

	cause := notify.CauseLessonCompleted
	if current {
		cause = notify.CauseLessonReset
	}
	r.emit(ctx, notify.Notification{
		UserID:   userID,
		Kind:     notify.KindSuccess,
		Cause:    cause,
		CourseID: courseID,
		LessonID: lessonID,
	})
	return !current, nil
}

// State returns the current lifecycle state.
func (r *Reconciler) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// UserID returns the bound user, or "" when Uninitialized.
func (r *Reconciler) UserID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userID
}

// LoadError returns the fetch failure of the last load, if any.
func (r *Reconciler) LoadError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadErr
}

// IsCompleted reports the confirmed state of a lesson. Absent means false.
func (r *Reconciler) IsCompleted(courseID, lessonID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.completed[Key{CourseID: courseID, LessonID: lessonID}]
}

// CompletedCount returns how many lessons of a course are marked completed.
func (r *Reconciler) CompletedCount(courseID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for k, done := range r.completed {
		if done && k.CourseID == courseID {
			n++
		}
	}
	return n
}

// Progress returns the rounded completion percentage of a course.
// Unknown courses and courses without lessons report 0.
func (r *Reconciler) Progress(courseID string) int {
	course, ok := r.catalog.Course(courseID)
	if !ok {
		return 0
	}
	return Percent(r.CompletedCount(courseID), course.TotalLessons())
}

// Snapshot copies the completion map keyed "course-lesson".
func (r *Reconciler) Snapshot() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool, len(r.completed))
	for k, v := range r.completed {
		out[k.String()] = v
	}
	return out
}

// Catalog returns the catalog progress is computed against.
func (r *Reconciler) Catalog() *catalog.Catalog {
	return r.catalog
}

// Percent returns round(100*completed/total), or 0 when total is not positive.
func Percent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

func (r *Reconciler) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout < 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Reconciler) emit(ctx context.Context, n notify.Notification) {
	if err := r.notifier.Notify(ctx, n); err != nil {
		slog.Warn("failed to deliver notification", "cause", n.Cause, "error", err)
	}
}

// keyedMutex hands out one mutex per key, freed when no goroutine holds or waits on it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[Key]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key Key) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[Key]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
