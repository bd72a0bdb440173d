// Package progress reconciles a user's lesson completion state with a remote record store.
package progress

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoUser is returned when progress tracking is used without a signed-in user.
	ErrNoUser = errors.New("no user signed in")
	// ErrNotReady is returned while the initial progress fetch is still running.
	ErrNotReady = errors.New("progress is still loading")
	// ErrUnknownLesson is returned when a toggle targets a lesson missing from the catalog.
	ErrUnknownLesson = errors.New("unknown lesson")
	// ErrSessionChanged is returned when the user changed while a call was in flight.
	ErrSessionChanged = errors.New("session changed during operation")
)

// Record is one row of the remote user_progress store.
// There is at most one record per (UserID, CourseID, LessonID).
type Record struct {
	UserID      string     `json:"user_id"`
	CourseID    string     `json:"course_id"`
	LessonID    string     `json:"lesson_id"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
}

// Key returns the record's lesson identity within the user's progress.
func (r Record) Key() Key {
	return Key{CourseID: r.CourseID, LessonID: r.LessonID}
}

// Key identifies a lesson across courses.
type Key struct {
	CourseID string
	LessonID string
}

// String renders the key as "course-lesson", e.g. "dsa-0-2".
func (k Key) String() string {
	return k.CourseID + "-" + k.LessonID
}

// RepositoryError wraps any failure of the remote store.
type RepositoryError struct {
	Op     string // OpFetch or OpUpsert
	UserID string
	Err    error
}

const (
	OpFetch  = "fetch"
	OpUpsert = "upsert"
)

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("progress %s for user %s: %v", e.Op, e.UserID, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err is a failed progress load.
func IsFetchError(err error) bool {
	var re *RepositoryError
	return errors.As(err, &re) && re.Op == OpFetch
}

// IsWriteError reports whether err is a failed progress write.
func IsWriteError(err error) bool {
	var re *RepositoryError
	return errors.As(err, &re) && re.Op == OpUpsert
}

func fetchError(userID string, err error) error {
	var re *RepositoryError
	if errors.As(err, &re) {
		return err
	}
	return &RepositoryError{Op: OpFetch, UserID: userID, Err: err}
}

func writeError(userID string, err error) error {
	var re *RepositoryError
	if errors.As(err, &re) {
		return err
	}
	return &RepositoryError{Op: OpUpsert, UserID: userID, Err: err}
}
