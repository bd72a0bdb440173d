package progress

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Repository reads and writes completion records in the remote store.
// Implementations do not cache; the Reconciler owns the in-memory view.
type Repository interface {
	// FetchAll returns every record of the user. A user without records
	// gets an empty slice, not an error.
	FetchAll(ctx context.Context, userID string) ([]Record, error)
	// Upsert replaces the record sharing (UserID, CourseID, LessonID).
	// CompletedAt is stamped with the current time when Completed is true
	// and cleared otherwise. The stored record is returned.
	Upsert(ctx context.Context, rec Record) (Record, error)
}

// Clock returns the current time. Repositories take one so tests can pin completed_at.
type Clock func() time.Time

func stamp(rec Record, now Clock) Record {
	if rec.Completed {
		t := now().UTC()
		rec.CompletedAt = &t
	} else {
		rec.CompletedAt = nil
	}
	return rec
}

func checkRecord(rec Record) error {
	switch {
	case rec.UserID == "":
		return fmt.Errorf("user_id is required")
	case rec.CourseID == "":
		return fmt.Errorf("course_id is required")
	case rec.LessonID == "":
		return fmt.Errorf("lesson_id is required")
	}
	return nil
}

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CourseID != records[j].CourseID {
			return records[i].CourseID < records[j].CourseID
		}
		return records[i].LessonID < records[j].LessonID
	})
}
