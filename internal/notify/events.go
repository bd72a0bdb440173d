package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const eventTimeout = 5 * time.Second

// PostgresEventLog persists notifications to the progress_events table.
type PostgresEventLog struct {
	pool *pgxpool.Pool
}

func NewPostgresEventLog(pool *pgxpool.Pool) *PostgresEventLog {
	return &PostgresEventLog{pool: pool}
}

func (l *PostgresEventLog) Deliver(ctx context.Context, n Notification) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event log pool is nil")
	}
	if n.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if n.Cause == "" {
		return fmt.Errorf("cause is required")
	}

	data, err := json.Marshal(map[string]any{
		"message": n.Message,
		"error":   n.Error,
	})
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()

	_, err = l.pool.Exec(ctx,
		`INSERT INTO progress_events (user_id, kind, cause, course_id, lesson_id, data, created_at)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6::jsonb, $7)`,
		n.UserID,
		string(n.Kind),
		string(n.Cause),
		nullIfEmpty(n.CourseID),
		nullIfEmpty(n.LessonID),
		string(data),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert progress event: %w", err)
	}

	slog.Debug("progress event logged",
		"cause", n.Cause,
		"user_id", n.UserID,
	)
	return nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
