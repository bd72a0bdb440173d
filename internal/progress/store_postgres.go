package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultStoreTimeout = 5 * time.Second

// PostgresRepository stores records in the user_progress table.
type PostgresRepository struct {
	pool    *pgxpool.Pool
	now     Clock
	timeout time.Duration
}

// NewPostgresRepository creates a PostgreSQL-backed progress store.
func NewPostgresRepository(pool *pgxpool.Pool, timeout time.Duration) (*PostgresRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return &PostgresRepository{
		pool:    pool,
		now:     time.Now,
		timeout: timeout,
	}, nil
}

func (s *PostgresRepository) FetchAll(ctx context.Context, userID string) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT user_id::text, course_id, lesson_id, completed, completed_at
		 FROM user_progress
		 WHERE user_id = $1::uuid
		 ORDER BY course_id, lesson_id`,
		userID,
	)
	if err != nil {
		return nil, fetchError(userID, fmt.Errorf("query progress: %w", err))
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.UserID,
			&rec.CourseID,
			&rec.LessonID,
			&rec.Completed,
			&rec.CompletedAt,
		); err != nil {
			return nil, fetchError(userID, fmt.Errorf("scan progress: %w", err))
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fetchError(userID, fmt.Errorf("iterate progress: %w", err))
	}

	return records, nil
}

func (s *PostgresRepository) Upsert(ctx context.Context, rec Record) (Record, error) {
	if err := checkRecord(rec); err != nil {
		return Record{}, writeError(rec.UserID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rec = stamp(rec, s.now)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_progress (user_id, course_id, lesson_id, completed, completed_at, updated_at)
		 VALUES ($1::uuid, $2, $3, $4, $5, NOW())
		 ON CONFLICT (user_id, course_id, lesson_id)
		 DO UPDATE SET completed = EXCLUDED.completed,
		               completed_at = EXCLUDED.completed_at,
		               updated_at = NOW()`,
		rec.UserID,
		rec.CourseID,
		rec.LessonID,
		rec.Completed,
		rec.CompletedAt,
	)
	if err != nil {
		return Record{}, writeError(rec.UserID, fmt.Errorf("upsert progress: %w", err))
	}

	return rec, nil
}

// HealthCheck verifies the store is reachable.
func (s *PostgresRepository) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
