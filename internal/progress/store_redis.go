package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "user_progress:"

// RedisRepository keeps one hash per user: field "course|lesson", value the JSON record.
// HSET on a field is the upsert.
type RedisRepository struct {
	client  *redis.Client
	now     Clock
	timeout time.Duration
}

// NewRedisRepository creates a Redis-backed progress store.
func NewRedisRepository(client *redis.Client, timeout time.Duration) (*RedisRepository, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return &RedisRepository{
		client:  client,
		now:     time.Now,
		timeout: timeout,
	}, nil
}

func (s *RedisRepository) FetchAll(ctx context.Context, userID string) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fields, err := s.client.HGetAll(ctx, redisKeyPrefix+userID).Result()
	if err != nil {
		return nil, fetchError(userID, fmt.Errorf("hgetall progress: %w", err))
	}

	records := make([]Record, 0, len(fields))
	for field, raw := range fields {
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fetchError(userID, fmt.Errorf("decode progress field %s: %w", field, err))
		}
		records = append(records, rec)
	}
	sortRecords(records)
	return records, nil
}

func (s *RedisRepository) Upsert(ctx context.Context, rec Record) (Record, error) {
	if err := checkRecord(rec); err != nil {
		return Record{}, writeError(rec.UserID, err)
	}
	if strings.Contains(rec.CourseID, "|") {
		return Record{}, writeError(rec.UserID, fmt.Errorf("course_id %q contains '|'", rec.CourseID))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rec = stamp(rec, s.now)
	data, err := json.Marshal(rec)
	if err != nil {
		return Record{}, writeError(rec.UserID, fmt.Errorf("encode progress: %w", err))
	}

	if err := s.client.HSet(ctx, redisKeyPrefix+rec.UserID, redisField(rec.Key()), data).Err(); err != nil {
		return Record{}, writeError(rec.UserID, fmt.Errorf("hset progress: %w", err))
	}
	return rec, nil
}

// HealthCheck verifies the store is reachable.
func (s *RedisRepository) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func redisField(k Key) string {
	return k.CourseID + "|" + k.LessonID
}
