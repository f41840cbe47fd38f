package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore publishes status records to Redis so a fleet of API processes
// can serve progress without touching sqlite.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

// Close releases the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Set writes the record as JSON under the job's status key.
func (s *RedisStore) Set(ctx context.Context, rec Record, ttl time.Duration) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode status record: %w", err)
	}
	if err := s.client.Set(ctx, key(rec.JobID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("write status for job %s: %w", rec.JobID, err)
	}
	return nil
}

// Get loads the record for a job. The second return is false when the key
// is absent or expired.
func (s *RedisStore) Get(ctx context.Context, jobID string) (Record, bool, error) {
	payload, err := s.client.Get(ctx, key(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("read status for job %s: %w", jobID, err)
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode status for job %s: %w", jobID, err)
	}
	return rec, true, nil
}
