package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
)

// DefaultStatusTTL is how long finished job statuses stay readable.
const DefaultStatusTTL = 7 * 24 * time.Hour

// Ensure StatusStore implements the interface.
var _ driven.JobStatusStore = (*StatusStore)(nil)

// StatusStore keeps job statuses as JSON values in Redis.
type StatusStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewStatusStore wraps an existing client.
func NewStatusStore(client *redis.Client, ttl time.Duration) *StatusStore {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &StatusStore{redis: client, ttl: ttl}
}

func statusKey(id string) string {
	return "sspi:job:" + id
}

// Save overwrites the status of a job and refreshes its expiry.
func (s *StatusStore) Save(ctx context.Context, status *domain.JobStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal job status: %w", err)
	}
	if err := s.redis.Set(ctx, statusKey(status.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save job status %s: %w", status.ID, err)
	}
	return nil
}

// Get returns the status of a job, or domain.ErrNotFound.
func (s *StatusStore) Get(ctx context.Context, id string) (*domain.JobStatus, error) {
	data, err := s.redis.Get(ctx, statusKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job status %s: %w", id, err)
	}
	var status domain.JobStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("unmarshal job status %s: %w", id, err)
	}
	return &status, nil
}
