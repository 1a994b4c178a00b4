// Package queue hands rebuilds to background workers through asynq and
// tracks their progress in Redis.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
)

// TaskTypeRebuild is the asynq task type of an indicator rebuild.
const TaskTypeRebuild = "sspi:rebuild"

// QueueName is the asynq queue rebuilds are placed on.
const QueueName = "sspi"

// DefaultTaskTimeout bounds a single rebuild.
const DefaultTaskTimeout = 2 * time.Hour

// Config addresses Redis.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	StatusTTL     time.Duration
}

// RedisOpt returns the asynq connection options of cfg.
func (c Config) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

// RebuildPayload is the body of a rebuild task.
type RebuildPayload struct {
	JobID         string `json:"jobId"`
	IndicatorCode string `json:"indicatorCode"`
	RequestedBy   string `json:"requestedBy"`
}

// NewRebuildTask encodes p as an asynq task.
func NewRebuildTask(p RebuildPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal rebuild task: %w", err)
	}
	return asynq.NewTask(TaskTypeRebuild, payload,
		asynq.TaskID(p.JobID),
		asynq.Queue(QueueName),
		asynq.MaxRetry(0),
		asynq.Timeout(DefaultTaskTimeout),
	), nil
}

// ParseRebuildTask decodes a rebuild task.
func ParseRebuildTask(t *asynq.Task) (RebuildPayload, error) {
	var p RebuildPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("unmarshal rebuild task: %w", err)
	}
	if p.JobID == "" || p.IndicatorCode == "" {
		return p, fmt.Errorf("%w: rebuild task without job id or indicator", domain.ErrInvalidInput)
	}
	return p, nil
}

// Ensure Queue implements the interface.
var _ driven.JobQueue = (*Queue)(nil)

// Queue enqueues rebuild tasks and reads their status.
type Queue struct {
	client *asynq.Client
	redis  *redis.Client
	status *StatusStore
	now    func() time.Time
}

// New connects to Redis.
func New(cfg Config) *Queue {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	return &Queue{
		client: asynq.NewClient(cfg.RedisOpt()),
		redis:  rdb,
		status: NewStatusStore(rdb, cfg.StatusTTL),
		now:    time.Now,
	}
}

// Statuses returns the status store shared with workers.
func (q *Queue) Statuses() *StatusStore {
	return q.status
}

// EnqueueRebuild records a pending status and enqueues the task.
func (q *Queue) EnqueueRebuild(ctx context.Context, indicatorCode, requestedBy string) (*domain.JobStatus, error) {
	status := &domain.JobStatus{
		ID:            uuid.NewString(),
		IndicatorCode: indicatorCode,
		RequestedBy:   requestedBy,
		State:         domain.JobPending,
		UpdatedAt:     q.now().UTC(),
	}
	if err := q.status.Save(ctx, status); err != nil {
		return nil, err
	}

	task, err := NewRebuildTask(RebuildPayload{
		JobID: status.ID, IndicatorCode: indicatorCode, RequestedBy: requestedBy,
	})
	if err != nil {
		return nil, err
	}
	if _, err := q.client.EnqueueContext(ctx, task); err != nil {
		status.State = domain.JobFailed
		status.Error = err.Error()
		status.UpdatedAt = q.now().UTC()
		_ = q.status.Save(ctx, status)
		return nil, fmt.Errorf("enqueue rebuild: %w", err)
	}
	return status, nil
}

// Status returns the latest status of a job.
func (q *Queue) Status(ctx context.Context, id string) (*domain.JobStatus, error) {
	return q.status.Get(ctx, id)
}

// Close releases the Redis connections.
func (q *Queue) Close() error {
	err := q.client.Close()
	if rerr := q.redis.Close(); err == nil {
		err = rerr
	}
	return err
}
