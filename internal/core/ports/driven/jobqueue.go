package driven

import (
	"context"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
)

// JobQueue enqueues asynchronous rebuilds and tracks their status.
type JobQueue interface {
	// EnqueueRebuild schedules a rebuild and returns its pending status.
	EnqueueRebuild(ctx context.Context, indicatorCode, requestedBy string) (*domain.JobStatus, error)

	// Status returns the status of a job, or domain.ErrNotFound.
	Status(ctx context.Context, id string) (*domain.JobStatus, error)
}

// JobStatusStore records job progress for workers.
type JobStatusStore interface {
	Save(ctx context.Context, status *domain.JobStatus) error
	Get(ctx context.Context, id string) (*domain.JobStatus, error)
}
