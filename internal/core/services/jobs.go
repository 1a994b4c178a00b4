package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driving"
	"github.com/sspi-index/sspi-engine/internal/errkind"
)

// Ensure JobService implements the interface.
var _ driving.JobService = (*JobService)(nil)

// JobService hands rebuilds to a queue for background workers.
type JobService struct {
	queue    driven.JobQueue
	metadata *MetadataRegistry
}

// NewJobService creates a job service.
func NewJobService(queue driven.JobQueue, metadata *MetadataRegistry) *JobService {
	return &JobService{queue: queue, metadata: metadata}
}

// EnqueueRebuild schedules a rebuild of a known indicator.
func (j *JobService) EnqueueRebuild(ctx context.Context, principal domain.Principal, indicatorCode string) (*domain.JobStatus, error) {
	if err := authorize(principal); err != nil {
		return nil, err
	}
	if _, err := j.metadata.Indicator(indicatorCode); err != nil {
		return nil, err
	}
	status, err := j.queue.EnqueueRebuild(ctx, indicatorCode, principal.Username)
	if err != nil {
		return nil, fmt.Errorf("enqueue rebuild %s: %w", indicatorCode, err)
	}
	return status, nil
}

// JobStatus returns a job's latest status.
func (j *JobService) JobStatus(ctx context.Context, id string) (*domain.JobStatus, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errkind.Query.Wrap(fmt.Errorf("%w: job id %q", domain.ErrInvalidInput, id))
	}
	return j.queue.Status(ctx, id)
}
