package driving

import (
	"context"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
)

// Runner executes authorised pipeline operations as line streams.
type Runner interface {
	// Stream starts op for principal. The stream always ends with
	// domain.StreamDone. Unauthenticated principals are refused before
	// any side effect.
	Stream(ctx context.Context, principal domain.Principal, op domain.Operation) (<-chan string, error)

	// DeleteSeries removes every partition named code from a collection.
	DeleteSeries(ctx context.Context, principal domain.Principal, collection domain.Collection, code string) (*domain.DeleteReport, error)
}

// JobService schedules and tracks asynchronous rebuilds.
type JobService interface {
	EnqueueRebuild(ctx context.Context, principal domain.Principal, indicatorCode string) (*domain.JobStatus, error)
	JobStatus(ctx context.Context, id string) (*domain.JobStatus, error)
}
