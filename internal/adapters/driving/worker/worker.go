// Package worker runs queued rebuilds. Each task drives the runner's
// rebuild stream and mirrors its lines into the job status.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sspi-index/sspi-engine/internal/adapters/driven/queue"
	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driving"
	"github.com/sspi-index/sspi-engine/internal/logger"
)

// Handler executes rebuild tasks.
type Handler struct {
	runner   driving.Runner
	statuses driven.JobStatusStore
	now      func() time.Time
}

// NewHandler creates a rebuild handler.
func NewHandler(runner driving.Runner, statuses driven.JobStatusStore) *Handler {
	return &Handler{runner: runner, statuses: statuses, now: time.Now}
}

// ProcessTask implements asynq.Handler. Failures are recorded on the job
// and returned with asynq.SkipRetry; rebuilds are never retried.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	p, err := queue.ParseRebuildTask(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	status, err := h.statuses.Get(ctx, p.JobID)
	if errors.Is(err, domain.ErrNotFound) {
		status = &domain.JobStatus{ID: p.JobID, IndicatorCode: p.IndicatorCode, RequestedBy: p.RequestedBy}
	} else if err != nil {
		return err
	}

	status.State = domain.JobRunning
	status.Error = ""
	if err := h.save(ctx, status); err != nil {
		return err
	}
	logger.Info("job %s: rebuild %s for %s", p.JobID, p.IndicatorCode, p.RequestedBy)

	failure := h.run(ctx, p, status)
	if failure != nil {
		status.State = domain.JobFailed
		status.Error = failure.Error()
	} else {
		status.State = domain.JobSucceeded
	}
	// The task context may already be cancelled; the final state must land.
	if err := h.save(context.WithoutCancel(ctx), status); err != nil {
		return err
	}
	if failure != nil {
		logger.Warn("job %s failed: %v", p.JobID, failure)
		return fmt.Errorf("%v: %w", failure, asynq.SkipRetry)
	}
	logger.Info("job %s succeeded", p.JobID)
	return nil
}

func (h *Handler) run(ctx context.Context, p queue.RebuildPayload, status *domain.JobStatus) error {
	lines, err := h.runner.Stream(ctx,
		domain.Principal{Username: p.RequestedBy},
		domain.Operation{Verb: domain.VerbRebuild, Code: p.IndicatorCode},
	)
	if err != nil {
		return err
	}

	var failure error
	for line := range lines {
		status.Lines = append(status.Lines, line)
		if msg, ok := strings.CutPrefix(line, domain.StreamErrorPrefix); ok && failure == nil {
			failure = errors.New(msg)
		}
		if err := h.save(ctx, status); err != nil {
			logger.Warn("job %s: saving progress: %v", p.JobID, err)
		}
	}
	if failure == nil {
		failure = ctx.Err()
	}
	return failure
}

func (h *Handler) save(ctx context.Context, status *domain.JobStatus) error {
	status.UpdatedAt = h.now().UTC()
	return h.statuses.Save(ctx, status)
}

// Server consumes the rebuild queue.
type Server struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

// NewServer creates a worker server with concurrency workers.
func NewServer(cfg queue.Config, concurrency int, handler *Handler) *Server {
	srv := asynq.NewServer(cfg.RedisOpt(), asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue.QueueName: 1},
		Logger:      logger.Zap().Sugar(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("task %s: %v", task.Type(), err)
		}),
	})
	mux := asynq.NewServeMux()
	mux.Handle(queue.TaskTypeRebuild, handler)
	return &Server{srv: srv, mux: mux}
}

// Run processes tasks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.srv.Start(s.mux); err != nil {
		return fmt.Errorf("starting worker: %w", err)
	}
	<-ctx.Done()
	s.srv.Shutdown()
	return nil
}
