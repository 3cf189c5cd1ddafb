// Package worker provides the job execution engine — an Executor that
// runs a job through the extraction pipeline behind a middleware chain,
// and a Pool that manages concurrent worker goroutines polling for jobs.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cinco36/iv-ingestion"
	"github.com/cinco36/iv-ingestion/backoff"
	"github.com/cinco36/iv-ingestion/dlq"
	"github.com/cinco36/iv-ingestion/eventbus"
	"github.com/cinco36/iv-ingestion/ext"
	"github.com/cinco36/iv-ingestion/extract"
	"github.com/cinco36/iv-ingestion/job"
	"github.com/cinco36/iv-ingestion/middleware"
)

// Executor runs a single job through middleware and the extraction
// pipeline, then handles retry scheduling, DLQ push, and job state
// transitions.
type Executor struct {
	pipeline   *extract.Pipeline
	extensions *ext.Registry
	jobs       job.Store
	dlqService *dlq.Service
	backoff    backoff.Strategy
	publisher  eventbus.Publisher
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	pipeline *extract.Pipeline,
	extensions *ext.Registry,
	jobs job.Store,
	dlqService *dlq.Service,
	bo backoff.Strategy,
	publisher eventbus.Publisher,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		pipeline:   pipeline,
		extensions: extensions,
		jobs:       jobs,
		dlqService: dlqService,
		backoff:    bo,
		publisher:  publisher,
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// Execute runs a job through the middleware chain and the extraction
// pipeline.
//
// On success: marks the job completed, emits processing.completed
// (already published by the pipeline's persist stage) and the
// JobCompleted extension hook.
//
// On failure with a retryable cause and attempts remaining: schedules a
// retry via the configured backoff.Strategy and emits JobRetrying.
//
// On failure with a non-retryable cause, or with attempts exhausted:
// marks the job failed/dead, pushes it to the DLQ when attempts are
// exhausted, and emits processing.failed plus the JobFailed/JobDLQ hooks.
func (e *Executor) Execute(ctx context.Context, j *job.Job) error {
	start := time.Now()

	e.extensions.EmitJobStarted(ctx, j)
	if e.publisher != nil {
		data := eventbus.ProcessingEventData{JobID: j.ID.String(), Kind: j.Kind, Stage: "", Progress: 0}
		if pubErr := e.publisher.Publish(ctx, eventbus.EventProcessingStarted, j.TenantID.String(), data); pubErr != nil {
			e.logger.Warn("publish processing.started failed", "job_id", j.ID.String(), "error", pubErr)
		}
	}

	terminal := func(ctx context.Context) error {
		return e.pipeline.Run(ctx, j)
	}

	err := e.mw(ctx, j, terminal)
	elapsed := time.Since(start)

	if err != nil {
		return e.handleFailure(ctx, j, err)
	}
	return e.handleSuccess(ctx, j, elapsed)
}

func (e *Executor) handleSuccess(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	if err := e.jobs.Complete(ctx, j.ID, j.Result); err != nil {
		e.logger.Error("failed to mark job completed",
			slog.String("job_id", j.ID.String()), slog.String("error", err.Error()))
		return err
	}
	e.reload(ctx, j)
	e.extensions.EmitJobCompleted(ctx, j, elapsed)
	return nil
}

// reload refreshes j in place from the authoritative copy held by the
// store. The Store interface returns copies from Acquire/Get, so the
// state transitions Complete/Fail apply internally (attempts, state,
// next-attempt time, finished-at) are not visible on the caller's job
// until fetched back explicitly.
func (e *Executor) reload(ctx context.Context, j *job.Job) {
	updated, err := e.jobs.Get(ctx, j.ID)
	if err != nil {
		e.logger.Error("failed to reload job after state transition",
			slog.String("job_id", j.ID.String()), slog.String("error", err.Error()))
		return
	}
	*j = *updated
}

// handleFailure classifies the pipeline error and either schedules a
// retry or terminates the job (failed or dead).
func (e *Executor) handleFailure(ctx context.Context, j *job.Job, pipelineErr error) error {
	cause := toIngestError(pipelineErr)
	retryable := isRetryable(cause)

	delay := time.Duration(0)
	if retryable {
		delay = e.backoff.Delay(j.Attempts + 1)
	}

	if failErr := e.jobs.Fail(ctx, j.ID, cause, retryable, delay); failErr != nil {
		e.logger.Error("failed to record job failure",
			slog.String("job_id", j.ID.String()), slog.String("error", failErr.Error()))
		return failErr
	}
	e.reload(ctx, j)

	if j.State == job.StateQueued {
		next := time.Now().UTC()
		if j.NextAttemptAt != nil {
			next = *j.NextAttemptAt
		}
		e.extensions.EmitJobRetrying(ctx, j, j.Attempts, next)
		e.logger.Info("job scheduled for retry",
			slog.String("job_id", j.ID.String()),
			slog.Int("attempt", j.Attempts),
			slog.Int("max_attempts", j.MaxAttempts),
			slog.Duration("delay", delay),
		)
		return pipelineErr
	}

	if e.publisher != nil {
		data := eventbus.ProcessingEventData{JobID: j.ID.String(), Kind: j.Kind, Stage: j.Stage, Progress: j.Progress}
		if pubErr := e.publisher.Publish(ctx, eventbus.EventProcessingFailed, j.TenantID.String(), data); pubErr != nil {
			e.logger.Warn("publish processing.failed failed", "job_id", j.ID.String(), "error", pubErr)
		}
	}

	e.extensions.EmitJobFailed(ctx, j, pipelineErr)

	if j.State == job.StateDead && e.dlqService != nil {
		if dlqErr := e.dlqService.Push(ctx, j); dlqErr != nil {
			e.logger.Error("failed to push job to DLQ",
				slog.String("job_id", j.ID.String()), slog.String("error", dlqErr.Error()))
		} else {
			e.extensions.EmitJobDLQ(ctx, j, pipelineErr)
		}
	}

	e.logger.Warn("job terminated",
		slog.String("job_id", j.ID.String()),
		slog.String("state", string(j.State)),
		slog.Int("attempts", j.Attempts),
		slog.String("error", pipelineErr.Error()),
	)

	return pipelineErr
}

// toIngestError unwraps pipelineErr into an *ingest.Error, falling back
// to a generic processing-failed classification if the pipeline
// returned something else (should not happen in practice; extract.Pipeline
// always returns *ingest.Error).
func toIngestError(err error) *ingest.Error {
	var ie *ingest.Error
	if errors.As(err, &ie) {
		return ie
	}
	return ingest.NewError(ingest.CodeProcessingFailed, ingest.CategoryTransientIO, "unclassified pipeline error", err)
}

// isRetryable maps the error taxonomy to the retry decision: transient
// I/O and timeouts are retried; validation failures, cooperative
// cancellation, and policy denials are not.
func isRetryable(cause *ingest.Error) bool {
	switch cause.Category {
	case ingest.CategoryTransientIO, ingest.CategoryTimeout:
		return true
	default:
		return false
	}
}
