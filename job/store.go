package job

import (
	"context"
	"time"

	"github.com/cinco36/iv-ingestion"
	"github.com/cinco36/iv-ingestion/id"
)

// ListOpts controls pagination and filtering for job list queries.
type ListOpts struct {
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Offset is the number of jobs to skip.
	Offset int
	// TenantID filters to a single tenant. The zero value means all tenants.
	TenantID id.ID
	// State filters by job state. Empty means all states.
	State State
}

// CountOpts controls filtering for job count queries.
type CountOpts struct {
	TenantID id.ID
	State    State
}

// Store defines the persistence contract for jobs: submit, acquire,
// heartbeat, complete, fail, get, list.
type Store interface {
	// Submit persists a new job in the queued state.
	Submit(ctx context.Context, j *Job) error

	// Acquire claims up to limit queued (or due-for-retry) jobs,
	// strictly ordered by (priority DESC, next_attempt_at ASC NULLS
	// FIRST, submitted_at ASC, id ASC), marks them active with a fresh
	// lease, and returns them.
	Acquire(ctx context.Context, workerID id.WorkerID, limit int, leaseFor time.Duration) ([]*Job, error)

	// Heartbeat updates progress/stage for an active job with an
	// unexpired lease and extends the lease. Returns ErrInvalidState
	// if the job is no longer active or its lease has already expired.
	Heartbeat(ctx context.Context, jobID id.JobID, progress int, stage string, leaseFor time.Duration) error

	// Complete transitions an active job to completed. Calling it
	// twice on the same job returns ErrInvalidState on the second call.
	Complete(ctx context.Context, jobID id.JobID, result *Result) error

	// Fail records a failure for an active job. If retryable and
	// attempts remain, the job returns to queued with next_attempt_at
	// set to now+delay; if retryable and attempts are exhausted, it
	// moves to dead; if not retryable, it moves directly to failed.
	Fail(ctx context.Context, jobID id.JobID, cause *ingest.Error, retryable bool, delay time.Duration) error

	// Get retrieves a job by ID.
	Get(ctx context.Context, jobID id.JobID) (*Job, error)

	// List returns jobs matching the given filter, ordered by
	// SubmittedAt ascending.
	List(ctx context.Context, opts ListOpts) ([]*Job, error)

	// ReapExpiredLeases returns active jobs whose lease expired without
	// a heartbeat, for the worker pool's stale-job reaper.
	ReapExpiredLeases(ctx context.Context) ([]*Job, error)

	// Count returns the number of jobs matching the given options.
	Count(ctx context.Context, opts CountOpts) (int64, error)
}
