package job

import (
	"time"

	"github.com/cinco36/iv-ingestion"
	"github.com/cinco36/iv-ingestion/blob"
	"github.com/cinco36/iv-ingestion/id"
)

// State represents the lifecycle state of an ingestion job.
type State string

const (
	// StateQueued means the job is waiting to be acquired by a worker.
	StateQueued State = "queued"
	// StateActive means a worker currently holds the lease and is
	// running the extraction pipeline against it.
	StateActive State = "active"
	// StateCompleted means the job finished successfully; terminal.
	StateCompleted State = "completed"
	// StateFailed means the job failed without retry (permanent error
	// or cancellation); terminal.
	StateFailed State = "failed"
	// StateDead means the job exhausted its retry budget; terminal.
	StateDead State = "dead"
)

// Job represents one document-ingestion job moving through the
// extraction pipeline.
type Job struct {
	ingest.Entity

	ID       id.JobID `json:"id"`
	TenantID id.ID    `json:"tenant_id"`

	// Kind is the declared document kind (pdf, doc, docx, xls, xlsx,
	// csv, jpg, jpeg, png, tiff, bmp).
	Kind string `json:"kind"`

	// BlobRef locates the uploaded bytes this job processes. Immutable
	// for the lifetime of the job; retries re-read the same bytes.
	BlobRef blob.Ref `json:"blob_ref"`

	State    State `json:"state"`
	Priority int   `json:"priority"`

	// Stage names the pipeline stage currently executing (or last
	// executed), one of identify/parse/field_extract/persist.
	Stage string `json:"stage,omitempty"`

	// Progress is the percent complete of the current activation,
	// 0-100. Reset on retry; never decreases within one activation.
	Progress int `json:"progress"`

	Attempts   int `json:"attempts"`
	MaxAttempts int `json:"max_attempts"`

	WorkerID id.WorkerID `json:"worker_id,omitempty"`

	SubmittedAt    time.Time  `json:"submitted_at"`
	FirstStartedAt *time.Time `json:"first_started_at,omitempty"`
	LastStartedAt  *time.Time `json:"last_started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`

	// NextAttemptAt is set when a retryable failure schedules the job
	// back onto the queue. Always strictly after LastStartedAt.
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`

	// Result holds the canonical extraction summary once
	// State == StateCompleted.
	Result *Result `json:"result,omitempty"`

	// Error holds the structured failure reason once
	// State is Failed or Dead.
	Error *ingest.Error `json:"error,omitempty"`
}

// Result is the summary persisted on successful completion, mirroring
// what a job-status query reports back to the caller.
type Result struct {
	FindingsCount      int            `json:"findings_count"`
	BySeverity         map[string]int `json:"by_severity"`
	EstimatedCostTotal float64        `json:"estimated_cost_total"`
}

// IsTerminal reports whether the job has reached a state from which it
// never transitions again.
func (j *Job) IsTerminal() bool {
	switch j.State {
	case StateCompleted, StateFailed, StateDead:
		return true
	default:
		return false
	}
}
