package dlq

import (
	"time"

	"github.com/cinco36/iv-ingestion/blob"
	"github.com/cinco36/iv-ingestion/id"
)

// Entry represents a job that exhausted its retry budget and moved to
// the dead letter queue for inspection or replay.
type Entry struct {
	ID          id.DLQID   `json:"id"`
	JobID       id.JobID   `json:"job_id"`
	TenantID    id.ID      `json:"tenant_id"`
	Kind        string     `json:"kind"`
	BlobRef     blob.Ref   `json:"blob_ref"`
	Priority    int        `json:"priority"`
	Error       string     `json:"error"`
	Code        string     `json:"code"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	FailedAt    time.Time  `json:"failed_at"`
	ReplayedAt  *time.Time `json:"replayed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
