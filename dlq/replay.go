package dlq

import (
	"context"
	"time"

	"github.com/cinco36/iv-ingestion"
	"github.com/cinco36/iv-ingestion/id"
	"github.com/cinco36/iv-ingestion/job"
)

// Replay re-enqueues a dead-letter entry as a new queued job and marks
// the entry as replayed. The new job gets a fresh ID, zero attempts,
// and is immediately eligible for acquisition, re-reading the same
// blob bytes per the immutable-blob-reference invariant.
func (s *Service) Replay(ctx context.Context, entryID id.DLQID) (*job.Job, error) {
	entry, err := s.store.GetDLQ(ctx, entryID)
	if err != nil {
		return nil, err
	}

	j := &job.Job{
		Entity:      ingest.NewEntity(),
		ID:          id.NewJobID(),
		TenantID:    entry.TenantID,
		Kind:        entry.Kind,
		BlobRef:     entry.BlobRef,
		State:       job.StateQueued,
		Priority:    entry.Priority,
		MaxAttempts: entry.MaxAttempts,
		SubmittedAt: time.Now().UTC(),
	}

	if err := s.jobStore.Submit(ctx, j); err != nil {
		return nil, err
	}

	if err := s.store.ReplayDLQ(ctx, entryID); err != nil {
		// The job is already enqueued; surface the marker failure but
		// don't undo the enqueue.
		return j, err
	}

	return j, nil
}
