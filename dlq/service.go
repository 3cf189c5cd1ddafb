package dlq

import (
	"context"
	"time"

	"github.com/cinco36/iv-ingestion/id"
	"github.com/cinco36/iv-ingestion/job"
)

// Service provides high-level operations over the dead letter Store,
// used by the worker pool when a job's attempts are exhausted.
type Service struct {
	store    Store
	jobStore job.Store
}

// NewService creates a dead-letter service.
func NewService(store Store, jobStore job.Store) *Service {
	return &Service{store: store, jobStore: jobStore}
}

// Push builds a dead-letter Entry from a job that just transitioned to
// job.StateDead and persists it.
func (s *Service) Push(ctx context.Context, j *job.Job) error {
	now := time.Now().UTC()
	entry := &Entry{
		ID:          id.NewDLQID(),
		JobID:       j.ID,
		TenantID:    j.TenantID,
		Kind:        j.Kind,
		BlobRef:     j.BlobRef,
		Priority:    j.Priority,
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		FailedAt:    now,
		CreatedAt:   now,
	}
	if j.Error != nil {
		entry.Error = j.Error.Error()
		entry.Code = string(j.Error.Code)
	}
	return s.store.PushDLQ(ctx, entry)
}

// DLQStore returns the underlying Store for direct access to
// List/Get/Purge/Count operations.
func (s *Service) DLQStore() Store {
	return s.store
}
