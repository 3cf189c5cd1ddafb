package dlq_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cinco36/iv-ingestion"
	"github.com/cinco36/iv-ingestion/blob"
	"github.com/cinco36/iv-ingestion/dlq"
	"github.com/cinco36/iv-ingestion/id"
	"github.com/cinco36/iv-ingestion/job"
	"github.com/cinco36/iv-ingestion/store/memory"
)

func newDeadJob(tenantID id.ID, kind string) *job.Job {
	return &job.Job{
		Entity:      ingest.NewEntity(),
		ID:          id.NewJobID(),
		TenantID:    tenantID,
		Kind:        kind,
		BlobRef:     blob.Ref{Hash: "deadbeef", Locator: "deadbeef", SizeBytes: 42},
		State:       job.StateDead,
		Priority:    5,
		Attempts:    3,
		MaxAttempts: 3,
		SubmittedAt: time.Now().UTC(),
		Error:       ingest.NewError(ingest.CodeParseFailed, ingest.CategoryTransientIO, "parser timed out three times", nil),
	}
}

func TestService_Push_BuildsEntryFromJob(t *testing.T) {
	s := memory.New()
	svc := dlq.NewService(s, s)
	ctx := context.Background()
	tenant := id.New(id.PrefixWorker) // any valid prefix stands in for a tenant id in tests

	j := newDeadJob(tenant, "pdf")
	require.NoError(t, svc.Push(ctx, j))

	entries, err := s.ListDLQ(ctx, dlq.ListOpts{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	require.Equal(t, j.ID, entry.JobID)
	require.Equal(t, "pdf", entry.Kind)
	require.Equal(t, "deadbeef", entry.BlobRef.Hash)
	require.Equal(t, 3, entry.Attempts)
	require.Equal(t, string(ingest.CodeParseFailed), entry.Code)
	require.False(t, entry.FailedAt.IsZero())
	require.False(t, entry.CreatedAt.IsZero())
}

func TestService_Push_CountIncreases(t *testing.T) {
	s := memory.New()
	svc := dlq.NewService(s, s)
	ctx := context.Background()
	tenant := id.New(id.PrefixWorker)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Push(ctx, newDeadJob(tenant, "pdf")))
	}

	count, err := s.CountDLQ(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, count)
}

func TestService_Replay_CreatesNewQueuedJob(t *testing.T) {
	s := memory.New()
	svc := dlq.NewService(s, s)
	ctx := context.Background()
	tenant := id.New(id.PrefixWorker)

	original := newDeadJob(tenant, "xlsx")
	require.NoError(t, svc.Push(ctx, original))

	entries, err := s.ListDLQ(ctx, dlq.ListOpts{Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	replayed, err := svc.Replay(ctx, entries[0].ID)
	require.NoError(t, err)

	require.NotEqual(t, original.ID, replayed.ID)
	require.Equal(t, job.StateQueued, replayed.State)
	require.Zero(t, replayed.Attempts)
	require.Equal(t, "xlsx", replayed.Kind)
	require.Equal(t, original.BlobRef, replayed.BlobRef)

	got, err := s.Get(ctx, replayed.ID)
	require.NoError(t, err)
	require.Equal(t, job.StateQueued, got.State)
}

func TestService_Replay_MarksDLQEntryAsReplayed(t *testing.T) {
	s := memory.New()
	svc := dlq.NewService(s, s)
	ctx := context.Background()
	tenant := id.New(id.PrefixWorker)

	require.NoError(t, svc.Push(ctx, newDeadJob(tenant, "pdf")))

	entries, err := s.ListDLQ(ctx, dlq.ListOpts{Limit: 1})
	require.NoError(t, err)
	entryID := entries[0].ID

	_, err = svc.Replay(ctx, entryID)
	require.NoError(t, err)

	entry, err := s.GetDLQ(ctx, entryID)
	require.NoError(t, err)
	require.NotNil(t, entry.ReplayedAt)
}

func TestService_Replay_NotFoundReturnsError(t *testing.T) {
	s := memory.New()
	svc := dlq.NewService(s, s)
	ctx := context.Background()

	_, err := svc.Replay(ctx, id.NewDLQID())
	require.Error(t, err)
}
