// Package dlq provides the dead letter queue for jobs that exhausted
// their retry budget and landed in job.StateDead. It supports
// inspection, replay, and purging.
//
// When the worker pool transitions a job to dead, it calls
// [Service.Push] to record an [Entry]: the original blob reference,
// tenant, kind, and structured error are preserved for operator
// debugging and replay.
//
// # Entry
//
// A [Entry] captures:
//   - JobID / TenantID / Kind: original job identity
//   - BlobRef: the immutable blob reference, re-read on replay
//   - Error / Code: the final structured failure
//   - Attempts / MaxAttempts: the exhausted retry budget
//   - FailedAt: when the terminal failure occurred
//   - ReplayedAt: set once the entry is replayed
//
// # Service
//
//	svc := dlq.NewService(store, jobStore)
//	svc.Push(ctx, deadJob)
//	svc.DLQStore().ListDLQ(ctx, dlq.ListOpts{Limit: 50})
//
// # Replay
//
// [Service.Replay] re-enqueues a dead-letter entry as a new job with a
// fresh ID and zero attempts, reusing the same blob reference, and
// marks the entry's ReplayedAt.
package dlq
