// Package job defines the job entity, its lifecycle state machine, and
// the Store contract workers and the coordinator use to move jobs
// through it.
//
// # Job Entity
//
// A [Job] represents one document awaiting or undergoing extraction.
// It embeds [ingest.Entity] for timestamps, references its uploaded
// bytes via a [blob.Ref], and progresses through a state machine:
//
//	queued → active → completed
//	queued → active → queued (retry, next_attempt_at set) → active → ...
//	queued → active → dead     (attempts exhausted)
//	queued → active → failed   (permanent error or cancellation)
//	queued → failed            (cancelled before acquisition)
//
// Terminal states (completed, failed, dead) never transition further.
//
// Fields of note:
//   - Kind: declared document type (pdf, docx, xlsx, jpg, ...)
//   - Priority: higher values are acquired first
//   - Attempts / MaxAttempts: retry budget, see the backoff package for
//     the delay schedule applied between attempts
//   - Stage / Progress: set by the worker via Heartbeat as the
//     extraction pipeline advances
//
// # Kinds
//
// This package keeps no per-kind handler registry: worker.Executor runs
// every job, whatever its Kind, through the extract package's pipeline,
// which picks a parser for the Kind from its parser registry.
package job
