// Package queue provides per-document-kind and per-tenant concurrency
// gating for the worker pool, distinct from ratelimit's admission-log
// quota enforcement at submit time.
//
// Document kinds (pdf, csv, xlsx, ...) stand in for the named queues a
// general-purpose job system would use; jobs carry a Kind field that
// this package gates concurrency and throughput on.
//
// # Per-Kind Configuration
//
// Use [Config] to set per-kind rate limits and concurrency caps:
//
//	queue.Config{
//	    Name:           "pdf",
//	    MaxConcurrency: 5,      // max 5 concurrent pdf jobs
//	    RateLimit:      10,     // max 10 jobs/s dequeued for this kind
//	    RateBurst:      20,     // allow bursts up to 20
//	}
//
// Pass configs when building the worker pool:
//
//	mgr := queue.NewManager(
//	    queue.Config{Name: "pdf", MaxConcurrency: 20},
//	    queue.Config{Name: "xlsx", RateLimit: 5, RateBurst: 10},
//	)
//
// # Manager
//
// [Manager] enforces per-kind and per-tenant limits at dequeue time.
// It uses a token-bucket rate limiter (golang.org/x/time/rate) and an
// active-count gate for concurrency limits.
//
//	m := queue.NewManager(configs...)
//	if m.Acquire(kind, tenantID) {
//	    defer m.Release(kind, tenantID)
//	    // process the job
//	}
//
// Kinds without a [Config] have no limits beyond the pool-wide concurrency.
package queue
