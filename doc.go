// Package ingest provides the core ingestion engine for inspection-report
// processing: a parser registry, a transactional extraction pipeline, a
// durable job store, a worker pool, a webhook dispatcher, a tiered rate
// limiter, and an in-process event bus.
//
// Ingest is designed as a library, not a service. Import it, configure a
// store, and register parsers or pipeline stages as ordinary Go functions.
//
// # Quick Start
//
//	core, err := ingest.New(
//	    ingest.WithStore(pgStore),
//	    ingest.WithConcurrency(20),
//	)
//
// # Architecture
//
// Ingest follows a composable store pattern where each subsystem (job,
// dlq, webhook, rate limit) defines its own store interface. A single
// backend implements all of them.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package ingest
