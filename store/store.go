// Package store defines the aggregate persistence interface. Each subsystem
// (job, dlq, webhook, ratelimit, extract) defines its own store interface.
// The composite Store composes them all — it also satisfies cron.DLQPurger
// and cron.RateLimitReaper directly, so the maintenance scheduler can
// run against it without a separate cron store. Backends: Postgres and
// Memory.
package store

import (
	"context"

	"github.com/cinco36/iv-ingestion/dlq"
	"github.com/cinco36/iv-ingestion/extract"
	"github.com/cinco36/iv-ingestion/job"
	"github.com/cinco36/iv-ingestion/ratelimit"
	"github.com/cinco36/iv-ingestion/webhook"
)

// Store is the aggregate persistence interface.
// Each subsystem store is a composable interface. A single backend
// (postgres, memory) implements all of them.
type Store interface {
	job.Store
	dlq.Store
	webhook.Store
	ratelimit.Store
	extract.RecordStore

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
