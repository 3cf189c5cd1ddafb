package ratelimit

import (
	"context"
	"time"
)

// Store is the persistence contract for sliding-window admission logs.
// Admit must be atomic with respect to concurrent callers on the same
// key: it drops timestamps older than at.Add(-window), then appends at
// only if doing so would keep the resulting count within limit — a
// denied attempt is never recorded, so a sustained stream of denials
// from one key can't grow its timestamp log without bound. It reports
// the count that would result from this attempt (whether or not it was
// actually recorded) together with the oldest surviving timestamp
// (used to compute Decision.Reset on denial). Implementations are free
// to serialize internally; Limiter additionally serializes per key so
// a Store may assume single-writer access per key.
type Store interface {
	Admit(ctx context.Context, key Key, at time.Time, window time.Duration, limit int) (count int, oldest time.Time, err error)

	// ReapStaleCounters drops keys whose entire timestamp log predates
	// before, bounding long-term growth of idle identities. Returns the
	// number of keys removed.
	ReapStaleCounters(ctx context.Context, before time.Time) (int64, error)
}
