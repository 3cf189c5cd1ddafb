package memory

import (
	"context"
	"time"

	"github.com/cinco36/iv-ingestion/ratelimit"
)

// ──────────────────────────────────────────────────
// Rate Limit Store
// ──────────────────────────────────────────────────

func (m *Store) Admit(_ context.Context, key ratelimit.Key, at time.Time, window time.Duration, limit int) (int, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key.String()
	cutoff := at.Add(-window)
	kept := make([]time.Time, 0, len(m.counters[k]))
	for _, ts := range m.counters[k] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	count := len(kept) + 1
	if len(kept) < limit {
		kept = append(kept, at)
	}
	m.counters[k] = kept

	oldest := at
	if len(kept) > 0 {
		oldest = kept[0]
	}
	return count, oldest, nil
}

func (m *Store) ReapStaleCounters(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for k, log := range m.counters {
		stale := true
		for _, ts := range log {
			if ts.After(before) {
				stale = false
				break
			}
		}
		if stale {
			delete(m.counters, k)
			removed++
		}
	}
	return removed, nil
}
