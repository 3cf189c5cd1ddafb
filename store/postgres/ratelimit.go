package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cinco36/iv-ingestion/ratelimit"
)

// Admit atomically prunes timestamps older than at.Add(-window) for
// key, then inserts at only if doing so would keep the resulting count
// within limit — a denied attempt is never recorded. Reports the count
// that would result from this attempt and the oldest surviving
// timestamp. Runs in a transaction so concurrent callers on different
// keys don't serialize against each other, while same-key callers see
// a consistent prune-then-count-then-conditionally-insert view.
func (s *Store) Admit(ctx context.Context, key ratelimit.Key, at time.Time, window time.Duration, limit int) (int, time.Time, error) {
	k := key.String()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("postgres: admit: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is a no-op after commit

	if _, err := tx.Exec(ctx,
		`DELETE FROM ratelimit_events WHERE key = $1 AND ts < $2`,
		k, at.Add(-window),
	); err != nil {
		return 0, time.Time{}, fmt.Errorf("postgres: admit: prune: %w", err)
	}

	var kept int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM ratelimit_events WHERE key = $1`, k,
	).Scan(&kept); err != nil {
		return 0, time.Time{}, fmt.Errorf("postgres: admit: count: %w", err)
	}

	count := kept + 1
	if kept < limit {
		if _, err := tx.Exec(ctx,
			`INSERT INTO ratelimit_events (key, ts) VALUES ($1, $2)`, k, at,
		); err != nil {
			return 0, time.Time{}, fmt.Errorf("postgres: admit: insert: %w", err)
		}
	}

	var oldest time.Time
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MIN(ts), $2) FROM ratelimit_events WHERE key = $1`, k, at,
	).Scan(&oldest); err != nil {
		return 0, time.Time{}, fmt.Errorf("postgres: admit: oldest: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("postgres: admit: commit: %w", err)
	}

	return count, oldest, nil
}

// ReapStaleCounters drops every key whose entire timestamp log
// predates before, returning the number of keys removed.
func (s *Store) ReapStaleCounters(ctx context.Context, before time.Time) (int64, error) {
	rows, err := s.pool.Query(ctx, `
		WITH stale_keys AS (
			SELECT key FROM ratelimit_events GROUP BY key HAVING MAX(ts) < $1
		), deleted AS (
			DELETE FROM ratelimit_events WHERE key IN (SELECT key FROM stale_keys) RETURNING key
		)
		SELECT DISTINCT key FROM deleted`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: reap stale counters: %w", err)
	}
	defer rows.Close()

	var count int64
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return 0, fmt.Errorf("postgres: reap stale counters: scan: %w", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("postgres: reap stale counters: iterate: %w", err)
	}
	return count, nil
}
