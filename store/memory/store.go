// Package memory provides a fully in-memory Store implementation,
// safe for concurrent use, intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cinco36/iv-ingestion"
	"github.com/cinco36/iv-ingestion/dlq"
	"github.com/cinco36/iv-ingestion/extract"
	"github.com/cinco36/iv-ingestion/id"
	"github.com/cinco36/iv-ingestion/job"
	"github.com/cinco36/iv-ingestion/ratelimit"
	"github.com/cinco36/iv-ingestion/webhook"
)

var (
	_ job.Store          = (*Store)(nil)
	_ dlq.Store          = (*Store)(nil)
	_ webhook.Store      = (*Store)(nil)
	_ ratelimit.Store    = (*Store)(nil)
	_ extract.RecordStore = (*Store)(nil)
)

// Store is a fully in-memory implementation of the composite store
// interface (job, dlq, webhook, ratelimit). Safe for concurrent access.
// Intended for unit testing and development; store/postgres is the
// durable backend.
type Store struct {
	mu sync.RWMutex

	jobs   map[string]*job.Job
	leases map[string]time.Time // jobID -> lease expiry, mirrors an active job's lease
	dlqs   map[string]*dlq.Entry

	// webhook, rate-limit, and extraction-record state live in
	// webhook.go / ratelimit.go / records.go within this package,
	// sharing this struct and its mutex.
	subscriptions map[string]*webhook.Subscription
	deliveries    map[string][]*webhook.Delivery
	counters      map[string][]time.Time
	records       map[string]*extract.Record
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs:          make(map[string]*job.Job),
		leases:        make(map[string]time.Time),
		dlqs:          make(map[string]*dlq.Entry),
		subscriptions: make(map[string]*webhook.Subscription),
		deliveries:    make(map[string][]*webhook.Delivery),
		counters:      make(map[string][]time.Time),
		records:       make(map[string]*extract.Record),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

func (m *Store) Migrate(_ context.Context) error { return nil }
func (m *Store) Ping(_ context.Context) error    { return nil }
func (m *Store) Close() error                    { return nil }

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

func (m *Store) Submit(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return ingest.ErrJobAlreadyExists
	}
	cp := *j
	m.jobs[key] = &cp
	return nil
}

func acquireOrder(a, b *job.Job) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	aHasNext, bHasNext := a.NextAttemptAt != nil, b.NextAttemptAt != nil
	if aHasNext != bHasNext {
		// NULLS FIRST: a job with no next-attempt-at sorts before one
		// that has it set.
		return !aHasNext
	}
	if aHasNext && bHasNext && !a.NextAttemptAt.Equal(*b.NextAttemptAt) {
		return a.NextAttemptAt.Before(*b.NextAttemptAt)
	}
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.Before(b.SubmittedAt)
	}
	return a.ID.String() < b.ID.String()
}

func (m *Store) Acquire(_ context.Context, workerID id.WorkerID, limit int, leaseFor time.Duration) ([]*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()

	candidates := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j.State != job.StateQueued {
			continue
		}
		if j.NextAttemptAt != nil && j.NextAttemptAt.After(now) {
			continue
		}
		candidates = append(candidates, j)
	}

	sort.Slice(candidates, func(i, k int) bool {
		return acquireOrder(candidates[i], candidates[k])
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	result := make([]*job.Job, len(candidates))
	for i, j := range candidates {
		j.State = job.StateActive
		j.WorkerID = workerID
		j.Progress = 0
		j.Stage = ""
		if j.FirstStartedAt == nil {
			t := now
			j.FirstStartedAt = &t
		}
		started := now
		j.LastStartedAt = &started
		lease := now.Add(leaseFor)
		j.NextAttemptAt = nil
		m.leases[j.ID.String()] = lease
		cp := *j
		result[i] = &cp
	}

	return result, nil
}

func (m *Store) Heartbeat(_ context.Context, jobID id.JobID, progress int, stage string, leaseFor time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return ingest.ErrJobNotFound
	}
	if j.State != job.StateActive {
		return ingest.ErrInvalidState
	}
	lease, ok := m.leases[jobID.String()]
	if !ok || time.Now().UTC().After(lease) {
		return ingest.ErrInvalidState
	}

	j.Progress = progress
	j.Stage = stage
	j.Touch()
	m.leases[jobID.String()] = time.Now().UTC().Add(leaseFor)
	return nil
}

func (m *Store) Complete(_ context.Context, jobID id.JobID, result *job.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return ingest.ErrJobNotFound
	}
	if j.IsTerminal() {
		return ingest.ErrInvalidState
	}

	now := time.Now().UTC()
	j.State = job.StateCompleted
	j.Progress = 100
	j.Result = result
	j.FinishedAt = &now
	j.Touch()
	delete(m.leases, jobID.String())
	return nil
}

func (m *Store) Fail(_ context.Context, jobID id.JobID, cause *ingest.Error, retryable bool, delay time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return ingest.ErrJobNotFound
	}
	if j.IsTerminal() {
		return ingest.ErrInvalidState
	}

	now := time.Now().UTC()
	j.Error = cause
	j.Touch()

	switch {
	case !retryable:
		j.State = job.StateFailed
		j.FinishedAt = &now
	case j.Attempts+1 >= j.MaxAttempts:
		j.Attempts++
		j.State = job.StateDead
		j.FinishedAt = &now
	default:
		j.Attempts++
		j.State = job.StateQueued
		next := now.Add(delay)
		j.NextAttemptAt = &next
	}
	delete(m.leases, jobID.String())
	return nil
}

func (m *Store) Get(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, ingest.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *Store) List(_ context.Context, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if opts.State != "" && j.State != opts.State {
			continue
		}
		if !opts.TenantID.IsNil() && j.TenantID != opts.TenantID {
			continue
		}
		cp := *j
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].SubmittedAt.Before(result[k].SubmittedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

func (m *Store) ReapExpiredLeases(_ context.Context) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now().UTC()
	var stale []*job.Job
	for key, j := range m.jobs {
		if j.State != job.StateActive {
			continue
		}
		lease, ok := m.leases[key]
		if ok && lease.Before(now) {
			cp := *j
			stale = append(stale, &cp)
		}
	}
	return stale, nil
}

func (m *Store) Count(_ context.Context, opts job.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, j := range m.jobs {
		if opts.State != "" && j.State != opts.State {
			continue
		}
		if !opts.TenantID.IsNil() && j.TenantID != opts.TenantID {
			continue
		}
		count++
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// DLQ Store
// ──────────────────────────────────────────────────

func (m *Store) PushDLQ(_ context.Context, entry *dlq.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dlqs[entry.ID.String()] = entry
	return nil
}

func (m *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*dlq.Entry, 0, len(m.dlqs))
	for _, e := range m.dlqs {
		if !opts.TenantID.IsNil() && e.TenantID != opts.TenantID {
			continue
		}
		result = append(result, e)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].FailedAt.Before(result[k].FailedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

func (m *Store) GetDLQ(_ context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.dlqs[entryID.String()]
	if !ok {
		return nil, ingest.ErrDLQNotFound
	}
	return e, nil
}

func (m *Store) ReplayDLQ(_ context.Context, entryID id.DLQID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.dlqs[entryID.String()]
	if !ok {
		return ingest.ErrDLQNotFound
	}
	now := time.Now().UTC()
	e.ReplayedAt = &now
	return nil
}

func (m *Store) PurgeDLQ(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for key, e := range m.dlqs {
		if e.FailedAt.Before(before) {
			delete(m.dlqs, key)
			count++
		}
	}
	return count, nil
}

func (m *Store) CountDLQ(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.dlqs)), nil
}
