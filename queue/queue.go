package queue

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config defines per-kind behaviour such as rate limiting and concurrency.
// Document kinds (pdf, csv, xlsx, ...) each name a queue: each kind
// funnels through its own concurrency/rate gate.
type Config struct {
	// Name is the document kind this config applies to (must match the
	// job.Job.Kind field).
	Name string

	// MaxConcurrency limits how many jobs of this kind may run
	// simultaneously across the local worker pool. Zero means no
	// kind-specific limit (pool-wide concurrency still applies).
	MaxConcurrency int

	// RateLimit is the maximum sustained jobs per second that may be
	// dequeued for this kind. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// queueState tracks runtime state for a single document kind.
type queueState struct {
	config  Config
	limiter *rate.Limiter
	active  int
}

// Manager controls per-kind and per-tenant rate limiting and concurrency.
// It is safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	queues  map[string]*queueState
	tenants map[string]*tenantState
}

// NewManager creates a Manager with the given queue configurations.
// Queues not listed here have no limits.
func NewManager(configs ...Config) *Manager {
	m := &Manager{
		queues:  make(map[string]*queueState, len(configs)),
		tenants: make(map[string]*tenantState),
	}
	for _, cfg := range configs {
		m.queues[cfg.Name] = newQueueState(cfg)
	}
	return m
}

func newQueueState(cfg Config) *queueState {
	qs := &queueState{config: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		qs.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return qs
}

// Acquire checks rate limits and concurrency for the given document
// kind and tenant. If the job is allowed to proceed it increments the
// active counter and returns true. The caller MUST call Release when
// the job completes.
func (m *Manager) Acquire(kind, tenantID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check kind-level constraints.
	qs := m.queues[kind]
	if qs != nil {
		if qs.limiter != nil && !qs.limiter.Allow() {
			return false
		}
		if qs.config.MaxConcurrency > 0 && qs.active >= qs.config.MaxConcurrency {
			return false
		}
	}

	// Check tenant-level constraints.
	if tenantID != "" {
		ts := m.tenants[tenantKey(kind, tenantID)]
		if ts != nil {
			if ts.limiter != nil && !ts.limiter.Allow() {
				return false
			}
			if ts.maxConcurrency > 0 && ts.active >= ts.maxConcurrency {
				return false
			}
			ts.active++
		}
	}

	// Increment kind active count.
	if qs != nil {
		qs.active++
	}

	return true
}

// Release decrements the active job count for the kind and tenant.
func (m *Manager) Release(kind, tenantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if qs := m.queues[kind]; qs != nil && qs.active > 0 {
		qs.active--
	}

	if tenantID != "" {
		if ts := m.tenants[tenantKey(kind, tenantID)]; ts != nil && ts.active > 0 {
			ts.active--
		}
	}
}

// SetQueueConfig dynamically updates (or creates) a queue configuration.
func (m *Manager) SetQueueConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.queues[cfg.Name]
	qs := newQueueState(cfg)

	// Preserve current active count if reconfiguring.
	if existing != nil {
		qs.active = existing.active
	}
	m.queues[cfg.Name] = qs
}

// ActiveCount returns the current number of active jobs for a kind.
func (m *Manager) ActiveCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if qs := m.queues[kind]; qs != nil {
		return qs.active
	}
	return 0
}
