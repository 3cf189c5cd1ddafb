package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Limiter enforces the tiered sliding-window quotas against a Store.
// Updates to a single key are serialized through a per-key mutex;
// across keys, admission checks proceed independently.
type Limiter struct {
	store  Store
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	shards map[string]*sync.Mutex
}

// NewLimiter builds a Limiter backed by store, using cfg for quotas
// and fail-open/fail-closed policy.
func NewLimiter(store Store, cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		cfg:    cfg,
		logger: slog.Default(),
		shards: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger overrides the Limiter's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

func (l *Limiter) shardFor(key Key) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := key.String()
	m, ok := l.shards[k]
	if !ok {
		m = &sync.Mutex{}
		l.shards[k] = m
	}
	return m
}

// Admit checks whether key is within its quota for tier, recording an
// admission timestamp if so. On Store failure, Admit fails open
// (Decision.Allowed=true) and logs a warning, unless Config.FailClosed
// is set; either way the store error is returned alongside the
// decision.
func (l *Limiter) Admit(ctx context.Context, key Key, tier Tier) (Decision, error) {
	q, ok := l.cfg.quotaFor(key.Bucket, tier)
	if !ok {
		// Unknown bucket/tier combination: allow, nothing to enforce.
		return Decision{Allowed: true}, nil
	}

	shard := l.shardFor(key)
	shard.Lock()
	defer shard.Unlock()

	now := time.Now().UTC()
	count, oldest, err := l.store.Admit(ctx, key, now, q.Window, q.Limit)
	if err != nil {
		if l.cfg.FailClosed {
			return Decision{Allowed: false}, err
		}
		l.logger.Warn("ratelimit: backend unavailable, failing open",
			"bucket", key.Bucket, "tenant_id", key.TenantID, "error", err)
		return Decision{Allowed: true}, err
	}

	if count <= q.Limit {
		return Decision{
			Allowed:   true,
			Limit:     q.Limit,
			Remaining: q.Limit - count,
			Reset:     now.Add(q.Window),
		}, nil
	}

	reset := oldest.Add(q.Window)
	return Decision{
		Allowed:    false,
		Limit:      q.Limit,
		Remaining:  0,
		Reset:      reset,
		RetryAfter: time.Until(reset),
	}, nil
}
