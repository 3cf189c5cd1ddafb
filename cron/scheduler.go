package cron

import (
	"context"
	"log/slog"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// DLQPurger trims dead-lettered entries older than a retention window.
// dlq.Store satisfies this.
type DLQPurger interface {
	PurgeDLQ(ctx context.Context, before time.Time) (int64, error)
}

// RateLimitReaper drops idle rate-limit counters. ratelimit.Store
// satisfies this.
type RateLimitReaper interface {
	ReapStaleCounters(ctx context.Context, before time.Time) (int64, error)
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithDLQPurgeSchedule sets the cron expression on which dead letters
// older than retention are purged. Default: hourly, 30-day retention.
func WithDLQPurgeSchedule(expr string, retention time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.dlqSchedule = expr
		s.dlqRetention = retention
	}
}

// WithRateLimitReapSchedule sets the cron expression on which stale
// rate-limit counters are reaped. Default: every 15 minutes, 24h
// retention.
func WithRateLimitReapSchedule(expr string, retention time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.rlSchedule = expr
		s.rlRetention = retention
	}
}

// WithLogger overrides the Scheduler's logger.
func WithLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = logger }
}

// Scheduler runs periodic maintenance tasks within this process: dead
// letter purge and rate-limit counter reaping. There is no leader
// election — this module is not designed to run more than one
// maintenance scheduler per deployment.
type Scheduler struct {
	dlq DLQPurger
	rl  RateLimitReaper

	dlqSchedule  string
	dlqRetention time.Duration
	rlSchedule   string
	rlRetention  time.Duration

	logger *slog.Logger
	engine *cronlib.Cron
}

// NewScheduler builds a Scheduler. dlq and rl may be nil to disable
// the corresponding task.
func NewScheduler(dlq DLQPurger, rl RateLimitReaper, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		dlq:          dlq,
		rl:           rl,
		dlqSchedule:  "@every 1h",
		dlqRetention: 30 * 24 * time.Hour,
		rlSchedule:   "@every 15m",
		rlRetention:  24 * time.Hour,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start parses the configured schedules and begins firing maintenance
// tasks in background goroutines managed by the underlying cron
// engine.
func (s *Scheduler) Start(_ context.Context) error {
	s.engine = cronlib.New(cronlib.WithParser(cronlib.NewParser(
		cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
	)))

	if s.dlq != nil {
		if _, err := s.engine.AddFunc(s.dlqSchedule, s.purgeDLQ); err != nil {
			return err
		}
	}
	if s.rl != nil {
		if _, err := s.engine.AddFunc(s.rlSchedule, s.reapRateLimits); err != nil {
			return err
		}
	}

	s.engine.Start()
	s.logger.Info("maintenance scheduler started",
		slog.String("dlq_schedule", s.dlqSchedule),
		slog.String("ratelimit_schedule", s.rlSchedule),
	)
	return nil
}

// Stop halts the cron engine and waits for any in-flight task to
// finish.
func (s *Scheduler) Stop(_ context.Context) error {
	if s.engine == nil {
		return nil
	}
	ctx := s.engine.Stop()
	<-ctx.Done()
	s.logger.Info("maintenance scheduler stopped")
	return nil
}

func (s *Scheduler) purgeDLQ() {
	ctx := context.Background()
	before := time.Now().UTC().Add(-s.dlqRetention)
	n, err := s.dlq.PurgeDLQ(ctx, before)
	if err != nil {
		s.logger.Error("dlq purge failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("dlq purge complete", slog.Int64("purged", n))
}

func (s *Scheduler) reapRateLimits() {
	ctx := context.Background()
	before := time.Now().UTC().Add(-s.rlRetention)
	n, err := s.rl.ReapStaleCounters(ctx, before)
	if err != nil {
		s.logger.Error("ratelimit reap failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("ratelimit reap complete", slog.Int64("reaped", n))
}
