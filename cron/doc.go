// Package cron runs the in-process maintenance scheduler: periodic
// dead-letter purge and rate-limit counter reaping. Schedule parsing
// is delegated to robfig/cron/v3; there is no distributed leader
// election here — this module runs as a single process.
//
//	sched := cron.NewScheduler(dlqStore, rlStore,
//	    cron.WithDLQPurgeSchedule("@every 1h", 30*24*time.Hour),
//	    cron.WithRateLimitReapSchedule("@every 15m", 24*time.Hour),
//	)
//	sched.Start(ctx)
//	defer sched.Stop(ctx)
package cron
