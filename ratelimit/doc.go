// Package ratelimit implements the tiered sliding-window admission
// limiter. Four buckets — api, files, webhook, admin — each enforce a
// quota over a window that varies by the identity's tier (free, pro,
// enterprise). Admission state is an append-and-trim log of admission
// timestamps per (identity, bucket) key, persisted through the [Store]
// interface so a durable backend (Postgres) and an in-memory backend
// share the same algorithm.
//
// This is a different algorithm from queue.Manager's token bucket:
// the two coexist because they answer different questions. The queue
// gate throttles worker dequeue concurrency; this limiter throttles
// caller admission.
//
//	lim := ratelimit.NewLimiter(store, ratelimit.DefaultConfig())
//	decision, err := lim.Admit(ctx, ratelimit.Key{TenantID: identity, Bucket: ratelimit.BucketAPI}, ratelimit.TierFree)
//	if !decision.Allowed {
//	    // surface 429 with decision.Limit/Remaining/Reset
//	}
//
// On backend unavailability, Admit fails open by default (logged at
// warn) unless [Config.FailClosed] is set.
package ratelimit
