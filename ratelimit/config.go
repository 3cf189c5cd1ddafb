package ratelimit

import "time"

// quota pairs a request/upload cap with the window it is measured over.
type quota struct {
	Limit  int
	Window time.Duration
}

// Config holds the tiered quota table and the fail-open/fail-closed
// policy for backend unavailability.
type Config struct {
	// Quotas maps bucket -> tier -> quota. BucketWebhook and
	// BucketAdmin are fixed across tiers; only api and files vary.
	Quotas map[Bucket]map[Tier]quota

	// FailClosed denies admission when the backend is unavailable,
	// instead of the default fail-open behavior.
	FailClosed bool
}

// DefaultConfig returns the tiered quota table exactly as documented:
// api (Free 100/15m, Pro 1000/15m, Enterprise 10000/15m), files
// (Free 10/24h, Pro 100/24h, Enterprise 1000/24h), webhook (100/1h
// fixed), admin (1000/15m fixed).
func DefaultConfig() Config {
	return Config{
		Quotas: map[Bucket]map[Tier]quota{
			BucketAPI: {
				TierFree:       {Limit: 100, Window: 15 * time.Minute},
				TierPro:        {Limit: 1000, Window: 15 * time.Minute},
				TierEnterprise: {Limit: 10000, Window: 15 * time.Minute},
			},
			BucketFiles: {
				TierFree:       {Limit: 10, Window: 24 * time.Hour},
				TierPro:        {Limit: 100, Window: 24 * time.Hour},
				TierEnterprise: {Limit: 1000, Window: 24 * time.Hour},
			},
			BucketWebhook: {
				TierFree:       {Limit: 100, Window: time.Hour},
				TierPro:        {Limit: 100, Window: time.Hour},
				TierEnterprise: {Limit: 100, Window: time.Hour},
			},
			BucketAdmin: {
				TierFree:       {Limit: 1000, Window: 15 * time.Minute},
				TierPro:        {Limit: 1000, Window: 15 * time.Minute},
				TierEnterprise: {Limit: 1000, Window: 15 * time.Minute},
			},
		},
	}
}

func (c Config) quotaFor(bucket Bucket, tier Tier) (quota, bool) {
	byTier, ok := c.Quotas[bucket]
	if !ok {
		return quota{}, false
	}
	q, ok := byTier[tier]
	return q, ok
}
