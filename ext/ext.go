package ext

import (
	"context"
	"time"

	"github.com/cinco36/iv-ingestion/id"
	"github.com/cinco36/iv-ingestion/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobEnqueued is called after a job is successfully submitted.
type JobEnqueued interface {
	OnJobEnqueued(ctx context.Context, j *job.Job) error
}

// JobStarted is called when a worker begins executing a job.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *job.Job) error
}

// JobCompleted is called after a job finishes successfully.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobFailed is called when a job fails terminally (no attempts remaining).
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, err error) error
}

// JobRetrying is called when a job fails but is scheduled for retry.
type JobRetrying interface {
	OnJobRetrying(ctx context.Context, j *job.Job, attempt int, nextAttemptAt time.Time) error
}

// JobDLQ is called when a job is moved to the dead letter queue.
type JobDLQ interface {
	OnJobDLQ(ctx context.Context, j *job.Job, err error) error
}

// ──────────────────────────────────────────────────
// Pipeline lifecycle hooks
// ──────────────────────────────────────────────────

// PipelineStageCompleted is called after an extraction stage finishes
// for a job (identify, parse, extract, persist).
type PipelineStageCompleted interface {
	OnPipelineStageCompleted(ctx context.Context, j *job.Job, stage string, elapsed time.Duration) error
}

// PipelineStageFailed is called when an extraction stage fails.
type PipelineStageFailed interface {
	OnPipelineStageFailed(ctx context.Context, j *job.Job, stage string, err error) error
}

// ──────────────────────────────────────────────────
// Webhook lifecycle hooks
// ──────────────────────────────────────────────────

// WebhookDelivered is called after a webhook delivery attempt succeeds.
type WebhookDelivered interface {
	OnWebhookDelivered(ctx context.Context, subscriptionID id.SubscriptionID, eventType string, attempt int) error
}

// WebhookDeliveryFailed is called after a webhook delivery attempt fails.
type WebhookDeliveryFailed interface {
	OnWebhookDeliveryFailed(ctx context.Context, subscriptionID id.SubscriptionID, eventType string, attempt int, err error) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// RateLimitDenied is called when the rate limiter denies a request.
type RateLimitDenied interface {
	OnRateLimitDenied(ctx context.Context, tenantID id.ID, bucket string) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
