package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cinco36/iv-ingestion/ext"
	"github.com/cinco36/iv-ingestion/id"
	"github.com/cinco36/iv-ingestion/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension             = (*Extension)(nil)
	_ ext.JobEnqueued           = (*Extension)(nil)
	_ ext.JobStarted            = (*Extension)(nil)
	_ ext.JobCompleted          = (*Extension)(nil)
	_ ext.JobFailed             = (*Extension)(nil)
	_ ext.JobRetrying           = (*Extension)(nil)
	_ ext.JobDLQ                = (*Extension)(nil)
	_ ext.PipelineStageCompleted = (*Extension)(nil)
	_ ext.PipelineStageFailed   = (*Extension)(nil)
	_ ext.WebhookDelivered      = (*Extension)(nil)
	_ ext.WebhookDeliveryFailed = (*Extension)(nil)
	_ ext.RateLimitDenied       = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It is defined locally so this package does not import a concrete
// audit backend directly — callers inject one at wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a backend-agnostic representation of an audit event.
// Callers provide a RecorderFunc adapter that bridges to their audit backend.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges ingestion lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Job lifecycle hooks ─────────────────────────────

func (e *Extension) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobEnqueued, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"kind", j.Kind,
		"tenant_id", j.TenantID.String(),
	)
}

func (e *Extension) OnJobStarted(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobStarted, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"kind", j.Kind,
		"worker_id", j.WorkerID.String(),
	)
}

func (e *Extension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	return e.record(ctx, ActionJobCompleted, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"kind", j.Kind,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

func (e *Extension) OnJobFailed(ctx context.Context, j *job.Job, jobErr error) error {
	return e.record(ctx, ActionJobFailed, SeverityCritical, OutcomeFailure,
		ResourceJob, j.ID.String(), CategoryJob, jobErr,
		"kind", j.Kind,
		"attempts", j.Attempts,
		"max_attempts", j.MaxAttempts,
	)
}

func (e *Extension) OnJobRetrying(ctx context.Context, j *job.Job, attempt int, nextAttemptAt time.Time) error {
	return e.record(ctx, ActionJobRetrying, SeverityWarning, OutcomeFailure,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"kind", j.Kind,
		"attempt", attempt,
		"next_attempt_at", nextAttemptAt.Format(time.RFC3339),
	)
}

func (e *Extension) OnJobDLQ(ctx context.Context, j *job.Job, jobErr error) error {
	return e.record(ctx, ActionJobDLQ, SeverityCritical, OutcomeFailure,
		ResourceJob, j.ID.String(), CategoryJob, jobErr,
		"kind", j.Kind,
		"attempts", j.Attempts,
	)
}

// ── Pipeline lifecycle hooks ────────────────────────

func (e *Extension) OnPipelineStageCompleted(ctx context.Context, j *job.Job, stage string, elapsed time.Duration) error {
	return e.record(ctx, ActionPipelineStageCompleted, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryPipeline, nil,
		"stage", stage,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

func (e *Extension) OnPipelineStageFailed(ctx context.Context, j *job.Job, stage string, stageErr error) error {
	return e.record(ctx, ActionPipelineStageFailed, SeverityWarning, OutcomeFailure,
		ResourceJob, j.ID.String(), CategoryPipeline, stageErr,
		"stage", stage,
	)
}

// ── Webhook lifecycle hooks ─────────────────────────

func (e *Extension) OnWebhookDelivered(ctx context.Context, subscriptionID id.SubscriptionID, eventType string, attempt int) error {
	return e.record(ctx, ActionWebhookDelivered, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, subscriptionID.String(), CategoryWebhook, nil,
		"event_type", eventType,
		"attempt", attempt,
	)
}

func (e *Extension) OnWebhookDeliveryFailed(ctx context.Context, subscriptionID id.SubscriptionID, eventType string, attempt int, deliveryErr error) error {
	return e.record(ctx, ActionWebhookDeliveryFailed, SeverityWarning, OutcomeFailure,
		ResourceSubscription, subscriptionID.String(), CategoryWebhook, deliveryErr,
		"event_type", eventType,
		"attempt", attempt,
	)
}

// ── Rate limit hooks ────────────────────────────────

func (e *Extension) OnRateLimitDenied(ctx context.Context, tenantID id.ID, bucket string) error {
	return e.record(ctx, ActionRateLimitDenied, SeverityWarning, OutcomeFailure,
		ResourceTenant, tenantID.String(), CategoryRateLimit, nil,
		"bucket", bucket,
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
