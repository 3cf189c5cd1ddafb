package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cinco36/iv-ingestion/ext"
	"github.com/cinco36/iv-ingestion/id"
	"github.com/cinco36/iv-ingestion/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension               = (*MetricsExtension)(nil)
	_ ext.JobEnqueued             = (*MetricsExtension)(nil)
	_ ext.JobCompleted            = (*MetricsExtension)(nil)
	_ ext.JobFailed               = (*MetricsExtension)(nil)
	_ ext.JobRetrying             = (*MetricsExtension)(nil)
	_ ext.JobDLQ                  = (*MetricsExtension)(nil)
	_ ext.PipelineStageCompleted  = (*MetricsExtension)(nil)
	_ ext.PipelineStageFailed     = (*MetricsExtension)(nil)
	_ ext.WebhookDelivered        = (*MetricsExtension)(nil)
	_ ext.WebhookDeliveryFailed   = (*MetricsExtension)(nil)
	_ ext.RateLimitDenied         = (*MetricsExtension)(nil)
)

const meterName = "github.com/cinco36/iv-ingestion"

// MetricsExtension records system-wide lifecycle metrics via OpenTelemetry.
// Register it as an ingestion extension to automatically track submit
// rates, completion counts, failure rates, retry counts, DLQ entries,
// pipeline stage durations, webhook delivery outcomes, and rate-limit
// denials.
type MetricsExtension struct {
	jobEnqueued    metric.Int64Counter
	jobCompleted   metric.Int64Counter
	jobFailed      metric.Int64Counter
	jobRetried     metric.Int64Counter
	jobDLQ         metric.Int64Counter
	stageCompleted metric.Int64Counter
	stageFailed    metric.Int64Counter
	stageDuration  metric.Float64Histogram
	webhookSent    metric.Int64Counter
	webhookFailed  metric.Int64Counter
	rateLimited    metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global
// OpenTelemetry meter provider.
func NewMetricsExtension() (*MetricsExtension, error) {
	return NewMetricsExtensionWithProvider(otel.GetMeterProvider())
}

// NewMetricsExtensionWithProvider creates a MetricsExtension with the
// provided MeterProvider, for testing with a local SDK meter provider.
func NewMetricsExtensionWithProvider(provider metric.MeterProvider) (*MetricsExtension, error) {
	meter := provider.Meter(meterName)

	m := &MetricsExtension{}
	var err error

	if m.jobEnqueued, err = meter.Int64Counter("ingestion.job.submitted"); err != nil {
		return nil, err
	}
	if m.jobCompleted, err = meter.Int64Counter("ingestion.job.completed"); err != nil {
		return nil, err
	}
	if m.jobFailed, err = meter.Int64Counter("ingestion.job.failed"); err != nil {
		return nil, err
	}
	if m.jobRetried, err = meter.Int64Counter("ingestion.job.retried"); err != nil {
		return nil, err
	}
	if m.jobDLQ, err = meter.Int64Counter("ingestion.job.dead_lettered"); err != nil {
		return nil, err
	}
	if m.stageCompleted, err = meter.Int64Counter("ingestion.pipeline.stage_completed"); err != nil {
		return nil, err
	}
	if m.stageFailed, err = meter.Int64Counter("ingestion.pipeline.stage_failed"); err != nil {
		return nil, err
	}
	if m.stageDuration, err = meter.Float64Histogram("ingestion.pipeline.stage_duration_ms"); err != nil {
		return nil, err
	}
	if m.webhookSent, err = meter.Int64Counter("ingestion.webhook.delivered"); err != nil {
		return nil, err
	}
	if m.webhookFailed, err = meter.Int64Counter("ingestion.webhook.delivery_failed"); err != nil {
		return nil, err
	}
	if m.rateLimited, err = meter.Int64Counter("ingestion.ratelimit.denied"); err != nil {
		return nil, err
	}

	return m, nil
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Job lifecycle hooks ─────────────────────────────

func (m *MetricsExtension) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	m.jobEnqueued.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", j.Kind)))
	return nil
}

func (m *MetricsExtension) OnJobCompleted(ctx context.Context, j *job.Job, _ time.Duration) error {
	m.jobCompleted.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", j.Kind)))
	return nil
}

func (m *MetricsExtension) OnJobFailed(ctx context.Context, j *job.Job, _ error) error {
	m.jobFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", j.Kind)))
	return nil
}

func (m *MetricsExtension) OnJobRetrying(ctx context.Context, j *job.Job, _ int, _ time.Time) error {
	m.jobRetried.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", j.Kind)))
	return nil
}

func (m *MetricsExtension) OnJobDLQ(ctx context.Context, j *job.Job, _ error) error {
	m.jobDLQ.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", j.Kind)))
	return nil
}

// ── Pipeline lifecycle hooks ────────────────────────

func (m *MetricsExtension) OnPipelineStageCompleted(ctx context.Context, _ *job.Job, stage string, elapsed time.Duration) error {
	attrs := metric.WithAttributes(attribute.String("stage", stage))
	m.stageCompleted.Add(ctx, 1, attrs)
	m.stageDuration.Record(ctx, float64(elapsed.Milliseconds()), attrs)
	return nil
}

func (m *MetricsExtension) OnPipelineStageFailed(ctx context.Context, _ *job.Job, stage string, _ error) error {
	m.stageFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
	return nil
}

// ── Webhook lifecycle hooks ─────────────────────────

func (m *MetricsExtension) OnWebhookDelivered(ctx context.Context, _ id.SubscriptionID, eventType string, _ int) error {
	m.webhookSent.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
	return nil
}

func (m *MetricsExtension) OnWebhookDeliveryFailed(ctx context.Context, _ id.SubscriptionID, eventType string, _ int, _ error) error {
	m.webhookFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
	return nil
}

// ── Rate limit hooks ────────────────────────────────

func (m *MetricsExtension) OnRateLimitDenied(ctx context.Context, _ id.ID, bucket string) error {
	m.rateLimited.Add(ctx, 1, metric.WithAttributes(attribute.String("bucket", bucket)))
	return nil
}
