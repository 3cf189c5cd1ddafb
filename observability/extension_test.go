package observability_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/cinco36/iv-ingestion/ext"
	"github.com/cinco36/iv-ingestion/id"
	"github.com/cinco36/iv-ingestion/job"
	"github.com/cinco36/iv-ingestion/observability"
)

// newTestExtension builds a MetricsExtension backed by a ManualReader so
// tests can collect and inspect recorded data points without a live
// exporter.
func newTestExtension(t *testing.T) (*observability.MetricsExtension, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	e, err := observability.NewMetricsExtensionWithProvider(provider)
	if err != nil {
		t.Fatalf("NewMetricsExtensionWithProvider: %v", err)
	}
	return e, reader
}

func newTestJob() *job.Job {
	return &job.Job{
		ID:   id.NewJobID(),
		Kind: "inspection_report",
	}
}

// sumFor returns the int64 sum recorded for the named instrument, or -1 if
// no data points were collected for it.
func sumFor(t *testing.T, reader *metric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				var total int64
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
				return total
			}
		}
	}
	return -1
}

func histogramCountFor(t *testing.T, reader *metric.ManualReader, name string) uint64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if data, ok := m.Data.(metricdata.Histogram[float64]); ok {
				var total uint64
				for _, dp := range data.DataPoints {
					total += dp.Count
				}
				return total
			}
		}
	}
	return 0
}

func TestMetricsExtension_Name(t *testing.T) {
	e, _ := newTestExtension(t)
	if e.Name() != "observability-metrics" {
		t.Errorf("expected name %q, got %q", "observability-metrics", e.Name())
	}
}

func TestMetricsExtension_JobEnqueued(t *testing.T) {
	e, reader := newTestExtension(t)
	if err := e.OnJobEnqueued(context.Background(), newTestJob()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := sumFor(t, reader, "ingestion.job.submitted"); got != 1 {
		t.Errorf("ingestion.job.submitted: want 1, got %v", got)
	}
}

func TestMetricsExtension_JobCompleted(t *testing.T) {
	e, reader := newTestExtension(t)
	if err := e.OnJobCompleted(context.Background(), newTestJob(), 100*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := sumFor(t, reader, "ingestion.job.completed"); got != 1 {
		t.Errorf("ingestion.job.completed: want 1, got %v", got)
	}
}

func TestMetricsExtension_JobFailed(t *testing.T) {
	e, reader := newTestExtension(t)
	if err := e.OnJobFailed(context.Background(), newTestJob(), errors.New("boom")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := sumFor(t, reader, "ingestion.job.failed"); got != 1 {
		t.Errorf("ingestion.job.failed: want 1, got %v", got)
	}
}

func TestMetricsExtension_JobRetrying(t *testing.T) {
	e, reader := newTestExtension(t)
	if err := e.OnJobRetrying(context.Background(), newTestJob(), 1, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := sumFor(t, reader, "ingestion.job.retried"); got != 1 {
		t.Errorf("ingestion.job.retried: want 1, got %v", got)
	}
}

func TestMetricsExtension_JobDLQ(t *testing.T) {
	e, reader := newTestExtension(t)
	if err := e.OnJobDLQ(context.Background(), newTestJob(), errors.New("terminal")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := sumFor(t, reader, "ingestion.job.dead_lettered"); got != 1 {
		t.Errorf("ingestion.job.dead_lettered: want 1, got %v", got)
	}
}

func TestMetricsExtension_PipelineStageCompleted(t *testing.T) {
	e, reader := newTestExtension(t)
	if err := e.OnPipelineStageCompleted(context.Background(), newTestJob(), "parse", 250*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := sumFor(t, reader, "ingestion.pipeline.stage_completed"); got != 1 {
		t.Errorf("ingestion.pipeline.stage_completed: want 1, got %v", got)
	}
	if got := histogramCountFor(t, reader, "ingestion.pipeline.stage_duration_ms"); got != 1 {
		t.Errorf("ingestion.pipeline.stage_duration_ms: want 1 data point, got %v", got)
	}
}

func TestMetricsExtension_PipelineStageFailed(t *testing.T) {
	e, reader := newTestExtension(t)
	if err := e.OnPipelineStageFailed(context.Background(), newTestJob(), "extract", errors.New("bad field")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := sumFor(t, reader, "ingestion.pipeline.stage_failed"); got != 1 {
		t.Errorf("ingestion.pipeline.stage_failed: want 1, got %v", got)
	}
}

func TestMetricsExtension_WebhookDelivered(t *testing.T) {
	e, reader := newTestExtension(t)
	if err := e.OnWebhookDelivered(context.Background(), id.NewSubscriptionID(), "processing.completed", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := sumFor(t, reader, "ingestion.webhook.delivered"); got != 1 {
		t.Errorf("ingestion.webhook.delivered: want 1, got %v", got)
	}
}

func TestMetricsExtension_WebhookDeliveryFailed(t *testing.T) {
	e, reader := newTestExtension(t)
	if err := e.OnWebhookDeliveryFailed(context.Background(), id.NewSubscriptionID(), "processing.failed", 3, errors.New("timeout")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := sumFor(t, reader, "ingestion.webhook.delivery_failed"); got != 1 {
		t.Errorf("ingestion.webhook.delivery_failed: want 1, got %v", got)
	}
}

func TestMetricsExtension_RateLimitDenied(t *testing.T) {
	e, reader := newTestExtension(t)
	if err := e.OnRateLimitDenied(context.Background(), id.New(id.PrefixJob), "api"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := sumFor(t, reader, "ingestion.ratelimit.denied"); got != 1 {
		t.Errorf("ingestion.ratelimit.denied: want 1, got %v", got)
	}
}

func TestMetricsExtension_ViaRegistry(t *testing.T) {
	e, reader := newTestExtension(t)
	logger := slog.Default()

	reg := ext.NewRegistry(logger)
	reg.Register(e)

	ctx := context.Background()
	j := newTestJob()

	reg.EmitJobEnqueued(ctx, j)
	reg.EmitJobCompleted(ctx, j, 50*time.Millisecond)
	reg.EmitJobFailed(ctx, j, errors.New("fail"))
	reg.EmitJobRetrying(ctx, j, 1, time.Now())
	reg.EmitJobDLQ(ctx, j, errors.New("dead"))
	reg.EmitPipelineStageCompleted(ctx, j, "identify", 10*time.Millisecond)
	reg.EmitPipelineStageFailed(ctx, j, "parse", errors.New("corrupt"))
	reg.EmitWebhookDelivered(ctx, id.NewSubscriptionID(), "finding.added", 1)
	reg.EmitWebhookDeliveryFailed(ctx, id.NewSubscriptionID(), "finding.added", 2, errors.New("5xx"))
	reg.EmitRateLimitDenied(ctx, id.New(id.PrefixJob), "files")

	checks := []struct {
		name string
		want int64
	}{
		{"ingestion.job.submitted", 1},
		{"ingestion.job.completed", 1},
		{"ingestion.job.failed", 1},
		{"ingestion.job.retried", 1},
		{"ingestion.job.dead_lettered", 1},
		{"ingestion.pipeline.stage_completed", 1},
		{"ingestion.pipeline.stage_failed", 1},
		{"ingestion.webhook.delivered", 1},
		{"ingestion.webhook.delivery_failed", 1},
		{"ingestion.ratelimit.denied", 1},
	}

	for _, c := range checks {
		if got := sumFor(t, reader, c.name); got != c.want {
			t.Errorf("%s: want %d, got %v", c.name, c.want, got)
		}
	}
}
