package audithook_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	ah "github.com/cinco36/iv-ingestion/audit_hook"
	"github.com/cinco36/iv-ingestion/ext"
	"github.com/cinco36/iv-ingestion/id"
	"github.com/cinco36/iv-ingestion/job"
)

// ── Mock recorder ────────────────────────────────────

// mockRecorder captures audit events for verification.
type mockRecorder struct {
	mu     sync.Mutex
	events []*ah.AuditEvent
}

func (m *mockRecorder) Record(_ context.Context, evt *ah.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *mockRecorder) last() *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockRecorder) findByAction(action string) *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, evt := range m.events {
		if evt.Action == action {
			return evt
		}
	}
	return nil
}

// ── Test helpers ─────────────────────────────────────

func newTestJob() *job.Job {
	return &job.Job{
		ID:          id.NewJobID(),
		TenantID:    id.New(id.PrefixJob),
		Kind:        "inspection_report",
		MaxAttempts: 3,
		Attempts:    1,
	}
}

// ── Tests ────────────────────────────────────────────

func TestExtension_Name(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	if e.Name() != "audit-hook" {
		t.Errorf("expected name %q, got %q", "audit-hook", e.Name())
	}
}

// ── Job lifecycle tests ──────────────────────────────

func TestExtension_JobEnqueued(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	ctx := context.Background()
	j := newTestJob()

	if err := e.OnJobEnqueued(ctx, j); err != nil {
		t.Fatalf("OnJobEnqueued: %v", err)
	}

	evt := rec.last()
	if evt == nil {
		t.Fatal("no event recorded")
	}
	if evt.Action != ah.ActionJobEnqueued {
		t.Errorf("Action: want %q, got %q", ah.ActionJobEnqueued, evt.Action)
	}
	if evt.Resource != ah.ResourceJob {
		t.Errorf("Resource: want %q, got %q", ah.ResourceJob, evt.Resource)
	}
	if evt.Category != ah.CategoryJob {
		t.Errorf("Category: want %q, got %q", ah.CategoryJob, evt.Category)
	}
	if evt.ResourceID != j.ID.String() {
		t.Errorf("ResourceID: want %q, got %q", j.ID.String(), evt.ResourceID)
	}
	if evt.Severity != ah.SeverityInfo {
		t.Errorf("Severity: want %q, got %q", ah.SeverityInfo, evt.Severity)
	}
	if evt.Outcome != ah.OutcomeSuccess {
		t.Errorf("Outcome: want %q, got %q", ah.OutcomeSuccess, evt.Outcome)
	}
	if evt.Metadata["kind"] != "inspection_report" {
		t.Errorf("Metadata[kind]: want %q, got %v", "inspection_report", evt.Metadata["kind"])
	}
}

func TestExtension_JobStarted(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	j := newTestJob()
	j.WorkerID = id.NewWorkerID()

	if err := e.OnJobStarted(context.Background(), j); err != nil {
		t.Fatalf("OnJobStarted: %v", err)
	}

	evt := rec.last()
	if evt.Action != ah.ActionJobStarted {
		t.Errorf("Action: want %q, got %q", ah.ActionJobStarted, evt.Action)
	}
	if evt.Metadata["worker_id"] != j.WorkerID.String() {
		t.Errorf("Metadata[worker_id]: want %q, got %v", j.WorkerID.String(), evt.Metadata["worker_id"])
	}
}

func TestExtension_JobCompleted(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	j := newTestJob()
	elapsed := 150 * time.Millisecond

	if err := e.OnJobCompleted(context.Background(), j, elapsed); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}

	evt := rec.last()
	if evt.Action != ah.ActionJobCompleted {
		t.Errorf("Action: want %q, got %q", ah.ActionJobCompleted, evt.Action)
	}
	if evt.Severity != ah.SeverityInfo {
		t.Errorf("Severity: want %q, got %q", ah.SeverityInfo, evt.Severity)
	}
	if evt.Metadata["elapsed_ms"] != elapsed.Milliseconds() {
		t.Errorf("Metadata[elapsed_ms]: want %d, got %v", elapsed.Milliseconds(), evt.Metadata["elapsed_ms"])
	}
}

func TestExtension_JobFailed(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	j := newTestJob()
	jobErr := errors.New("connection timeout")

	if err := e.OnJobFailed(context.Background(), j, jobErr); err != nil {
		t.Fatalf("OnJobFailed: %v", err)
	}

	evt := rec.last()
	if evt.Action != ah.ActionJobFailed {
		t.Errorf("Action: want %q, got %q", ah.ActionJobFailed, evt.Action)
	}
	if evt.Severity != ah.SeverityCritical {
		t.Errorf("Severity: want %q, got %q", ah.SeverityCritical, evt.Severity)
	}
	if evt.Outcome != ah.OutcomeFailure {
		t.Errorf("Outcome: want %q, got %q", ah.OutcomeFailure, evt.Outcome)
	}
	if evt.Reason != "connection timeout" {
		t.Errorf("Reason: want %q, got %q", "connection timeout", evt.Reason)
	}
	if evt.Metadata["error"] != "connection timeout" {
		t.Errorf("Metadata[error]: want %q, got %v", "connection timeout", evt.Metadata["error"])
	}
	if evt.Metadata["attempts"] != 1 {
		t.Errorf("Metadata[attempts]: want %d, got %v", 1, evt.Metadata["attempts"])
	}
}

func TestExtension_JobRetrying(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	j := newTestJob()
	nextAttempt := time.Now().Add(30 * time.Second)

	if err := e.OnJobRetrying(context.Background(), j, 2, nextAttempt); err != nil {
		t.Fatalf("OnJobRetrying: %v", err)
	}

	evt := rec.last()
	if evt.Action != ah.ActionJobRetrying {
		t.Errorf("Action: want %q, got %q", ah.ActionJobRetrying, evt.Action)
	}
	if evt.Severity != ah.SeverityWarning {
		t.Errorf("Severity: want %q, got %q", ah.SeverityWarning, evt.Severity)
	}
	if evt.Outcome != ah.OutcomeFailure {
		t.Errorf("Outcome: want %q, got %q", ah.OutcomeFailure, evt.Outcome)
	}
	if evt.Metadata["attempt"] != 2 {
		t.Errorf("Metadata[attempt]: want %d, got %v", 2, evt.Metadata["attempt"])
	}
}

func TestExtension_JobDLQ(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	j := newTestJob()
	jobErr := errors.New("attempts exhausted")

	if err := e.OnJobDLQ(context.Background(), j, jobErr); err != nil {
		t.Fatalf("OnJobDLQ: %v", err)
	}

	evt := rec.last()
	if evt.Action != ah.ActionJobDLQ {
		t.Errorf("Action: want %q, got %q", ah.ActionJobDLQ, evt.Action)
	}
	if evt.Severity != ah.SeverityCritical {
		t.Errorf("Severity: want %q, got %q", ah.SeverityCritical, evt.Severity)
	}
	if evt.Metadata["error"] != "attempts exhausted" {
		t.Errorf("Metadata[error]: want %q, got %v", "attempts exhausted", evt.Metadata["error"])
	}
}

// ── Pipeline lifecycle tests ─────────────────────────

func TestExtension_PipelineStageCompleted(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	j := newTestJob()

	if err := e.OnPipelineStageCompleted(context.Background(), j, "parse", 200*time.Millisecond); err != nil {
		t.Fatalf("OnPipelineStageCompleted: %v", err)
	}

	evt := rec.last()
	if evt.Action != ah.ActionPipelineStageCompleted {
		t.Errorf("Action: want %q, got %q", ah.ActionPipelineStageCompleted, evt.Action)
	}
	if evt.Metadata["stage"] != "parse" {
		t.Errorf("Metadata[stage]: want %q, got %v", "parse", evt.Metadata["stage"])
	}
}

func TestExtension_PipelineStageFailed(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	j := newTestJob()
	stageErr := errors.New("unsupported file kind")

	if err := e.OnPipelineStageFailed(context.Background(), j, "identify", stageErr); err != nil {
		t.Fatalf("OnPipelineStageFailed: %v", err)
	}

	evt := rec.last()
	if evt.Action != ah.ActionPipelineStageFailed {
		t.Errorf("Action: want %q, got %q", ah.ActionPipelineStageFailed, evt.Action)
	}
	if evt.Severity != ah.SeverityWarning {
		t.Errorf("Severity: want %q, got %q", ah.SeverityWarning, evt.Severity)
	}
	if evt.Reason != "unsupported file kind" {
		t.Errorf("Reason: want %q, got %q", "unsupported file kind", evt.Reason)
	}
}

// ── Webhook lifecycle tests ──────────────────────────

func TestExtension_WebhookDelivered(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	subID := id.NewSubscriptionID()

	if err := e.OnWebhookDelivered(context.Background(), subID, "inspection.created", 1); err != nil {
		t.Fatalf("OnWebhookDelivered: %v", err)
	}

	evt := rec.last()
	if evt.Action != ah.ActionWebhookDelivered {
		t.Errorf("Action: want %q, got %q", ah.ActionWebhookDelivered, evt.Action)
	}
	if evt.Resource != ah.ResourceSubscription {
		t.Errorf("Resource: want %q, got %q", ah.ResourceSubscription, evt.Resource)
	}
	if evt.ResourceID != subID.String() {
		t.Errorf("ResourceID: want %q, got %q", subID.String(), evt.ResourceID)
	}
}

func TestExtension_WebhookDeliveryFailed(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	subID := id.NewSubscriptionID()
	delErr := errors.New("timeout")

	if err := e.OnWebhookDeliveryFailed(context.Background(), subID, "inspection.created", 3, delErr); err != nil {
		t.Fatalf("OnWebhookDeliveryFailed: %v", err)
	}

	evt := rec.last()
	if evt.Action != ah.ActionWebhookDeliveryFailed {
		t.Errorf("Action: want %q, got %q", ah.ActionWebhookDeliveryFailed, evt.Action)
	}
	if evt.Severity != ah.SeverityWarning {
		t.Errorf("Severity: want %q, got %q", ah.SeverityWarning, evt.Severity)
	}
}

// ── Rate limit lifecycle test ────────────────────────

func TestExtension_RateLimitDenied(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	tenantID := id.New(id.PrefixJob)

	if err := e.OnRateLimitDenied(context.Background(), tenantID, "api"); err != nil {
		t.Fatalf("OnRateLimitDenied: %v", err)
	}

	evt := rec.last()
	if evt.Action != ah.ActionRateLimitDenied {
		t.Errorf("Action: want %q, got %q", ah.ActionRateLimitDenied, evt.Action)
	}
	if evt.Resource != ah.ResourceTenant {
		t.Errorf("Resource: want %q, got %q", ah.ResourceTenant, evt.Resource)
	}
	if evt.Metadata["bucket"] != "api" {
		t.Errorf("Metadata[bucket]: want %q, got %v", "api", evt.Metadata["bucket"])
	}
}

// ── WithActions filter tests ─────────────────────────

func TestExtension_WithActions_FiltersDisabled(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec, ah.WithActions(ah.ActionJobCompleted, ah.ActionJobFailed))

	ctx := context.Background()
	j := newTestJob()

	// Enqueued is NOT enabled — should be silently skipped.
	if err := e.OnJobEnqueued(ctx, j); err != nil {
		t.Fatalf("OnJobEnqueued: %v", err)
	}
	if rec.count() != 0 {
		t.Errorf("expected 0 events (enqueued disabled), got %d", rec.count())
	}

	// Completed IS enabled — should be recorded.
	if err := e.OnJobCompleted(ctx, j, 50*time.Millisecond); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}
	if rec.count() != 1 {
		t.Errorf("expected 1 event (completed enabled), got %d", rec.count())
	}

	// Failed IS enabled — should be recorded.
	if err := e.OnJobFailed(ctx, j, errors.New("boom")); err != nil {
		t.Fatalf("OnJobFailed: %v", err)
	}
	if rec.count() != 2 {
		t.Errorf("expected 2 events, got %d", rec.count())
	}
}

// ── RecorderFunc adapter test ────────────────────────

func TestRecorderFunc(t *testing.T) {
	var captured *ah.AuditEvent
	fn := ah.RecorderFunc(func(_ context.Context, evt *ah.AuditEvent) error {
		captured = evt
		return nil
	})

	e := ah.New(fn)
	j := newTestJob()

	if err := e.OnJobEnqueued(context.Background(), j); err != nil {
		t.Fatalf("OnJobEnqueued: %v", err)
	}
	if captured == nil {
		t.Fatal("RecorderFunc was not called")
	}
	if captured.Action != ah.ActionJobEnqueued {
		t.Errorf("Action: want %q, got %q", ah.ActionJobEnqueued, captured.Action)
	}
}

// ── Recorder error handling test ─────────────────────

func TestExtension_RecorderError_DoesNotPropagate(t *testing.T) {
	failingRecorder := ah.RecorderFunc(func(_ context.Context, _ *ah.AuditEvent) error {
		return errors.New("audit backend down")
	})

	e := ah.New(failingRecorder)
	j := newTestJob()

	// Hook should NOT return an error — audit failures must not block
	// the job pipeline.
	if err := e.OnJobEnqueued(context.Background(), j); err != nil {
		t.Fatalf("expected no error (audit failure swallowed), got: %v", err)
	}
}

// ── Registry integration test ────────────────────────

func TestExtension_ViaRegistry(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	logger := slog.Default()

	reg := ext.NewRegistry(logger)
	reg.Register(e)

	ctx := context.Background()
	j := newTestJob()
	subID := id.NewSubscriptionID()

	reg.EmitJobEnqueued(ctx, j)
	reg.EmitJobStarted(ctx, j)
	reg.EmitJobCompleted(ctx, j, 50*time.Millisecond)
	reg.EmitJobFailed(ctx, j, errors.New("fail"))
	reg.EmitJobRetrying(ctx, j, 1, time.Now())
	reg.EmitJobDLQ(ctx, j, errors.New("dead"))
	reg.EmitPipelineStageCompleted(ctx, j, "parse", time.Second)
	reg.EmitPipelineStageFailed(ctx, j, "extract", errors.New("bad"))
	reg.EmitWebhookDelivered(ctx, subID, "inspection.created", 1)
	reg.EmitWebhookDeliveryFailed(ctx, subID, "inspection.created", 2, errors.New("timeout"))
	reg.EmitRateLimitDenied(ctx, id.New(id.PrefixJob), "api")

	allActions := ah.AllActions()
	if rec.count() != len(allActions) {
		t.Fatalf("expected %d events, got %d", len(allActions), rec.count())
	}

	for _, action := range allActions {
		evt := rec.findByAction(action)
		if evt == nil {
			t.Errorf("missing event for action %q", action)
		}
	}
}

// ── AllActions test ──────────────────────────────────

func TestAllActions(t *testing.T) {
	actions := ah.AllActions()
	if len(actions) != 11 {
		t.Errorf("expected 11 actions, got %d", len(actions))
	}
}
