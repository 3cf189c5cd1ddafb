package extract_test

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cinco36/iv-ingestion/blob"
	"github.com/cinco36/iv-ingestion/eventbus"
	"github.com/cinco36/iv-ingestion/extract"
	"github.com/cinco36/iv-ingestion/id"
	"github.com/cinco36/iv-ingestion/job"
	"github.com/cinco36/iv-ingestion/parser"
	"github.com/cinco36/iv-ingestion/store/memory"
)

// passthroughParser returns the blob's raw bytes verbatim as RawText,
// standing in for a real text-extraction parser so pipeline tests
// exercise stage orchestration rather than any one parser's format
// quirks.
type passthroughParser struct{}

func (passthroughParser) Parse(ctx context.Context, ref blob.Ref, store blob.Store, _ string, _ parser.Options) (*parser.Output, error) {
	r, err := store.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &parser.Output{RawText: string(raw), Confidence: 0.9}, nil
}

// fakePublisher records every published event for assertions.
type fakePublisher struct {
	mu     sync.Mutex
	events []eventbus.EventType
}

func (f *fakePublisher) Publish(_ context.Context, t eventbus.EventType, _ string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, t)
	return nil
}

func (f *fakePublisher) types() []eventbus.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]eventbus.EventType, len(f.events))
	copy(out, f.events)
	return out
}

const s1Body = `Address: 123 Main St, Anytown, CA 90210
Inspector: Jane Smith, License NY789012

There is a critical electrical hazard at main panel.`

func setupPipeline(t *testing.T) (*extract.Pipeline, *memory.Store, *job.Job, *fakePublisher) {
	t.Helper()

	blobs := blob.NewLocalStore(t.TempDir())
	ref, err := blobs.Put(context.Background(), strings.NewReader(s1Body))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	registry := parser.NewRegistry(nil)
	registry.Register(passthroughParser{}, "txt")

	store := memory.New()
	pub := &fakePublisher{}

	pipeline := extract.NewPipeline(registry, blobs, store, pub, store)

	j := &job.Job{
		ID:          id.NewJobID(),
		TenantID:    id.New(id.PrefixJob),
		Kind:        "txt",
		State:       job.StateQueued,
		MaxAttempts: 3,
		SubmittedAt: time.Now().UTC(),
		BlobRef:     ref,
	}
	if err := store.Submit(context.Background(), j); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	acquired, err := store.Acquire(context.Background(), id.NewWorkerID(), 1, 5*time.Minute)
	if err != nil || len(acquired) != 1 {
		t.Fatalf("Acquire: %v (got %d jobs)", err, len(acquired))
	}

	return pipeline, store, acquired[0], pub
}

func TestPipeline_S1HappyPath(t *testing.T) {
	pipeline, store, j, pub := setupPipeline(t)

	if err := pipeline.Run(context.Background(), j); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if j.Stage != extract.StagePersist {
		t.Errorf("expected final stage %q, got %q", extract.StagePersist, j.Stage)
	}
	if j.Progress != extract.ProgressPersist {
		t.Errorf("expected progress %d, got %d", extract.ProgressPersist, j.Progress)
	}
	if j.Result == nil || j.Result.FindingsCount != 1 {
		t.Fatalf("expected 1 finding in result, got %+v", j.Result)
	}
	if j.Result.BySeverity["critical"] != 1 {
		t.Errorf("expected 1 critical finding, got %+v", j.Result.BySeverity)
	}

	record, err := store.GetRecord(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if record.Property.City != "Anytown" {
		t.Errorf("expected city Anytown, got %q", record.Property.City)
	}
	if record.Findings[0].Category != extract.CategoryElectrical {
		t.Errorf("expected electrical category, got %q", record.Findings[0].Category)
	}

	events := pub.types()
	wantSeq := []eventbus.EventType{
		eventbus.EventProcessingProgress,
		eventbus.EventProcessingProgress,
		eventbus.EventProcessingProgress,
		eventbus.EventProcessingComplete,
	}
	if len(events) != len(wantSeq) {
		t.Fatalf("expected %d events, got %d: %v", len(wantSeq), len(events), events)
	}
	for i, want := range wantSeq {
		if events[i] != want {
			t.Errorf("event[%d] = %q, want %q", i, events[i], want)
		}
	}
}

func TestPipeline_IdentifyMismatchIsPermanent(t *testing.T) {
	blobs := blob.NewLocalStore(t.TempDir())
	// A text blob declared as "pdf" will fail content-type sniffing.
	ref, err := blobs.Put(context.Background(), strings.NewReader("not a pdf"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	registry := parser.NewRegistry(nil)
	store := memory.New()
	pipeline := extract.NewPipeline(registry, blobs, store, nil, store)

	j := &job.Job{
		ID:          id.NewJobID(),
		TenantID:    id.New(id.PrefixJob),
		Kind:        "pdf",
		State:       job.StateActive,
		MaxAttempts: 3,
		SubmittedAt: time.Now().UTC(),
		BlobRef:     ref,
	}

	err = pipeline.Run(context.Background(), j)
	if err == nil {
		t.Fatal("expected identify mismatch error")
	}
}
