package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cinco36/iv-ingestion"
	"github.com/cinco36/iv-ingestion/blob"
	"github.com/cinco36/iv-ingestion/eventbus"
	"github.com/cinco36/iv-ingestion/job"
	"github.com/cinco36/iv-ingestion/parser"
)

// Stage names, reported on job.Job.Stage and matched against the
// default Timeouts below.
const (
	StageIdentify    = "identify"
	StageParse       = "parse"
	StageFieldExtract = "field_extract"
	StagePersist     = "persist"
)

// Progress percentages for each stage, per the document-ingestion
// pipeline: identify 5%, parse 30%, field-extract 70%, persist 100%.
const (
	ProgressIdentify     = 5
	ProgressParse        = 30
	ProgressFieldExtract = 70
	ProgressPersist      = 100
)

// Timeouts bounds how long each stage may run before its context is
// cancelled and the stage reports a timeout error.
type Timeouts struct {
	Parse        time.Duration
	FieldExtract time.Duration
	Persist      time.Duration
}

// DefaultTimeouts matches the document-ingestion pipeline's stage
// budgets: parse 5 minutes (bounded by parser I/O), field-extract 60
// seconds (pure computation over already-loaded text), persist 30
// seconds (a single store write).
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Parse:        5 * time.Minute,
		FieldExtract: 60 * time.Second,
		Persist:      30 * time.Second,
	}
}

// kindContentTypes maps a declared document kind to the MIME type(s)
// http.DetectContentType can reliably sniff for it. Kinds absent from
// this table (csv, doc, docx, xls, xlsx) cannot be distinguished from
// generic "text/plain" or "application/zip" sniffs with the standard
// library alone, so Identify skips the mismatch check for them rather
// than rejecting on an unreliable signal.
var kindContentTypes = map[string][]string{
	"pdf":  {"application/pdf"},
	"jpg":  {"image/jpeg"},
	"jpeg": {"image/jpeg"},
	"png":  {"image/png"},
}

// Pipeline runs a job through the four ingestion stages: identify,
// parse, field-extract, persist. Identify, parse and field-extract
// each publish processing.progress at their declared percent via the
// injected eventbus.Publisher; persist publishes processing.completed
// carrying the result summary instead of a progress event.
type Pipeline struct {
	parsers   *parser.Registry
	blobs     blob.Store
	records   RecordStore
	publisher eventbus.Publisher
	jobs      job.Store
	logger    *slog.Logger
	timeouts  Timeouts
	leaseFor  time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger overrides the default logger (slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithTimeouts overrides the default per-stage timeouts.
func WithTimeouts(t Timeouts) Option {
	return func(p *Pipeline) { p.timeouts = t }
}

// WithLeaseExtension sets how long each heartbeat extends the job's
// lease. Defaults to 5 minutes, matching the job store's lease
// discipline.
func WithLeaseExtension(d time.Duration) Option {
	return func(p *Pipeline) { p.leaseFor = d }
}

// NewPipeline constructs a Pipeline. jobs may be nil, in which case
// stage heartbeats are skipped (useful in tests that exercise the
// pipeline against a bare job.Job with no backing store).
func NewPipeline(parsers *parser.Registry, blobs blob.Store, records RecordStore, publisher eventbus.Publisher, jobs job.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		parsers:   parsers,
		blobs:     blobs,
		records:   records,
		publisher: publisher,
		jobs:      jobs,
		logger:    slog.Default(),
		timeouts:  DefaultTimeouts(),
		leaseFor:  5 * time.Minute,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// runState carries intermediate values between stages within one Run.
type runState struct {
	output *parser.Output
	record *Record
}

// Run executes all four stages against j in order, updating j's Stage
// and Progress fields in place as it goes. A non-nil return is always
// an *ingest.Error; its Category tells the caller (worker.Executor)
// whether the failure is retryable.
func (p *Pipeline) Run(ctx context.Context, j *job.Job) error {
	st := &runState{}

	if err := p.runStage(ctx, j, StageIdentify, ProgressIdentify, 0, func(ctx context.Context) error {
		return p.identify(ctx, j)
	}); err != nil {
		return err
	}

	if err := p.runStage(ctx, j, StageParse, ProgressParse, p.timeouts.Parse, func(ctx context.Context) error {
		out, err := p.parsers.Parse(ctx, j.BlobRef, p.blobs, j.Kind, parser.Options{})
		if err != nil {
			return err
		}
		st.output = out
		return nil
	}); err != nil {
		return err
	}

	if err := p.runStage(ctx, j, StageFieldExtract, ProgressFieldExtract, p.timeouts.FieldExtract, func(ctx context.Context) error {
		record, err := p.fieldExtract(ctx, j, st.output)
		if err != nil {
			return err
		}
		st.record = record
		return nil
	}); err != nil {
		return err
	}

	// The transactional boundary spans field-extract and persist: the
	// record built above exists only in memory until this stage writes
	// it, so a persist failure leaves nothing partially stored.
	if err := p.runStage(ctx, j, StagePersist, ProgressPersist, p.timeouts.Persist, func(ctx context.Context) error {
		return p.persist(ctx, j, st.record)
	}); err != nil {
		return err
	}

	return nil
}

// runStage wraps a stage function with a timeout (if non-zero),
// advances j's stage/progress on success, and emits the generic
// processing.progress event for every stage except persist, which
// emits its own processing.completed event from within its stage
// function instead.
func (p *Pipeline) runStage(ctx context.Context, j *job.Job, name string, percent int, timeout time.Duration, fn func(context.Context) error) error {
	stageCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := fn(stageCtx); err != nil {
		if stageCtx.Err() == context.DeadlineExceeded {
			return ingest.NewError(ingest.CodeParseTimeout, ingest.CategoryTimeout,
				fmt.Sprintf("stage %s timed out", name), err)
		}
		if stageCtx.Err() == context.Canceled {
			return ingest.NewError(ingest.CodeProcessingCancelled, ingest.CategoryCancelled,
				fmt.Sprintf("stage %s cancelled", name), err)
		}
		return err
	}

	j.Stage = name
	j.Progress = percent

	if p.jobs != nil {
		if hbErr := p.jobs.Heartbeat(ctx, j.ID, percent, name, p.leaseFor); hbErr != nil {
			p.logger.Warn("heartbeat failed", "job_id", j.ID.String(), "stage", name, "error", hbErr)
		}
	}

	if name != StagePersist {
		p.publishProgress(ctx, j, name, percent)
	}
	return nil
}

func (p *Pipeline) publishProgress(ctx context.Context, j *job.Job, stage string, percent int) {
	if p.publisher == nil {
		return
	}
	data := eventbus.ProcessingEventData{JobID: j.ID.String(), Kind: j.Kind, Stage: stage, Progress: percent}
	if err := p.publisher.Publish(ctx, eventbus.EventProcessingProgress, j.TenantID.String(), data); err != nil {
		p.logger.Warn("publish processing.progress failed", "job_id", j.ID.String(), "error", err)
	}
}

// identify sniffs the blob's content type and rejects a declared kind
// that does not match what was actually uploaded. Kinds with no
// reliable stdlib sniff signature (see kindContentTypes) are accepted
// without this check.
func (p *Pipeline) identify(ctx context.Context, j *job.Job) error {
	expected, checkable := kindContentTypes[j.Kind]
	if !checkable {
		return nil
	}

	r, err := p.blobs.Open(ctx, j.BlobRef)
	if err != nil {
		return ingest.NewError(ingest.CodeParseFailed, ingest.CategoryTransientIO, "open blob for identify", err)
	}
	defer r.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return ingest.NewError(ingest.CodeParseFailed, ingest.CategoryTransientIO, "read blob head for identify", err)
	}
	sniffed := http.DetectContentType(head[:n])

	for _, want := range expected {
		if bytes.HasPrefix([]byte(sniffed), []byte(want)) {
			return nil
		}
	}
	return ingest.NewError(ingest.CodeInvalidPayload, ingest.CategoryValidation,
		fmt.Sprintf("declared kind %q does not match sniffed content type %q", j.Kind, sniffed), nil)
}

// fieldExtract builds a Record from parser output. Property, inspector,
// and findings extraction are independent passes over the same text,
// so they run concurrently under an errgroup; a producing-zero-findings
// result is success, not an error.
func (p *Pipeline) fieldExtract(ctx context.Context, j *job.Job, out *parser.Output) (*Record, error) {
	if out == nil {
		return nil, ingest.NewError(ingest.CodeProcessingFailed, ingest.CategoryValidation, "no parser output to field-extract", nil)
	}

	record := &Record{JobID: j.ID}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		record.Property = extractProperty(out.RawText)
		return nil
	})
	g.Go(func() error {
		record.Inspector = extractInspector(out.RawText)
		return nil
	})
	g.Go(func() error {
		record.Findings = extractFindings(out.RawText)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, ingest.NewError(ingest.CodeProcessingFailed, ingest.CategoryValidation, "field extraction failed", err)
	}

	return record, nil
}

// persist writes the record, updates the job's Result summary, and
// publishes processing.completed.
func (p *Pipeline) persist(ctx context.Context, j *job.Job, record *Record) error {
	if err := p.records.SaveRecord(ctx, record); err != nil {
		return ingest.NewError(ingest.CodeProcessingFailed, ingest.CategoryTransientIO, "persist record", err)
	}

	count, bySeverity, total := record.Summarize()
	j.Result = &job.Result{FindingsCount: count, BySeverity: bySeverity, EstimatedCostTotal: total}
	j.Stage = StagePersist
	j.Progress = ProgressPersist

	if p.publisher == nil {
		return nil
	}
	payload := completedEventData{
		JobID:              j.ID.String(),
		Kind:               j.Kind,
		FindingsCount:      count,
		BySeverity:         bySeverity,
		EstimatedCostTotal: total,
	}
	if pubErr := p.publisher.Publish(ctx, eventbus.EventProcessingComplete, j.TenantID.String(), payload); pubErr != nil {
		p.logger.Warn("publish processing.completed failed", "job_id", j.ID.String(), "error", pubErr)
	}
	return nil
}

// completedEventData is the payload for processing.completed, carrying
// the same summary a job-status query reports once a job is done.
type completedEventData struct {
	JobID              string         `json:"job_id"`
	Kind               string         `json:"kind"`
	FindingsCount      int            `json:"findings_count"`
	BySeverity         map[string]int `json:"by_severity"`
	EstimatedCostTotal float64        `json:"estimated_cost_total"`
}
