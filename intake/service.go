package intake

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cinco36/iv-ingestion"
	"github.com/cinco36/iv-ingestion/blob"
	"github.com/cinco36/iv-ingestion/ext"
	"github.com/cinco36/iv-ingestion/id"
	"github.com/cinco36/iv-ingestion/job"
	"github.com/cinco36/iv-ingestion/ratelimit"
)

// Request describes a new document submission.
type Request struct {
	TenantID id.ID
	Kind     string
	Tier     ratelimit.Tier
	Body     io.Reader

	// MaxAttempts and Priority override the job's defaults when
	// non-zero; zero means take job.DefaultOptions().
	MaxAttempts int
	Priority    int
}

// Service is the composing entry point new documents pass through:
// rate limiting, blob storage, then job persistence, in that order, so
// a denied or failed submission never reaches the store.
type Service struct {
	limiter    *ratelimit.Limiter
	blobs      blob.Store
	jobs       job.Store
	extensions *ext.Registry
	logger     *slog.Logger
}

// NewService builds an intake Service. extensions may be nil, in which
// case denial hooks are simply not fired.
func NewService(limiter *ratelimit.Limiter, blobs blob.Store, jobs job.Store, extensions *ext.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{limiter: limiter, blobs: blobs, jobs: jobs, extensions: extensions, logger: logger}
}

// Submit admits req against the tenant's quota, stores its body, and
// persists a queued job. Returns ingest.ErrRateLimited if the tenant is
// over quota; the caller is expected to map that to a 429 (spec.md §6)
// at whatever transport layer it sits behind.
func (s *Service) Submit(ctx context.Context, req Request) (*job.Job, error) {
	key := ratelimit.Key{TenantID: req.TenantID.String(), Bucket: ratelimit.BucketFiles}
	decision, err := s.limiter.Admit(ctx, key, req.Tier)
	if err != nil {
		s.logger.Warn("intake: admission check failed, decision stands",
			"tenant_id", req.TenantID, "error", err)
	}
	if !decision.Allowed {
		if s.extensions != nil {
			s.extensions.EmitRateLimitDenied(ctx, req.TenantID, string(ratelimit.BucketFiles))
		}
		return nil, ingest.ErrRateLimited
	}

	ref, err := s.blobs.Put(ctx, req.Body)
	if err != nil {
		return nil, fmt.Errorf("intake: store blob: %w", err)
	}

	opts := job.DefaultOptions()
	if req.MaxAttempts > 0 {
		opts.MaxAttempts = req.MaxAttempts
	}
	if req.Priority != 0 {
		opts.Priority = req.Priority
	}

	j := &job.Job{
		Entity:      ingest.NewEntity(),
		ID:          id.NewJobID(),
		TenantID:    req.TenantID,
		Kind:        req.Kind,
		BlobRef:     ref,
		State:       job.StateQueued,
		Priority:    opts.Priority,
		MaxAttempts: opts.MaxAttempts,
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.jobs.Submit(ctx, j); err != nil {
		return nil, fmt.Errorf("intake: submit job: %w", err)
	}

	return j, nil
}
