package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cinco36/iv-ingestion"
	"github.com/cinco36/iv-ingestion/blob"
	"github.com/cinco36/iv-ingestion/id"
	"github.com/cinco36/iv-ingestion/job"
)

// Submit persists a new job in the queued state.
func (s *Store) Submit(ctx context.Context, j *job.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingestion_jobs (
			id, tenant_id, kind, blob_hash, blob_locator, blob_size_bytes,
			state, priority, stage, progress, attempts, max_attempts, worker_id,
			submitted_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12, $13,
			$14, $15, $15
		)`,
		j.ID.String(), j.TenantID.String(), j.Kind,
		j.BlobRef.Hash, j.BlobRef.Locator, j.BlobRef.SizeBytes,
		string(job.StateQueued), j.Priority, j.Stage, j.Progress, j.Attempts, j.MaxAttempts, j.WorkerID.String(),
		j.SubmittedAt, time.Now().UTC(),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ingest.ErrJobAlreadyExists
		}
		return fmt.Errorf("postgres: submit job: %w", err)
	}
	return nil
}

// Acquire claims up to limit queued (or due-for-retry) jobs using
// SELECT ... FOR UPDATE SKIP LOCKED, strictly ordered by (priority
// DESC, next_attempt_at ASC NULLS FIRST, submitted_at ASC, id ASC).
func (s *Store) Acquire(ctx context.Context, workerID id.WorkerID, limit int, leaseFor time.Duration) ([]*job.Job, error) {
	now := time.Now().UTC()
	leaseExpiresAt := now.Add(leaseFor)

	rows, err := s.pool.Query(ctx, `
		WITH claimed AS (
			UPDATE ingestion_jobs
			SET state = 'active',
			    worker_id = $1,
			    progress = 0,
			    stage = '',
			    first_started_at = COALESCE(first_started_at, $2),
			    last_started_at = $2,
			    next_attempt_at = NULL,
			    lease_expires_at = $3,
			    updated_at = $2
			WHERE id IN (
				SELECT id FROM ingestion_jobs
				WHERE state = 'queued'
				  AND (next_attempt_at IS NULL OR next_attempt_at <= $2)
				ORDER BY priority DESC, next_attempt_at ASC NULLS FIRST, submitted_at ASC, id ASC
				FOR UPDATE SKIP LOCKED
				LIMIT $4
			)
			RETURNING `+jobColumns+`
		)
		SELECT * FROM claimed ORDER BY priority DESC, submitted_at ASC, id ASC`,
		workerID.String(), now, leaseExpiresAt, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: acquire jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// Heartbeat updates progress/stage for an active job with an
// unexpired lease and extends the lease.
func (s *Store) Heartbeat(ctx context.Context, jobID id.JobID, progress int, stage string, leaseFor time.Duration) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE ingestion_jobs
		SET progress = $2, stage = $3, lease_expires_at = $4, updated_at = $5
		WHERE id = $1 AND state = 'active' AND lease_expires_at > $5`,
		jobID.String(), progress, stage, now.Add(leaseFor), now,
	)
	if err != nil {
		return fmt.Errorf("postgres: heartbeat job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ingest.ErrInvalidState
	}
	return nil
}

// Complete transitions an active job to completed.
func (s *Store) Complete(ctx context.Context, jobID id.JobID, result *job.Result) error {
	now := time.Now().UTC()

	var bySeverity []byte
	if result != nil {
		var err error
		bySeverity, err = json.Marshal(result.BySeverity)
		if err != nil {
			return fmt.Errorf("postgres: marshal result.by_severity: %w", err)
		}
	}

	var findingsCount *int
	var estimatedCostTotal *float64
	if result != nil {
		findingsCount = &result.FindingsCount
		estimatedCostTotal = &result.EstimatedCostTotal
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE ingestion_jobs
		SET state = 'completed', progress = 100, finished_at = $2,
		    lease_expires_at = NULL,
		    result_findings_count = $3, result_by_severity = $4::jsonb, result_estimated_cost_total = $5,
		    updated_at = $2
		WHERE id = $1 AND state NOT IN ('completed', 'failed', 'dead')`,
		jobID.String(), now, findingsCount, bySeverity, estimatedCostTotal,
	)
	if err != nil {
		return fmt.Errorf("postgres: complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ingest.ErrInvalidState
	}
	return nil
}

// Fail records a failure for an active job. If retryable and attempts
// remain, the job returns to queued with next_attempt_at set to
// now+delay; if retryable and attempts are exhausted, it moves to
// dead; if not retryable, it moves directly to failed.
func (s *Store) Fail(ctx context.Context, jobID id.JobID, cause *ingest.Error, retryable bool, delay time.Duration) error {
	now := time.Now().UTC()

	var code, category, message string
	if cause != nil {
		code, category, message = string(cause.Code), string(cause.Category), cause.Message
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: fail job: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is a no-op after commit

	var attempts, maxAttempts int
	var state string
	err = tx.QueryRow(ctx,
		`SELECT attempts, max_attempts, state FROM ingestion_jobs WHERE id = $1 FOR UPDATE`,
		jobID.String(),
	).Scan(&attempts, &maxAttempts, &state)
	if err != nil {
		if isNoRows(err) {
			return ingest.ErrJobNotFound
		}
		return fmt.Errorf("postgres: fail job: lookup: %w", err)
	}
	if state == "completed" || state == "failed" || state == "dead" {
		return ingest.ErrInvalidState
	}

	var (
		nextState     string
		nextAttemptAt *time.Time
	)
	switch {
	case !retryable:
		nextState = "failed"
	case attempts+1 >= maxAttempts:
		nextState = "dead"
	default:
		nextState = "queued"
		next := now.Add(delay)
		nextAttemptAt = &next
	}

	var finishedAt *time.Time
	if nextState != "queued" {
		finishedAt = &now
	}

	_, err = tx.Exec(ctx, `
		UPDATE ingestion_jobs
		SET state = $2, attempts = attempts + 1,
		    error_code = $3, error_category = $4, error_message = $5,
		    next_attempt_at = $6, finished_at = $7, lease_expires_at = NULL,
		    updated_at = $8
		WHERE id = $1`,
		jobID.String(), nextState, code, category, message,
		nextAttemptAt, finishedAt, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: fail job: update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: fail job: commit: %w", err)
	}
	return nil
}

// Get retrieves a job by ID.
func (s *Store) Get(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM ingestion_jobs WHERE id = $1`, jobID.String())

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, ingest.ErrJobNotFound
		}
		return nil, fmt.Errorf("postgres: get job: %w", err)
	}
	return j, nil
}

// List returns jobs matching the given filter, ordered by SubmittedAt ascending.
func (s *Store) List(ctx context.Context, opts job.ListOpts) ([]*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM ingestion_jobs WHERE 1=1`
	args := []any{}
	argIdx := 1

	if !opts.TenantID.IsNil() {
		query += fmt.Sprintf(" AND tenant_id = $%d", argIdx)
		args = append(args, opts.TenantID.String())
		argIdx++
	}
	if opts.State != "" {
		query += fmt.Sprintf(" AND state = $%d", argIdx)
		args = append(args, string(opts.State))
		argIdx++
	}

	query += " ORDER BY submitted_at ASC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ReapExpiredLeases returns active jobs whose lease expired without a heartbeat.
func (s *Store) ReapExpiredLeases(ctx context.Context) ([]*job.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM ingestion_jobs WHERE state = 'active' AND lease_expires_at <= $1`,
		time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: reap expired leases: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// Count returns the number of jobs matching the given options.
func (s *Store) Count(ctx context.Context, opts job.CountOpts) (int64, error) {
	query := `SELECT COUNT(*) FROM ingestion_jobs WHERE 1=1`
	args := []any{}
	argIdx := 1

	if !opts.TenantID.IsNil() {
		query += fmt.Sprintf(" AND tenant_id = $%d", argIdx)
		args = append(args, opts.TenantID.String())
		argIdx++
	}
	if opts.State != "" {
		query += fmt.Sprintf(" AND state = $%d", argIdx)
		args = append(args, string(opts.State))
		argIdx++
	}

	var count int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count jobs: %w", err)
	}
	return count, nil
}

const jobColumns = `
	id, tenant_id, kind, blob_hash, blob_locator, blob_size_bytes,
	state, priority, stage, progress, attempts, max_attempts, worker_id,
	submitted_at, first_started_at, last_started_at, finished_at, next_attempt_at,
	result_findings_count, result_by_severity, result_estimated_cost_total,
	error_code, error_category, error_message,
	created_at, updated_at`

// jobRow is the shape scanned directly off jobColumns.
type jobRow interface {
	Scan(dest ...any) error
}

func scanJob(row jobRow) (*job.Job, error) {
	var (
		idStr, tenantIDStr, workerIDStr string
		blobHash, blobLocator           string
		blobSizeBytes                   int64
		state                           string
		findingsCount                   *int
		bySeverity                      []byte
		estimatedCostTotal              *float64
		errCode, errCategory, errMsg    *string
		j                               job.Job
	)

	err := row.Scan(
		&idStr, &tenantIDStr, &j.Kind, &blobHash, &blobLocator, &blobSizeBytes,
		&state, &j.Priority, &j.Stage, &j.Progress, &j.Attempts, &j.MaxAttempts, &workerIDStr,
		&j.SubmittedAt, &j.FirstStartedAt, &j.LastStartedAt, &j.FinishedAt, &j.NextAttemptAt,
		&findingsCount, &bySeverity, &estimatedCostTotal,
		&errCode, &errCategory, &errMsg,
		&j.Entity.CreatedAt, &j.Entity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsedID, err := id.ParseJobID(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse job id %q: %w", idStr, err)
	}
	j.ID = parsedID

	tenantID, err := id.Parse(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("parse tenant id %q: %w", tenantIDStr, err)
	}
	j.TenantID = tenantID

	if workerIDStr != "" {
		workerID, err := id.ParseWorkerID(workerIDStr)
		if err != nil {
			return nil, fmt.Errorf("parse worker id %q: %w", workerIDStr, err)
		}
		j.WorkerID = workerID
	}

	j.State = job.State(state)
	j.BlobRef = blob.Ref{Hash: blobHash, Locator: blobLocator, SizeBytes: blobSizeBytes}

	if findingsCount != nil {
		var severity map[string]int
		if len(bySeverity) > 0 {
			if err := json.Unmarshal(bySeverity, &severity); err != nil {
				return nil, fmt.Errorf("unmarshal result.by_severity: %w", err)
			}
		}
		cost := 0.0
		if estimatedCostTotal != nil {
			cost = *estimatedCostTotal
		}
		j.Result = &job.Result{
			FindingsCount:      *findingsCount,
			BySeverity:         severity,
			EstimatedCostTotal: cost,
		}
	}

	if errCode != nil {
		j.Error = &ingest.Error{
			Code:     ingest.Code(*errCode),
			Category: ingest.Category(*errCategory),
			Message:  *errMsg,
		}
	}

	return &j, nil
}

func collectJobs(rows pgx.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate job rows: %w", err)
	}
	return jobs, nil
}
