package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cinco36/iv-ingestion"
	"github.com/cinco36/iv-ingestion/blob"
	"github.com/cinco36/iv-ingestion/dlq"
	"github.com/cinco36/iv-ingestion/id"
)

// PushDLQ adds a failed job entry to the dead letter queue.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingestion_dlq (
			id, job_id, tenant_id, kind, blob_hash, blob_locator, blob_size_bytes,
			priority, error, code, attempts, max_attempts, failed_at, replayed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		entry.ID.String(), entry.JobID.String(), entry.TenantID.String(), entry.Kind,
		entry.BlobRef.Hash, entry.BlobRef.Locator, entry.BlobRef.SizeBytes,
		entry.Priority, entry.Error, entry.Code, entry.Attempts, entry.MaxAttempts,
		entry.FailedAt, entry.ReplayedAt, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns DLQ entries matching the given options.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	query := `
		SELECT id, job_id, tenant_id, kind, blob_hash, blob_locator, blob_size_bytes,
		       priority, error, code, attempts, max_attempts, failed_at, replayed_at, created_at
		FROM ingestion_dlq
		WHERE 1=1`
	args := []any{}
	argIdx := 1

	if !opts.TenantID.IsNil() {
		query += fmt.Sprintf(" AND tenant_id = $%d", argIdx)
		args = append(args, opts.TenantID.String())
		argIdx++
	}

	query += " ORDER BY failed_at ASC"

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
		return nil, fmt.Errorf("postgres: list dlq: %w", err)
	}
	defer rows.Close()

	var entries []*dlq.Entry
	for rows.Next() {
		e, scanErr := scanDLQ(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("postgres: scan dlq row: %w", scanErr)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate dlq rows: %w", err)
	}
	return entries, nil
}

// GetDLQ retrieves a DLQ entry by ID.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, job_id, tenant_id, kind, blob_hash, blob_locator, blob_size_bytes,
		       priority, error, code, attempts, max_attempts, failed_at, replayed_at, created_at
		FROM ingestion_dlq WHERE id = $1`,
		entryID.String(),
	)

	e, err := scanDLQ(row)
	if err != nil {
		if isNoRows(err) {
			return nil, ingest.ErrDLQNotFound
		}
		return nil, fmt.Errorf("postgres: get dlq: %w", err)
	}
	return e, nil
}

// ReplayDLQ marks a DLQ entry as replayed.
func (s *Store) ReplayDLQ(ctx context.Context, entryID id.DLQID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE ingestion_dlq SET replayed_at = $2 WHERE id = $1`,
		entryID.String(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: replay dlq: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ingest.ErrDLQNotFound
	}
	return nil
}

// PurgeDLQ removes DLQ entries with FailedAt before the given time.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM ingestion_dlq WHERE failed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: purge dlq: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountDLQ returns the total number of entries in the dead letter queue.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ingestion_dlq`).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count dlq: %w", err)
	}
	return count, nil
}

func scanDLQ(row pgx.Row) (*dlq.Entry, error) {
	var (
		e                      dlq.Entry
		idStr, jobIDStr        string
		tenantIDStr            string
		blobHash, blobLocator  string
		blobSizeBytes          int64
	)

	err := row.Scan(
		&idStr, &jobIDStr, &tenantIDStr, &e.Kind, &blobHash, &blobLocator, &blobSizeBytes,
		&e.Priority, &e.Error, &e.Code, &e.Attempts, &e.MaxAttempts, &e.FailedAt, &e.ReplayedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsedID, err := id.ParseDLQID(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse dlq id %q: %w", idStr, err)
	}
	e.ID = parsedID

	parsedJobID, err := id.ParseJobID(jobIDStr)
	if err != nil {
		return nil, fmt.Errorf("parse job id %q: %w", jobIDStr, err)
	}
	e.JobID = parsedJobID

	tenantID, err := id.Parse(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("parse tenant id %q: %w", tenantIDStr, err)
	}
	e.TenantID = tenantID
	e.BlobRef = blob.Ref{Hash: blobHash, Locator: blobLocator, SizeBytes: blobSizeBytes}

	return &e, nil
}
