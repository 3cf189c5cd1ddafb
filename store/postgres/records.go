package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cinco36/iv-ingestion"
	"github.com/cinco36/iv-ingestion/extract"
	"github.com/cinco36/iv-ingestion/id"
)

// SaveRecord persists the canonical extraction output for jobID. A
// record is written exactly once; a second call for the same job is a
// caller bug and fails on the primary key.
func (s *Store) SaveRecord(ctx context.Context, record *extract.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("postgres: marshal record: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO ingestion_records (job_id, data) VALUES ($1, $2::jsonb)`,
		record.JobID.String(), data,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("postgres: save record: %w", ingest.NewError(
				ingest.CodeInvalidTransition, ingest.CategoryPolicy,
				"record already exists for job", err))
		}
		return fmt.Errorf("postgres: save record: %w", err)
	}
	return nil
}

// GetRecord retrieves the extraction record for jobID.
func (s *Store) GetRecord(ctx context.Context, jobID id.JobID) (*extract.Record, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM ingestion_records WHERE job_id = $1`, jobID.String(),
	).Scan(&data)
	if err != nil {
		if isNoRows(err) {
			return nil, ingest.ErrRecordNotFound
		}
		return nil, fmt.Errorf("postgres: get record: %w", err)
	}

	var record extract.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal record: %w", err)
	}
	return &record, nil
}
