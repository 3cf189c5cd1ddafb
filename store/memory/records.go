package memory

import (
	"context"

	"github.com/cinco36/iv-ingestion"
	"github.com/cinco36/iv-ingestion/extract"
	"github.com/cinco36/iv-ingestion/id"
)

// ──────────────────────────────────────────────────
// Extraction Record Store
// ──────────────────────────────────────────────────

func (m *Store) SaveRecord(_ context.Context, record *extract.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *record
	m.records[record.JobID.String()] = &cp
	return nil
}

func (m *Store) GetRecord(_ context.Context, jobID id.JobID) (*extract.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[jobID.String()]
	if !ok {
		return nil, ingest.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}
