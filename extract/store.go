package extract

import (
	"context"

	"github.com/cinco36/iv-ingestion/id"
)

// RecordStore persists the canonical output of the persist stage. A
// record is written exactly once, atomically, by a successful
// pipeline run; Get is used to serve result queries after completion.
type RecordStore interface {
	SaveRecord(ctx context.Context, record *Record) error
	GetRecord(ctx context.Context, jobID id.JobID) (*Record, error)
}
