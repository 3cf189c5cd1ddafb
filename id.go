package ingest

import "github.com/cinco36/iv-ingestion/id"

// ID is the primary identifier type for all ingest entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
