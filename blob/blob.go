// Package blob abstracts the storage location of an uploaded inspection
// document behind a content-addressed locator, so the ingestion core
// never depends on host-specific paths.
package blob

import (
	"context"
	"io"
)

// Ref locates an immutable blob: a content hash plus a backend-specific
// locator (a local path, or an S3 bucket/key). Re-processing a job
// re-reads the same Ref; it is never rewritten.
type Ref struct {
	// Hash is the content hash (sha256, hex-encoded) of the blob.
	Hash string `json:"hash"`

	// Locator is backend-specific: a filesystem path for the local
	// store, or "bucket/key" for the S3 store.
	Locator string `json:"locator"`

	// SizeBytes is the blob size at store time.
	SizeBytes int64 `json:"size_bytes"`
}

// Store persists and retrieves blobs by Ref. Parsers stream from
// Open rather than loading whole documents into memory where possible.
type Store interface {
	// Put stores the contents of r and returns the resulting Ref.
	Put(ctx context.Context, r io.Reader) (Ref, error)

	// Open returns a reader over the blob's bytes. Callers must Close it.
	Open(ctx context.Context, ref Ref) (io.ReadCloser, error)

	// Delete removes a blob. Used only by retention tooling (out of
	// scope for the ingestion core itself).
	Delete(ctx context.Context, ref Ref) error
}
