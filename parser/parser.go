// Package parser defines the pluggable document-parsing contract and a
// kind-keyed Registry with OCR fallback chaining. Parsers are treated
// as external collaborators: this package owns only the contract and
// dispatch, not extraction accuracy.
package parser

import (
	"context"

	"github.com/cinco36/iv-ingestion/blob"
)

// Options configures a single Parse invocation.
type Options struct {
	// MinTextLength is the raw-text-length threshold below which the
	// Registry chains a fallback (OCR) parser over the same blob.
	// Zero means "use the Registry default".
	MinTextLength int
}

// Output is a parser's best-effort extraction result: raw text, optional
// per-sheet/per-page fragments, a map of named structured fragments
// (e.g. "property", "inspector", "findings" pre-fragments used by the
// field-extract stage), and a self-reported confidence in [0,1].
type Output struct {
	RawText    string
	Fragments  []string
	Structured map[string]string
	Confidence float64
}

// Parser extracts text and structured fragments from a blob of a
// declared kind. Implementations must not mutate the input and should
// stream large blobs rather than buffering the whole thing where
// possible.
type Parser interface {
	Parse(ctx context.Context, ref blob.Ref, store blob.Store, kind string, opts Options) (*Output, error)
}
