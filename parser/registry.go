package parser

import (
	"context"

	"github.com/cinco36/iv-ingestion"
	"github.com/cinco36/iv-ingestion/blob"
)

// DefaultMinTextLength is the raw-text-length threshold below which
// the Registry chains a fallback parser over the same blob.
const DefaultMinTextLength = 64

// Registry maps a declared kind to its primary Parser, with an
// optional fallback parser chained when the primary's output falls
// below MinTextLength (e.g. a scanned, image-heavy PDF).
type Registry struct {
	parsers       map[string]Parser
	fallback      Parser
	minTextLength int
}

// NewRegistry returns an empty Registry. fallback, if non-nil, is
// chained after any primary parser whose raw text length is below
// MinTextLength; pass nil to disable fallback chaining.
func NewRegistry(fallback Parser) *Registry {
	return &Registry{
		parsers:       make(map[string]Parser),
		fallback:      fallback,
		minTextLength: DefaultMinTextLength,
	}
}

// WithMinTextLength overrides the default fallback threshold.
func (r *Registry) WithMinTextLength(n int) *Registry {
	r.minTextLength = n
	return r
}

// Register associates a Parser with one or more declared kinds.
func (r *Registry) Register(p Parser, kinds ...string) {
	for _, k := range kinds {
		r.parsers[k] = p
	}
}

// Parse dispatches to the parser registered for kind. An unrecognized
// kind returns ingest.CodeUnsupportedKind without invoking any parser.
// If the primary parser's output text falls below the configured
// threshold, the fallback parser (if set) is run on the same blob and
// the two outputs are merged, preferring the higher-confidence
// fragment per field.
func (r *Registry) Parse(ctx context.Context, ref blob.Ref, store blob.Store, kind string, opts Options) (*Output, error) {
	p, ok := r.parsers[kind]
	if !ok {
		return nil, ingest.NewError(ingest.CodeUnsupportedKind, ingest.CategoryValidation,
			"unsupported document kind: "+kind, nil)
	}

	if opts.MinTextLength <= 0 {
		opts.MinTextLength = r.minTextLength
	}

	out, err := p.Parse(ctx, ref, store, kind, opts)
	if err != nil {
		return nil, err
	}

	if r.fallback != nil && len(out.RawText) < opts.MinTextLength {
		fbOut, fbErr := r.fallback.Parse(ctx, ref, store, kind, opts)
		if fbErr == nil {
			out = merge(out, fbOut)
		}
	}

	return out, nil
}

// merge combines two parser outputs, preferring the higher-confidence
// fragment per field and concatenating raw text/fragments.
func merge(primary, secondary *Output) *Output {
	out := &Output{
		RawText:    primary.RawText,
		Fragments:  append(append([]string{}, primary.Fragments...), secondary.Fragments...),
		Structured: make(map[string]string, len(primary.Structured)+len(secondary.Structured)),
		Confidence: primary.Confidence,
	}
	if len(secondary.RawText) > len(primary.RawText) {
		out.RawText = primary.RawText + "\n" + secondary.RawText
	}
	for k, v := range primary.Structured {
		out.Structured[k] = v
	}
	if secondary.Confidence > primary.Confidence {
		for k, v := range secondary.Structured {
			out.Structured[k] = v
		}
		if out.Confidence < secondary.Confidence {
			out.Confidence = secondary.Confidence
		}
	} else {
		for k, v := range secondary.Structured {
			if _, exists := out.Structured[k]; !exists {
				out.Structured[k] = v
			}
		}
	}
	return out
}
