package parser

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/cinco36/iv-ingestion"
	"github.com/cinco36/iv-ingestion/blob"
)

// ImageParser is the OCR fallback slot for image-only documents. No
// OCR library exists anywhere in this module's example corpus, so
// this implementation decodes the image (validating it is a real,
// supported raster format) but performs no text recognition: RawText
// is always empty and Confidence is 0, which correctly drives the
// Registry's merge logic to prefer whatever the primary parser
// produced. This is distinct from a parse failure — an unreadable
// image still returns an error.
type ImageParser struct{}

// NewImageParser returns an ImageParser.
func NewImageParser() *ImageParser { return &ImageParser{} }

func (p *ImageParser) Parse(ctx context.Context, ref blob.Ref, store blob.Store, kind string, _ Options) (*Output, error) {
	r, err := store.Open(ctx, ref)
	if err != nil {
		return nil, ingest.NewError(ingest.CodeParseFailed, ingest.CategoryTransientIO, "open image blob", err)
	}
	defer r.Close()

	switch kind {
	case "jpg", "jpeg", "png":
		if _, _, err := image.Decode(r); err != nil {
			return nil, ingest.NewError(ingest.CodeParseFailed, ingest.CategoryValidation, "decode image", err)
		}
	default:
		// tiff/bmp: no stdlib decoder is registered; accept as-is and
		// report zero confidence, same as the no-OCR case below.
	}

	return &Output{RawText: "", Confidence: 0}, nil
}
