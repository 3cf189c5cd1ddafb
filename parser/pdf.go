package parser

import (
	"bytes"
	"compress/zlib"
	"context"
	"io"
	"regexp"

	"github.com/cinco36/iv-ingestion"
	"github.com/cinco36/iv-ingestion/blob"
)

// textOperator matches the literal-string operand of a PDF text-showing
// operator: "(...)" Tj or "(...) (...) ... ]" TJ. This is a best-effort
// extraction — it does not build a content-stream tokenizer, decode
// CMaps, or honor text layout; it recovers literal string operands in
// document order, which is sufficient for the pattern-matching done
// downstream in the field-extract stage.
var textOperator = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*(?:Tj|TJ)?`)

var escapeSeq = regexp.MustCompile(`\\([()\\nrt])`)

// PDFParser extracts literal text strings from a PDF's content
// streams. It has no layout or CMap awareness; confidence reflects
// that limitation.
type PDFParser struct{}

// NewPDFParser returns a PDFParser.
func NewPDFParser() *PDFParser { return &PDFParser{} }

func (p *PDFParser) Parse(ctx context.Context, ref blob.Ref, store blob.Store, _ string, _ Options) (*Output, error) {
	r, err := store.Open(ctx, ref)
	if err != nil {
		return nil, ingest.NewError(ingest.CodeParseFailed, ingest.CategoryTransientIO, "open pdf blob", err)
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, ingest.NewError(ingest.CodeParseFailed, ingest.CategoryTransientIO, "read pdf blob", err)
	}

	var buf bytes.Buffer
	for _, stream := range extractStreams(raw) {
		buf.Write(stream)
		buf.WriteByte('\n')
	}

	text := extractText(buf.Bytes())
	if text == "" {
		// Streams may not have been FlateDecode-compressed; fall back
		// to scanning the raw document body directly.
		text = extractText(raw)
	}

	confidence := 0.6
	if text == "" {
		confidence = 0.0
	}

	return &Output{
		RawText:    text,
		Confidence: confidence,
	}, nil
}

// extractStreams finds every "stream ... endstream" block and
// FlateDecode-decompresses it, skipping blocks that fail to decode
// (binary image/font data, typically).
func extractStreams(raw []byte) [][]byte {
	var out [][]byte
	const (
		startTok = "stream"
		endTok   = "endstream"
	)

	pos := 0
	for {
		si := bytes.Index(raw[pos:], []byte(startTok))
		if si < 0 {
			break
		}
		si += pos + len(startTok)
		// Skip the CRLF/LF immediately following the "stream" keyword.
		for si < len(raw) && (raw[si] == '\r' || raw[si] == '\n') {
			si++
		}
		ei := bytes.Index(raw[si:], []byte(endTok))
		if ei < 0 {
			break
		}
		ei += si

		body := raw[si:ei]
		if decoded, err := inflate(body); err == nil {
			out = append(out, decoded)
		}
		pos = ei + len(endTok)
	}
	return out
}

func inflate(b []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func extractText(stream []byte) string {
	var buf bytes.Buffer
	for _, m := range textOperator.FindAllSubmatch(stream, -1) {
		s := escapeSeq.ReplaceAllFunc(m[1], func(esc []byte) []byte {
			switch esc[1] {
			case 'n':
				return []byte("\n")
			case 'r':
				return []byte("\r")
			case 't':
				return []byte("\t")
			default:
				return esc[1:2]
			}
		})
		buf.Write(s)
		buf.WriteByte(' ')
	}
	return buf.String()
}
