package parser_test

import (
	"bytes"
	"compress/zlib"
	"context"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/cinco36/iv-ingestion/blob"
	"github.com/cinco36/iv-ingestion/parser"
)

func newStore(t *testing.T) *blob.LocalStore {
	t.Helper()
	return blob.NewLocalStore(t.TempDir())
}

func put(t *testing.T, store *blob.LocalStore, data []byte) blob.Ref {
	t.Helper()
	ref, err := store.Put(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	return ref
}

func TestRegistry_UnsupportedKind(t *testing.T) {
	reg := parser.NewRegistry(nil)
	reg.Register(parser.NewCSVParser(), "csv")

	_, err := reg.Parse(context.Background(), blob.Ref{}, nil, "exe", parser.Options{})
	if err == nil {
		t.Fatal("expected error for unsupported kind")
	}
}

func TestRegistry_DispatchesToRegisteredParser(t *testing.T) {
	store := newStore(t)
	ref := put(t, store, []byte("a,b,c\n1,2,3\n"))

	reg := parser.NewRegistry(nil)
	reg.Register(parser.NewCSVParser(), "csv")

	out, err := reg.Parse(context.Background(), ref, store, "csv", parser.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.Contains(out.RawText, "1 | 2 | 3") {
		t.Errorf("expected CSV row in raw text, got %q", out.RawText)
	}
}

func TestRegistry_ChainsFallbackBelowThreshold(t *testing.T) {
	store := newStore(t)
	// Primary parser output will be short; fallback must run.
	ref := put(t, store, []byte("hi"))

	reg := parser.NewRegistry(parser.NewCSVParser()).WithMinTextLength(100)
	reg.Register(parser.NewCSVParser(), "csv")

	out, err := reg.Parse(context.Background(), ref, store, "csv", parser.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	// Both primary and fallback ran against the same short blob; the
	// merged text should still contain the parsed row.
	if !strings.Contains(out.RawText, "hi") {
		t.Errorf("expected fallback-merged text to contain original content, got %q", out.RawText)
	}
}

func TestXLSXParser_ExtractsCells(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Inspector: Jane Smith")
	f.SetCellValue("Sheet1", "A2", "critical electrical hazard")

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}

	store := newStore(t)
	ref := put(t, store, buf.Bytes())

	out, err := parser.NewXLSXParser().Parse(context.Background(), ref, store, "xlsx", parser.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.Contains(out.RawText, "Jane Smith") {
		t.Errorf("expected cell text in output, got %q", out.RawText)
	}
	if !strings.Contains(out.RawText, "critical electrical hazard") {
		t.Errorf("expected second row in output, got %q", out.RawText)
	}
}

func TestCSVParser_JoinsRowsWithPipe(t *testing.T) {
	store := newStore(t)
	ref := put(t, store, []byte("name,value\nfoo,1\n"))

	out, err := parser.NewCSVParser().Parse(context.Background(), ref, store, "csv", parser.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.Contains(out.RawText, "foo | 1") {
		t.Errorf("expected joined row, got %q", out.RawText)
	}
}

func TestDocParser_RecoversPrintableRuns(t *testing.T) {
	payload := append([]byte{0x00, 0x01, 0x02}, []byte("Inspector License NY789012")...)
	payload = append(payload, 0x00, 0x00)

	store := newStore(t)
	ref := put(t, store, payload)

	out, err := parser.NewDocParser().Parse(context.Background(), ref, store, "doc", parser.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.Contains(out.RawText, "Inspector License NY789012") {
		t.Errorf("expected recovered text, got %q", out.RawText)
	}
}

func buildFakePDF(t *testing.T, content string) []byte {
	t.Helper()
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write([]byte(content)); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}

	var pdf bytes.Buffer
	pdf.WriteString("%PDF-1.4\n1 0 obj\n<< /Length ")
	pdf.WriteString(strings.TrimSpace(""))
	pdf.WriteString("0 >>\nstream\n")
	pdf.Write(compressed.Bytes())
	pdf.WriteString("\nendstream\nendobj\n%%EOF")
	return pdf.Bytes()
}

func TestPDFParser_ExtractsTextOperators(t *testing.T) {
	raw := buildFakePDF(t, `(Address: 123 Main St, Anytown, CA 90210) Tj`)

	store := newStore(t)
	ref := put(t, store, raw)

	out, err := parser.NewPDFParser().Parse(context.Background(), ref, store, "pdf", parser.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.Contains(out.RawText, "123 Main St") {
		t.Errorf("expected address text extracted, got %q", out.RawText)
	}
}

func TestImageParser_DecodesValidImageZeroConfidence(t *testing.T) {
	// A 1x1 PNG.
	png := []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x02, 0x00, 0x00, 0x00, 0x90, 0x77, 0x53,
		0xde, 0x00, 0x00, 0x00, 0x0c, 0x49, 0x44, 0x41,
		0x54, 0x08, 0xd7, 0x63, 0xf8, 0xcf, 0xc0, 0x00,
		0x00, 0x03, 0x01, 0x01, 0x00, 0x18, 0xdd, 0x8d,
		0xb0, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e,
		0x44, 0xae, 0x42, 0x60, 0x82,
	}

	store := newStore(t)
	ref := put(t, store, png)

	out, err := parser.NewImageParser().Parse(context.Background(), ref, store, "png", parser.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if out.Confidence != 0 {
		t.Errorf("expected zero confidence (no OCR), got %v", out.Confidence)
	}
}

func TestImageParser_RejectsCorruptImage(t *testing.T) {
	store := newStore(t)
	ref := put(t, store, []byte("not a real png"))

	_, err := parser.NewImageParser().Parse(context.Background(), ref, store, "png", parser.Options{})
	if err == nil {
		t.Fatal("expected decode error for corrupt image")
	}
}
