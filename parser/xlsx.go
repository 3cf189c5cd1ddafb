package parser

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/cinco36/iv-ingestion"
	"github.com/cinco36/iv-ingestion/blob"
)

// XLSXParser extracts cell text from every sheet of a spreadsheet
// document via excelize. Each sheet's rows become a fragment; RawText
// is every cell joined in sheet/row/column order.
type XLSXParser struct{}

// NewXLSXParser returns an XLSXParser.
func NewXLSXParser() *XLSXParser { return &XLSXParser{} }

func (p *XLSXParser) Parse(ctx context.Context, ref blob.Ref, store blob.Store, _ string, _ Options) (*Output, error) {
	r, err := store.Open(ctx, ref)
	if err != nil {
		return nil, ingest.NewError(ingest.CodeParseFailed, ingest.CategoryTransientIO, "open spreadsheet blob", err)
	}
	defer r.Close()

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, ingest.NewError(ingest.CodeParseFailed, ingest.CategoryValidation, "decode spreadsheet", err)
	}
	defer f.Close()

	var text strings.Builder
	var fragments []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		var sheetText strings.Builder
		for _, row := range rows {
			line := strings.Join(row, " | ")
			sheetText.WriteString(line)
			sheetText.WriteByte('\n')
		}
		fragments = append(fragments, sheetText.String())
		text.WriteString(sheetText.String())
	}

	return &Output{
		RawText:    text.String(),
		Fragments:  fragments,
		Confidence: 0.8,
	}, nil
}

// CSVParser extracts text from a comma-separated-values document.
// csv has no third-party counterpart in this ecosystem beyond stdlib,
// which already models it exactly.
type CSVParser struct{}

// NewCSVParser returns a CSVParser.
func NewCSVParser() *CSVParser { return &CSVParser{} }

func (p *CSVParser) Parse(ctx context.Context, ref blob.Ref, store blob.Store, _ string, _ Options) (*Output, error) {
	r, err := store.Open(ctx, ref)
	if err != nil {
		return nil, ingest.NewError(ingest.CodeParseFailed, ingest.CategoryTransientIO, "open csv blob", err)
	}
	defer r.Close()

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // inspection exports are often ragged; don't reject on column-count mismatch
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, ingest.NewError(ingest.CodeParseFailed, ingest.CategoryValidation, "decode csv", err)
	}

	var text strings.Builder
	for _, row := range rows {
		text.WriteString(strings.Join(row, " | "))
		text.WriteByte('\n')
	}

	return &Output{RawText: text.String(), Confidence: 0.85}, nil
}

// DocParser handles legacy word-processor formats (doc/docx) for which
// no parsing library exists anywhere in this module's dependency
// corpus. It recovers printable ASCII runs from the raw bytes — a
// crude approximation, not true document parsing — and reports low
// confidence accordingly.
type DocParser struct{}

// NewDocParser returns a DocParser.
func NewDocParser() *DocParser { return &DocParser{} }

func (p *DocParser) Parse(ctx context.Context, ref blob.Ref, store blob.Store, _ string, _ Options) (*Output, error) {
	r, err := store.Open(ctx, ref)
	if err != nil {
		return nil, ingest.NewError(ingest.CodeParseFailed, ingest.CategoryTransientIO, "open document blob", err)
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, ingest.NewError(ingest.CodeParseFailed, ingest.CategoryTransientIO, "read document blob", err)
	}

	text := printableRuns(raw)
	confidence := 0.3
	if text == "" {
		confidence = 0.0
	}

	return &Output{RawText: text, Confidence: confidence}, nil
}

// printableRuns extracts runs of 4+ consecutive printable ASCII bytes,
// the simplest signal of embedded text in an otherwise binary format.
func printableRuns(raw []byte) string {
	var out bytes.Buffer
	var run bytes.Buffer
	flush := func() {
		if run.Len() >= 4 {
			out.Write(run.Bytes())
			out.WriteByte('\n')
		}
		run.Reset()
	}
	for _, b := range raw {
		if b >= 0x20 && b < 0x7f {
			run.WriteByte(b)
		} else {
			flush()
		}
	}
	flush()
	return out.String()
}
