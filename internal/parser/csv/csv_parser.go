// Package csv reads a comma-delimited source file into a records.Dataset.
// Header names are normalized (BOM stripped, whitespace trimmed, lowercased)
// before any downstream stage sees them; everything else is left to
// encoding/csv. The pipeline processes one bounded batch per invocation, so
// the parser materializes the whole file rather than streaming.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/records"
)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// Options configures the CSV parser behavior. All fields are optional;
// sensible defaults are applied when a field is zero.
type Options struct {
	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing space from each field value. Header
	// cells are always trimmed regardless of this setting.
	TrimSpace bool
}

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs, but Parser itself is not concurrency-safe.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// ParseFile opens path and delegates to Parse.
func (p *Parser) ParseFile(path string) (records.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return records.Dataset{}, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()
	return p.Parse(f)
}

// Parse reads the entire input into a Dataset. The first row is the header;
// header names are trimmed and lowercased. Every data cell arrives as a
// string; empty cells become nil so that "missing" is distinguishable from
// the empty string downstream.
func (p *Parser) Parse(r io.Reader) (records.Dataset, error) {
	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.FieldsPerRecord = -1 // enforce width against the header ourselves

	header, err := cr.Read()
	if err == io.EOF {
		return records.Dataset{}, fmt.Errorf("csv: empty input, no header row")
	}
	if err != nil {
		return records.Dataset{}, fmt.Errorf("csv: read header: %w", err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		columns[i] = strings.ToLower(strings.TrimSpace(h))
	}

	ds := records.New(columns)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ds, fmt.Errorf("csv: read row: %w", err)
		}

		rec := make(records.Record, len(columns))
		for i, col := range columns {
			if i >= len(row) {
				rec[col] = nil
				continue
			}
			v := row[i]
			if p.opt.TrimSpace {
				v = strings.TrimSpace(v)
			}
			if v == "" {
				rec[col] = nil
				continue
			}
			rec[col] = v
		}
		ds.Append(rec)
	}
	return ds, nil
}
