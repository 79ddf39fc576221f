// Package transform contains the row-level pipeline stages: schema casting,
// business-rule validation, and cleaning/deduplication. Every stage is a pure
// function from an input Dataset to output Datasets; rejection is data, not
// an error.
package transform

import (
	"strconv"
	"strings"
	"time"

	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/records"
	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/schema"
)

// defaultDateLayouts are tried in order when casting datetime columns.
var defaultDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
}

// Caster coerces raw cells to the types a schema declares. Failure to cast
// produces a typed nil for the cell, never an error; a row lands in the
// rejected partition iff at least one int/float/datetime column is nil after
// coercion. String-typed and undeclared columns never reject a row.
type Caster struct {
	Schema schema.Schema

	// DateLayouts overrides the layouts tried for datetime columns.
	DateLayouts []string
}

// Apply partitions the dataset into cast-valid and cast-rejected rows. Both
// partitions preserve input order and together cover the input exactly.
// Rejected rows keep their original raw value in each failed cell, alongside
// whatever columns coerced successfully, to aid diagnosis.
func (c Caster) Apply(in records.Dataset) records.Partition {
	out := records.NewPartition(in.Columns)
	layouts := c.DateLayouts
	if len(layouts) == 0 {
		layouts = defaultDateLayouts
	}

	for _, row := range in.Rows {
		cast := make(records.Record, len(row))
		var failed []string

		for _, col := range in.Columns {
			raw := row[col]
			kind, declared := c.Schema[col]
			if !declared || kind == schema.KindPassthrough {
				cast[col] = raw
				continue
			}
			v, ok := castValue(kind, raw, layouts)
			cast[col] = v
			if !ok && kind.Numeric() {
				failed = append(failed, col)
			}
		}

		if len(failed) == 0 {
			out.Valid.Append(cast)
			continue
		}
		// Restore the unconverted originals for the cells that failed.
		for _, col := range failed {
			cast[col] = row[col]
		}
		out.Rejected.Append(cast)
	}
	return out
}

// castValue coerces a single cell. The bool result reports whether the cell
// holds a usable typed value afterwards; nil input or a parse failure yields
// (nil, false) for non-string kinds.
func castValue(kind schema.Kind, v any, layouts []string) (any, bool) {
	if v == nil {
		return nil, kind == schema.KindString
	}

	switch kind {
	case schema.KindInt:
		switch t := v.(type) {
		case int64:
			return t, true
		case int:
			return int64(t), true
		case float64:
			if t == float64(int64(t)) {
				return int64(t), true
			}
			return nil, false
		case string:
			s := strings.TrimSpace(t)
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return i, true
			}
			// "4018.0" style integers survive a float round-trip.
			if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
				return int64(f), true
			}
		}
		return nil, false

	case schema.KindFloat:
		switch t := v.(type) {
		case float64:
			return t, true
		case int64:
			return float64(t), true
		case int:
			return float64(t), true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				return f, true
			}
		}
		return nil, false

	case schema.KindDatetime:
		switch t := v.(type) {
		case time.Time:
			return t, true
		case string:
			s := strings.TrimSpace(t)
			for _, layout := range layouts {
				if ts, err := time.Parse(layout, s); err == nil {
					return ts, true
				}
			}
		}
		return nil, false

	case schema.KindString:
		if s, ok := v.(string); ok {
			return s, true
		}
		return records.String(v), true
	}

	return v, true
}
