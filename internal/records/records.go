// Package records defines the row and dataset types shared by every pipeline
// stage. A Record is a column-name → value mapping; a Dataset is an ordered
// batch of Records plus the ordered column set they share.
//
// Values flowing through the pipeline are one of: nil (missing / failed
// cast), string, int64, float64, or time.Time. Stages never mutate their
// input; each returns freshly built Records/Datasets so that a stage is a
// pure function from input to output partitions.
package records

import (
	"fmt"
	"time"
)

// Record maps a normalized column name to a cell value.
type Record map[string]any

// Clone returns a shallow copy of the record. Cell values are immutable
// (strings, numbers, time.Time), so a shallow copy is a full copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Dataset is an ordered sequence of Records sharing a common column set.
// Row order matters only for "last wins" tie-breaking during dedup.
type Dataset struct {
	Columns []string
	Rows    []Record
}

// New constructs an empty Dataset over the given columns.
func New(columns []string) Dataset {
	return Dataset{Columns: columns}
}

// Len reports the number of rows.
func (d Dataset) Len() int { return len(d.Rows) }

// Empty reports whether the dataset holds no rows.
func (d Dataset) Empty() bool { return len(d.Rows) == 0 }

// HasColumn reports whether name is part of the dataset's column set.
func (d Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// HasColumns reports whether every name is part of the column set.
func (d Dataset) HasColumns(names ...string) bool {
	for _, n := range names {
		if !d.HasColumn(n) {
			return false
		}
	}
	return true
}

// Append adds a row. The caller hands over ownership of r.
func (d *Dataset) Append(r Record) { d.Rows = append(d.Rows, r) }

// Partition is the (valid, rejected) output pair of a classifying stage.
// Both sides share the input's column set, preserve input order, are
// disjoint, and together cover the input exactly.
type Partition struct {
	Valid    Dataset
	Rejected Dataset
}

// NewPartition builds an empty partition over the given columns.
func NewPartition(columns []string) Partition {
	return Partition{Valid: New(columns), Rejected: New(columns)}
}

// Rename returns a new Dataset with columns renamed per mapping. Columns not
// named in the mapping keep their name. Row order and values are unchanged.
func Rename(d Dataset, mapping map[string]string) Dataset {
	dest := func(c string) string {
		if to, ok := mapping[c]; ok && to != "" {
			return to
		}
		return c
	}

	out := New(make([]string, len(d.Columns)))
	for i, c := range d.Columns {
		out.Columns[i] = dest(c)
	}
	for _, row := range d.Rows {
		rec := make(Record, len(row))
		for _, c := range d.Columns {
			rec[dest(c)] = row[c]
		}
		out.Append(rec)
	}
	return out
}

// String renders a value the way the storage and dedup layers key it:
// nil → "", time.Time → RFC 3339, numbers via strconv-equivalent formatting.
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}
