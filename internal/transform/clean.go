package transform

import (
	"sort"
	"strings"

	"github.com/zeebo/xxh3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/records"
)

// Canonical payment method display forms.
const (
	PaymentCash       = "Cash"
	PaymentCreditCard = "Credit Card"
)

// paymentVariants maps a lowercased, space-stripped spelling to its canonical
// display form. Unrecognized values pass through trimmed and title-cased.
var paymentVariants = map[string]string{
	"cash":       PaymentCash,
	"creditcard": PaymentCreditCard,
}

// CanonicalPayment trims and title-cases a payment method, then folds known
// variants ("creditcard", "CREDIT CARD", ...) onto their canonical form. The
// same canonicalization backs both the business-rule check and the cleaner,
// so a value that passes validation always loads in canonical form.
func CanonicalPayment(s string) string {
	t := cases.Title(language.English).String(strings.TrimSpace(s))
	if canon, ok := paymentVariants[strings.ReplaceAll(strings.ToLower(t), " ", "")]; ok {
		return canon
	}
	return t
}

// TitleCase trims and title-cases a text cell ("  handbag " -> "Handbag").
func TitleCase(s string) string {
	return cases.Title(language.English).String(strings.TrimSpace(s))
}

// Cleaner normalizes string formatting on rule-valid rows and deduplicates
// them on the business key, keeping the last occurrence by input order. When
// any key column is absent from the dataset the dedup degrades to full-row
// equality. Cleaning is idempotent: applying it to its own output changes
// nothing.
type Cleaner struct {
	// KeyColumns is the business key in CSV-side column names.
	KeyColumns []string

	// PaymentColumn and ItemColumn select the cells that get canonical
	// normalization beyond plain trimming. Either may be absent from the
	// dataset, in which case it is skipped.
	PaymentColumn string
	ItemColumn    string
}

// NewCleaner returns a Cleaner configured for the fashion-retail dataset.
func NewCleaner() Cleaner {
	return Cleaner{
		KeyColumns:    []string{"customer reference id", ColItem, "date purchase"},
		PaymentColumn: ColPayment,
		ItemColumn:    ColItem,
	}
}

// Apply returns the cleaned, deduplicated dataset.
func (c Cleaner) Apply(in records.Dataset) records.Dataset {
	out := records.New(in.Columns)
	for _, row := range in.Rows {
		out.Append(c.cleanRow(in.Columns, row))
	}
	return c.dedup(out)
}

func (c Cleaner) cleanRow(columns []string, row records.Record) records.Record {
	clean := make(records.Record, len(row))
	for _, col := range columns {
		v := row[col]
		if s, ok := v.(string); ok {
			v = strings.TrimSpace(s)
		}
		clean[col] = v
	}
	if s, ok := clean[c.PaymentColumn].(string); ok {
		clean[c.PaymentColumn] = CanonicalPayment(s)
	}
	if s, ok := clean[c.ItemColumn].(string); ok {
		clean[c.ItemColumn] = TitleCase(s)
	}
	return clean
}

// dedup keeps the last occurrence per key. Winners are emitted in ascending
// order of their winning position, so re-running dedup is a no-op.
func (c Cleaner) dedup(in records.Dataset) records.Dataset {
	keyOf := c.businessKey
	if !in.HasColumns(c.KeyColumns...) {
		keyOf = func(columns []string, r records.Record) string {
			return rowHash(columns, r)
		}
	}

	winners := make(map[string]int, in.Len())
	for i, row := range in.Rows {
		winners[keyOf(in.Columns, row)] = i
	}

	idx := make([]int, 0, len(winners))
	for _, i := range winners {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	out := records.New(in.Columns)
	for _, i := range idx {
		out.Append(in.Rows[i])
	}
	return out
}

// businessKey concatenates the key cells with an unlikely separator.
func (c Cleaner) businessKey(_ []string, r records.Record) string {
	var b strings.Builder
	for _, k := range c.KeyColumns {
		if b.Len() > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(records.String(r[k]))
	}
	return b.String()
}

// rowHash keys a record by the xxh3 hash of every cell in column order, used
// for the full-row-equality dedup fallback.
func rowHash(columns []string, r records.Record) string {
	h := xxh3.New()
	for _, col := range columns {
		h.WriteString(records.String(r[col]))
		h.Write([]byte{0x1f})
	}
	sum := h.Sum128().Bytes()
	return string(sum[:])
}
