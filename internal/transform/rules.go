package transform

import (
	"strings"

	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/records"
)

// Fashion-retail column names, post header normalization.
const (
	ColAmount  = "purchase amount (usd)"
	ColRating  = "review rating"
	ColPayment = "payment method"
	ColItem    = "item purchased"
)

// Rule is a single business rule. Bad reports whether the cell value fails
// the rule. A rule is skipped entirely when its column is absent from the
// dataset's column set, so the validator stays usable across partially
// overlapping schemas.
type Rule struct {
	Name   string
	Column string
	Bad    func(v any) bool
}

// DefaultRules returns the fixed fashion-retail rule set:
//
//  1. purchase amount must be >= 0; null is not rejected by this rule alone
//  2. review rating, when present, must lie in [0, 5]; null always passes
//  3. payment method must canonicalize to "Cash" or "Credit Card"; null fails
//  4. item purchased must be non-null and non-blank after trimming
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:   "negative_amount",
			Column: ColAmount,
			Bad: func(v any) bool {
				f, ok := asFloat(v)
				return ok && f < 0
			},
		},
		{
			Name:   "rating_out_of_range",
			Column: ColRating,
			Bad: func(v any) bool {
				f, ok := asFloat(v)
				return ok && (f < 0 || f > 5)
			},
		},
		{
			Name:   "disallowed_payment_method",
			Column: ColPayment,
			Bad: func(v any) bool {
				s, ok := v.(string)
				if !ok {
					return true // null or non-text payment is invalid
				}
				switch CanonicalPayment(s) {
				case PaymentCash, PaymentCreditCard:
					return false
				}
				return true
			},
		},
		{
			Name:   "blank_item",
			Column: ColItem,
			Bad: func(v any) bool {
				s, ok := v.(string)
				return !ok || strings.TrimSpace(s) == ""
			},
		},
	}
}

// RuleValidator applies a fixed rule set to schema-valid rows, accumulating a
// single bad/good verdict per row: a row is bad if ANY applicable rule fails.
type RuleValidator struct {
	Rules []Rule
}

// Apply partitions the dataset into rule-valid and rule-rejected rows, order
// preserved, disjoint, covering the input exactly. The returned counts map
// records how often each rule fired; the stored reject reason stays coarse
// ("business_rule_failed"), so the counts are the per-rule attribution used
// for logs and metrics.
func (rv RuleValidator) Apply(in records.Dataset) (records.Partition, map[string]int) {
	out := records.NewPartition(in.Columns)
	fired := make(map[string]int, len(rv.Rules))

	// Rules whose column is missing from this dataset never contribute.
	active := make([]Rule, 0, len(rv.Rules))
	for _, r := range rv.Rules {
		if in.HasColumn(r.Column) {
			active = append(active, r)
		}
	}

	for _, row := range in.Rows {
		bad := false
		for _, r := range active {
			if r.Bad(row[r.Column]) {
				fired[r.Name]++
				bad = true
			}
		}
		if bad {
			out.Rejected.Append(row.Clone())
		} else {
			out.Valid.Append(row.Clone())
		}
	}
	return out, fired
}

// asFloat widens numeric cell values for rule comparisons.
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	}
	return 0, false
}
