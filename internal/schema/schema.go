// Package schema models the declared column types a source promises and the
// casting behavior each type implies.
package schema

import "strings"

// Kind is the closed set of cast targets. Schema type names outside the set
// map to KindPassthrough: the column is carried through untouched and never
// contributes to rejection. Pass-through is a designed case, not accidental
// fallthrough.
type Kind int

const (
	KindPassthrough Kind = iota
	KindInt
	KindFloat
	KindDatetime
	KindString
)

// String returns the canonical config spelling for the kind.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDatetime:
		return "datetime"
	case KindString:
		return "str"
	default:
		return "passthrough"
	}
}

// Numeric reports whether a null after casting marks the row rejected.
// String-typed and pass-through columns never trigger rejection on their own.
func (k Kind) Numeric() bool {
	return k == KindInt || k == KindFloat || k == KindDatetime
}

// ParseKind maps a config type name onto a Kind. It accepts the config
// spellings ("int", "float", "datetime", "str") plus common database-ish
// aliases, mirroring how the rest of the config layer is forgiving about
// spelling but strict about semantics.
func ParseKind(name string) Kind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "int", "integer", "int4", "int8", "bigint":
		return KindInt
	case "float", "double", "numeric", "real":
		return KindFloat
	case "datetime", "date", "timestamp", "timestamptz":
		return KindDatetime
	case "str", "string", "text":
		return KindString
	default:
		return KindPassthrough
	}
}

// Known reports whether name parses to a non-passthrough kind.
func Known(name string) bool { return ParseKind(name) != KindPassthrough }

// Schema maps a normalized column name to its declared kind. A schema fully
// determines casting for every column it names; columns absent from the
// schema pass through untyped.
type Schema map[string]Kind

// FromConfig builds a Schema from the raw column→type-name mapping found in
// a source definition.
func FromConfig(raw map[string]string) Schema {
	s := make(Schema, len(raw))
	for col, typ := range raw {
		s[strings.ToLower(strings.TrimSpace(col))] = ParseKind(typ)
	}
	return s
}

// Missing returns the schema columns absent from the given column set, in
// deterministic order. The check is informational: a missing column is
// reported, not fatal.
func (s Schema) Missing(columns []string) []string {
	present := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		present[c] = struct{}{}
	}
	var missing []string
	for _, col := range s.Ordered() {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// Ordered returns the schema's column names sorted for stable iteration.
func (s Schema) Ordered() []string {
	cols := make([]string, 0, len(s))
	for c := range s {
		cols = append(cols, c)
	}
	// insertion sort; schemas are tiny
	for i := 1; i < len(cols); i++ {
		for j := i; j > 0 && cols[j] < cols[j-1]; j-- {
			cols[j], cols[j-1] = cols[j-1], cols[j]
		}
	}
	return cols
}
