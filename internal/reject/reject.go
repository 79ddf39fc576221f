// Package reject converts rows excluded at a pipeline gate into immutable
// audit records destined for the append-only stg_rejects table.
package reject

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/records"
)

// Reason codes recorded with each reject. The code stays coarse on purpose;
// finer attribution lives in logs and metrics.
const (
	ReasonTypeCastFailed     = "type_cast_failed"
	ReasonBusinessRuleFailed = "business_rule_failed"
)

// Record is one persisted reject: the source it came from, why it was
// excluded, a JSON snapshot of the original row, and when it was rejected.
// A Record is immutable once created and carries no reference back to the
// live pipeline row.
type Record struct {
	SourceName string
	Reason     string
	Payload    string
	RejectedAt time.Time
}

// Build produces one Record per rejected row. Payload values are normalized
// for JSON: timestamps become ISO-8601 strings, missing/NaN cells become
// null, everything else keeps its native JSON representation. An empty input
// yields a nil slice.
func Build(ds records.Dataset, sourceName, reason string, rejectedAt time.Time) ([]Record, error) {
	if ds.Empty() {
		return nil, nil
	}
	out := make([]Record, 0, ds.Len())
	for i, row := range ds.Rows {
		payload, err := payloadJSON(ds.Columns, row)
		if err != nil {
			return nil, fmt.Errorf("reject payload for row %d: %w", i, err)
		}
		out = append(out, Record{
			SourceName: sourceName,
			Reason:     reason,
			Payload:    payload,
			RejectedAt: rejectedAt,
		})
	}
	return out, nil
}

func payloadJSON(columns []string, row records.Record) (string, error) {
	snap := make(map[string]any, len(columns))
	for _, col := range columns {
		snap[col] = jsonValue(row[col])
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// jsonValue coerces a cell to a JSON-safe value: time.Time → ISO-8601 string,
// NaN/Inf → null, nil stays null.
func jsonValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return t.Format(time.RFC3339)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return t
	default:
		return v
	}
}
