package runner

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// NumericStats holds descriptive statistics for one numeric column.
type NumericStats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P25   float64 `json:"p25"`
	P50   float64 `json:"p50"`
	P75   float64 `json:"p75"`
}

// Summary describes the shape of a result set.
type Summary struct {
	RowCount     int                     `json:"row_count"`
	ColumnCount  int                     `json:"column_count"`
	ColumnTypes  map[string]string       `json:"column_types"`
	NumericStats map[string]NumericStats `json:"numeric_stats,omitempty"`
}

// Formatted is the shaped result envelope. Degraded marks envelopes produced
// after a formatting failure; they carry whatever raw data was available.
type Formatted struct {
	Message  string
	Columns  []string
	Rows     []map[string]any
	Summary  *Summary
	Degraded bool
}

// Format enriches an execution with row/column counts, inferred column types,
// and descriptive statistics for numeric columns. Formatting never fails
// hard: a failure degrades to an envelope with the raw columns and rows.
func (r *Runner) Format(exec *Execution) (formatted *Formatted) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorf("Error formatting results: %v", rec)

			formatted = &Formatted{
				Message:  fmt.Sprintf("Failed to format results: %v", rec),
				Columns:  exec.Columns,
				Rows:     mapRows(exec.Columns, exec.Rows),
				Degraded: true,
			}
		}
	}()

	summary := &Summary{
		RowCount:    len(exec.Rows),
		ColumnCount: len(exec.Columns),
		ColumnTypes: make(map[string]string, len(exec.Columns)),
	}

	for i, column := range exec.Columns {
		values := columnValues(exec.Rows, i)
		summary.ColumnTypes[column] = inferType(values)

		if numeric := numericValues(values); len(numeric) > 0 {
			if summary.NumericStats == nil {
				summary.NumericStats = make(map[string]NumericStats)
			}

			summary.NumericStats[column] = describe(numeric)
		}
	}

	return &Formatted{
		Message: "Query executed successfully",
		Columns: exec.Columns,
		Rows:    mapRows(exec.Columns, exec.Rows),
		Summary: summary,
	}
}

func mapRows(columns []string, rows [][]any) []map[string]any {
	out := make([]map[string]any, 0, len(rows))

	for _, row := range rows {
		record := make(map[string]any, len(columns))

		for i, column := range columns {
			if i < len(row) {
				record[column] = row[i]
			}
		}

		out = append(out, record)
	}

	return out
}

func columnValues(rows [][]any, index int) []any {
	values := make([]any, 0, len(rows))

	for _, row := range rows {
		if index < len(row) {
			values = append(values, row[index])
		}
	}

	return values
}

// inferType names the type of a column from its first non-nil value.
func inferType(values []any) string {
	for _, v := range values {
		switch v.(type) {
		case nil:
			continue
		case int, int32, int64, uint64:
			return "integer"
		case float32, float64:
			return "real"
		case bool:
			return "boolean"
		case time.Time:
			return "timestamp"
		default:
			return "text"
		}
	}

	return "null"
}

// numericValues coerces a column's values to float64, skipping everything
// non-numeric.
func numericValues(values []any) []float64 {
	var out []float64

	for _, v := range values {
		switch t := v.(type) {
		case int:
			out = append(out, float64(t))
		case int32:
			out = append(out, float64(t))
		case int64:
			out = append(out, float64(t))
		case uint64:
			out = append(out, float64(t))
		case float32:
			out = append(out, float64(t))
		case float64:
			out = append(out, t)
		}
	}

	return out
}

// describe computes min/max/mean and quartiles. Quartiles use linear
// interpolation between closest ranks.
func describe(values []float64) NumericStats {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	return NumericStats{
		Count: len(sorted),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  sum / float64(len(sorted)),
		P25:   quantile(sorted, 0.25),
		P50:   quantile(sorted, 0.5),
		P75:   quantile(sorted, 0.75),
	}
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}

	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	frac := pos - float64(lower)

	if lower+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}
