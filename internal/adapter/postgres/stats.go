package postgres

import (
	"math"
	"strings"
)

// pgDistinctToAbsolute converts pg_stats n_distinct to an absolute distinct count.
// pg_stats semantics:
//   - -1.0 = all values unique → returns rowEstimate
//   - negative = fraction of rows that are distinct (e.g., -0.5 = 50% unique)
//   - positive = estimated number of distinct values
func pgDistinctToAbsolute(nDistinct float64, rowEstimate int64) int64 {
	if nDistinct == -1 {
		return rowEstimate
	}
	if nDistinct < 0 {
		return int64(math.Round(-nDistinct * float64(rowEstimate)))
	}
	return int64(math.Round(nDistinct))
}

// parsePgArray parses a PostgreSQL text array representation like {val1,val2,val3}.
// Handles basic quoting but not all edge cases (sufficient for display purposes).
func parsePgArray(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "{}" {
		return nil
	}
	// Strip outer braces.
	raw = strings.TrimPrefix(raw, "{")
	raw = strings.TrimSuffix(raw, "}")

	var result []string
	var current strings.Builder
	inQuote := false
	escaped := false

	for _, ch := range raw {
		if escaped {
			current.WriteRune(ch)
			escaped = false
			continue
		}
		switch {
		case ch == '\\':
			escaped = true
		case ch == '"':
			inQuote = !inQuote
		case ch == ',' && !inQuote:
			val := strings.TrimSpace(current.String())
			if val != "NULL" {
				result = append(result, val)
			}
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}
	// Flush last value.
	if current.Len() > 0 {
		val := strings.TrimSpace(current.String())
		if val != "NULL" {
			result = append(result, val)
		}
	}
	return result
}

// parsePgFloatArray parses a PostgreSQL float array like {0.5,0.3,0.2}.
