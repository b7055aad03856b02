package domain

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// PreviewResult is a best-effort, non-authoritative query result computed
// from catalog sample rows.
type PreviewResult struct {
	Rows []Row `json:"rows"`
	// Tables lists the referenced tables that resolved against the catalog.
	Tables []string `json:"tables"`
	// Truncated is set when LIMIT (or the hard cap) dropped rows.
	Truncated bool `json:"truncated,omitempty"`
	// Approximate is set when the WHERE clause used OR or NOT, which the
	// simulator flattens into a conjunction.
	Approximate bool `json:"approximate,omitempty"`
}

// Simulator runs a ParsedQuery against catalog sample data. The zero value
// uses HeuristicJoinStrategy and no hard cap.
type Simulator struct {
	Join    JoinStrategy
	HardCap int
}

// NewSimulator returns a simulator using the heuristic join and hardCap
// (0 disables the cap).
func NewSimulator(hardCap int) Simulator {
	return Simulator{Join: HeuristicJoinStrategy{}, HardCap: hardCap}
}

// Simulate never fails: unknown tables are skipped and absent data yields
// an empty result.
func (s Simulator) Simulate(q ParsedQuery, cat *Catalog) PreviewResult {
	res := PreviewResult{Rows: []Row{}, Tables: []string{}, Approximate: q.HasDisjunction}

	var tables []*Table
	for _, name := range q.Tables {
		if t, ok := cat.Table(name); ok {
			tables = append(tables, t)
			res.Tables = append(res.Tables, t.Name)
		}
	}
	if len(tables) == 0 {
		return res
	}

	rows := make([]Row, len(tables[0].SampleRows))
	for i, r := range tables[0].SampleRows {
		rows[i] = copyRow(r)
	}
	join := s.Join
	if join == nil {
		join = HeuristicJoinStrategy{}
	}
	for _, t := range tables[1:] {
		rows = join.Join(rows, t)
	}

	filtered := rows[:0:0]
	for _, r := range rows {
		if matchesAll(r, q.Conditions) {
			filtered = append(filtered, r)
		}
	}

	if len(q.Columns) > 0 {
		for i, r := range filtered {
			filtered[i] = project(r, q.Columns)
		}
	}

	if limit, ok := s.effectiveLimit(q.Limit); ok && len(filtered) > limit {
		filtered = filtered[:limit]
		res.Truncated = true
	}
	res.Rows = filtered
	return res
}

func (s Simulator) effectiveLimit(limit *int) (int, bool) {
	if limit == nil {
		return 0, false
	}
	n := *limit
	if s.HardCap > 0 && n > s.HardCap {
		n = s.HardCap
	}
	return n, true
}

func matchesAll(row Row, conds []Condition) bool {
	for _, c := range conds {
		if !matches(row, c) {
			return false
		}
	}
	return true
}

// matches treats a condition on a missing column as satisfied. A present
// but nil field satisfies nothing.
func matches(row Row, c Condition) bool {
	v, ok := field(row, c.Column)
	if !ok {
		return true
	}
	if v == nil {
		return false
	}

	switch c.Operator {
	case OpEq:
		if want, isNum := c.Value.(float64); isNum {
			got, ok := toFloat(v)
			return ok && got == want
		}
		return strings.EqualFold(fmt.Sprint(v), fmt.Sprint(c.Value))
	case OpGt, OpLt, OpGte, OpLte:
		got, ok := toFloat(v)
		if !ok {
			return false
		}
		want, ok := toFloat(c.Value)
		if !ok {
			return false
		}
		switch c.Operator {
		case OpGt:
			return got > want
		case OpLt:
			return got < want
		case OpGte:
			return got >= want
		default:
			return got <= want
		}
	case OpIn:
		list, _ := c.Value.([]string)
		s := fmt.Sprint(v)
		for _, want := range list {
			if strings.EqualFold(s, want) {
				return true
			}
		}
		return false
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case fmt.Stringer:
		f, err := strconv.ParseFloat(n.String(), 64)
		return f, err == nil
	}
	return 0, false
}

// project keeps the requested columns, matching an exact field name first
// and then any field ending in _<column>. A row with no requested column is
// returned whole.
func project(row Row, cols []string) Row {
	out := make(Row, len(cols))
	keys := slices.Sorted(maps.Keys(row))
	for _, col := range cols {
		if v, ok := field(row, col); ok {
			out[col] = v
			continue
		}
		suffix := "_" + strings.ToLower(col)
		for _, k := range keys {
			if strings.HasSuffix(strings.ToLower(k), suffix) {
				out[col] = row[k]
				break
			}
		}
	}
	if len(out) == 0 {
		return row
	}
	return out
}
