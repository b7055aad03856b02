package domain

import (
	"errors"
	"strconv"
	"strings"
)

// Operator is a condition operator understood by the simulator.
type Operator string

const (
	OpEq  Operator = "="
	OpGt  Operator = ">"
	OpLt  Operator = "<"
	OpGte Operator = ">="
	OpLte Operator = "<="
	OpIn  Operator = "IN"
)

// Condition is a single column predicate extracted from WHERE. Value is a
// string, a float64, or a []string (for IN).
type Condition struct {
	Column   string   `json:"column"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// ParsedQuery holds the structural facts extracted from SQL text.
//
// Conditions are applied as a conjunction regardless of the AND/OR
// structure of the source WHERE clause; HasDisjunction is set when the
// clause contained OR or NOT so callers can flag the approximation.
type ParsedQuery struct {
	Tables         []string    `json:"tables"`
	Columns        []string    `json:"columns"`
	Conditions     []Condition `json:"conditions"`
	Limit          *int        `json:"limit,omitempty"`
	HasDisjunction bool        `json:"has_disjunction,omitempty"`
}

// Extract returns the structural facts of sql. It never fails; text with no
// recognisable structure yields an empty ParsedQuery.
func Extract(sql string) ParsedQuery {
	return extractFrom(parseText(sql))
}

func extractFrom(pt *parsedText) ParsedQuery {
	q := ParsedQuery{
		Tables:     []string{},
		Columns:    []string{},
		Conditions: []Condition{},
		Limit:      pt.limit(),
	}
	stmt := pt.stmt
	if stmt == nil {
		return q
	}

	seen := make(map[string]bool)
	for _, ref := range pt.tableRefs() {
		name := strings.ToLower(ref.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		q.Tables = append(q.Tables, name)
	}

	q.Columns = selectedColumns(stmt.Items)

	Walk(stmt.Where, func(e Expr) bool {
		switch n := e.(type) {
		case *BinaryExpr:
			if n.Op == "OR" {
				q.HasDisjunction = true
			}
		case *NotExpr:
			q.HasDisjunction = true
			return false
		case *ComparisonExpr:
			if c, ok := comparisonCondition(n); ok {
				q.Conditions = append(q.Conditions, c)
			}
			return false
		case *InExpr:
			if c, ok := inCondition(n); ok {
				q.Conditions = append(q.Conditions, c)
			}
			return false
		}
		return true
	})

	return q
}

// limit returns the top-level LIMIT. When parsing stopped before the LIMIT
// clause it falls back to the first "LIMIT <integer>" token pair.
func (pt *parsedText) limit() *int {
	if pt.stmt != nil && pt.stmt.Limit != nil {
		n := *pt.stmt.Limit
		return &n
	}
	if pt.err == nil {
		return nil
	}
	for i, t := range pt.tokens {
		if t.Is("LIMIT") && pt.tokens[i+1].Kind == TokenNumber {
			if n, err := strconv.Atoi(pt.tokens[i+1].Value); err == nil && n >= 0 {
				return &n
			}
		}
	}
	return nil
}

// tableRefs returns FROM/JOIN references from the AST. When parsing failed,
// names following FROM or JOIN in the tokens the parser never reached are
// appended in source order, so a table after the error point is still seen.
func (pt *parsedText) tableRefs() []TableRef {
	var refs []TableRef
	if pt.stmt != nil {
		refs = pt.stmt.TableRefs()
	}
	if pt.err == nil {
		return refs
	}

	seen := make(map[string]bool, len(refs))
	for _, r := range refs {
		seen[strings.ToLower(r.Name)] = true
	}
	from := 0
	if len(refs) > 0 {
		from = pt.errorTokenIndex()
	}
	for _, ref := range pt.scanTableRefs(from) {
		if key := strings.ToLower(ref.Name); !seen[key] {
			seen[key] = true
			refs = append(refs, ref)
		}
	}
	return refs
}

// errorTokenIndex returns the index of the token before the one the parser
// stopped at, so a FROM or JOIN directly preceding the error is included.
func (pt *parsedText) errorTokenIndex() int {
	var pe *ParseError
	if !errors.As(pt.err, &pe) {
		return 0
	}
	for i, t := range pt.tokens {
		if t.Line > pe.Line || (t.Line == pe.Line && t.Col >= pe.Col) {
			return max(i-1, 0)
		}
	}
	return 0
}

// scanTableRefs collects names following FROM or JOIN from token index
// from onward.
func (pt *parsedText) scanTableRefs(from int) []TableRef {
	var refs []TableRef
	for i := from; i < len(pt.tokens)-1; i++ {
		t := pt.tokens[i]
		if !t.Is("FROM") && !t.Is("JOIN") {
			continue
		}
		name := pt.tokens[i+1]
		if !isName(name) {
			continue
		}
		ref := TableRef{Name: name.Value, Line: name.Line, Col: name.Col}
		if i+3 < len(pt.tokens) && pt.tokens[i+2].Kind == TokenDot && isName(pt.tokens[i+3]) {
			ref.Schema = ref.Name
			ref.Name = pt.tokens[i+3].Value
		}
		refs = append(refs, ref)
	}
	return refs
}

// selectedColumns returns plain column names; an empty result means SELECT *.
// Function calls, literals and qualified stars are not tracked.
func selectedColumns(items []SelectItem) []string {
	cols := []string{}
	for _, item := range items {
		if item.Star {
			if len(items) == 1 {
				return []string{}
			}
			continue
		}
		if ref, ok := item.Expr.(*ColumnRef); ok {
			cols = append(cols, ref.Column)
		}
	}
	return cols
}

func comparisonCondition(c *ComparisonExpr) (Condition, bool) {
	col, ok := c.Left.(*ColumnRef)
	if !ok {
		return Condition{}, false
	}
	lit, ok := c.Right.(*Literal)
	if !ok {
		return Condition{}, false
	}

	op := Operator(c.Op)
	switch lit.Kind {
	case LiteralString:
		if op != OpEq {
			return Condition{}, false
		}
		return Condition{Column: col.Column, Operator: op, Value: lit.Value}, true
	case LiteralNumber:
		switch op {
		case OpEq, OpGt, OpLt, OpGte, OpLte:
		default:
			return Condition{}, false
		}
		f, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return Condition{}, false
		}
		return Condition{Column: col.Column, Operator: op, Value: f}, true
	}
	return Condition{}, false
}

func inCondition(in *InExpr) (Condition, bool) {
	if in.Not {
		return Condition{}, false
	}
	col, ok := in.Left.(*ColumnRef)
	if !ok {
		return Condition{}, false
	}
	values := make([]string, 0, len(in.Values))
	for _, v := range in.Values {
		lit, ok := v.(*Literal)
		if !ok || (lit.Kind != LiteralString && lit.Kind != LiteralNumber) {
			return Condition{}, false
		}
		values = append(values, strings.TrimSpace(lit.Value))
	}
	return Condition{Column: col.Column, Operator: OpIn, Value: values}, true
}
