package domain

import (
	"fmt"
	"strings"
)

// SafetyReport is the outcome of evaluating a query against a Policy.
// IsValid is false iff Errors is non-empty.
type SafetyReport struct {
	IsValid           bool     `json:"is_valid"`
	HasDateFilter     bool     `json:"has_date_filter"`
	HasResultLimit    bool     `json:"has_result_limit"`
	UsesOptimizedView bool     `json:"uses_optimized_view"`
	TablesUsed        []string `json:"tables_used"`
	EstimatedDateSpan *string  `json:"estimated_date_span,omitempty"`
	Warnings          []string `json:"warnings"`
	Errors            []string `json:"errors"`
}

// Analyze evaluates sql against pol. Every rule runs; none short-circuits
// another. Analyze is deterministic and has no side effects.
func Analyze(sql string, pol Policy) SafetyReport {
	pt := parseText(sql)
	q := extractFrom(pt)

	report := SafetyReport{
		HasDateFilter:  hasDateFilter(pt, pol),
		HasResultLimit: q.Limit != nil,
		TablesUsed:     q.Tables,
		Warnings:       []string{},
		Errors:         []string{},
	}

	if pt.err != nil && strings.TrimSpace(sql) != "" {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Query could not be fully parsed (%v); checks ran on the recognised part only.", pt.err))
	}

	var disallowed []string
	for _, t := range q.Tables {
		if containsFold(pol.DisallowedTables, t) {
			disallowed = append(disallowed, t)
		}
	}
	if len(disallowed) > 0 {
		report.Errors = append(report.Errors,
			fmt.Sprintf("Query references disallowed tables: %s", strings.Join(disallowed, ", ")))
	}

	if len(pol.AllowedTables) > 0 {
		var outside []string
		for _, t := range q.Tables {
			if !containsFold(pol.AllowedTables, t) && !containsFold(disallowed, t) {
				outside = append(outside, t)
			}
		}
		if len(outside) > 0 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("Tables outside the allowed list: %s", strings.Join(outside, ", ")))
		}
	}

	if len(q.Tables) > pol.MaxJoinTables {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Query joins %d tables; policy allows at most %d.", len(q.Tables), pol.MaxJoinTables))
	}

	if pol.RequireDateFilter && !report.HasDateFilter {
		report.Warnings = append(report.Warnings,
			"No date filter found; policy requires limiting the time window.")
	}

	if !report.HasResultLimit {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("No LIMIT clause; add LIMIT %d to bound the result set.", pol.effectiveDefaultLimit()))
	} else if pol.HardResultCap > 0 && *q.Limit > pol.HardResultCap {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("LIMIT %d exceeds the hard cap of %d; results will be capped.", *q.Limit, pol.HardResultCap))
	}

	for _, hit := range ScanInjection(q) {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Value for column %q looks like SQL injection (fingerprint %s).", hit.Column, hit.Fingerprint))
	}

	if span, ok := firstInterval(pt); ok {
		report.EstimatedDateSpan = &span
	}

	for _, t := range q.Tables {
		if containsFold(pol.OptimizedViews, t) {
			report.UsesOptimizedView = true
			break
		}
	}

	report.IsValid = len(report.Errors) == 0
	return report
}

// AddDefaultLimit appends LIMIT <DefaultResultLimit> to sql after trimming
// trailing semicolons and whitespace. The clause goes right after the last
// SQL token, so trailing comments stay after it. Text that already carries a
// LIMIT is returned unchanged, so applying it twice is a no-op. The result
// must be re-analyzed; other warnings are not addressed.
func AddDefaultLimit(sql string, pol Policy) string {
	pt := parseText(sql)
	if pt.limit() != nil {
		return sql
	}
	clause := fmt.Sprintf(" LIMIT %d", pol.effectiveDefaultLimit())

	end := -1
	for _, t := range pt.tokens {
		if t.Kind != TokenEOF && t.Kind != TokenSemicolon {
			end = t.End
		}
	}
	if end < 0 {
		return strings.TrimRight(sql, "; \t\r\n") + clause
	}
	return sql[:end] + clause + strings.TrimRight(sql[end:], "; \t\r\n")
}

func (p Policy) effectiveDefaultLimit() int {
	n := p.DefaultResultLimit
	if n <= 0 {
		n = DefaultPolicy().DefaultResultLimit
	}
	if p.HardResultCap > 0 && n > p.HardResultCap {
		n = p.HardResultCap
	}
	return n
}

// hasDateFilter looks for a WHERE comparison or BETWEEN on a date-ish
// column, or an INTERVAL literal, CURRENT_DATE or NOW() anywhere.
func hasDateFilter(pt *parsedText, pol Policy) bool {
	for i, t := range pt.tokens {
		switch {
		case t.Is("INTERVAL") && pt.tokens[i+1].Kind == TokenString:
			return true
		case t.Kind == TokenIdent && strings.EqualFold(t.Value, "CURRENT_DATE"):
			return true
		case t.Kind == TokenIdent && strings.EqualFold(t.Value, "NOW") && pt.tokens[i+1].Kind == TokenLParen:
			return true
		}
	}

	if pt.stmt == nil {
		return false
	}
	found := false
	isDate := func(e Expr) bool {
		ref, ok := e.(*ColumnRef)
		return ok && pol.isDateColumn(ref.Column)
	}
	Walk(pt.stmt.Where, func(e Expr) bool {
		switch n := e.(type) {
		case *ComparisonExpr:
			if isDate(n.Left) || isDate(n.Right) {
				found = true
			}
		case *BetweenExpr:
			if isDate(n.Left) {
				found = true
			}
		}
		return !found
	})
	return found
}

// firstInterval returns the first INTERVAL '<n> <unit>' literal verbatim.
func firstInterval(pt *parsedText) (string, bool) {
	for i, t := range pt.tokens {
		if t.Is("INTERVAL") && pt.tokens[i+1].Kind == TokenString {
			return pt.src[t.Pos:pt.tokens[i+1].End], true
		}
	}
	return "", false
}
