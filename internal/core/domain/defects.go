package domain

import (
	"fmt"
	"strings"
)

// Defect is a schema- or syntax-level problem found in SQL text. Line is
// 1-based.
type Defect struct {
	Message    string `json:"message"`
	Line       int    `json:"line_number"`
	Suggestion string `json:"suggestion,omitempty"`
}

// keywordTypos are single-character deletions of SELECT, FROM and WHERE.
var keywordTypos = map[string]bool{"SELEC": true, "FORM": true, "WHER": true}

// Detect returns the highest-priority defect in sql, or nil. Checks run in
// order: unknown table, placeholder column, keyword typo, ambiguous
// unqualified columns under a JOIN. A non-nil result should block the
// preview run.
func Detect(sql string, cat *Catalog) *Defect {
	pt := parseText(sql)

	for _, ref := range pt.tableRefs() {
		if !cat.Has(ref.Name) {
			return &Defect{
				Message:    fmt.Sprintf("Table '%s' does not exist", ref.Name),
				Line:       ref.Line,
				Suggestion: "Available tables: " + strings.Join(cat.Names(), ", "),
			}
		}
	}

	if hasPlaceholderColumn(pt.tokens) {
		return &Defect{
			Message:    "Invalid column reference in SELECT clause",
			Line:       1,
			Suggestion: "Replace placeholder columns (undefined, null_column) with real column names",
		}
	}

	for _, t := range pt.tokens {
		if t.Kind == TokenIdent && keywordTypos[t.Value] && t.End < len(pt.src) && isSpace(pt.src[t.End]) {
			return &Defect{
				Message:    fmt.Sprintf("Syntax error near '%s'", t.Value),
				Line:       t.Line,
				Suggestion: "Check keyword spelling: should be SELECT, FROM, WHERE",
			}
		}
	}

	if isAmbiguousJoin(pt) {
		return &Defect{
			Message:    "Ambiguous column references in a multi-table query",
			Line:       1,
			Suggestion: "Qualify columns with their table name or alias, e.g. users.id",
		}
	}

	return nil
}

// hasPlaceholderColumn scans the select list (SELECT up to FROM).
func hasPlaceholderColumn(toks []Token) bool {
	inSelect := false
	for _, t := range toks {
		switch {
		case t.Is("SELECT"):
			inSelect = true
		case t.Is("FROM"):
			if inSelect {
				return false
			}
		case inSelect && t.Kind == TokenIdent:
			if strings.EqualFold(t.Value, "undefined") || strings.EqualFold(t.Value, "null_column") {
				return true
			}
		}
	}
	return false
}

// isAmbiguousJoin reports a JOIN query with no '.' anywhere in its text.
// Any dot, even inside a literal, counts as a qualified reference.
func isAmbiguousJoin(pt *parsedText) bool {
	if strings.Contains(pt.src, ".") {
		return false
	}
	joins, refs := 0, 0
	for _, t := range pt.tokens {
		switch {
		case t.Is("JOIN"):
			joins++
			refs++
		case t.Is("FROM"):
			refs++
		}
	}
	return joins > 0 && refs > 1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
