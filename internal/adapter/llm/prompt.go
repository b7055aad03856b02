// Package llm turns natural-language audience descriptions into SQL through
// a hosted completion API. Each call is a single request with no retry.
package llm

import (
	"fmt"
	"strings"

	"github.com/guillermoBallester/audiencelens/internal/core/domain"
)

// SystemPrompt states the policy constraints the generated SQL must honor.
func SystemPrompt(pol domain.Policy) string {
	var b strings.Builder
	b.WriteString("You translate audience descriptions into a single read-only SQL SELECT statement.\n")
	b.WriteString("Return only the SQL, with no explanation.\n")
	b.WriteString("Rules:\n")
	if pol.DateWindow != "" {
		fmt.Fprintf(&b, "- Restrict event and activity data to the last %s with a filter on a date column.\n", pol.DateWindow)
	}
	if pol.DefaultResultLimit > 0 {
		fmt.Fprintf(&b, "- End the query with LIMIT %d or a smaller limit.\n", pol.DefaultResultLimit)
	}
	if pol.MaxJoinTables > 0 {
		fmt.Fprintf(&b, "- Reference at most %d tables.\n", pol.MaxJoinTables)
	}
	if len(pol.DisallowedTables) > 0 {
		fmt.Fprintf(&b, "- Never read from: %s.\n", strings.Join(pol.DisallowedTables, ", "))
	}
	b.WriteString("- Never modify data.\n")
	return b.String()
}

// StripFences removes a surrounding markdown code block, with or without a
// language tag, and trims whitespace.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the language tag on the opening fence line.
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = ""
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}
