package domain

import "strings"

// Policy is the administrator's safety configuration. It is read-only
// during an analysis. MaxJoinTables is always enforced; zero means no table
// may be referenced without a warning.
type Policy struct {
	RequireDateFilter  bool     `json:"require_date_filter" yaml:"require_date_filter"`
	MaxJoinTables      int      `json:"max_join_tables" yaml:"max_join_tables"`
	AllowedTables      []string `json:"allowed_tables,omitempty" yaml:"allowed_tables,omitempty"`
	DisallowedTables   []string `json:"disallowed_tables,omitempty" yaml:"disallowed_tables,omitempty"`
	DefaultResultLimit int      `json:"default_result_limit" yaml:"default_result_limit"`
	HardResultCap      int      `json:"hard_result_cap" yaml:"hard_result_cap"`

	// OptimizedViews are pre-aggregated tables; using one sets
	// SafetyReport.UsesOptimizedView.
	OptimizedViews []string `json:"optimized_views,omitempty" yaml:"optimized_views,omitempty"`
	// DateColumns extends the built-in date-ish column heuristics.
	DateColumns []string `json:"date_columns,omitempty" yaml:"date_columns,omitempty"`
	// DateWindow is the natural-language time window handed to the upstream
	// SQL generator, e.g. "90 days".
	DateWindow string `json:"date_window,omitempty" yaml:"date_window,omitempty"`
}

// DefaultPolicy returns the policy used when no policy file is configured.
func DefaultPolicy() Policy {
	return Policy{
		RequireDateFilter:  true,
		MaxJoinTables:      3,
		DisallowedTables:   []string{"raw_logs"},
		DefaultResultLimit: 1000,
		HardResultCap:      10000,
		DateWindow:         "90 days",
	}
}

func containsFold(list []string, name string) bool {
	for _, s := range list {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return true
		}
	}
	return false
}

// isDateColumn reports whether a column name looks like it holds dates.
func (p Policy) isDateColumn(name string) bool {
	if containsFold(p.DateColumns, name) {
		return true
	}
	n := strings.ToLower(name)
	switch {
	case strings.HasSuffix(n, "_at"), strings.HasSuffix(n, "_date"), strings.HasSuffix(n, "_time"),
		strings.HasSuffix(n, "_on"), strings.HasPrefix(n, "date"), n == "timestamp",
		strings.HasSuffix(n, "_timestamp"), n == "last_login", n == "last_seen":
		return true
	}
	return false
}
