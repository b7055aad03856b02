package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func containsSubstring(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func TestAnalyze_DisallowedTableBlocks(t *testing.T) {
	t.Parallel()
	pol := DefaultPolicy()
	pol.DisallowedTables = []string{"raw_logs"}

	r := Analyze("SELECT * FROM users JOIN RAW_LOGS ON users.id = raw_logs.user_id LIMIT 5", pol)

	assert.False(t, r.IsValid)
	require.Len(t, r.Errors, 1)
	assert.Contains(t, r.Errors[0], "raw_logs")
	assert.Equal(t, []string{"users", "raw_logs"}, r.TablesUsed)
}

func TestAnalyze_DisallowedTableAfterUnparsedText(t *testing.T) {
	t.Parallel()
	r := Analyze("SELECT u.id FROM users u JOIN orders o ON u.id = o.user_id AND o.note ~ 'x' JOIN raw_logs r ON r.user_id = u.id LIMIT 10", DefaultPolicy())

	assert.False(t, r.IsValid)
	require.NotEmpty(t, r.Errors)
	assert.Contains(t, r.Errors[0], "raw_logs")
	assert.Contains(t, r.TablesUsed, "raw_logs")
}

func TestAnalyze_LimitDetection(t *testing.T) {
	t.Parallel()
	pol := DefaultPolicy()
	const base = "SELECT id FROM users WHERE created_at > CURRENT_DATE - INTERVAL '30 days'"

	with := Analyze(base+" LIMIT 500", pol)
	assert.True(t, with.HasResultLimit)
	assert.False(t, containsSubstring(with.Warnings, "No LIMIT"))

	without := Analyze(base, pol)
	assert.False(t, without.HasResultLimit)
	assert.True(t, containsSubstring(without.Warnings, "No LIMIT"))
	assert.True(t, without.IsValid, "a missing LIMIT is only a warning")
}

func TestAnalyze_LimitAboveHardCap(t *testing.T) {
	t.Parallel()
	pol := DefaultPolicy()
	pol.HardResultCap = 100

	r := Analyze("SELECT id FROM users WHERE created_at > NOW() LIMIT 5000", pol)
	assert.True(t, r.HasResultLimit)
	assert.True(t, containsSubstring(r.Warnings, "hard cap of 100"))
}

func TestAnalyze_DateFilter(t *testing.T) {
	t.Parallel()
	pol := DefaultPolicy()
	pol.DateColumns = []string{"signup"}

	tests := []struct {
		name string
		sql  string
		want bool
	}{
		{"interval literal", "SELECT * FROM users WHERE ts > NOW() - INTERVAL '7 days'", true},
		{"current_date", "SELECT * FROM users WHERE day = CURRENT_DATE", true},
		{"now call", "SELECT * FROM users WHERE x < now()", true},
		{"date column comparison", "SELECT * FROM users WHERE created_at >= '2024-01-01'", true},
		{"date column between", "SELECT * FROM users WHERE order_date BETWEEN '2024-01-01' AND '2024-02-01'", true},
		{"configured date column", "SELECT * FROM users WHERE signup > '2024-01-01'", true},
		{"no date filter", "SELECT * FROM users WHERE status = 'active'", false},
		{"now without call", "SELECT now_playing FROM users", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := Analyze(tt.sql, pol)
			assert.Equal(t, tt.want, r.HasDateFilter)
			assert.Equal(t, !tt.want, containsSubstring(r.Warnings, "No date filter"))
		})
	}
}

func TestAnalyze_DateFilterNotRequired(t *testing.T) {
	t.Parallel()
	pol := DefaultPolicy()
	pol.RequireDateFilter = false

	r := Analyze("SELECT * FROM users LIMIT 1", pol)
	assert.False(t, r.HasDateFilter)
	assert.Empty(t, r.Warnings)
	assert.True(t, r.IsValid)
}

func TestAnalyze_MaxJoinTables(t *testing.T) {
	t.Parallel()
	pol := DefaultPolicy()
	pol.MaxJoinTables = 2

	r := Analyze("SELECT * FROM a JOIN b ON a.id = b.a_id JOIN c ON b.id = c.b_id WHERE a.created_at > NOW() LIMIT 1", pol)
	assert.Len(t, r.TablesUsed, 3)
	assert.True(t, containsSubstring(r.Warnings, "joins 3 tables"))
	assert.True(t, r.IsValid)
}

func TestAnalyze_ZeroMaxJoinTablesIsStrict(t *testing.T) {
	t.Parallel()
	pol := DefaultPolicy()
	pol.MaxJoinTables = 0

	r := Analyze("SELECT * FROM users WHERE created_at > NOW() LIMIT 1", pol)
	assert.True(t, containsSubstring(r.Warnings, "joins 1 tables; policy allows at most 0"))
	assert.True(t, r.IsValid)
}

func TestAnalyze_AllowedTablesWarn(t *testing.T) {
	t.Parallel()
	pol := DefaultPolicy()
	pol.AllowedTables = []string{"users"}

	r := Analyze("SELECT * FROM users JOIN orders ON users.id = orders.user_id WHERE orders.created_at > NOW() LIMIT 1", pol)
	assert.True(t, r.IsValid)
	assert.True(t, containsSubstring(r.Warnings, "outside the allowed list: orders"))
}

func TestAnalyze_EstimatedDateSpan(t *testing.T) {
	t.Parallel()
	r := Analyze("SELECT * FROM users WHERE ts > NOW() - interval '90 days' AND ts < NOW() - INTERVAL '1 day'", DefaultPolicy())
	require.NotNil(t, r.EstimatedDateSpan)
	assert.Equal(t, "interval '90 days'", *r.EstimatedDateSpan)

	assert.Nil(t, Analyze("SELECT * FROM users", DefaultPolicy()).EstimatedDateSpan)
}

func TestAnalyze_OptimizedView(t *testing.T) {
	t.Parallel()
	pol := DefaultPolicy()
	pol.OptimizedViews = []string{"daily_audience_mv"}

	assert.True(t, Analyze("SELECT * FROM Daily_Audience_MV", pol).UsesOptimizedView)
	assert.False(t, Analyze("SELECT * FROM users", pol).UsesOptimizedView)
}

func TestAnalyze_InjectionWarning(t *testing.T) {
	t.Parallel()
	r := Analyze("SELECT * FROM users WHERE name = '1'' AND SLEEP(5)--' LIMIT 1", DefaultPolicy())
	assert.True(t, containsSubstring(r.Warnings, `column "name" looks like SQL injection`))
	assert.True(t, r.IsValid, "injection heuristics only warn")
}

func TestAnalyze_UnparseableTextStillReported(t *testing.T) {
	t.Parallel()
	r := Analyze("SELEC * FROM raw_logs", DefaultPolicy())

	assert.False(t, r.IsValid)
	assert.True(t, containsSubstring(r.Warnings, "could not be fully parsed"))
	assert.Equal(t, []string{"raw_logs"}, r.TablesUsed)
}

func TestAnalyze_Deterministic(t *testing.T) {
	t.Parallel()
	const sql = "SELECT * FROM users JOIN orders ON users.id = orders.user_id"
	assert.Equal(t, Analyze(sql, DefaultPolicy()), Analyze(sql, DefaultPolicy()))
}

func TestAddDefaultLimit(t *testing.T) {
	t.Parallel()
	pol := DefaultPolicy()

	fixed := AddDefaultLimit("SELECT * FROM users WHERE created_at > NOW() ;\n", pol)
	assert.Equal(t, "SELECT * FROM users WHERE created_at > NOW() LIMIT 1000", fixed)
	assert.True(t, Analyze(fixed, pol).HasResultLimit)

	again := AddDefaultLimit(fixed, pol)
	assert.Equal(t, fixed, again)
	assert.Equal(t, 1, strings.Count(strings.ToUpper(again), "LIMIT"))
}

func TestAddDefaultLimit_TrailingComment(t *testing.T) {
	t.Parallel()
	pol := DefaultPolicy()

	fixed := AddDefaultLimit("SELECT id FROM users WHERE status = 'active' -- active users", pol)
	assert.Equal(t, "SELECT id FROM users WHERE status = 'active' LIMIT 1000 -- active users", fixed)
	assert.True(t, Analyze(fixed, pol).HasResultLimit)
	assert.Equal(t, fixed, AddDefaultLimit(fixed, pol))

	fixed = AddDefaultLimit("SELECT id FROM users; /* nightly */\n", pol)
	assert.Equal(t, "SELECT id FROM users LIMIT 1000; /* nightly */", fixed)
	assert.True(t, Analyze(fixed, pol).HasResultLimit)
}

func TestAddDefaultLimit_CappedByHardCap(t *testing.T) {
	t.Parallel()
	pol := Policy{DefaultResultLimit: 5000, HardResultCap: 200}
	assert.Equal(t, "SELECT 1 FROM t LIMIT 200", AddDefaultLimit("SELECT 1 FROM t", pol))
}
