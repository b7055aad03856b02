package domain

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulate_SingleTable(t *testing.T) {
	t.Parallel()
	cat := audienceCatalog(t)

	res := NewSimulator(0).Simulate(Extract("SELECT * FROM users"), cat)

	require.Len(t, res.Rows, 3)
	assert.Equal(t, []string{"users"}, res.Tables)
	assert.Equal(t, 1, res.Rows[0]["id"])

	res.Rows[0]["email"] = "changed"
	tbl, _ := cat.Table("users")
	assert.Equal(t, "ada@example.com", tbl.SampleRows[0]["email"], "catalog rows are copied")
}

func TestSimulate_UnknownTablesSkipped(t *testing.T) {
	t.Parallel()
	cat := audienceCatalog(t)

	res := NewSimulator(0).Simulate(Extract("SELECT * FROM accounts"), cat)
	assert.Empty(t, res.Rows)
	assert.Empty(t, res.Tables)

	res = NewSimulator(0).Simulate(Extract("SELECT * FROM accounts JOIN users ON 1 = 1"), cat)
	assert.Len(t, res.Rows, 3, "the first resolvable table becomes primary")
}

func TestSimulate_JoinByKey(t *testing.T) {
	t.Parallel()
	cat := audienceCatalog(t)

	res := NewSimulator(0).Simulate(Extract("SELECT * FROM users u JOIN orders o ON u.id = o.user_id"), cat)

	require.Len(t, res.Rows, 3)
	assert.Equal(t, 1, res.Rows[0]["id"], "primary id is not overwritten")
	assert.Equal(t, 120.0, res.Rows[0]["total"])
	assert.Equal(t, 1, res.Rows[0]["user_id"])
	assert.Equal(t, 25.5, res.Rows[1]["total"])
	assert.Equal(t, 25.5, res.Rows[2]["total"], "unmatched row falls back to index 2 mod 2")
}

func TestSimulate_Filters(t *testing.T) {
	t.Parallel()
	cat := audienceCatalog(t)
	sim := NewSimulator(0)

	tests := []struct {
		name string
		sql  string
		ids  []int
	}{
		{"equality is case-insensitive", "SELECT * FROM users WHERE status = 'ACTIVE'", []int{1, 3}},
		{"numeric greater", "SELECT * FROM users WHERE age > 20", []int{1, 3}},
		{"numeric less-or-equal", "SELECT * FROM users WHERE age <= 36", []int{1, 2}},
		{"numeric equality", "SELECT * FROM users WHERE age = 19", []int{2}},
		{"in list", "SELECT * FROM users WHERE status IN ('inactive', 'pending')", []int{2}},
		{"conditions are ANDed", "SELECT * FROM users WHERE status = 'active' AND age < 40", []int{1}},
		{"OR is approximated as AND", "SELECT * FROM users WHERE status = 'inactive' OR age > 50", []int{}},
		{"absent column is permissive", "SELECT * FROM users WHERE plan = 'gold'", []int{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := sim.Simulate(Extract(tt.sql), cat)
			ids := []int{}
			for _, r := range res.Rows {
				ids = append(ids, r["id"].(int))
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestSimulate_ApproximateFlag(t *testing.T) {
	t.Parallel()
	res := NewSimulator(0).Simulate(Extract("SELECT * FROM users WHERE age > 1 OR age < 0"), audienceCatalog(t))
	assert.True(t, res.Approximate)
}

func TestSimulate_NilFieldFailsComparison(t *testing.T) {
	t.Parallel()
	cat, err := NewCatalog([]Table{{Name: "t", SampleRows: []Row{{"v": nil}, {"v": "3"}}}})
	require.NoError(t, err)

	res := NewSimulator(0).Simulate(Extract("SELECT * FROM t WHERE v >= 1"), cat)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "3", res.Rows[0]["v"])
}

func TestSimulate_Projection(t *testing.T) {
	t.Parallel()
	cat := audienceCatalog(t)
	sim := NewSimulator(0)

	res := sim.Simulate(Extract("SELECT u.email, o.id FROM users u JOIN orders o ON u.id = o.user_id"), cat)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, Row{"email": "ada@example.com", "id": 1}, res.Rows[0])

	res = sim.Simulate(Extract("SELECT Email, nickname FROM users"), cat)
	assert.Equal(t, Row{"Email": "ada@example.com"}, res.Rows[0], "missing columns are dropped")

	res = sim.Simulate(Extract("SELECT nickname FROM users"), cat)
	assert.Len(t, res.Rows[0], 4, "a row with no requested column is returned whole")
}

func TestSimulate_ProjectionSuffixFallback(t *testing.T) {
	t.Parallel()
	cat, err := NewCatalog([]Table{{Name: "t", SampleRows: []Row{{"id": 1, "users_email": "a@x.io"}}}})
	require.NoError(t, err)

	res := NewSimulator(0).Simulate(Extract("SELECT email FROM t"), cat)
	assert.Equal(t, Row{"email": "a@x.io"}, res.Rows[0])
}

// wideCatalog has 20 primary rows and 3 joined rows whose keys never match.
func wideCatalog(t *testing.T) *Catalog {
	t.Helper()
	primary := make([]Row, 20)
	for i := range primary {
		primary[i] = Row{"id": i + 1, "name": fmt.Sprintf("user-%02d", i+1)}
	}
	cat, err := NewCatalog([]Table{
		{Name: "users", SampleRows: primary},
		{Name: "segments", SampleRows: []Row{
			{"id": 901, "user_id": 501, "segment": "a"},
			{"id": 902, "user_id": 502, "segment": "b"},
			{"id": 903, "user_id": 503, "segment": "c"},
		}},
	})
	require.NoError(t, err)
	return cat
}

func TestSimulate_JoinFallbackDeterministic(t *testing.T) {
	t.Parallel()
	cat := wideCatalog(t)
	q := Extract("SELECT * FROM users JOIN segments ON users.id = segments.user_id")
	sim := NewSimulator(0)

	first := sim.Simulate(q, cat)
	require.Len(t, first.Rows, 20, "one merged row per primary row")
	for i, r := range first.Rows {
		assert.Equal(t, []string{"a", "b", "c"}[i%3], r["segment"])
		assert.Equal(t, i+1, r["id"])
	}

	a, err := json.Marshal(first)
	require.NoError(t, err)
	for range 5 {
		b, err := json.Marshal(sim.Simulate(q, cat))
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b))
	}
}

func TestSimulate_LimitTruncation(t *testing.T) {
	t.Parallel()
	cat := wideCatalog(t)
	sim := NewSimulator(0)
	const sql = "SELECT * FROM users JOIN segments ON users.id = segments.user_id"

	full := sim.Simulate(Extract(sql), cat)
	require.Len(t, full.Rows, 20)
	assert.False(t, full.Truncated)

	limited := sim.Simulate(Extract(sql+" LIMIT 5"), cat)
	require.Len(t, limited.Rows, 5)
	assert.True(t, limited.Truncated)
	assert.Equal(t, full.Rows[:5], limited.Rows)
}

func TestSimulate_HardCap(t *testing.T) {
	t.Parallel()
	cat := wideCatalog(t)

	res := NewSimulator(3).Simulate(Extract("SELECT * FROM users LIMIT 10"), cat)
	assert.Len(t, res.Rows, 3)

	res = NewSimulator(3).Simulate(Extract("SELECT * FROM users"), cat)
	assert.Len(t, res.Rows, 20, "without LIMIT the sample row count bounds the result")
}

type fixedJoin struct{}

func (fixedJoin) Join(base []Row, _ *Table) []Row {
	out := make([]Row, len(base))
	for i, r := range base {
		out[i] = Row{"id": r["id"], "joined": true}
	}
	return out
}

func TestSimulate_CustomJoinStrategy(t *testing.T) {
	t.Parallel()
	sim := Simulator{Join: fixedJoin{}}

	res := sim.Simulate(Extract("SELECT * FROM users JOIN orders ON users.id = orders.user_id"), audienceCatalog(t))
	require.Len(t, res.Rows, 3)
	assert.Equal(t, true, res.Rows[0]["joined"])
}

func TestSimulate_FilterSeesJoinedValue(t *testing.T) {
	t.Parallel()
	cat, err := NewCatalog([]Table{
		{Name: "users", SampleRows: []Row{{"id": 1, "status": "active"}}},
		{Name: "orders", SampleRows: []Row{{"id": 9, "user_id": 1, "status": "shipped"}}},
	})
	require.NoError(t, err)

	res := NewSimulator(0).Simulate(Extract("SELECT * FROM users JOIN orders ON users.id = orders.user_id WHERE status = 'shipped'"), cat)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, Row{"id": 1, "user_id": 1, "status": "shipped"}, res.Rows[0])
}
