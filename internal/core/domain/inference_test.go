package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchFKNamingPattern(t *testing.T) {
	t.Parallel()
	tables := map[string]bool{
		"users":      true,
		"categories": true,
		"status":     true,
		"people":     true,
		"campaigns":  true,
	}

	tests := []struct {
		name      string
		column    string
		wantMatch bool
		wantTable string
	}{
		{"regular plural", "user_id", true, "users"},
		{"y to ies", "category_id", true, "categories"},
		{"irregular plural", "person_id", true, "people"},
		{"singular table name", "status_id", true, "status"},
		{"case-insensitive column", "Campaign_ID", true, "campaigns"},
		{"no _id suffix", "username", false, ""},
		{"no matching table", "order_id", false, ""},
		{"just _id", "_id", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			candidate, ok := MatchFKNamingPattern(tt.column, tables)
			assert.Equal(t, tt.wantMatch, ok)
			if ok {
				assert.Equal(t, tt.wantTable, candidate.ReferencedTable)
				assert.Equal(t, "high", candidate.Confidence)
				assert.Equal(t, tt.column, candidate.ColumnName)
				assert.NotEmpty(t, candidate.Reason)
			}
		})
	}
}

func TestInferForeignKeys(t *testing.T) {
	t.Parallel()
	tables := []Table{
		{Name: "users", Columns: []Column{
			{Name: "uid", Type: "bigint", IsPrimaryKey: true},
			{Name: "user_id", Type: "bigint"},
		}},
		{Name: "orders", Columns: []Column{
			{Name: "id", Type: "integer", IsPrimaryKey: true},
			{Name: "user_id", Type: "bigint"},
			{Name: "campaign_id", Type: "text"},
			{Name: "coupon_id", Type: "uuid", ForeignKey: &ForeignKeyRef{Table: "coupons", Column: "code"}},
		}},
		{Name: "campaigns", Columns: []Column{{Name: "name", Type: "text"}}},
	}

	out := InferForeignKeys(tables, nil)

	require.Len(t, out, 3)
	orders := out[1]
	assert.Equal(t, &ForeignKeyRef{Table: "users", Column: "uid"}, orders.Columns[1].ForeignKey, "references the declared primary key")
	assert.Equal(t, &ForeignKeyRef{Table: "campaigns", Column: "id"}, orders.Columns[2].ForeignKey, "falls back to id")
	assert.Equal(t, "coupons", orders.Columns[3].ForeignKey.Table, "declared keys are kept")
	assert.Nil(t, out[0].Columns[1].ForeignKey, "self references are skipped")
	assert.Nil(t, tables[1].Columns[1].ForeignKey, "input is not modified")
}

func TestInferForeignKeys_TypeCompatibility(t *testing.T) {
	t.Parallel()
	tables := []Table{
		{Name: "users", Columns: []Column{{Name: "id", Type: "uuid", IsPrimaryKey: true}}},
		{Name: "orders", Columns: []Column{{Name: "user_id", Type: "integer"}}},
	}
	same := func(a, b string) bool { return a == b }

	out := InferForeignKeys(tables, same)
	assert.Nil(t, out[1].Columns[0].ForeignKey)

	out = InferForeignKeys(tables, nil)
	assert.NotNil(t, out[1].Columns[0].ForeignKey)
}
