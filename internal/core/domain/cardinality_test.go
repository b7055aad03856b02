package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyByDistinctCount(t *testing.T) {
	tests := []struct {
		name          string
		distinctCount int64
		totalRows     int64
		want          CardinalityClass
	}{
		{"all unique", 1000, 1000, CardinalityUnique},
		{"near unique (95%)", 950, 1000, CardinalityNearUnique},
		{"near unique threshold (90%)", 900, 1000, CardinalityNearUnique},
		{"high cardinality (50%)", 500, 1000, CardinalityHighCardinality},
		{"enum-like (5 distinct)", 5, 1000, CardinalityEnumLike},
		{"enum-like (20 distinct)", 20, 1000, CardinalityEnumLike},
		{"low cardinality (50 distinct)", 50, 1000, CardinalityLowCardinality},
		{"low cardinality (200 distinct)", 200, 1000, CardinalityLowCardinality},
		{"high cardinality (500 distinct)", 500, 1000, CardinalityHighCardinality},
		{"zero distinct", 0, 1000, CardinalityEnumLike},
		{"one distinct", 1, 1000, CardinalityEnumLike},
		{"zero rows zero distinct", 0, 0, CardinalityEnumLike},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyByDistinctCount(tt.distinctCount, tt.totalRows)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestColumnProfile(t *testing.T) {
	t.Run("enum-like keeps common values", func(t *testing.T) {
		col := Column{Name: "status"}
		col.Profile(3, 100, []string{"active", "inactive", "pending"})
		assert.Equal(t, CardinalityEnumLike, col.Cardinality)
		assert.Equal(t, []string{"active", "inactive", "pending"}, col.Values)
	})

	t.Run("unique drops values", func(t *testing.T) {
		col := Column{Name: "id", Values: []string{"stale"}}
		col.Profile(100, 100, []string{"1", "2"})
		assert.Equal(t, CardinalityUnique, col.Cardinality)
		assert.Nil(t, col.Values)
	})

	t.Run("values truncated", func(t *testing.T) {
		common := make([]string, 30)
		for i := range common {
			common[i] = string(rune('a' + i%26))
		}
		col := Column{Name: "code"}
		col.Profile(15, 1000, common)
		assert.Len(t, col.Values, enumValueLimit)
	})
}
