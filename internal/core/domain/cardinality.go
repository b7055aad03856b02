package domain

// CardinalityClass describes how many distinct values a column holds
// relative to its row count.
type CardinalityClass string

const (
	CardinalityUnique          CardinalityClass = "unique"
	CardinalityNearUnique      CardinalityClass = "near_unique"
	CardinalityHighCardinality CardinalityClass = "high_cardinality"
	CardinalityLowCardinality  CardinalityClass = "low_cardinality"
	CardinalityEnumLike        CardinalityClass = "enum_like"
)

// enumValueLimit bounds how many common values are kept for an enum-like
// column; anything larger is not useful as a prompt hint.
const enumValueLimit = 20

// ClassifyByDistinctCount maps absolute distinct and total row counts to a
// class. Snapshotters convert engine-specific statistics to absolute counts
// first.
func ClassifyByDistinctCount(distinctCount int64, totalRows int64) CardinalityClass {
	if totalRows > 0 && distinctCount == totalRows {
		return CardinalityUnique
	}
	if totalRows > 0 && float64(distinctCount)/float64(totalRows) >= 0.9 {
		return CardinalityNearUnique
	}
	switch {
	case distinctCount <= enumValueLimit:
		return CardinalityEnumLike
	case distinctCount <= 200:
		return CardinalityLowCardinality
	}
	return CardinalityHighCardinality
}

// Profile records a column's cardinality. Common values are kept only for
// enum-like columns and are truncated to enumValueLimit.
func (c *Column) Profile(distinctCount, totalRows int64, common []string) {
	c.Cardinality = ClassifyByDistinctCount(distinctCount, totalRows)
	if c.Cardinality != CardinalityEnumLike || len(common) == 0 {
		c.Values = nil
		return
	}
	if len(common) > enumValueLimit {
		common = common[:enumValueLimit]
	}
	c.Values = append([]string(nil), common...)
}
