package domain

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// JoinStrategy merges the sample rows of a joined table into an existing
// row set. Implementations must not modify base or table.
type JoinStrategy interface {
	Join(base []Row, table *Table) []Row
}

// HeuristicJoinStrategy pairs rows on the user_id/id naming convention and,
// when no row matches, falls back to the joined row at index i mod n. Every
// base row therefore receives some enrichment even without a real key match.
// The result is deterministic for fixed inputs.
type HeuristicJoinStrategy struct{}

var _ JoinStrategy = HeuristicJoinStrategy{}

func (HeuristicJoinStrategy) Join(base []Row, table *Table) []Row {
	out := make([]Row, len(base))
	for i, row := range base {
		merged := copyRow(row)
		if table == nil || len(table.SampleRows) == 0 {
			out[i] = merged
			continue
		}
		partner := matchRow(row, table.SampleRows)
		if partner == nil {
			partner = table.SampleRows[i%len(table.SampleRows)]
		}
		mergeInto(merged, partner)
		out[i] = merged
	}
	return out
}

// matchRow finds a joined row whose user_id equals the base row's id or
// user_id, or whose id equals the base row's user_id.
func matchRow(row Row, candidates []Row) Row {
	id, _ := field(row, "id")
	userID, _ := field(row, "user_id")
	for _, c := range candidates {
		cUserID, _ := field(c, "user_id")
		cID, _ := field(c, "id")
		if sameKey(cUserID, id) || sameKey(cUserID, userID) || sameKey(cID, userID) {
			return c
		}
	}
	return nil
}

// mergeInto copies src's fields into dst. A populated id or user_id in dst
// is kept; every other field takes the joined row's value.
func mergeInto(dst, src Row) {
	for _, k := range slices.Sorted(maps.Keys(src)) {
		key, existing, taken := fieldKey(dst, k)
		if !taken {
			dst[k] = src[k]
			continue
		}
		if isKeyField(k) && existing != nil {
			continue
		}
		dst[key] = src[k]
	}
}

func isKeyField(name string) bool {
	return strings.EqualFold(name, "id") || strings.EqualFold(name, "user_id")
}

func sameKey(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// field looks a row field up case-insensitively, preferring an exact match.
func field(row Row, name string) (any, bool) {
	_, v, ok := fieldKey(row, name)
	return v, ok
}

// fieldKey is field that also returns the key actually stored in row.
func fieldKey(row Row, name string) (string, any, bool) {
	if v, ok := row[name]; ok {
		return name, v, true
	}
	for _, k := range slices.Sorted(maps.Keys(row)) {
		if strings.EqualFold(k, name) {
			return k, row[k], true
		}
	}
	return "", nil, false
}

func copyRow(row Row) Row {
	out := make(Row, len(row))
	maps.Copy(out, row)
	return out
}
