package domain

import (
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
)

// FKCandidate is a foreign key guessed from the <entity>_id naming
// convention.
type FKCandidate struct {
	ColumnName      string // e.g. "user_id"
	ReferencedTable string // e.g. "users"
	ReferencedPK    string // e.g. "id"
	Confidence      string // "high" or "medium"
	Reason          string
}

// MatchFKNamingPattern checks whether columnName is <entity>_id and the
// entity names a table in tableNames (keys lowercased). The plural form is
// preferred; a singular table name also matches with high confidence, and
// a naive "+s" plural with medium confidence.
func MatchFKNamingPattern(columnName string, tableNames map[string]bool) (FKCandidate, bool) {
	lower := strings.ToLower(columnName)
	if !strings.HasSuffix(lower, "_id") {
		return FKCandidate{}, false
	}
	entity := strings.TrimSuffix(lower, "_id")
	if entity == "" {
		return FKCandidate{}, false
	}

	candidates := []struct {
		name       string
		confidence string
	}{
		{inflection.Plural(entity), "high"},
		{entity, "high"},
		{inflection.Singular(entity), "high"},
		{entity + "s", "medium"},
	}
	for _, c := range candidates {
		if !tableNames[c.name] || c.name == "" {
			continue
		}
		return FKCandidate{
			ColumnName:      columnName,
			ReferencedTable: c.name,
			ReferencedPK:    "id",
			Confidence:      c.confidence,
			Reason:          fmt.Sprintf("column %q matches naming pattern for table %q", columnName, c.name),
		}, true
	}
	return FKCandidate{}, false
}

// TypeCompatibility reports whether two declared column types can be joined.
// A nil TypeCompatibility accepts every pair.
type TypeCompatibility func(a, b string) bool

// InferForeignKeys returns a copy of tables where *_id columns without a
// declared foreign key point at the table their name implies. The
// referenced column is that table's primary key, or "id" when none is
// declared. Self-references and type-incompatible pairs are skipped.
func InferForeignKeys(tables []Table, compatible TypeCompatibility) []Table {
	names := make(map[string]bool, len(tables))
	pks := make(map[string]Column, len(tables))
	for _, t := range tables {
		key := strings.ToLower(t.Name)
		names[key] = true
		for _, c := range t.Columns {
			if c.IsPrimaryKey {
				pks[key] = c
				break
			}
		}
	}

	out := make([]Table, len(tables))
	for i, t := range tables {
		cols := make([]Column, len(t.Columns))
		copy(cols, t.Columns)
		for j, c := range cols {
			if c.ForeignKey != nil || c.IsPrimaryKey {
				continue
			}
			cand, ok := MatchFKNamingPattern(c.Name, names)
			if !ok || strings.EqualFold(cand.ReferencedTable, t.Name) {
				continue
			}
			ref := ForeignKeyRef{Table: cand.ReferencedTable, Column: cand.ReferencedPK}
			if pk, ok := pks[cand.ReferencedTable]; ok {
				if compatible != nil && !compatible(c.Type, pk.Type) {
					continue
				}
				ref.Column = pk.Name
			}
			cols[j].ForeignKey = &ref
		}
		t.Columns = cols
		out[i] = t
	}
	return out
}
