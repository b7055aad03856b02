package postgres

import (
	"fmt"
	"strings"
)

// systemSchemas are never snapshotted when no schema list is given.
var systemSchemas = []string{"pg_catalog", "information_schema", "pg_toast"}

// schemaFilter builds the schema predicate for the table listing query.
// Placeholders start at $paramOffset. An empty list selects every user
// schema, skipping temp and toast namespaces.
func schemaFilter(schemas []string, column string, paramOffset int) (clause string, args []any) {
	if len(schemas) == 0 {
		quoted := make([]string, len(systemSchemas))
		for i, s := range systemSchemas {
			quoted[i] = "'" + s + "'"
		}
		return fmt.Sprintf("%s NOT IN (%s) AND %s NOT LIKE 'pg_temp_%%'",
			column, strings.Join(quoted, ", "), column), nil
	}
	placeholders := make([]string, len(schemas))
	args = make([]any, len(schemas))
	for i, s := range schemas {
		placeholders[i] = fmt.Sprintf("$%d", paramOffset+i)
		args[i] = s
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")), args
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// typeFamily groups the information_schema data_type names that can join
// against each other.
var typeFamily = map[string]string{
	"smallint": "int", "integer": "int", "bigint": "int", "int": "int",
	"int2": "int", "int4": "int", "int8": "int",
	"serial": "int", "smallserial": "int", "bigserial": "int",
	"uuid":              "uuid",
	"text":              "text",
	"character varying": "text",
	"varchar":           "text",
	"character":         "text",
	"citext":            "text",
}

// isTypeCompatible reports whether an FK column of type a can reference a
// key of type b.
func isTypeCompatible(a, b string) bool {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	fa, oka := typeFamily[a]
	fb, okb := typeFamily[b]
	if oka && okb {
		return fa == fb
	}
	return a == b
}
