package mysql

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/guillermoBallester/audiencelens/internal/core/domain"
)

// quoteIdent quotes a MySQL identifier.
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// scanRows reads every row into catalog rows keyed by column name.
func scanRows(rows *sql.Rows) ([]domain.Row, error) {
	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("reading column types: %w", err)
	}

	var out []domain.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(domain.Row, len(cols))
		for i, c := range cols {
			row[c.Name()] = normalizeValue(vals[i], c.DatabaseTypeName())
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

// normalizeValue converts driver values to plain strings and numbers. The
// text protocol returns most columns as []byte, so numeric database types
// are parsed back into numbers.
func normalizeValue(v any, dbType string) any {
	switch x := v.(type) {
	case nil, bool, string, int64, float64:
		return x
	case float32:
		return float64(x)
	case time.Time:
		if dbType == "DATE" {
			return x.Format(time.DateOnly)
		}
		return x.UTC().Format(time.RFC3339)
	case []byte:
		s := string(x)
		switch dbType {
		case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "BIGINT", "YEAR":
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n
			}
		case "UNSIGNED TINYINT", "UNSIGNED SMALLINT", "UNSIGNED MEDIUMINT", "UNSIGNED INT", "UNSIGNED BIGINT":
			if n, err := strconv.ParseUint(s, 10, 64); err == nil {
				return n
			}
		case "DECIMAL", "FLOAT", "DOUBLE":
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
		return s
	}
	return fmt.Sprint(v)
}

// isTypeCompatible checks if two MySQL column types can be joined as a
// foreign key.
func isTypeCompatible(a, b string) bool {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	intTypes := map[string]bool{
		"tinyint": true, "smallint": true, "mediumint": true, "int": true, "bigint": true,
	}
	textTypes := map[string]bool{"char": true, "varchar": true, "text": true}

	if intTypes[a] && intTypes[b] {
		return true
	}
	if textTypes[a] && textTypes[b] {
		return true
	}
	return a == b
}
