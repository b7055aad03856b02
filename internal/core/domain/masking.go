package domain

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// MaskType is a column masking strategy for preview output.
type MaskType string

const (
	MaskRedact  MaskType = "redact"
	MaskHash    MaskType = "hash"
	MaskPartial MaskType = "partial"
	MaskNull    MaskType = "null"
)

// Valid reports whether m is a known strategy. The zero value means
// "no mask" and is valid.
func (m MaskType) Valid() bool {
	switch m {
	case MaskRedact, MaskHash, MaskPartial, MaskNull, "":
		return true
	}
	return false
}

// ApplyMask transforms a single value. Masked values may change type
// (a hashed int becomes a string); MaskNull returns nil.
func ApplyMask(value any, maskType MaskType) any {
	if value == nil {
		return nil
	}

	switch maskType {
	case MaskRedact:
		return "***"
	case MaskHash:
		h := sha256.Sum256([]byte(fmt.Sprintf("%v", value)))
		return fmt.Sprintf("%x", h)
	case MaskPartial:
		return maskPartial(value)
	case MaskNull:
		return nil
	default:
		return value
	}
}

// maskPartial keeps the last 4 runes.
func maskPartial(value any) string {
	runes := []rune(fmt.Sprintf("%v", value))
	if len(runes) <= 4 {
		return "***" + string(runes)
	}
	for i := 0; i < len(runes)-4; i++ {
		runes[i] = '*'
	}
	return string(runes)
}

// MaskRows returns copies of rows with masked columns transformed. A mask
// keyed "email" also covers a merged field such as "users_email". Input
// rows are left untouched.
func MaskRows(rows []Row, masks map[string]MaskType) []Row {
	if len(masks) == 0 {
		return rows
	}
	out := make([]Row, len(rows))
	for i, row := range rows {
		masked := make(Row, len(row))
		for field, val := range row {
			if mt, ok := maskFor(field, masks); ok {
				val = ApplyMask(val, mt)
			}
			masked[field] = val
		}
		out[i] = masked
	}
	return out
}

func maskFor(field string, masks map[string]MaskType) (MaskType, bool) {
	lower := strings.ToLower(field)
	for col, mt := range masks {
		if strings.ToLower(col) == lower {
			return mt, true
		}
	}
	for col, mt := range masks {
		if strings.HasSuffix(lower, "_"+strings.ToLower(col)) {
			return mt, true
		}
	}
	return "", false
}
