package policy

import "github.com/guillermoBallester/audiencelens/internal/core/domain"

// lookup finds the context for t, trying schema.table before the bare name.
func (c ContextConfig) lookup(t domain.Table) (TableContext, bool) {
	if t.Schema != "" {
		if tc, ok := c.Tables[t.Schema+"."+t.Name]; ok {
			return tc, true
		}
	}
	tc, ok := c.Tables[t.Name]
	return tc, ok
}

// MergeTables returns copies of tables enriched with business context.
// YAML descriptions only fill empty descriptions, so catalog or database
// comments take precedence. Masks from the policy always win.
func MergeTables(tables []domain.Table, ctx ContextConfig) []domain.Table {
	out := make([]domain.Table, len(tables))
	for i, t := range tables {
		out[i] = t
		tc, ok := ctx.lookup(t)
		if !ok {
			continue
		}

		if t.Description == "" && tc.Description != "" {
			out[i].Description = tc.Description
		}

		cols := make([]domain.Column, len(t.Columns))
		copy(cols, t.Columns)
		for j, col := range cols {
			cc, ok := tc.Columns[col.Name]
			if !ok {
				continue
			}
			if col.Description == "" && cc.Description != "" {
				cols[j].Description = cc.Description
			}
			if cc.Mask != "" {
				cols[j].Mask = cc.Mask
			}
		}
		out[i].Columns = cols
	}
	return out
}

// MaskSpec extracts a column-name → mask-type map from the policy.
func MaskSpec(ctx ContextConfig) map[string]domain.MaskType {
	spec := make(map[string]domain.MaskType)
	for _, tc := range ctx.Tables {
		for col, cc := range tc.Columns {
			if cc.Mask != "" {
				spec[col] = cc.Mask
			}
		}
	}
	return spec
}
