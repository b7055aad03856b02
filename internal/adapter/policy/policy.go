package policy

import (
	"fmt"

	"github.com/guillermoBallester/audiencelens/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// Policy holds operator-controlled configuration loaded from a YAML file:
// the safety rules queries are analyzed against, plus data dictionary
// context and column-level PII masking for catalog tables.
type Policy struct {
	Safety  domain.Policy `yaml:"safety"`
	Context ContextConfig `yaml:"context"`
}

// ContextConfig maps table names (schema.table or bare table) to business
// descriptions and masks that are merged into the catalog on load.
type ContextConfig struct {
	Tables map[string]TableContext `yaml:"tables"`
}

// TableContext provides business descriptions and masking rules for a table and its columns.
type TableContext struct {
	Description string                   `yaml:"description"`
	Columns     map[string]ColumnContext `yaml:"columns"`
}

// ColumnContext holds a column's business description and optional mask directive.
type ColumnContext struct {
	Description string          `yaml:"description"`
	Mask        domain.MaskType `yaml:"mask,omitempty"`
}

// UnmarshalYAML accepts both a plain description string and the struct form.
//
//	columns:
//	  plan: "Subscription tier"     # plain string → ColumnContext{Description: "Subscription tier"}
//	  email:                        # struct with optional mask
//	    description: "Login email"
//	    mask: "redact"
func (cc *ColumnContext) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		cc.Description = value.Value
		return nil
	}
	// Decode as struct (avoid infinite recursion by using an alias type).
	type alias ColumnContext
	var a alias
	if err := value.Decode(&a); err != nil {
		return fmt.Errorf("decoding column context: %w", err)
	}
	*cc = ColumnContext(a)
	return nil
}
