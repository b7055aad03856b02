package policy

import (
	"fmt"
	"os"
	"sort"

	"github.com/guillermoBallester/audiencelens/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// Default returns the policy used when no file is configured.
func Default() *Policy {
	return &Policy{Safety: domain.DefaultPolicy()}
}

// LoadFromFile reads a YAML policy file and returns a validated Policy.
// Safety fields absent from the file keep their defaults.
func LoadFromFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates policy YAML.
func Parse(data []byte) (*Policy, error) {
	pol := Default()
	if err := yaml.Unmarshal(data, pol); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}

	if err := validate(pol); err != nil {
		return nil, fmt.Errorf("validating policy: %w", err)
	}

	return pol, nil
}

func validate(pol *Policy) error {
	s := pol.Safety
	if s.MaxJoinTables < 0 {
		return fmt.Errorf("safety.max_join_tables: must not be negative, got %d", s.MaxJoinTables)
	}
	if s.DefaultResultLimit < 0 {
		return fmt.Errorf("safety.default_result_limit: must not be negative, got %d", s.DefaultResultLimit)
	}
	if s.HardResultCap < 0 {
		return fmt.Errorf("safety.hard_result_cap: must not be negative, got %d", s.HardResultCap)
	}

	// Masks are applied by column name, so one name must not carry two
	// different masks across tables.
	seen := make(map[string]string)
	keys := make([]string, 0, len(pol.Context.Tables))
	for key := range pol.Context.Tables {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if key == "" {
			return fmt.Errorf("context.tables contains an empty key")
		}
		tc := pol.Context.Tables[key]
		for col, cc := range tc.Columns {
			if col == "" {
				return fmt.Errorf("context.tables[%q].columns contains an empty key", key)
			}
			if !cc.Mask.Valid() {
				return fmt.Errorf("context.tables[%q].columns[%q].mask: invalid value %q (allowed: redact, hash, partial, null)", key, col, cc.Mask)
			}
			if cc.Mask == "" {
				continue
			}
			if prev, ok := seen[col]; ok && pol.Context.Tables[prev].Columns[col].Mask != cc.Mask {
				return fmt.Errorf("column %q has conflicting masks in %q and %q", col, prev, key)
			}
			seen[col] = key
		}
	}
	return nil
}
