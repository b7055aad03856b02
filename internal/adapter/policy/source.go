package policy

import (
	"context"

	"github.com/guillermoBallester/audiencelens/internal/core/domain"
	"github.com/guillermoBallester/audiencelens/internal/core/port"
)

// Source decorates a CatalogSource with policy-based context enrichment:
// descriptions and masks from the policy YAML are merged into every table
// it loads.
type Source struct {
	inner  port.CatalogSource
	policy *Policy
}

func NewSource(inner port.CatalogSource, pol *Policy) *Source {
	return &Source{inner: inner, policy: pol}
}

func (s *Source) Load(ctx context.Context) ([]domain.Table, error) {
	tables, err := s.inner.Load(ctx)
	if err != nil {
		return nil, err
	}
	return MergeTables(tables, s.policy.Context), nil
}
