package service

import (
	"sync/atomic"

	"github.com/guillermoBallester/audiencelens/internal/core/domain"
)

// CatalogStore holds the current catalog. A reload swaps the whole catalog
// so in-flight previews keep the one they started with.
type CatalogStore struct {
	current atomic.Pointer[domain.Catalog]
}

func NewCatalogStore(cat *domain.Catalog) *CatalogStore {
	s := &CatalogStore{}
	if cat == nil {
		cat, _ = domain.NewCatalog(nil)
	}
	s.current.Store(cat)
	return s
}

// Catalog returns the current catalog. It is never nil.
func (s *CatalogStore) Catalog() *domain.Catalog {
	return s.current.Load()
}

// Swap installs cat and returns the previous catalog.
func (s *CatalogStore) Swap(cat *domain.Catalog) *domain.Catalog {
	return s.current.Swap(cat)
}
