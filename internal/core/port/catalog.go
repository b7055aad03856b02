package port

import (
	"context"

	"github.com/guillermoBallester/audiencelens/internal/core/domain"
)

// CatalogSource loads catalog tables from a file, an object store or any
// other backing store.
type CatalogSource interface {
	Load(ctx context.Context) ([]domain.Table, error)
}

// SnapshotTarget names a table a Snapshotter can capture.
type SnapshotTarget struct {
	Schema string
	Name   string
}

// Snapshotter introspects a live database and captures tables, their
// columns and a handful of sample rows for use as a catalog.
type Snapshotter interface {
	ListTables(ctx context.Context) ([]SnapshotTarget, error)
	SnapshotTable(ctx context.Context, schema, name string) (*domain.Table, error)
	// TypesCompatible reports whether a column of type a can reference a
	// column of type b.
	TypesCompatible(a, b string) bool
	Close()
}
