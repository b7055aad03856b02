package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/guillermoBallester/audiencelens/internal/core/domain"
	"github.com/guillermoBallester/audiencelens/internal/core/port"
)

// TableSummary is the list view of a catalog table.
type TableSummary struct {
	Name        string `json:"name"`
	Schema      string `json:"schema,omitempty"`
	Description string `json:"description,omitempty"`
	Columns     int    `json:"columns"`
	SampleRows  int    `json:"sample_rows"`
}

// CatalogService exposes the current catalog and reloads or snapshots it.
type CatalogService struct {
	store  *CatalogStore
	source port.CatalogSource
	logger *slog.Logger
}

// NewCatalogService returns a catalog service. source may be nil when the
// catalog cannot be reloaded.
func NewCatalogService(store *CatalogStore, source port.CatalogSource, logger *slog.Logger) *CatalogService {
	return &CatalogService{store: store, source: source, logger: logger}
}

func (s *CatalogService) List() []TableSummary {
	tables := s.store.Catalog().Tables()
	out := make([]TableSummary, len(tables))
	for i, t := range tables {
		out[i] = TableSummary{
			Name:        t.Name,
			Schema:      t.Schema,
			Description: t.Description,
			Columns:     len(t.Columns),
			SampleRows:  len(t.SampleRows),
		}
	}
	return out
}

// Describe returns a copy of the named table with masked sample rows.
func (s *CatalogService) Describe(name string) (*domain.Table, error) {
	cat := s.store.Catalog()
	t, ok := cat.Table(name)
	if !ok {
		return nil, fmt.Errorf("%w: table %q", domain.ErrNotFound, name)
	}
	out := *t
	out.SampleRows = domain.MaskRows(t.SampleRows, cat.MaskSpec())
	return &out, nil
}

// Reload loads the catalog from the configured source and swaps it in.
func (s *CatalogService) Reload(ctx context.Context) error {
	if s.source == nil {
		return errors.New("no catalog source configured")
	}
	tables, err := s.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	cat, err := domain.NewCatalog(tables)
	if err != nil {
		return fmt.Errorf("building catalog: %w", err)
	}
	s.store.Swap(cat)
	s.logger.InfoContext(ctx, "catalog loaded", slog.Int("tables", cat.Len()))
	return nil
}

// SnapshotProgress is called after each table is captured.
type SnapshotProgress func(done, total int, table string)

// Snapshot captures every table the snapshotter can see and infers foreign
// keys that follow the <entity>_id naming convention.
func Snapshot(ctx context.Context, snap port.Snapshotter, logger *slog.Logger, progress SnapshotProgress) ([]domain.Table, error) {
	start := time.Now()
	targets, err := snap.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	tables := make([]domain.Table, 0, len(targets))
	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := snap.SnapshotTable(ctx, target.Schema, target.Name)
		if err != nil {
			return nil, fmt.Errorf("snapshotting %s.%s: %w", target.Schema, target.Name, err)
		}
		tables = append(tables, *t)
		if progress != nil {
			progress(i+1, len(targets), target.Name)
		}
	}

	tables = domain.InferForeignKeys(tables, snap.TypesCompatible)
	logger.InfoContext(ctx, "snapshot complete",
		slog.Int("tables", len(tables)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return tables, nil
}
