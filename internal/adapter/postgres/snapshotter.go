package postgres

import (
	"context"
	"fmt"

	"github.com/guillermoBallester/audiencelens/internal/core/domain"
	"github.com/guillermoBallester/audiencelens/internal/core/port"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultSampleSize is the number of sample rows captured per table.
const DefaultSampleSize = 20

// Snapshotter captures catalog tables from PostgreSQL system catalogs and
// a random sample of each table's rows.
type Snapshotter struct {
	pool       *pgxpool.Pool
	schemas    []string // empty means all non-system schemas
	sampleSize int
}

var _ port.Snapshotter = (*Snapshotter)(nil)

func NewSnapshotter(pool *pgxpool.Pool, schemas []string, sampleSize int) *Snapshotter {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &Snapshotter{pool: pool, schemas: schemas, sampleSize: sampleSize}
}

func (s *Snapshotter) ListTables(ctx context.Context) ([]port.SnapshotTarget, error) {
	filter, args := schemaFilter(s.schemas, "t.table_schema", 1)
	query := fmt.Sprintf(queryListTables, filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var targets []port.SnapshotTarget
	for rows.Next() {
		var t port.SnapshotTarget
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, fmt.Errorf("scanning table row: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

func (s *Snapshotter) SnapshotTable(ctx context.Context, schema, tableName string) (*domain.Table, error) {
	cols, err := s.fetchColumns(ctx, schema, tableName)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s.%s %w", schema, tableName, domain.ErrNotFound)
	}

	t := &domain.Table{Name: tableName, Schema: schema, Columns: cols}

	if err := s.pool.QueryRow(ctx, queryTableComment, schema, tableName).Scan(&t.Description); err != nil {
		return nil, fmt.Errorf("querying table comment: %w", err)
	}
	if err := s.markPrimaryKeys(ctx, t); err != nil {
		return nil, err
	}
	if err := s.markForeignKeys(ctx, t); err != nil {
		return nil, err
	}
	if err := s.profileColumns(ctx, t); err != nil {
		return nil, err
	}

	t.SampleRows, err = s.fetchSampleRows(ctx, schema, tableName)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// TypesCompatible reports whether an FK column of type a can reference a
// key of type b.
func (s *Snapshotter) TypesCompatible(a, b string) bool {
	return isTypeCompatible(a, b)
}

func (s *Snapshotter) Close() {
	s.pool.Close()
}

func (s *Snapshotter) fetchColumns(ctx context.Context, schema, tableName string) ([]domain.Column, error) {
	rows, err := s.pool.Query(ctx, queryColumns, schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %w", err)
	}
	defer rows.Close()

	var cols []domain.Column
	for rows.Next() {
		var col domain.Column
		if err := rows.Scan(&col.Name, &col.Type, &col.Description); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (s *Snapshotter) markPrimaryKeys(ctx context.Context, t *domain.Table) error {
	rows, err := s.pool.Query(ctx, queryPrimaryKeys, t.Schema, t.Name)
	if err != nil {
		return fmt.Errorf("querying primary keys: %w", err)
	}
	defer rows.Close()

	pkCols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scanning pk: %w", err)
		}
		pkCols[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range t.Columns {
		if pkCols[t.Columns[i].Name] {
			t.Columns[i].IsPrimaryKey = true
		}
	}
	return nil
}

func (s *Snapshotter) markForeignKeys(ctx context.Context, t *domain.Table) error {
	rows, err := s.pool.Query(ctx, queryForeignKeys, t.Schema, t.Name)
	if err != nil {
		return fmt.Errorf("querying foreign keys: %w", err)
	}
	defer rows.Close()

	refs := make(map[string]*domain.ForeignKeyRef)
	for rows.Next() {
		var col string
		var ref domain.ForeignKeyRef
		if err := rows.Scan(&col, &ref.Table, &ref.Column); err != nil {
			return fmt.Errorf("scanning fk: %w", err)
		}
		// Composite keys: keep the first referenced column per local column.
		if _, ok := refs[col]; !ok {
			refs[col] = &ref
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range t.Columns {
		if ref, ok := refs[t.Columns[i].Name]; ok {
			t.Columns[i].ForeignKey = ref
		}
	}
	return nil
}

// profileColumns classifies column cardinality from pg_stats. Tables that
// were never analyzed have no stats and are left unprofiled.
func (s *Snapshotter) profileColumns(ctx context.Context, t *domain.Table) error {
	var rowEstimate int64
	if err := s.pool.QueryRow(ctx, queryRowEstimate, t.Schema, t.Name).Scan(&rowEstimate); err != nil {
		return fmt.Errorf("querying row estimate: %w", err)
	}
	rowEstimate = max(rowEstimate, 0)

	rows, err := s.pool.Query(ctx, queryColumnStats, t.Schema, t.Name)
	if err != nil {
		return fmt.Errorf("querying column stats: %w", err)
	}
	defer rows.Close()

	index := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		index[c.Name] = i
	}

	for rows.Next() {
		var (
			attname   string
			nDistinct float64
			mcvRaw    *string
		)
		if err := rows.Scan(&attname, &nDistinct, &mcvRaw); err != nil {
			return fmt.Errorf("scanning column stats: %w", err)
		}
		i, ok := index[attname]
		if !ok {
			continue
		}
		var common []string
		if mcvRaw != nil {
			common = parsePgArray(*mcvRaw)
		}
		t.Columns[i].Profile(pgDistinctToAbsolute(nDistinct, rowEstimate), rowEstimate, common)
	}
	return rows.Err()
}

func (s *Snapshotter) fetchSampleRows(ctx context.Context, schema, tableName string) ([]domain.Row, error) {
	// TABLESAMPLE BERNOULLI samples at the row level (not page level like
	// SYSTEM), so it returns rows even on small tables.
	fqn := fmt.Sprintf("%s.%s", quoteIdent(schema), quoteIdent(tableName))
	query := fmt.Sprintf("SELECT * FROM %s TABLESAMPLE BERNOULLI(50) LIMIT %d", fqn, s.sampleSize)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		// Fallback: TABLESAMPLE does not work on views or foreign tables.
		query = fmt.Sprintf("SELECT * FROM %s LIMIT %d", fqn, s.sampleSize)
		rows, err = s.pool.Query(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("sampling rows: %w", err)
		}
	}
	defer rows.Close()

	sample, err := rowsToMaps(rows)
	if err != nil {
		// pgx reports query errors lazily; views fail here, not in Query.
		fallback, ferr := s.pool.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", fqn, s.sampleSize))
		if ferr != nil {
			return nil, fmt.Errorf("sampling rows: %w", ferr)
		}
		defer fallback.Close()
		return rowsToMaps(fallback)
	}
	return sample, nil
}
