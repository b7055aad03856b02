package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrDuplicateTable = errors.New("duplicate table")

// Row is one sample record keyed by column name.
type Row map[string]any

// ForeignKeyRef points a column at the column it references.
type ForeignKeyRef struct {
	Table  string `json:"table" yaml:"table"`
	Column string `json:"column" yaml:"column"`
}

type Column struct {
	Name         string         `json:"name" yaml:"name"`
	Type         string         `json:"type" yaml:"type"`
	IsPrimaryKey bool           `json:"is_primary_key,omitempty" yaml:"primary_key,omitempty"`
	ForeignKey   *ForeignKeyRef `json:"foreign_key,omitempty" yaml:"foreign_key,omitempty"`
	Description  string         `json:"description,omitempty" yaml:"description,omitempty"`
	Mask         MaskType       `json:"mask,omitempty" yaml:"mask,omitempty"`

	// Cardinality and Values are filled by snapshotters from database
	// statistics. Values holds the common values of enum-like columns.
	Cardinality CardinalityClass `json:"cardinality,omitempty" yaml:"cardinality,omitempty"`
	Values      []string         `json:"values,omitempty" yaml:"values,omitempty"`
}

// Table is a catalog entry. Tables are created when the catalog is loaded
// and are never mutated by the engine.
type Table struct {
	Name        string   `json:"name" yaml:"name"`
	Schema      string   `json:"schema" yaml:"schema"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Columns     []Column `json:"columns" yaml:"columns"`
	SampleRows  []Row    `json:"sample_rows,omitempty" yaml:"sample_rows,omitempty"`
}

// Column returns the column named name (case-insensitive).
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// Catalog is the in-memory stand-in for a database: tables, columns and
// sample rows, looked up case-insensitively. It is safe for concurrent
// reads.
type Catalog struct {
	tables []Table
	index  map[string]int
}

// NewCatalog validates tables and builds a catalog preserving their order.
func NewCatalog(tables []Table) (*Catalog, error) {
	c := &Catalog{
		tables: make([]Table, 0, len(tables)),
		index:  make(map[string]int, len(tables)),
	}
	for i, t := range tables {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, fmt.Errorf("table at position %d has no name", i)
		}
		key := strings.ToLower(name)
		if _, dup := c.index[key]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTable, name)
		}
		t.Name = name
		c.index[key] = len(c.tables)
		c.tables = append(c.tables, t)
	}
	return c, nil
}

// Table looks up a table by name. The returned table must not be modified.
func (c *Catalog) Table(name string) (*Table, bool) {
	if c == nil {
		return nil, false
	}
	i, ok := c.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return &c.tables[i], true
}

// Has reports whether name is a known table.
func (c *Catalog) Has(name string) bool {
	_, ok := c.Table(name)
	return ok
}

// Names returns table names in catalog order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.tables))
	for i, t := range c.tables {
		names[i] = t.Name
	}
	return names
}

// Tables returns a copy of the table list in catalog order.
func (c *Catalog) Tables() []Table {
	if c == nil {
		return nil
	}
	out := make([]Table, len(c.tables))
	copy(out, c.tables)
	return out
}

// Len returns the number of tables.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.tables)
}

// MaskSpec collects column-name → mask-type for every masked column.
func (c *Catalog) MaskSpec() map[string]MaskType {
	spec := make(map[string]MaskType)
	if c == nil {
		return spec
	}
	for _, t := range c.tables {
		for _, col := range t.Columns {
			if col.Mask != "" {
				spec[col.Name] = col.Mask
			}
		}
	}
	return spec
}
