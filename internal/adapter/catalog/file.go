// Package catalog loads and stores catalog documents: YAML (or JSON) files
// listing tables, their columns and sample rows.
package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/guillermoBallester/audiencelens/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// Document is the on-disk catalog format.
type Document struct {
	Version int            `yaml:"version"`
	Tables  []domain.Table `yaml:"tables"`
}

const documentVersion = 1

// Decode parses a catalog document. JSON input is accepted since it is
// valid YAML.
func Decode(data []byte) ([]domain.Table, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("catalog document is empty")
		}
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if doc.Version > documentVersion {
		return nil, fmt.Errorf("catalog version %d is newer than supported version %d", doc.Version, documentVersion)
	}
	for i, t := range doc.Tables {
		for j, c := range t.Columns {
			if !c.Mask.Valid() {
				return nil, fmt.Errorf("tables[%d].columns[%d] (%s.%s): invalid mask %q", i, j, t.Name, c.Name, c.Mask)
			}
		}
	}
	return doc.Tables, nil
}

// Encode writes tables as a catalog document.
func Encode(w io.Writer, tables []domain.Table) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Document{Version: documentVersion, Tables: tables}); err != nil {
		return fmt.Errorf("encoding catalog: %w", err)
	}
	return enc.Close()
}

// WriteFile writes tables to path, replacing any existing file.
func WriteFile(path string, tables []domain.Table) error {
	var buf bytes.Buffer
	if err := Encode(&buf, tables); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing catalog file: %w", err)
	}
	return nil
}

// FileSource loads the catalog from a local file on every Load.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Load(_ context.Context) ([]domain.Table, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return Decode(data)
}
