package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk layout of a schema file.
type Document struct {
	Tables []Definition `yaml:"tables"`
}

// LoadYAML decodes a schema document and builds every table in it.
func LoadYAML(r io.Reader) ([]*Table, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("schema: decode: %w", err)
	}

	tables := make([]*Table, 0, len(doc.Tables))
	for _, def := range doc.Tables {
		t, err := New(def)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// LoadFile reads a schema document from path.
func LoadFile(path string) ([]*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schema: open %s: %w", path, err)
	}
	defer f.Close()
	return LoadYAML(f)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *ColumnType) UnmarshalYAML(value *yaml.Node) error {
	return t.UnmarshalText([]byte(value.Value))
}
