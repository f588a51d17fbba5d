package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the on-disk catalog layout:
//
//	tables:
//	  skills:
//	    - {id: climb, label: Climb, section: universal, stats: "str,dex"}
type File struct {
	Tables map[string][]map[string]any `yaml:"tables"`
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string) (*MemoryCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := LoadYAML(data)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return c, nil
}

// LoadYAML parses a YAML catalog document and validates that every row has
// a unique, non-empty id within its table.
func LoadYAML(data []byte) (*MemoryCatalog, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := file.validate(); err != nil {
		return nil, err
	}
	tables := make(map[string][]Row, len(file.Tables))
	for name, rows := range file.Tables {
		converted := make([]Row, 0, len(rows))
		for _, row := range rows {
			converted = append(converted, Row(row))
		}
		tables[name] = converted
	}
	return NewMemoryCatalog(tables), nil
}

func (f File) validate() error {
	for name, rows := range f.Tables {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("table name is required")
		}
		seen := make(map[string]struct{}, len(rows))
		for i, row := range rows {
			id := Row(row).ID()
			if strings.TrimSpace(id) == "" {
				return fmt.Errorf("table %s row %d: id is required", name, i)
			}
			if _, ok := seen[id]; ok {
				return fmt.Errorf("table %s: duplicate id %q", name, id)
			}
			seen[id] = struct{}{}
		}
	}
	return nil
}
