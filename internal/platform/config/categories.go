package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var defaultCategories []byte

// CategoryTable maps a category id to an ordered list of coin ids.
// It is read-only once loaded.
type CategoryTable struct {
	categories map[string][]string
}

type categoryFile struct {
	Categories map[string][]string `yaml:"categories"`
}

// LoadCategoryTable reads the table from path, or the built-in table when
// path is empty.
func LoadCategoryTable(path string) (*CategoryTable, error) {
	data := defaultCategories
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read categories file: %w", err)
		}
		data = b
	}
	return ParseCategoryTable(data)
}

// DefaultCategoryTable returns the built-in table
func DefaultCategoryTable() *CategoryTable {
	table, err := ParseCategoryTable(defaultCategories)
	if err != nil {
		panic(fmt.Sprintf("built-in category table is invalid: %v", err))
	}
	return table
}

// ParseCategoryTable decodes a YAML category table
func ParseCategoryTable(data []byte) (*CategoryTable, error) {
	var f categoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse category table: %w", err)
	}

	categories := make(map[string][]string, len(f.Categories))
	for name, ids := range f.Categories {
		if name == "" {
			return nil, fmt.Errorf("category with empty name")
		}
		categories[name] = append([]string(nil), ids...)
	}

	return &CategoryTable{categories: categories}, nil
}

// IDs returns a copy of the coin ids for category, or nil if unknown
func (t *CategoryTable) IDs(category string) []string {
	ids, ok := t.categories[category]
	if !ok {
		return nil
	}
	return append([]string(nil), ids...)
}

// Categories returns the known category ids, sorted
func (t *CategoryTable) Categories() []string {
	names := make([]string, 0, len(t.categories))
	for name := range t.categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
