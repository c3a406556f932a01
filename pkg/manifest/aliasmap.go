package manifest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/synaptica-ai/phenoxtract/pkg/table"
	"gopkg.in/yaml.v3"
)

type OutputType string

const (
	OutputString  OutputType = "string"
	OutputBoolean OutputType = "boolean"
	OutputInteger OutputType = "integer"
	OutputFloat   OutputType = "float"
)

func (o OutputType) Kind() (table.Kind, bool) {
	switch o {
	case "", OutputString:
		return table.String, true
	case OutputBoolean:
		return table.Bool, true
	case OutputInteger:
		return table.Int, true
	case OutputFloat:
		return table.Float, true
	}
	return table.Null, false
}

// Mappings maps raw cell text to a replacement. A nil replacement empties
// the cell; the "" key applies to empty cells.
type Mappings map[string]*string

// UnmarshalYAML keeps null keys and null values distinct from the string "null".
func (m *Mappings) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: mappings must be a map", node.Line)
	}
	out := make(Mappings, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if key.Kind != yaml.ScalarNode || value.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: mapping entries must be scalars", key.Line)
		}
		k := key.Value
		if key.Tag == "!!null" {
			k = ""
		}
		if value.Tag == "!!null" {
			out[k] = nil
			continue
		}
		v := value.Value
		out[k] = &v
	}
	*m = out
	return nil
}

// Keys returns the non-empty keys in sorted order.
func (m Mappings) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// AliasMap replaces cell values. Entries come inline or from a two-column
// lookup file resolved relative to the manifest.
type AliasMap struct {
	OutputType  OutputType `yaml:"output_type"`
	Mappings    Mappings   `yaml:"mappings"`
	Path        string     `yaml:"path"`
	KeyColumn   string     `yaml:"key_column"`
	AliasColumn string     `yaml:"alias_column"`
	Separator   string     `yaml:"separator"`
}

// loadFile merges the lookup file into Mappings. Inline entries win.
func (a *AliasMap) loadFile(baseDir string) error {
	if a.Path == "" {
		return nil
	}
	path := a.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("opening alias file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	if a.Separator != "" {
		reader.Comma = []rune(a.Separator)[0]
	}
	rows, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("reading alias file %s: %w", path, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("alias file %s is empty", path)
	}

	keyIdx, aliasIdx := -1, -1
	for i, h := range rows[0] {
		switch strings.TrimSpace(h) {
		case a.KeyColumn:
			keyIdx = i
		case a.AliasColumn:
			aliasIdx = i
		}
	}
	if keyIdx < 0 || aliasIdx < 0 {
		return fmt.Errorf("alias file %s: columns %q and %q required", path, a.KeyColumn, a.AliasColumn)
	}

	if a.Mappings == nil {
		a.Mappings = make(Mappings)
	}
	for _, row := range rows[1:] {
		if keyIdx >= len(row) {
			continue
		}
		key := strings.TrimSpace(row[keyIdx])
		if _, exists := a.Mappings[key]; exists {
			continue
		}
		if aliasIdx >= len(row) || strings.TrimSpace(row[aliasIdx]) == "" {
			a.Mappings[key] = nil
			continue
		}
		alias := strings.TrimSpace(row[aliasIdx])
		a.Mappings[key] = &alias
	}
	return nil
}
