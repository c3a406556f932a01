package ontology

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Catalog is a curated term list kept in YAML:
//
//	version: "2025-09-01"
//	terms:
//	  - id: HP:0001250
//	    label: Seizure
//	    synonyms: [Seizures, Epileptic seizure]
type Catalog struct {
	*index
}

type catalogFile struct {
	Version string `yaml:"version"`
	Terms   []Term `yaml:"terms"`
}

func LoadCatalog(path string) (*Catalog, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	return ParseCatalog(content)
}

func ParseCatalog(content []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	if len(file.Terms) == 0 {
		return nil, fmt.Errorf("ontology catalog empty")
	}
	return NewCatalog(file.Version, file.Terms), nil
}

func NewCatalog(version string, terms []Term) *Catalog {
	return &Catalog{index: newIndex(version, terms)}
}

// Lookup finds a term by id, label or synonym.
func (c *Catalog) Lookup(key string) (Term, bool) {
	if c == nil || c.index == nil {
		return Term{}, false
	}
	return c.lookup(key)
}

func (c *Catalog) Version() string {
	return c.version
}
