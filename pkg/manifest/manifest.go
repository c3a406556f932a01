// Package manifest loads the declarative YAML description of an extraction
// run: which tables to read, what their columns mean, which transforms to
// apply, and where the resulting records go.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/synaptica-ai/phenoxtract/pkg/common/config"
	"github.com/synaptica-ai/phenoxtract/pkg/concept"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/table"
	"gopkg.in/yaml.v3"
)

type Manifest struct {
	DataSources []DataSource `yaml:"data_sources"`
	Pipeline    Pipeline     `yaml:"pipeline"`

	// Dir is the directory relative paths are resolved against.
	Dir string `yaml:"-"`
}

const (
	SourceCSV   = "csv"
	SourceExcel = "excel"
)

// DataSource is one table. An excel source reads a single worksheet; Sheet
// empty means the workbook's active sheet.
type DataSource struct {
	Type            string                `yaml:"type"`
	Name            string                `yaml:"name"`
	Source          string                `yaml:"source"`
	Sheet           string                `yaml:"sheet"`
	Separator       string                `yaml:"separator"`
	HasHeaders      *bool                 `yaml:"has_headers"`
	PatientsAreRows *bool                 `yaml:"patients_are_rows"`
	Contexts        []SeriesContextConfig `yaml:"contexts"`
}

// SeriesContextConfig describes what one or more columns mean. A context
// with neither a header nor a data concept is inert.
type SeriesContextConfig struct {
	Identifier      Identifier      `yaml:"identifier"`
	HeaderContext   concept.Concept `yaml:"header_context"`
	DataContext     concept.Concept `yaml:"data_context"`
	AliasMap        *AliasMap       `yaml:"alias_map"`
	FillMissing     *string         `yaml:"fill_missing"`
	BuildingBlockID string          `yaml:"building_block_id"`
}

func (c SeriesContextConfig) Inert() bool {
	return c.HeaderContext.IsNone() && c.DataContext.IsNone()
}

type Pipeline struct {
	MetaData            MetaData         `yaml:"meta_data"`
	Resources           []ResourceConfig `yaml:"resources"`
	TransformStrategies []StrategyConfig `yaml:"transform_strategies"`
	Loader              LoaderConfig     `yaml:"loader"`
	Lint                LintConfig       `yaml:"lint"`
}

// LintConfig controls the record checks run before packets are built.
type LintConfig struct {
	Disabled bool `yaml:"disabled"`
	Fix      bool `yaml:"fix"`
}

type MetaData struct {
	CohortName  string `yaml:"cohort_name"`
	CreatedBy   string `yaml:"created_by"`
	SubmittedBy string `yaml:"submitted_by"`
}

type LoaderConfig struct {
	FileSystem *FileSystemLoader `yaml:"file_system"`
	Postgres   *PostgresLoader   `yaml:"postgres"`
	Kafka      *KafkaLoader      `yaml:"kafka"`
}

type FileSystemLoader struct {
	OutputDir string `yaml:"output_dir"`
	CreateDir bool   `yaml:"create_dir"`
}

type PostgresLoader struct {
	DSN string `yaml:"dsn"`
}

type KafkaLoader struct {
	Topic string `yaml:"topic"`
}

func (l LoaderConfig) Empty() bool {
	return l.FileSystem == nil && l.Postgres == nil && l.Kafka == nil
}

// CSVOptions translates the source layout into reader options. Headers and
// patients-as-rows default to true.
func (d DataSource) CSVOptions() table.CSVOptions {
	opts := table.CSVOptions{
		Name:            d.Name,
		Separator:       ',',
		HasHeaders:      d.HasHeaders == nil || *d.HasHeaders,
		PatientsAreRows: d.PatientsAreRows == nil || *d.PatientsAreRows,
	}
	if d.Separator != "" {
		opts.Separator = []rune(d.Separator)[0]
	}
	return opts
}

// Path resolves a manifest-relative path.
func (m *Manifest) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// Load reads, defaults and validates a manifest file. Every returned error
// is a ConfigError.
func Load(path string) (*Manifest, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, extract.NewConfigError("manifest", err)
	}
	return Parse(content, filepath.Dir(path))
}

// Parse decodes manifest YAML; dir anchors relative paths.
func Parse(content []byte, dir string) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, extract.ConfigErrorf("manifest", "empty document")
		}
		return nil, extract.NewConfigError("manifest", err)
	}
	m.Dir = dir
	m.applyDefaults()

	var errs []error
	for i := range m.DataSources {
		for j := range m.DataSources[i].Contexts {
			am := m.DataSources[i].Contexts[j].AliasMap
			if am == nil {
				continue
			}
			if err := am.loadFile(dir); err != nil {
				errs = append(errs, extract.NewConfigError(fmt.Sprintf("data_sources[%d].contexts[%d].alias_map", i, j), err))
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	meta := &m.Pipeline.MetaData
	if strings.TrimSpace(meta.CreatedBy) == "" {
		meta.CreatedBy = config.DefaultCreator()
	}
	if strings.TrimSpace(meta.SubmittedBy) == "" {
		meta.SubmittedBy = config.DefaultCreator()
	}
	for i := range m.DataSources {
		if m.DataSources[i].Type == "" {
			m.DataSources[i].Type = "csv"
		}
	}
}

// Source returns the data source with the given name.
func (m *Manifest) Source(name string) (DataSource, bool) {
	for _, ds := range m.DataSources {
		if ds.Name == name {
			return ds, true
		}
	}
	return DataSource{}, false
}

// Resource returns the resource with the given id.
func (m *Manifest) Resource(id string) (ResourceConfig, bool) {
	for _, r := range m.Pipeline.Resources {
		if strings.EqualFold(r.ID, id) {
			return r, true
		}
	}
	return ResourceConfig{}, false
}
