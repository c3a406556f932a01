package manifest

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/synaptica-ai/phenoxtract/pkg/concept"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
)

// Validate performs the semantic checks YAML decoding cannot express and
// returns every problem found, joined.
func (m *Manifest) Validate() error {
	var errs []error
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, extract.ConfigErrorf(field, format, args...))
	}

	if len(m.DataSources) == 0 {
		add("data_sources", "at least one data source is required")
	}

	names := make(map[string]bool)
	for i, ds := range m.DataSources {
		field := fmt.Sprintf("data_sources[%d]", i)
		if strings.TrimSpace(ds.Name) == "" {
			add(field+".name", "required")
		} else if names[ds.Name] {
			add(field+".name", "duplicate data source %q", ds.Name)
		}
		names[ds.Name] = true

		switch ds.Type {
		case SourceCSV:
			if ds.Sheet != "" {
				add(field+".sheet", "only excel sources have sheets")
			}
		case SourceExcel:
			if ds.Separator != "" {
				add(field+".separator", "excel sources have no separator")
			}
		default:
			add(field+".type", "unsupported source type %q", ds.Type)
		}
		if strings.TrimSpace(ds.Source) == "" {
			add(field+".source", "required")
		}
		if ds.Separator != "" && utf8.RuneCountInString(ds.Separator) != 1 {
			add(field+".separator", "must be a single character, got %q", ds.Separator)
		}

		subjects := 0
		for j, ctx := range ds.Contexts {
			errs = append(errs, validateContext(fmt.Sprintf("%s.contexts[%d]", field, j), ctx)...)
			if ctx.DataContext.Is(concept.SubjectID) || ctx.HeaderContext.Is(concept.SubjectID) {
				subjects++
			}
		}
		if subjects > 1 {
			add(field+".contexts", "%d contexts declare subject_id, at most one allowed", subjects)
		}
	}

	errs = append(errs, m.validatePipeline()...)
	return errors.Join(errs...)
}

func validateContext(field string, ctx SeriesContextConfig) []error {
	var errs []error
	add := func(sub, format string, args ...interface{}) {
		errs = append(errs, extract.ConfigErrorf(field+sub, format, args...))
	}

	if ctx.Identifier.IsZero() {
		add(".identifier", "required")
	}
	seen := make(map[string]bool)
	for _, v := range ctx.Identifier.Values {
		if strings.TrimSpace(v) == "" {
			add(".identifier", "empty entry")
			continue
		}
		if ctx.Identifier.List && seen[v] {
			add(".identifier", "%q listed twice: %w", v, extract.ErrDuplicateBinding)
		}
		seen[v] = true
	}

	if am := ctx.AliasMap; am != nil {
		if _, ok := am.OutputType.Kind(); !ok {
			add(".alias_map.output_type", "unknown output type %q", am.OutputType)
		}
		if am.Path != "" && (am.KeyColumn == "" || am.AliasColumn == "") {
			add(".alias_map", "key_column and alias_column are required with path")
		}
		if am.Path == "" && len(am.Mappings) == 0 {
			add(".alias_map", "mappings or path required")
		}
	}
	return errs
}

func (m *Manifest) validatePipeline() []error {
	var errs []error
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, extract.ConfigErrorf(field, format, args...))
	}

	if strings.TrimSpace(m.Pipeline.MetaData.CohortName) == "" {
		add("pipeline.meta_data.cohort_name", "required")
	}

	ids := make(map[string]bool)
	for i, r := range m.Pipeline.Resources {
		field := fmt.Sprintf("pipeline.resources[%d]", i)
		id := strings.ToLower(r.ID)
		switch {
		case id == "":
			add(field+".id", "required")
		case ids[id]:
			add(field+".id", "duplicate resource %q", r.ID)
		}
		ids[id] = true

		switch r.Type {
		case ResourceCatalog, ResourceOBOGraph:
			if r.Path == "" {
				add(field+".path", "required for %s resources", r.Type)
			}
		case ResourceRemote:
			if r.URL == "" {
				add(field+".url", "required for remote resources")
			}
		default:
			add(field+".type", "unknown resource type %q", r.Type)
		}
		if r.Prefix == "" {
			add(field+".prefix", "required")
		}
	}

	for i, s := range m.Pipeline.TransformStrategies {
		field := fmt.Sprintf("pipeline.transform_strategies[%d]", i)
		if !knownStrategies[s.Name] {
			add(field, "unknown strategy %q", s.Name)
			continue
		}
		switch s.Name {
		case StrategyMapping:
			if s.Mapping == nil {
				add(field, "mapping requires a built-in name or a custom table")
				continue
			}
			if s.Mapping.Builtin != "" && s.Mapping.Builtin != MappingSex && s.Mapping.Builtin != MappingVitalStatus {
				add(field, "unknown built-in mapping %q", s.Mapping.Builtin)
			}
			if s.Mapping.Builtin == "" && (s.Mapping.Concept.IsNone() || len(s.Mapping.Synonyms) == 0) {
				add(field, "custom mapping requires concept and synonyms")
			}
		case StrategyOntologyNormaliser:
			if s.Normaliser == nil {
				add(field, "ontology_normaliser requires resource and concept")
				continue
			}
			if !ids[strings.ToLower(s.Normaliser.Resource)] {
				add(field+".resource", "resource %q is not declared", s.Normaliser.Resource)
			}
			if s.Normaliser.Concept.IsNone() {
				add(field+".concept", "required")
			}
		}
	}

	loader := m.Pipeline.Loader
	if loader.Empty() {
		add("pipeline.loader", "at least one loader is required")
	}
	if loader.FileSystem != nil && strings.TrimSpace(loader.FileSystem.OutputDir) == "" {
		add("pipeline.loader.file_system.output_dir", "required")
	}
	if loader.Kafka != nil && strings.TrimSpace(loader.Kafka.Topic) == "" {
		add("pipeline.loader.kafka.topic", "required")
	}
	return errs
}
