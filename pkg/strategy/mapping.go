package strategy

import (
	"context"
	"sort"
	"strings"

	"github.com/synaptica-ai/phenoxtract/pkg/concept"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/manifest"
	"github.com/synaptica-ai/phenoxtract/pkg/record"
	"github.com/synaptica-ai/phenoxtract/pkg/resolver"
	"github.com/synaptica-ai/phenoxtract/pkg/table"
)

var builtinSynonyms = map[string]struct {
	kind     concept.Kind
	synonyms map[string][]string
}{
	manifest.MappingSex: {
		kind: concept.SubjectSex,
		synonyms: map[string][]string{
			record.SexMale:    {"m", "male", "man"},
			record.SexFemale:  {"f", "female", "woman"},
			record.SexOther:   {"diverse", "intersex", "other"},
			record.SexUnknown: {"unknown"},
		},
	},
	manifest.MappingVitalStatus: {
		kind: concept.VitalStatus,
		synonyms: map[string][]string{
			record.StatusAlive:    {"yes", "living", "alive"},
			record.StatusDeceased: {"no", "dead", "deceased"},
			record.StatusUnknown:  {"unknown", "no data"},
		},
	},
}

// Mapping substitutes synonyms with canonical values on every column whose
// data concept matches. Matching ignores case and surrounding whitespace.
type Mapping struct {
	kind   concept.Kind
	lookup map[string]string
	keys   []string
}

func NewMapping(cfg manifest.MappingConfig) (*Mapping, error) {
	kind := cfg.Concept.Kind
	synonyms := cfg.Synonyms
	if cfg.Builtin != "" {
		b, ok := builtinSynonyms[cfg.Builtin]
		if !ok {
			return nil, extract.ConfigErrorf("mapping", "unknown built-in mapping %q", cfg.Builtin)
		}
		kind, synonyms = b.kind, b.synonyms
	}
	if len(synonyms) == 0 {
		return nil, extract.ConfigErrorf("mapping", "mapping for %s has no synonyms", kind)
	}

	m := &Mapping{kind: kind, lookup: make(map[string]string)}
	for canonical, raws := range synonyms {
		m.lookup[normaliseKey(canonical)] = canonical
		for _, raw := range raws {
			m.lookup[normaliseKey(raw)] = canonical
		}
	}
	for k := range m.lookup {
		m.keys = append(m.keys, k)
	}
	sort.Strings(m.keys)
	return m, nil
}

func normaliseKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func (m *Mapping) Name() string { return manifest.StrategyMapping }

func (m *Mapping) Transform(_ context.Context, tc *resolver.TableContext, env *Env) error {
	for _, rc := range tc.WithData(m.kind) {
		for _, col := range rc.Columns(tc.Table) {
			for row, cell := range col.Cells {
				if cell.IsNull() {
					continue
				}
				raw := cell.Source()
				canonical, ok := m.lookup[normaliseKey(raw)]
				if !ok {
					env.report(extract.NewValidationError(tc.Locate(col, row, raw),
						extract.ErrUnmapped, suggest(normaliseKey(raw), m.keys)...))
					continue
				}
				col.Cells[row] = table.Str(canonical)
			}
			col.Retype()
		}
	}
	return nil
}
