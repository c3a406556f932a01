// Package resolver binds configured series contexts to the concrete columns
// of a table.
package resolver

import (
	"fmt"
	"regexp"

	"github.com/synaptica-ai/phenoxtract/pkg/concept"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/manifest"
	"github.com/synaptica-ai/phenoxtract/pkg/table"
)

// Resolved is a context bound to zero or more column indexes of one table.
// Missing lists entries of a list identifier that matched no header.
type Resolved struct {
	Config  manifest.SeriesContextConfig
	Indexes []int
	Missing []string

	// Data starts as the configured data concept and may be rewritten by
	// transforms, e.g. multi-valued HPO columns become plain HPO columns.
	Data concept.Concept
}

func (r *Resolved) HeaderConcept() concept.Concept {
	return r.Config.HeaderContext
}

func (r *Resolved) DataConcept() concept.Concept {
	return r.Data
}

func (r *Resolved) Inert() bool {
	return r.Config.HeaderContext.IsNone() && r.Data.IsNone()
}

// IsSubject reports whether the context holds subject ids, declared on either
// the header or the data context.
func (r *Resolved) IsSubject() bool {
	return r.Data.Is(concept.SubjectID) || r.Config.HeaderContext.Is(concept.SubjectID)
}

func (r *Resolved) Cardinality() int {
	return len(r.Indexes)
}

func (r *Resolved) BlockID() string {
	return r.Config.BuildingBlockID
}

// Columns returns the bound columns of tbl in binding order.
func (r *Resolved) Columns(tbl *table.Table) []*table.Column {
	cols := make([]*table.Column, 0, len(r.Indexes))
	for _, idx := range r.Indexes {
		cols = append(cols, tbl.Columns[idx])
	}
	return cols
}

// Matcher is a precompiled identifier.
type Matcher struct {
	id     manifest.Identifier
	re     *regexp.Regexp
	reErr  error
	source string
}

// Compile prepares an identifier for repeated resolution. A scalar that is
// not a valid pattern is kept; the error surfaces only when no header
// matches it exactly.
func Compile(id manifest.Identifier) *Matcher {
	m := &Matcher{id: id, source: id.String()}
	if !id.List && len(id.Values) == 1 {
		m.re, m.reErr = regexp.Compile("^(?:" + id.Values[0] + ")$")
	}
	return m
}

// Bind returns the column indexes of tbl matched by the identifier.
func (m *Matcher) Bind(tbl *table.Table) (indexes []int, missing []string, err error) {
	headers := tbl.Headers()

	if m.id.List {
		bound := make(map[int]string)
		for _, name := range m.id.Values {
			idx := indexOf(headers, name)
			if idx < 0 {
				missing = append(missing, name)
				continue
			}
			if prev, dup := bound[idx]; dup {
				return nil, nil, extract.NewConfigError("identifier "+m.source,
					fmt.Errorf("%q and %q bind column %d: %w", prev, name, idx, extract.ErrDuplicateBinding))
			}
			bound[idx] = name
			indexes = append(indexes, idx)
		}
		return indexes, missing, nil
	}

	if len(m.id.Values) == 0 {
		return nil, nil, nil
	}
	if idx := indexOf(headers, m.id.Values[0]); idx >= 0 {
		return []int{idx}, nil, nil
	}
	if m.reErr != nil {
		return nil, nil, extract.NewConfigError("identifier "+m.source,
			fmt.Errorf("%v: %w", m.reErr, extract.ErrInvalidIdentifier))
	}
	for i, h := range headers {
		if m.re.MatchString(h) {
			indexes = append(indexes, i)
		}
	}
	return indexes, nil, nil
}

// Resolve binds every context to tbl. It is deterministic and does not
// modify tbl. Zero-match contexts are returned with no indexes.
func Resolve(tbl *table.Table, cfgs []manifest.SeriesContextConfig) ([]*Resolved, error) {
	out := make([]*Resolved, 0, len(cfgs))
	for _, cfg := range cfgs {
		indexes, missing, err := Compile(cfg.Identifier).Bind(tbl)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", tbl.Name, err)
		}
		out = append(out, &Resolved{
			Config:  cfg,
			Indexes: indexes,
			Missing: missing,
			Data:    cfg.DataContext,
		})
	}
	return out, nil
}

func indexOf(headers []string, name string) int {
	for i, h := range headers {
		if h == name {
			return i
		}
	}
	return -1
}
