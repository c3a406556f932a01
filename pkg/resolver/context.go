package resolver

import (
	"github.com/synaptica-ai/phenoxtract/pkg/concept"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/manifest"
	"github.com/synaptica-ai/phenoxtract/pkg/table"
)

// TableContext is a table together with its resolved contexts. Transforms
// mutate it in place; the collector reads it.
type TableContext struct {
	Table    *table.Table
	Contexts []*Resolved
}

// Bind resolves cfgs against tbl and substitutes fill_missing defaults into
// empty cells of the bound columns.
func Bind(tbl *table.Table, cfgs []manifest.SeriesContextConfig) (*TableContext, error) {
	resolved, err := Resolve(tbl, cfgs)
	if err != nil {
		return nil, err
	}
	tc := &TableContext{Table: tbl, Contexts: resolved}
	tc.fillMissing()
	return tc, nil
}

func (tc *TableContext) Name() string {
	return tc.Table.Name
}

func (tc *TableContext) fillMissing() {
	for _, rc := range tc.Contexts {
		if rc.Config.FillMissing == nil {
			continue
		}
		fill := table.ParseCell(*rc.Config.FillMissing)
		for _, col := range rc.Columns(tc.Table) {
			changed := false
			for i, cell := range col.Cells {
				if cell.IsNull() {
					col.Cells[i] = fill
					changed = true
				}
			}
			if changed {
				col.Retype()
			}
		}
	}
}

// SubjectContext returns the context carrying subject ids, if any binds a column.
func (tc *TableContext) SubjectContext() (*Resolved, bool) {
	for _, rc := range tc.Contexts {
		if rc.IsSubject() && len(rc.Indexes) > 0 {
			return rc, true
		}
	}
	return nil, false
}

// SubjectAt returns the subject id of row, or "" when the table has no
// subject column or the cell is empty.
func (tc *TableContext) SubjectAt(row int) string {
	rc, ok := tc.SubjectContext()
	if !ok {
		return ""
	}
	return tc.Table.Cell(rc.Indexes[0], row).String()
}

// WithData returns the contexts whose data concept has the given kind.
func (tc *TableContext) WithData(kind concept.Kind) []*Resolved {
	var out []*Resolved
	for _, rc := range tc.Contexts {
		if rc.Data.Is(kind) {
			out = append(out, rc)
		}
	}
	return out
}

// WithHeader returns the contexts whose header concept has the given kind.
func (tc *TableContext) WithHeader(kind concept.Kind) []*Resolved {
	var out []*Resolved
	for _, rc := range tc.Contexts {
		if rc.Config.HeaderContext.Is(kind) {
			out = append(out, rc)
		}
	}
	return out
}

// Locate builds the error location of a cell.
func (tc *TableContext) Locate(col *table.Column, row int, value string) extract.Location {
	loc := extract.Location{Table: tc.Table.Name, Row: row + 1, Value: value, Subject: tc.SubjectAt(row)}
	if col != nil {
		loc.Column = col.Header
	}
	return loc
}
