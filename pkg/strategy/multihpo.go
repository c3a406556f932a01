package strategy

import (
	"context"
	"regexp"
	"strings"

	"github.com/synaptica-ai/phenoxtract/pkg/concept"
	"github.com/synaptica-ai/phenoxtract/pkg/manifest"
	"github.com/synaptica-ai/phenoxtract/pkg/resolver"
	"github.com/synaptica-ai/phenoxtract/pkg/table"
)

var (
	hpoID        = regexp.MustCompile(`HP:\d{7}`)
	termSplitter = regexp.MustCompile(`[;,|\n\t]+`)
)

// MultiHpoColExpansion turns cells listing several phenotypes into
// multi-valued cells; the context then carries plain HPO terms.
type MultiHpoColExpansion struct{}

func (MultiHpoColExpansion) Name() string { return manifest.StrategyMultiHpoColExpansion }

func (MultiHpoColExpansion) Transform(_ context.Context, tc *resolver.TableContext, _ *Env) error {
	for _, rc := range tc.WithData(concept.MultiHpo) {
		for _, col := range rc.Columns(tc.Table) {
			for row, cell := range col.Cells {
				if cell.IsNull() {
					col.Cells[row] = table.NullCell()
					continue
				}
				col.Cells[row] = table.Multi(SplitTerms(cell.String()))
			}
			col.Retype()
		}
		rc.Data = concept.Of(concept.Hpo)
	}
	return nil
}

// SplitTerms extracts HPO ids from a cell when it holds any, in order of
// appearance and without repeats. Otherwise it splits on list separators.
func SplitTerms(raw string) []string {
	if ids := hpoID.FindAllString(raw, -1); len(ids) > 0 {
		seen := make(map[string]bool, len(ids))
		out := ids[:0]
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
		return out
	}
	var out []string
	for _, part := range termSplitter.Split(raw, -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
