package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/synaptica-ai/phenoxtract/pkg/common/logger"
	"github.com/synaptica-ai/phenoxtract/pkg/concept"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/manifest"
	"github.com/synaptica-ai/phenoxtract/pkg/ontology"
	"github.com/synaptica-ai/phenoxtract/pkg/resolver"
	"github.com/synaptica-ai/phenoxtract/pkg/table"
)

// OntologyNormaliser replaces labels and ids with the canonical id of the
// configured resource. Cells keep the term label; headers carrying the
// concept are resolved into the column's canonical id.
type OntologyNormaliser struct {
	resource string
	kind     concept.Kind
}

func NewOntologyNormaliser(cfg manifest.NormaliserConfig) *OntologyNormaliser {
	return &OntologyNormaliser{resource: cfg.Resource, kind: cfg.Concept.Kind}
}

func (n *OntologyNormaliser) Name() string { return manifest.StrategyOntologyNormaliser }

func (n *OntologyNormaliser) Transform(ctx context.Context, tc *resolver.TableContext, env *Env) error {
	if _, ok := env.Ontologies.Get(n.resource); !ok {
		return extract.ConfigErrorf("ontology_normaliser", "resource %q is not open", n.resource)
	}

	for _, rc := range tc.WithData(n.kind) {
		for _, col := range rc.Columns(tc.Table) {
			for row, cell := range col.Cells {
				if cell.IsNull() {
					continue
				}
				if cell.IsMulti() {
					items := make([]table.Cell, len(cell.Items))
					for i, item := range cell.Items {
						items[i] = n.resolveCell(ctx, tc, col, row, item, env)
					}
					cell.Items = items
					col.Cells[row] = cell
					continue
				}
				col.Cells[row] = n.resolveCell(ctx, tc, col, row, cell, env)
			}
			col.Retype()
		}
	}

	for _, rc := range tc.WithHeader(n.kind) {
		for _, col := range rc.Columns(tc.Table) {
			term, err := env.Ontologies.Resolve(ctx, n.resource, col.Header)
			if err != nil {
				env.report(n.lookupError(tc.Locate(col, -1, col.Header), err))
				continue
			}
			col.Canonical, col.CanonicalLabel = term.ID, term.Label
		}
	}
	return nil
}

func (n *OntologyNormaliser) resolveCell(ctx context.Context, tc *resolver.TableContext,
	col *table.Column, row int, cell table.Cell, env *Env) table.Cell {
	raw := cell.String()
	term, err := env.Ontologies.Resolve(ctx, n.resource, raw)
	if err != nil {
		env.report(n.lookupError(tc.Locate(col, row, raw), err))
		return cell
	}
	return table.Str(term.ID).WithLabel(term.Label)
}

func (n *OntologyNormaliser) lookupError(loc extract.Location, err error) error {
	if errors.Is(err, ontology.ErrNotFound) {
		return extract.NewValidationError(loc, fmt.Errorf("%s: %w", n.resource, extract.ErrUnknownTerm))
	}
	logger.Log.WithError(err).WithField("resource", n.resource).Warn("ontology lookup failed")
	return extract.NewValidationError(loc, fmt.Errorf("%s lookup failed: %w", n.resource, err))
}
