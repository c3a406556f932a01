package collector

import (
	"errors"
	"fmt"
	"time"

	"github.com/synaptica-ai/phenoxtract/pkg/common/logger"
	"github.com/synaptica-ai/phenoxtract/pkg/concept"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/ontology"
	"github.com/synaptica-ai/phenoxtract/pkg/record"
	"github.com/synaptica-ai/phenoxtract/pkg/strategy"
	"github.com/synaptica-ai/phenoxtract/pkg/table"
)

// term turns a term cell into an ontology class.
func (r *rowCtx) term(loc extract.Location, kind concept.Kind, cell table.Cell) (*record.OntologyClass, bool) {
	return r.termOf(loc, kind, cell.String(), cell.Label)
}

// termOf validates raw against the resource serving kind. Without such a
// resource the value is taken as given. Unknown terms are reported and
// rejected.
func (r *rowCtx) termOf(loc extract.Location, kind concept.Kind, raw, label string) (*record.OntologyClass, bool) {
	res, ok := r.registry.ForConcept(kind)
	if !ok {
		return &record.OntologyClass{ID: raw, Label: label}, true
	}

	if label != "" && ontology.IsCURIE(raw) {
		found, err := res.Lookup.Contains(r.ctx, res.Config.ID, raw)
		if err == nil && found {
			return &record.OntologyClass{ID: raw, Label: label}, true
		}
		if err == nil {
			err = ontology.ErrNotFound
		}
		r.rejectTerm(loc, res.Config.ID, err)
		return nil, false
	}

	t, err := r.registry.Resolve(r.ctx, res.Config.ID, raw)
	if err != nil {
		r.rejectTerm(loc, res.Config.ID, err)
		return nil, false
	}
	return &record.OntologyClass{ID: t.ID, Label: t.Label}, true
}

func (r *rowCtx) rejectTerm(loc extract.Location, resource string, err error) {
	if errors.Is(err, ontology.ErrNotFound) {
		r.report.Add(extract.NewValidationError(loc, fmt.Errorf("%s: %w", resource, extract.ErrUnknownTerm)))
		return
	}
	logger.Log.WithError(err).WithField("resource", resource).Warn("term validation failed")
	r.report.Add(extract.NewValidationError(loc, fmt.Errorf("%s lookup failed: %w", resource, err)))
}

// classFor labels a configured id such as an assay or unit when a resource
// with its prefix is open. Lookup failures leave the label empty.
func (r *rowCtx) classFor(id string) record.OntologyClass {
	cls := record.OntologyClass{ID: id}
	res, ok := r.registry.ForPrefix(ontology.Prefix(id))
	if !ok {
		return cls
	}
	if t, err := r.registry.Resolve(r.ctx, res.Config.ID, id); err == nil {
		cls.Label = t.Label
	}
	return cls
}

// valueClass builds the class for a free value such as a body site or a
// qualitative result, using the normalised label when present.
func (r *rowCtx) valueClass(cell table.Cell) record.OntologyClass {
	if cell.Label != "" {
		return record.OntologyClass{ID: cell.String(), Label: cell.Label}
	}
	raw := cell.String()
	if ontology.IsCURIE(raw) {
		return r.classFor(raw)
	}
	return record.OntologyClass{ID: raw, Label: raw}
}

// timeElement reads a time cell as an age or a date depending on the concept.
func timeElement(c concept.Concept, cell table.Cell) (*record.TimeElement, error) {
	raw := cell.String()
	switch c.Time {
	case concept.Age:
		iso, err := strategy.AgeToDuration(cell)
		if err != nil {
			return nil, err
		}
		return record.AgeElement(iso), nil
	case concept.Date:
		t, ok := cell.AsTime()
		if !ok {
			return nil, fmt.Errorf("date %q: %w", raw, extract.ErrUnparseable)
		}
		return record.TimestampElement(t.UTC().Format(time.RFC3339)), nil
	}
	return nil, fmt.Errorf("%s is not a time element: %w", c, extract.ErrUnparseable)
}
