// Package lint checks assembled patient records for inconsistencies that no
// single cell reveals: repeated phenotypes, phenotypes that are redundant or
// contradicted given the HPO hierarchy, and interpreted diseases that are not
// listed as diseases.
package lint

import (
	"errors"
	"fmt"

	"github.com/synaptica-ai/phenoxtract/pkg/common/logger"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/ontology"
	"github.com/synaptica-ai/phenoxtract/pkg/record"
)

var (
	ErrDuplicatePhenotype  = errors.New("duplicate phenotypic feature")
	ErrNotPhenotype        = errors.New("term is not a phenotypic abnormality")
	ErrRedundantAncestor   = errors.New("observed term is an ancestor of another observed term")
	ErrExcludedDescendant  = errors.New("excluded term is a descendant of an observed term")
	ErrUndeclaredDiagnosis = errors.New("interpreted disease is not listed among diseases")
)

// PhenotypicAbnormality is the HPO root every phenotypic feature descends from.
const PhenotypicAbnormality = "HP:0000118"

// Linter runs the record checks. Hierarchy checks are skipped without an HPO
// hierarchy. With Fix set, pure duplicates and redundant ancestors are
// removed and undeclared diagnoses are added to the diseases.
type Linter struct {
	hpo ontology.Hierarchy
	fix bool
}

func New(hpo ontology.Hierarchy, fix bool) *Linter {
	return &Linter{hpo: hpo, fix: fix}
}

// FromRegistry uses the hierarchy of the HP resource when one is open.
func FromRegistry(registry *ontology.Registry, fix bool) *Linter {
	hpo, _ := registry.Hierarchy("HP")
	return New(hpo, fix)
}

// Lint checks every record of store and reports problems as validation
// errors. It returns the number of fixes applied.
func (l *Linter) Lint(store *record.Store, report *extract.Report) int {
	fixes := 0
	for _, rec := range store.Records() {
		fixes += l.lintRecord(rec, report)
	}
	logger.Log.WithFields(map[string]interface{}{
		"records":   store.Len(),
		"hierarchy": l.hpo != nil,
		"fixes":     fixes,
	}).Debug("records linted")
	return fixes
}

func (l *Linter) lintRecord(rec *record.PatientRecord, report *extract.Report) int {
	flag := func(id string, reason error) {
		report.Add(extract.NewValidationError(extract.Location{Subject: rec.SubjectID, Value: id}, reason))
	}

	drop := make(map[int]bool)
	l.duplicates(rec.PhenotypicFeatures, flag, drop)
	if l.hpo != nil {
		l.hierarchy(rec.PhenotypicFeatures, flag, drop)
	}

	added := l.diagnoses(rec, flag)
	if !l.fix {
		return 0
	}
	if len(drop) > 0 {
		kept := rec.PhenotypicFeatures[:0]
		for i, f := range rec.PhenotypicFeatures {
			if !drop[i] {
				kept = append(kept, f)
			}
		}
		rec.PhenotypicFeatures = kept
	}
	return len(drop) + added
}

// duplicates flags features repeating an earlier one exactly: same term,
// same exclusion and same onset.
func (l *Linter) duplicates(features []record.PhenotypicFeature, flag func(string, error), drop map[int]bool) {
	type key struct {
		id       string
		excluded bool
		onset    string
	}
	seen := make(map[key]bool, len(features))
	for i, f := range features {
		k := key{id: f.Type.ID, excluded: f.Excluded, onset: f.Onset.String()}
		if seen[k] {
			flag(f.Type.ID, ErrDuplicatePhenotype)
			drop[i] = true
			continue
		}
		seen[k] = true
	}
}

// hierarchy keeps the most specific observed terms. An observed ancestor of
// another observed term is redundant; an excluded descendant of an observed
// term contradicts it. Non-HPO ids are left alone.
func (l *Linter) hierarchy(features []record.PhenotypicFeature, flag func(string, error), drop map[int]bool) {
	var observed []string
	for _, f := range features {
		if !f.Excluded && ontology.Prefix(f.Type.ID) == "HP" {
			observed = append(observed, f.Type.ID)
		}
	}

	for i, f := range features {
		id := f.Type.ID
		if drop[i] || ontology.Prefix(id) != "HP" {
			continue
		}
		if id != PhenotypicAbnormality && !l.hpo.IsAncestor(PhenotypicAbnormality, id) {
			flag(id, ErrNotPhenotype)
			continue
		}
		for _, other := range observed {
			if !f.Excluded && l.hpo.IsAncestor(id, other) {
				flag(id, fmt.Errorf("%w %s", ErrRedundantAncestor, other))
				drop[i] = true
				break
			}
			if f.Excluded && l.hpo.IsAncestor(other, id) {
				flag(id, fmt.Errorf("%w %s", ErrExcludedDescendant, other))
				break
			}
		}
	}
}

// diagnoses flags each interpreted disease missing from the disease list once
// and, when fixing, lists it.
func (l *Linter) diagnoses(rec *record.PatientRecord, flag func(string, error)) int {
	listed := make(map[string]bool, len(rec.Diseases))
	for _, d := range rec.Diseases {
		listed[d.Term.ID] = true
	}
	added := 0
	for _, in := range rec.Interpretations {
		if in.Diagnosis == nil || in.Diagnosis.Disease.IsZero() {
			continue
		}
		disease := in.Diagnosis.Disease
		if listed[disease.ID] {
			continue
		}
		listed[disease.ID] = true
		flag(disease.ID, ErrUndeclaredDiagnosis)
		if l.fix {
			rec.Diseases = append(rec.Diseases, record.Disease{Term: disease})
			added++
		}
	}
	return added
}
