package collector

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/synaptica-ai/phenoxtract/pkg/concept"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/record"
	"github.com/synaptica-ai/phenoxtract/pkg/resolver"
	"github.com/synaptica-ai/phenoxtract/pkg/table"
)

const (
	progressUnknown     = "UNKNOWN_PROGRESS"
	interpretationCause = "CAUSATIVE"
)

var (
	homozygous   = record.OntologyClass{ID: "GENO:0000136", Label: "homozygous"}
	heterozygous = record.OntologyClass{ID: "GENO:0000135", Label: "heterozygous"}

	hgvsPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+:([cgmnpr])\.\S+$`)
)

// slot is the cell one member of a unit contributes at the current row.
type slot struct {
	rc   *resolver.Resolved
	col  *table.Column
	cell table.Cell
}

func (s slot) fromHeader() bool {
	return s.rc.Config.HeaderContext.Is(concept.Hpo)
}

// anchorOf picks the member that decides which entry the unit produces.
func anchorOf(slots []slot) int {
	order := []func(slot) bool{
		func(s slot) bool { return s.rc.Data.Is(concept.Hpo) },
		func(s slot) bool { return s.fromHeader() },
		func(s slot) bool { return s.rc.Data.Is(concept.Disease) },
		func(s slot) bool { return s.rc.Data.Is(concept.QuantitativeMeasurement) },
		func(s slot) bool { return s.rc.Data.Is(concept.QualitativeMeasurement) },
		func(s slot) bool { return s.rc.Data.Is(concept.Procedure) },
	}
	for _, match := range order {
		for i, s := range slots {
			if match(s) {
				return i
			}
		}
	}
	return -1
}

// entry assembles column i of every member of u at the current row.
func (r *rowCtx) entry(u unit, i int) {
	slots := make([]slot, 0, len(u.members))
	for _, m := range u.members {
		col := r.tc.Table.Columns[m.Indexes[i]]
		slots = append(slots, slot{rc: m, col: col, cell: col.Cells[r.row]})
	}
	anchor := anchorOf(slots)
	if anchor < 0 {
		return
	}

	a := slots[anchor]
	if !a.fromHeader() && a.cell.IsNull() {
		for j, s := range slots {
			if j != anchor && !s.cell.IsNull() {
				r.report.Add(extract.NewCollectionError(r.locate(a.col, u.block, ""),
					fmt.Errorf("%s is empty but %s is %q: %w", a.col.Header, s.col.Header, s.cell.String(), extract.ErrMissingTerm)))
				return
			}
		}
		return
	}

	sets, err := expand(slots, anchor)
	if err != nil {
		r.report.Add(extract.NewCollectionError(r.locate(a.col, u.block, a.cell.String()), err))
		return
	}
	for _, set := range sets {
		r.build(u.block, set, anchor)
	}
}

// expand pairs the items of a multi-valued anchor with its partners. Singular
// partners are broadcast; multi-valued partners must have as many items.
func expand(slots []slot, anchor int) ([][]slot, error) {
	a := slots[anchor].cell
	k := 1
	if a.IsMulti() {
		k = len(a.Items)
	}

	out := make([][]slot, k)
	for j := 0; j < k; j++ {
		set := make([]slot, len(slots))
		for s, sl := range slots {
			set[s] = sl
			switch {
			case s == anchor && a.IsMulti():
				set[s].cell = a.Items[j]
			case s == anchor:
			case sl.cell.IsMulti() && len(sl.cell.Items) == k:
				set[s].cell = sl.cell.Items[j]
			case sl.cell.IsMulti():
				return nil, fmt.Errorf("%s has %d values but %s has %d: %w",
					slots[anchor].col.Header, k, sl.col.Header, len(sl.cell.Items), extract.ErrCardinality)
			}
		}
		out[j] = set
	}
	return out, nil
}

// partners returns the non-empty slots other than the anchor carrying kind.
func partners(set []slot, anchor int, kind concept.Kind) []slot {
	var out []slot
	for i, s := range set {
		if i != anchor && s.rc.Data.Is(kind) && !s.cell.IsNull() {
			out = append(out, s)
		}
	}
	return out
}

func (r *rowCtx) build(block string, set []slot, anchor int) {
	a := set[anchor]
	switch {
	case a.rc.Data.Is(concept.Hpo), a.fromHeader():
		r.feature(block, set, anchor)
	case a.rc.Data.Is(concept.Disease):
		r.disease(block, set, anchor)
	case a.rc.Data.Is(concept.QuantitativeMeasurement):
		r.quantitative(block, set, anchor)
	case a.rc.Data.Is(concept.QualitativeMeasurement):
		r.qualitative(block, set, anchor)
	case a.rc.Data.Is(concept.Procedure):
		r.procedure(block, set, anchor)
	}
}

func (r *rowCtx) feature(block string, set []slot, anchor int) {
	a := set[anchor]
	loc := r.locate(a.col, block, a.cell.String())

	var term *record.OntologyClass
	var status, onset *slot
	if a.fromHeader() && !a.rc.Data.Is(concept.Hpo) {
		if a.cell.IsNull() {
			return
		}
		var ok bool
		if term, ok = r.termOf(loc, concept.Hpo, a.col.HeaderTerm(), a.col.CanonicalLabel); !ok {
			return
		}
		if a.rc.Data.Is(concept.Onset) {
			onset = &set[anchor]
		} else {
			status = &set[anchor]
		}
	} else {
		var ok bool
		if term, ok = r.term(loc, concept.Hpo, a.cell); !ok {
			return
		}
	}
	if status == nil {
		if ps := partners(set, anchor, concept.ObservationStatus); len(ps) > 0 {
			status = &ps[0]
		}
	}
	if onset == nil {
		if ps := partners(set, anchor, concept.Onset); len(ps) > 0 {
			onset = &ps[0]
		}
	}

	pf := record.PhenotypicFeature{Type: *term}
	if status != nil {
		excluded, ok := excludedFrom(status.cell)
		if !ok {
			r.report.Add(extract.NewValidationError(r.locate(status.col, block, status.cell.String()),
				fmt.Errorf("observation status %q: %w", status.cell.String(), extract.ErrUnmapped)))
			return
		}
		pf.Excluded = excluded
	}
	if onset != nil {
		pf.Onset = r.timeOf(block, *onset)
	}
	r.rec.PhenotypicFeatures = append(r.rec.PhenotypicFeatures, pf)
}

func (r *rowCtx) disease(block string, set []slot, anchor int) {
	a := set[anchor]
	term, ok := r.term(r.locate(a.col, block, a.cell.String()), concept.Disease, a.cell)
	if !ok {
		return
	}
	d := record.Disease{Term: *term}
	if ps := partners(set, anchor, concept.ObservationStatus); len(ps) > 0 {
		excluded, ok := excludedFrom(ps[0].cell)
		if !ok {
			r.report.Add(extract.NewValidationError(r.locate(ps[0].col, block, ps[0].cell.String()),
				fmt.Errorf("observation status %q: %w", ps[0].cell.String(), extract.ErrUnmapped)))
			return
		}
		d.Excluded = excluded
	}
	if ps := partners(set, anchor, concept.Onset); len(ps) > 0 {
		d.Onset = r.timeOf(block, ps[0])
	}
	r.rec.Diseases = append(r.rec.Diseases, d)
	r.interpretation(block, set, anchor, term)
}

// interpretation records the genes and variants found next to a disease.
func (r *rowCtx) interpretation(block string, set []slot, anchor int, disease *record.OntologyClass) {
	genes := partners(set, anchor, concept.HgncSymbolOrID)
	variants := partners(set, anchor, concept.Hgvs)
	if len(genes) == 0 && len(variants) == 0 {
		return
	}

	var gene *record.GeneDescriptor
	if len(genes) > 0 {
		g := genes[0]
		cls, ok := r.term(r.locate(g.col, block, g.cell.String()), concept.HgncSymbolOrID, g.cell)
		if !ok {
			return
		}
		symbol := cls.Label
		if symbol == "" {
			symbol = g.cell.String()
		}
		gene = &record.GeneDescriptor{ValueID: cls.ID, Symbol: symbol}
	}

	subject := r.rec.SubjectID
	var gis []record.GenomicInterpretation
	if len(variants) == 0 {
		gis = append(gis, record.GenomicInterpretation{
			SubjectOrBiosampleID: subject,
			InterpretationStatus: interpretationCause,
			Gene:                 gene,
		})
	}

	counts := make(map[string]int)
	var order []string
	for _, v := range variants {
		raw := v.cell.String()
		if !hgvsPattern.MatchString(raw) {
			r.report.Add(extract.NewFormatError(r.locate(v.col, block, raw),
				fmt.Errorf("variant %q is not in HGVS notation: %w", raw, extract.ErrUnparseable)))
			continue
		}
		if counts[raw] == 0 {
			order = append(order, raw)
		}
		counts[raw]++
	}
	for _, raw := range order {
		state := heterozygous
		if counts[raw] > 1 {
			state = homozygous
		}
		gis = append(gis, record.GenomicInterpretation{
			SubjectOrBiosampleID: subject,
			InterpretationStatus: interpretationCause,
			VariantInterpretation: &record.VariantInterpretation{
				VariationDescriptor: record.VariationDescriptor{
					ID:           raw,
					GeneContext:  gene,
					Expressions:  []record.Expression{{Syntax: hgvsSyntax(raw), Value: raw}},
					AllelicState: &state,
				},
			},
		})
	}
	if len(gis) == 0 {
		return
	}

	r.rec.Interpretations = append(r.rec.Interpretations, record.Interpretation{
		ID:             subject + "-" + disease.ID,
		ProgressStatus: progressUnknown,
		Diagnosis:      &record.Diagnosis{Disease: *disease, GenomicInterpretations: gis},
	})
}

func hgvsSyntax(v string) string {
	if m := hgvsPattern.FindStringSubmatch(v); m != nil {
		return "hgvs." + m[1]
	}
	return "hgvs"
}

func (r *rowCtx) quantitative(block string, set []slot, anchor int) {
	a := set[anchor]
	raw := a.cell.String()
	value, ok := a.cell.AsFloat()
	if !ok {
		r.report.Add(extract.NewFormatError(r.locate(a.col, block, raw),
			fmt.Errorf("measurement %q is not numeric: %w", raw, extract.ErrUnparseable)))
		return
	}

	unit := r.classFor(a.rc.Data.UnitID)
	q := &record.Quantity{Unit: unit, Value: value}
	for _, p := range partners(set, anchor, concept.ReferenceRange) {
		bound, ok := p.cell.AsFloat()
		if !ok {
			r.report.Add(extract.NewFormatError(r.locate(p.col, block, p.cell.String()),
				fmt.Errorf("reference range %q is not numeric: %w", p.cell.String(), extract.ErrUnparseable)))
			continue
		}
		if q.ReferenceRange == nil {
			q.ReferenceRange = &record.ReferenceRange{Unit: unit}
		}
		if p.rc.Data.Boundary == concept.Lower {
			q.ReferenceRange.Low = &bound
		} else {
			q.ReferenceRange.High = &bound
		}
	}

	m := record.Measurement{Assay: r.classFor(a.rc.Data.AssayID), Value: record.Value{Quantity: q}}
	if ps := partners(set, anchor, concept.Onset); len(ps) > 0 {
		m.TimeObserved = r.timeOf(block, ps[0])
	}
	r.rec.Measurements = append(r.rec.Measurements, m)
}

func (r *rowCtx) qualitative(block string, set []slot, anchor int) {
	a := set[anchor]
	value := r.valueClass(a.cell)
	m := record.Measurement{Assay: r.classFor(a.rc.Data.AssayID), Value: record.Value{OntologyClass: &value}}
	if ps := partners(set, anchor, concept.Onset); len(ps) > 0 {
		m.TimeObserved = r.timeOf(block, ps[0])
	}
	r.rec.Measurements = append(r.rec.Measurements, m)
}

func (r *rowCtx) procedure(block string, set []slot, anchor int) {
	a := set[anchor]
	code, ok := r.term(r.locate(a.col, block, a.cell.String()), concept.Procedure, a.cell)
	if !ok {
		return
	}
	proc := &record.Procedure{Code: *code}
	if ps := partners(set, anchor, concept.ProcedureBodySite); len(ps) > 0 {
		site := r.valueClass(ps[0].cell)
		proc.BodySite = &site
	}
	if ps := partners(set, anchor, concept.TimeOfProcedure); len(ps) > 0 {
		proc.Performed = r.timeOf(block, ps[0])
	}

	action := record.MedicalAction{Procedure: proc}
	optional := []struct {
		kind concept.Kind
		dst  **record.OntologyClass
	}{
		{concept.TreatmentTarget, &action.TreatmentTarget},
		{concept.TreatmentIntent, &action.TreatmentIntent},
		{concept.ResponseToTreatment, &action.ResponseToTreatment},
		{concept.TreatmentTerminationReason, &action.TreatmentTerminationReason},
	}
	for _, o := range optional {
		if ps := partners(set, anchor, o.kind); len(ps) > 0 {
			cls := r.valueClass(ps[0].cell)
			*o.dst = &cls
		}
	}
	r.rec.MedicalActions = append(r.rec.MedicalActions, action)
}

// timeOf parses a time partner. Unparseable values are reported and the
// entry is kept without its time.
func (r *rowCtx) timeOf(block string, s slot) *record.TimeElement {
	te, err := timeElement(s.rc.Data, s.cell)
	if err != nil {
		r.report.Add(extract.NewFormatError(r.locate(s.col, block, s.cell.String()), err))
		return nil
	}
	return te
}

// excludedFrom reads an observation status cell.
func excludedFrom(cell table.Cell) (excluded bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(cell.String())) {
	case "true", "yes", "y", "1", "observed", "present", "included":
		return false, true
	case "false", "no", "n", "0", "excluded", "absent", "not observed":
		return true, true
	}
	return false, false
}
