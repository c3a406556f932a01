// Package record holds the per-patient record assembled by the collector and
// the phenopacket documents built from it.
package record

import (
	"regexp"
	"strings"
)

const (
	SexMale    = "MALE"
	SexFemale  = "FEMALE"
	SexOther   = "OTHER_SEX"
	SexUnknown = "UNKNOWN_SEX"

	StatusAlive    = "ALIVE"
	StatusDeceased = "DECEASED"
	StatusUnknown  = "UNKNOWN_STATUS"
)

type OntologyClass struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

func (o *OntologyClass) IsZero() bool {
	return o == nil || o.ID == ""
}

type Age struct {
	ISO8601Duration string `json:"iso8601duration"`
}

// TimeElement carries either an age or a timestamp.
type TimeElement struct {
	Age       *Age   `json:"age,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

func AgeElement(duration string) *TimeElement {
	return &TimeElement{Age: &Age{ISO8601Duration: duration}}
}

func TimestampElement(ts string) *TimeElement {
	return &TimeElement{Timestamp: ts}
}

func (t *TimeElement) String() string {
	switch {
	case t == nil:
		return ""
	case t.Age != nil:
		return t.Age.ISO8601Duration
	}
	return t.Timestamp
}

type VitalStatus struct {
	Status             string         `json:"status"`
	TimeOfDeath        *TimeElement   `json:"timeOfDeath,omitempty"`
	CauseOfDeath       *OntologyClass `json:"causeOfDeath,omitempty"`
	SurvivalTimeInDays *int64         `json:"survivalTimeInDays,omitempty"`
}

type Individual struct {
	ID                  string       `json:"id"`
	DateOfBirth         string       `json:"dateOfBirth,omitempty"`
	TimeAtLastEncounter *TimeElement `json:"timeAtLastEncounter,omitempty"`
	VitalStatus         *VitalStatus `json:"vitalStatus,omitempty"`
	Sex                 string       `json:"sex,omitempty"`
}

type PhenotypicFeature struct {
	Type     OntologyClass `json:"type"`
	Excluded bool          `json:"excluded,omitempty"`
	Onset    *TimeElement  `json:"onset,omitempty"`
}

type Disease struct {
	Term     OntologyClass `json:"term"`
	Excluded bool          `json:"excluded,omitempty"`
	Onset    *TimeElement  `json:"onset,omitempty"`
}

type ReferenceRange struct {
	Unit OntologyClass `json:"unit"`
	Low  *float64      `json:"low,omitempty"`
	High *float64      `json:"high,omitempty"`
}

type Quantity struct {
	Unit           OntologyClass   `json:"unit"`
	Value          float64         `json:"value"`
	ReferenceRange *ReferenceRange `json:"referenceRange,omitempty"`
}

type Value struct {
	Quantity      *Quantity      `json:"quantity,omitempty"`
	OntologyClass *OntologyClass `json:"ontologyClass,omitempty"`
}

type Measurement struct {
	Assay        OntologyClass `json:"assay"`
	Value        Value         `json:"value"`
	TimeObserved *TimeElement  `json:"timeObserved,omitempty"`
}

type Procedure struct {
	Code      OntologyClass  `json:"code"`
	BodySite  *OntologyClass `json:"bodySite,omitempty"`
	Performed *TimeElement   `json:"performed,omitempty"`
}

type MedicalAction struct {
	Procedure                  *Procedure     `json:"procedure,omitempty"`
	TreatmentTarget            *OntologyClass `json:"treatmentTarget,omitempty"`
	TreatmentIntent            *OntologyClass `json:"treatmentIntent,omitempty"`
	ResponseToTreatment        *OntologyClass `json:"responseToTreatment,omitempty"`
	TreatmentTerminationReason *OntologyClass `json:"treatmentTerminationReason,omitempty"`
}

type GeneDescriptor struct {
	ValueID string `json:"valueId"`
	Symbol  string `json:"symbol"`
}

type Expression struct {
	Syntax string `json:"syntax"`
	Value  string `json:"value"`
}

type VariationDescriptor struct {
	ID           string          `json:"id"`
	GeneContext  *GeneDescriptor `json:"geneContext,omitempty"`
	Expressions  []Expression    `json:"expressions,omitempty"`
	AllelicState *OntologyClass  `json:"allelicState,omitempty"`
}

type VariantInterpretation struct {
	VariationDescriptor VariationDescriptor `json:"variationDescriptor"`
}

type GenomicInterpretation struct {
	SubjectOrBiosampleID  string                 `json:"subjectOrBiosampleId"`
	InterpretationStatus  string                 `json:"interpretationStatus"`
	Gene                  *GeneDescriptor        `json:"gene,omitempty"`
	VariantInterpretation *VariantInterpretation `json:"variantInterpretation,omitempty"`
}

type Diagnosis struct {
	Disease                OntologyClass           `json:"disease"`
	GenomicInterpretations []GenomicInterpretation `json:"genomicInterpretations,omitempty"`
}

type Interpretation struct {
	ID             string     `json:"id"`
	ProgressStatus string     `json:"progressStatus"`
	Diagnosis      *Diagnosis `json:"diagnosis,omitempty"`
}

// PatientRecord accumulates everything collected for one subject. Sequences
// keep insertion order and are never deduplicated.
type PatientRecord struct {
	SubjectID          string
	Individual         Individual
	PhenotypicFeatures []PhenotypicFeature
	Diseases           []Disease
	Measurements       []Measurement
	MedicalActions     []MedicalAction
	Interpretations    []Interpretation
}

func NewPatientRecord(subjectID string) *PatientRecord {
	return &PatientRecord{SubjectID: subjectID, Individual: Individual{ID: subjectID}}
}

// Prefixes returns the CURIE prefixes referenced anywhere in the record.
func (p *PatientRecord) Prefixes() map[string]bool {
	out := make(map[string]bool)
	add := func(o *OntologyClass) {
		if o.IsZero() {
			return
		}
		if i := strings.IndexByte(o.ID, ':'); i > 0 {
			out[strings.ToUpper(o.ID[:i])] = true
		}
	}
	if vs := p.Individual.VitalStatus; vs != nil {
		add(vs.CauseOfDeath)
	}
	for i := range p.PhenotypicFeatures {
		add(&p.PhenotypicFeatures[i].Type)
	}
	for i := range p.Diseases {
		add(&p.Diseases[i].Term)
	}
	for i := range p.Measurements {
		m := &p.Measurements[i]
		add(&m.Assay)
		add(m.Value.OntologyClass)
		if q := m.Value.Quantity; q != nil {
			add(&q.Unit)
		}
	}
	for i := range p.MedicalActions {
		a := &p.MedicalActions[i]
		if a.Procedure != nil {
			add(&a.Procedure.Code)
			add(a.Procedure.BodySite)
		}
		add(a.TreatmentTarget)
		add(a.TreatmentIntent)
		add(a.ResponseToTreatment)
		add(a.TreatmentTerminationReason)
	}
	for i := range p.Interpretations {
		if d := p.Interpretations[i].Diagnosis; d != nil {
			add(&d.Disease)
			for _, gi := range d.GenomicInterpretations {
				if gi.Gene != nil {
					add(&OntologyClass{ID: gi.Gene.ValueID})
				}
				if vi := gi.VariantInterpretation; vi != nil {
					add(vi.VariationDescriptor.AllelicState)
				}
			}
		}
	}
	return out
}

// Store keeps patient records in first-seen order.
type Store struct {
	records map[string]*PatientRecord
	order   []string
}

func NewStore() *Store {
	return &Store{records: make(map[string]*PatientRecord)}
}

func (s *Store) GetOrCreate(subjectID string) *PatientRecord {
	if rec, ok := s.records[subjectID]; ok {
		return rec
	}
	rec := NewPatientRecord(subjectID)
	s.records[subjectID] = rec
	s.order = append(s.order, subjectID)
	return rec
}

func (s *Store) Get(subjectID string) (*PatientRecord, bool) {
	rec, ok := s.records[subjectID]
	return rec, ok
}

func (s *Store) Len() int {
	return len(s.order)
}

func (s *Store) Records() []*PatientRecord {
	out := make([]*PatientRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	return out
}

var isoDuration = regexp.MustCompile(`^P(?:\d+Y)?(?:\d+M)?(?:\d+W)?(?:\d+D)?(?:T(?:\d+H)?(?:\d+M)?(?:\d+(?:\.\d+)?S)?)?$`)

// IsISO8601Duration reports whether s is a well formed ISO-8601 duration such
// as P5Y, P3M2D or P10W.
func IsISO8601Duration(s string) bool {
	if s == "P" || strings.HasSuffix(s, "T") {
		return false
	}
	return isoDuration.MatchString(s)
}
