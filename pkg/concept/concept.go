// Package concept defines the closed set of clinical meanings a column header
// or its cells can carry.
package concept

import (
	"fmt"
	"strings"
)

type Kind string

const (
	None Kind = "none"

	SubjectID        Kind = "subject_id"
	SubjectSex       Kind = "subject_sex"
	DateOfBirth      Kind = "date_of_birth"
	VitalStatus      Kind = "vital_status"
	LastEncounter    Kind = "last_encounter"
	TimeOfDeath      Kind = "time_of_death"
	CauseOfDeath     Kind = "cause_of_death"
	SurvivalTimeDays Kind = "survival_time_days"

	Hpo               Kind = "hpo"
	MultiHpo          Kind = "multi_hpo"
	Disease           Kind = "disease"
	Onset             Kind = "onset"
	ObservationStatus Kind = "observation_status"

	HgncSymbolOrID Kind = "hgnc"
	Hgvs           Kind = "hgvs"

	QuantitativeMeasurement Kind = "quantitative_measurement"
	QualitativeMeasurement  Kind = "qualitative_measurement"
	ReferenceRange          Kind = "reference_range"

	Procedure                  Kind = "procedure"
	ProcedureBodySite          Kind = "procedure_body_site"
	TimeOfProcedure            Kind = "time_of_procedure"
	TreatmentTarget            Kind = "treatment_target"
	TreatmentIntent            Kind = "treatment_intent"
	ResponseToTreatment        Kind = "response_to_treatment"
	TreatmentTerminationReason Kind = "treatment_termination_reason"
)

// TimeElement selects how a time-valued concept is expressed.
type TimeElement string

const (
	Age  TimeElement = "age"
	Date TimeElement = "date"
)

type Boundary string

const (
	Lower Boundary = "lower"
	Upper Boundary = "upper"
)

type Family string

const (
	FamilyNone          Family = "none"
	FamilyIndividual    Family = "individual"
	FamilyPhenotype     Family = "phenotype"
	FamilyGenetics      Family = "genetics"
	FamilyMeasurement   Family = "measurement"
	FamilyMedicalAction Family = "medical_action"
)

// Concept is a value type; two concepts are equal when all fields match, so
// it can be used as a map key and compared with ==.
type Concept struct {
	Kind     Kind
	Time     TimeElement
	Boundary Boundary
	AssayID  string
	UnitID   string
}

type spec struct {
	family   Family
	timed    bool
	boundary bool
	assay    bool
	unit     bool
}

var kinds = map[Kind]spec{
	None:                       {family: FamilyNone},
	SubjectID:                  {family: FamilyIndividual},
	SubjectSex:                 {family: FamilyIndividual},
	DateOfBirth:                {family: FamilyIndividual},
	VitalStatus:                {family: FamilyIndividual},
	LastEncounter:              {family: FamilyIndividual, timed: true},
	TimeOfDeath:                {family: FamilyIndividual, timed: true},
	CauseOfDeath:               {family: FamilyIndividual},
	SurvivalTimeDays:           {family: FamilyIndividual},
	Hpo:                        {family: FamilyPhenotype},
	MultiHpo:                   {family: FamilyPhenotype},
	Disease:                    {family: FamilyPhenotype},
	Onset:                      {family: FamilyPhenotype, timed: true},
	ObservationStatus:          {family: FamilyPhenotype},
	HgncSymbolOrID:             {family: FamilyGenetics},
	Hgvs:                       {family: FamilyGenetics},
	QuantitativeMeasurement:    {family: FamilyMeasurement, assay: true, unit: true},
	QualitativeMeasurement:     {family: FamilyMeasurement, assay: true},
	ReferenceRange:             {family: FamilyMeasurement, boundary: true},
	Procedure:                  {family: FamilyMedicalAction},
	ProcedureBodySite:          {family: FamilyMedicalAction},
	TimeOfProcedure:            {family: FamilyMedicalAction, timed: true},
	TreatmentTarget:            {family: FamilyMedicalAction},
	TreatmentIntent:            {family: FamilyMedicalAction},
	ResponseToTreatment:        {family: FamilyMedicalAction},
	TreatmentTerminationReason: {family: FamilyMedicalAction},
}

// Shorthand scalar names accepted in configuration files.
var aliases = map[string]Concept{
	"sex":                    {Kind: SubjectSex},
	"hpo_label_or_id":        {Kind: Hpo},
	"hpo_id":                 {Kind: Hpo},
	"hpo_label":              {Kind: Hpo},
	"multi_hpo_id":           {Kind: MultiHpo},
	"disease_label_or_id":    {Kind: Disease},
	"omim_label_or_id":       {Kind: Disease},
	"orphanet_label_or_id":   {Kind: Disease},
	"mondo_label_or_id":      {Kind: Disease},
	"hgnc_symbol_or_id":      {Kind: HgncSymbolOrID},
	"onset_age":              {Kind: Onset, Time: Age},
	"onset_date":             {Kind: Onset, Time: Date},
	"age_at_last_encounter":  {Kind: LastEncounter, Time: Age},
	"date_at_last_encounter": {Kind: LastEncounter, Time: Date},
	"age_of_death":           {Kind: TimeOfDeath, Time: Age},
	"date_of_death":          {Kind: TimeOfDeath, Time: Date},
	"age_at_procedure":       {Kind: TimeOfProcedure, Time: Age},
	"date_of_procedure":      {Kind: TimeOfProcedure, Time: Date},
	"reference_range_low":    {Kind: ReferenceRange, Boundary: Lower},
	"reference_range_high":   {Kind: ReferenceRange, Boundary: Upper},
}

func Of(kind Kind) Concept {
	return Concept{Kind: kind}
}

func Timed(kind Kind, te TimeElement) Concept {
	return Concept{Kind: kind, Time: te}
}

func Range(b Boundary) Concept {
	return Concept{Kind: ReferenceRange, Boundary: b}
}

func Quantitative(assayID, unitID string) Concept {
	return Concept{Kind: QuantitativeMeasurement, AssayID: assayID, UnitID: unitID}
}

func Qualitative(assayID string) Concept {
	return Concept{Kind: QualitativeMeasurement, AssayID: assayID}
}

// Parse reads the textual form produced by String, e.g. "hpo", "onset(age)",
// "reference_range(lower)" or "quantitative_measurement(LOINC:2345-7,UO:0000022)".
func Parse(s string) (Concept, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Concept{Kind: None}, nil
	}
	name, args := s, ""
	if open := strings.IndexByte(s, '('); open > 0 && strings.HasSuffix(s, ")") {
		name, args = s[:open], s[open+1:len(s)-1]
	}
	name = strings.ToLower(strings.TrimSpace(name))

	if args == "" {
		if c, ok := aliases[name]; ok {
			return c, nil
		}
	}

	c := Concept{Kind: Kind(name)}
	sp, ok := kinds[c.Kind]
	if !ok {
		return Concept{}, fmt.Errorf("unknown concept %q", name)
	}

	var params []string
	if args != "" {
		for _, p := range strings.Split(args, ",") {
			params = append(params, strings.TrimSpace(p))
		}
	}

	switch {
	case sp.timed:
		if len(params) != 1 {
			return Concept{}, fmt.Errorf("concept %q requires a time element (age or date)", name)
		}
		c.Time = TimeElement(strings.ToLower(params[0]))
	case sp.boundary:
		if len(params) != 1 {
			return Concept{}, fmt.Errorf("concept %q requires a boundary (lower or upper)", name)
		}
		c.Boundary = Boundary(strings.ToLower(params[0]))
	case sp.assay && sp.unit:
		if len(params) != 2 {
			return Concept{}, fmt.Errorf("concept %q requires assay_id and unit_id", name)
		}
		c.AssayID, c.UnitID = params[0], params[1]
	case sp.assay:
		if len(params) != 1 {
			return Concept{}, fmt.Errorf("concept %q requires assay_id", name)
		}
		c.AssayID = params[0]
	default:
		if len(params) != 0 {
			return Concept{}, fmt.Errorf("concept %q takes no parameters", name)
		}
	}
	return c, c.Validate()
}

// Validate checks that the parameters required by the kind are present and legal.
func (c Concept) Validate() error {
	sp, ok := kinds[c.Kind]
	if !ok {
		return fmt.Errorf("unknown concept %q", c.Kind)
	}
	if sp.timed {
		if c.Time != Age && c.Time != Date {
			return fmt.Errorf("concept %q: unknown time element %q", c.Kind, c.Time)
		}
	} else if c.Time != "" {
		return fmt.Errorf("concept %q does not take a time element", c.Kind)
	}
	if sp.boundary {
		if c.Boundary != Lower && c.Boundary != Upper {
			return fmt.Errorf("concept %q: unknown boundary %q", c.Kind, c.Boundary)
		}
	} else if c.Boundary != "" {
		return fmt.Errorf("concept %q does not take a boundary", c.Kind)
	}
	if sp.assay && strings.TrimSpace(c.AssayID) == "" {
		return fmt.Errorf("concept %q requires assay_id", c.Kind)
	}
	if sp.unit && strings.TrimSpace(c.UnitID) == "" {
		return fmt.Errorf("concept %q requires unit_id", c.Kind)
	}
	return nil
}

func (c Concept) String() string {
	kind := c.Kind
	if kind == "" {
		kind = None
	}
	switch {
	case c.Time != "":
		return fmt.Sprintf("%s(%s)", kind, c.Time)
	case c.Boundary != "":
		return fmt.Sprintf("%s(%s)", kind, c.Boundary)
	case c.AssayID != "" && c.UnitID != "":
		return fmt.Sprintf("%s(%s,%s)", kind, c.AssayID, c.UnitID)
	case c.AssayID != "":
		return fmt.Sprintf("%s(%s)", kind, c.AssayID)
	}
	return string(kind)
}

func (c Concept) Family() Family {
	if sp, ok := kinds[c.Kind]; ok {
		return sp.family
	}
	return FamilyNone
}

func (c Concept) IsNone() bool {
	return c.Kind == "" || c.Kind == None
}

// IsTimeElement reports whether the concept carries a point in time.
func (c Concept) IsTimeElement() bool {
	return kinds[c.Kind].timed
}

// Is reports whether c has the given kind, ignoring parameters.
func (c Concept) Is(kind Kind) bool {
	if kind == None {
		return c.IsNone()
	}
	return c.Kind == kind
}

func (c Concept) Equal(other Concept) bool {
	if c.IsNone() && other.IsNone() {
		return true
	}
	return c == other
}
