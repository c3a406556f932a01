package record

import (
	"sort"
	"strings"
	"time"

	"github.com/synaptica-ai/phenoxtract/pkg/common/config"
	"github.com/synaptica-ai/phenoxtract/pkg/manifest"
)

const SchemaVersion = "2.0.2"

type Resource struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	URL             string `json:"url,omitempty"`
	Version         string `json:"version"`
	NamespacePrefix string `json:"namespacePrefix"`
	IRIPrefix       string `json:"iriPrefix,omitempty"`
}

type MetaData struct {
	Created                  time.Time  `json:"created"`
	CreatedBy                string     `json:"createdBy"`
	SubmittedBy              string     `json:"submittedBy,omitempty"`
	Resources                []Resource `json:"resources"`
	PhenopacketSchemaVersion string     `json:"phenopacketSchemaVersion"`
}

// Phenopacket is the output document for one patient.
type Phenopacket struct {
	ID                 string              `json:"id"`
	Subject            Individual          `json:"subject"`
	PhenotypicFeatures []PhenotypicFeature `json:"phenotypicFeatures,omitempty"`
	Measurements       []Measurement       `json:"measurements,omitempty"`
	Diseases           []Disease           `json:"diseases,omitempty"`
	MedicalActions     []MedicalAction     `json:"medicalActions,omitempty"`
	Interpretations    []Interpretation    `json:"interpretations,omitempty"`
	MetaData           MetaData            `json:"metaData"`
}

// PacketID is the document id of subject within cohort.
func PacketID(cohort, subjectID string) string {
	return cohort + "-" + subjectID
}

// Builder turns collected records into phenopackets.
type Builder struct {
	Meta      manifest.MetaData
	Resources []manifest.ResourceConfig
	Now       func() time.Time
}

func NewBuilder(meta manifest.MetaData, resources []manifest.ResourceConfig) *Builder {
	return &Builder{Meta: meta, Resources: resources, Now: time.Now}
}

// Build produces one phenopacket per record in store order. Only resources
// whose prefix is referenced by the record are listed in its metadata.
func (b *Builder) Build(store *Store) []Phenopacket {
	createdBy := b.Meta.CreatedBy
	if createdBy == "" {
		createdBy = config.DefaultCreator()
	}
	created := b.Now().UTC()

	out := make([]Phenopacket, 0, store.Len())
	for _, rec := range store.Records() {
		pp := Phenopacket{
			ID:                 PacketID(b.Meta.CohortName, rec.SubjectID),
			Subject:            subjectOf(rec),
			PhenotypicFeatures: rec.PhenotypicFeatures,
			Measurements:       rec.Measurements,
			Diseases:           rec.Diseases,
			MedicalActions:     rec.MedicalActions,
			Interpretations:    rec.Interpretations,
			MetaData: MetaData{
				Created:                  created,
				CreatedBy:                createdBy,
				SubmittedBy:              b.Meta.SubmittedBy,
				Resources:                b.resourcesFor(rec),
				PhenopacketSchemaVersion: SchemaVersion,
			},
		}
		out = append(out, pp)
	}
	return out
}

// subjectOf fills in a vital status that only carries death details.
func subjectOf(rec *PatientRecord) Individual {
	subject := rec.Individual
	if vs := subject.VitalStatus; vs != nil && vs.Status == "" {
		cp := *vs
		cp.Status = StatusUnknown
		if cp.TimeOfDeath != nil || cp.CauseOfDeath != nil {
			cp.Status = StatusDeceased
		}
		subject.VitalStatus = &cp
	}
	return subject
}

func (b *Builder) resourcesFor(rec *PatientRecord) []Resource {
	used := rec.Prefixes()
	out := []Resource{}
	for _, cfg := range b.Resources {
		if !used[strings.ToUpper(cfg.Prefix)] {
			continue
		}
		out = append(out, Resource{
			ID:              cfg.ID,
			Name:            cfg.Name,
			URL:             cfg.URL,
			Version:         cfg.Version,
			NamespacePrefix: cfg.Prefix,
			IRIPrefix:       cfg.IRI,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].NamespacePrefix < out[j].NamespacePrefix })
	return out
}
