package lint

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/manifest"
	"github.com/synaptica-ai/phenoxtract/pkg/ontology"
	"github.com/synaptica-ai/phenoxtract/pkg/record"
)

const hpoJSON = `{
  "graphs": [{
    "nodes": [
      {"id": "http://purl.obolibrary.org/obo/HP_0000118", "lbl": "Phenotypic abnormality", "type": "CLASS"},
      {"id": "http://purl.obolibrary.org/obo/HP_0000707", "lbl": "Abnormality of the nervous system", "type": "CLASS"},
      {"id": "http://purl.obolibrary.org/obo/HP_0001250", "lbl": "Seizure", "type": "CLASS"},
      {"id": "http://purl.obolibrary.org/obo/HP_0002069", "lbl": "Bilateral tonic-clonic seizure", "type": "CLASS"},
      {"id": "http://purl.obolibrary.org/obo/HP_0000006", "lbl": "Autosomal dominant inheritance", "type": "CLASS"}
    ],
    "edges": [
      {"sub": "http://purl.obolibrary.org/obo/HP_0000707", "pred": "is_a", "obj": "http://purl.obolibrary.org/obo/HP_0000118"},
      {"sub": "http://purl.obolibrary.org/obo/HP_0001250", "pred": "is_a", "obj": "http://purl.obolibrary.org/obo/HP_0000707"},
      {"sub": "http://purl.obolibrary.org/obo/HP_0002069", "pred": "is_a", "obj": "http://purl.obolibrary.org/obo/HP_0001250"}
    ]
  }]
}`

func hpo(t *testing.T) ontology.Hierarchy {
	t.Helper()
	g, err := ontology.ReadGraph(strings.NewReader(hpoJSON), "HP")
	require.NoError(t, err)
	return g
}

func feature(id string, excluded bool) record.PhenotypicFeature {
	return record.PhenotypicFeature{Type: record.OntologyClass{ID: id}, Excluded: excluded}
}

func storeWith(features ...record.PhenotypicFeature) (*record.Store, *record.PatientRecord) {
	store := record.NewStore()
	rec := store.GetOrCreate("P001")
	rec.PhenotypicFeatures = features
	return store, rec
}

func reasons(report *extract.Report) []error {
	var out []error
	for _, issue := range report.Issues() {
		out = append(out, issue.Err)
	}
	return out
}

func TestDuplicatesAreReported(t *testing.T) {
	seizure := feature("HP:0001250", false)
	late := seizure
	late.Onset = record.AgeElement("P5Y")
	store, rec := storeWith(seizure, seizure, late)
	report := extract.NewReport()

	fixes := New(nil, false).Lint(store, report)
	assert.Zero(t, fixes)
	assert.Len(t, rec.PhenotypicFeatures, 3)
	require.Equal(t, 1, report.Len())
	issue := report.Issues()[0]
	assert.Equal(t, extract.KindValidation, issue.Kind)
	assert.True(t, errors.Is(issue.Err, ErrDuplicatePhenotype))
	assert.Equal(t, "P001", issue.Location.Subject)
	assert.Equal(t, "HP:0001250", issue.Location.Value)
}

func TestDuplicatesAreDroppedWhenFixing(t *testing.T) {
	store, rec := storeWith(feature("HP:0001250", false), feature("HP:0001250", true), feature("HP:0001250", false))
	report := extract.NewReport()

	fixes := New(nil, true).Lint(store, report)
	assert.Equal(t, 1, fixes)
	require.Len(t, rec.PhenotypicFeatures, 2)
	assert.False(t, rec.PhenotypicFeatures[0].Excluded)
	assert.True(t, rec.PhenotypicFeatures[1].Excluded)
}

func TestHierarchyRules(t *testing.T) {
	tests := []struct {
		name     string
		features []record.PhenotypicFeature
		want     []error
	}{
		{
			name:     "root is redundant next to a specific term",
			features: []record.PhenotypicFeature{feature("HP:0002069", false), feature("HP:0000118", false)},
			want:     []error{ErrRedundantAncestor},
		},
		{
			name:     "observed ancestor is redundant",
			features: []record.PhenotypicFeature{feature("HP:0001250", false), feature("HP:0002069", false)},
			want:     []error{ErrRedundantAncestor},
		},
		{
			name:     "excluded descendant contradicts",
			features: []record.PhenotypicFeature{feature("HP:0001250", false), feature("HP:0002069", true)},
			want:     []error{ErrExcludedDescendant},
		},
		{
			name:     "excluded ancestor is fine",
			features: []record.PhenotypicFeature{feature("HP:0002069", false), feature("HP:0001250", true)},
		},
		{
			name:     "outside phenotypic abnormality",
			features: []record.PhenotypicFeature{feature("HP:0000006", false)},
			want:     []error{ErrNotPhenotype},
		},
		{
			name:     "other prefixes are skipped",
			features: []record.PhenotypicFeature{feature("MP:0000001", false)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := storeWith(tt.features...)
			report := extract.NewReport()
			New(hpo(t), false).Lint(store, report)

			got := reasons(report)
			require.Len(t, got, len(tt.want))
			for i, want := range tt.want {
				assert.True(t, errors.Is(got[i], want), "got %v", got[i])
			}
		})
	}
}

func TestRedundantAncestorIsDroppedWhenFixing(t *testing.T) {
	store, rec := storeWith(
		feature("HP:0001250", false),
		feature("HP:0002069", false),
		feature("HP:0000707", true),
	)
	report := extract.NewReport()

	fixes := New(hpo(t), true).Lint(store, report)
	assert.Equal(t, 1, fixes)
	require.Len(t, rec.PhenotypicFeatures, 2)
	assert.Equal(t, "HP:0002069", rec.PhenotypicFeatures[0].Type.ID)
	assert.Equal(t, "HP:0000707", rec.PhenotypicFeatures[1].Type.ID)
	assert.Equal(t, 1, report.Count(extract.KindValidation))
}

func TestWithoutHierarchyOnlyRecordChecksRun(t *testing.T) {
	store, _ := storeWith(feature("HP:0000006", false), feature("HP:0001250", false), feature("HP:0002069", false))
	report := extract.NewReport()

	New(nil, false).Lint(store, report)
	assert.Zero(t, report.Len())
}

func TestUndeclaredDiagnosis(t *testing.T) {
	build := func() (*record.Store, *record.PatientRecord) {
		store, rec := storeWith()
		rec.Diseases = []record.Disease{{Term: record.OntologyClass{ID: "OMIM:100"}}}
		rec.Interpretations = []record.Interpretation{
			{ID: "i1", Diagnosis: &record.Diagnosis{Disease: record.OntologyClass{ID: "OMIM:100"}}},
			{ID: "i2", Diagnosis: &record.Diagnosis{Disease: record.OntologyClass{ID: "OMIM:200", Label: "Dravet"}}},
			{ID: "i3", Diagnosis: &record.Diagnosis{Disease: record.OntologyClass{ID: "OMIM:200"}}},
			{ID: "i4"},
		}
		return store, rec
	}

	t.Run("report only", func(t *testing.T) {
		store, rec := build()
		report := extract.NewReport()
		assert.Zero(t, New(nil, false).Lint(store, report))
		require.Equal(t, 1, report.Len())
		assert.True(t, errors.Is(report.Issues()[0].Err, ErrUndeclaredDiagnosis))
		assert.Equal(t, "OMIM:200", report.Issues()[0].Location.Value)
		assert.Len(t, rec.Diseases, 1)
	})

	t.Run("fix", func(t *testing.T) {
		store, rec := build()
		report := extract.NewReport()
		assert.Equal(t, 1, New(nil, true).Lint(store, report))
		require.Len(t, rec.Diseases, 2)
		assert.Equal(t, record.OntologyClass{ID: "OMIM:200", Label: "Dravet"}, rec.Diseases[1].Term)
	})
}

func TestFromRegistryUsesHPOHierarchy(t *testing.T) {
	g, err := ontology.ReadGraph(strings.NewReader(hpoJSON), "HP")
	require.NoError(t, err)
	registry := ontology.NewRegistry()

	assert.Nil(t, FromRegistry(registry, false).hpo)

	registry.Register(manifest.ResourceConfig{ID: "hp", Prefix: "HP"}, g)
	assert.NotNil(t, FromRegistry(registry, false).hpo)
}
