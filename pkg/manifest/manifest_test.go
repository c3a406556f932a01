package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/phenoxtract/pkg/common/config"
	"github.com/synaptica-ai/phenoxtract/pkg/concept"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
)

const sample = `
data_sources:
  - name: patients
    source: patients.csv
    separator: ";"
    contexts:
      - identifier: subject_id
        data_context: subject_id
      - identifier: sex
        data_context: subject_sex
        alias_map:
          mappings:
            M: MALE
            F: FEMALE
            "No data": null
            null: UNKNOWN_SEX
      - identifier: [seizure, ataxia]
        header_context: hpo
        data_context: observation_status
      - identifier: "lab_.*"
        data_context:
          quantitative_measurement: {assay_id: "LOINC:2345-7", unit_id: "UO:0000022"}
        fill_missing: "0"
        building_block_id: glucose
      - identifier: comment
pipeline:
  meta_data:
    cohort_name: my_cohort
  resources:
    - id: hp
      prefix: HP
      version: "2025-09-01"
      type: catalog
      path: hp.yaml
      concepts: [hpo]
  transform_strategies:
    - alias_map
    - {mapping: sex}
    - {ontology_normaliser: {resource: hp, concept: hpo}}
    - age_to_iso8601
  loader:
    file_system:
      output_dir: out
      create_dir: true
`

func TestParseSample(t *testing.T) {
	m, err := Parse([]byte(sample), "/data")
	require.NoError(t, err)

	require.Len(t, m.DataSources, 1)
	ds := m.DataSources[0]
	assert.Equal(t, "csv", ds.Type)
	assert.Equal(t, ';', ds.CSVOptions().Separator)
	assert.True(t, ds.CSVOptions().HasHeaders)
	assert.True(t, ds.CSVOptions().PatientsAreRows)

	sex := ds.Contexts[1]
	require.NotNil(t, sex.AliasMap)
	assert.Equal(t, "MALE", *sex.AliasMap.Mappings["M"])
	assert.Nil(t, sex.AliasMap.Mappings["No data"])
	assert.Contains(t, sex.AliasMap.Mappings, "No data")
	assert.Equal(t, "UNKNOWN_SEX", *sex.AliasMap.Mappings[""])

	list := ds.Contexts[2]
	assert.True(t, list.Identifier.List)
	assert.Equal(t, []string{"seizure", "ataxia"}, list.Identifier.Values)
	assert.Equal(t, concept.Of(concept.Hpo), list.HeaderContext)

	lab := ds.Contexts[3]
	assert.False(t, lab.Identifier.List)
	assert.Equal(t, concept.Quantitative("LOINC:2345-7", "UO:0000022"), lab.DataContext)
	assert.Equal(t, "0", *lab.FillMissing)
	assert.Equal(t, "glucose", lab.BuildingBlockID)

	assert.True(t, ds.Contexts[4].Inert())

	meta := m.Pipeline.MetaData
	assert.Equal(t, config.DefaultCreator(), meta.CreatedBy)
	assert.Equal(t, config.DefaultCreator(), meta.SubmittedBy)

	strategies := m.Pipeline.TransformStrategies
	require.Len(t, strategies, 4)
	assert.Equal(t, StrategyAliasMap, strategies[0].Name)
	assert.Equal(t, MappingSex, strategies[1].Mapping.Builtin)
	assert.Equal(t, "hp", strategies[2].Normaliser.Resource)

	assert.Equal(t, "/data/patients.csv", m.Path(ds.Source))
	_, ok := m.Resource("HP")
	assert.True(t, ok)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("data_sources: []\nbogus: 1\n"), "")
	require.Error(t, err)
	assert.True(t, extract.IsConfigError(err))
}

func TestValidateCollectsAllProblems(t *testing.T) {
	doc := `
data_sources:
  - name: a
    source: a.csv
    contexts:
      - identifier: [x, x]
        data_context: subject_id
      - identifier: y
        data_context: subject_id
  - name: a
    source: ""
pipeline:
  meta_data: {}
  transform_strategies:
    - teleport
    - {ontology_normaliser: {resource: missing, concept: hpo}}
  loader: {}
`
	_, err := Parse([]byte(doc), "")
	require.Error(t, err)
	assert.True(t, extract.IsConfigError(err))
	assert.True(t, errors.Is(err, extract.ErrDuplicateBinding))

	msg := err.Error()
	for _, want := range []string{
		"duplicate data source",
		"at most one allowed",
		"cohort_name",
		`unknown strategy "teleport"`,
		`resource "missing" is not declared`,
		"at least one loader",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestValidateSourceTypes(t *testing.T) {
	doc := `
data_sources:
  - name: sheet
    type: excel
    source: a.xlsx
    sheet: visits
    contexts:
      - identifier: id
        data_context: subject_id
      - identifier: hpo
        header_context: subject_id
  - name: bad_excel
    type: excel
    source: b.xlsx
    separator: ";"
  - name: bad_csv
    source: c.csv
    sheet: visits
  - name: parquet
    type: parquet
    source: d.parquet
pipeline:
  meta_data: {cohort_name: c}
  lint: {fix: true}
  loader: {file_system: {output_dir: out}}
`
	_, err := Parse([]byte(doc), "")
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"data_sources[0].contexts",
		"excel sources have no separator",
		"only excel sources have sheets",
		`unsupported source type "parquet"`,
	} {
		assert.Contains(t, msg, want)
	}

	ok := `
data_sources:
  - name: sheet
    type: excel
    source: a.xlsx
    sheet: visits
    contexts:
      - identifier: id
        data_context: subject_id
pipeline:
  meta_data: {cohort_name: c}
  lint: {fix: true}
  loader: {file_system: {output_dir: out}}
`
	m, err := Parse([]byte(ok), "")
	require.NoError(t, err)
	assert.Equal(t, SourceExcel, m.DataSources[0].Type)
	assert.Equal(t, "visits", m.DataSources[0].Sheet)
	assert.True(t, m.Pipeline.Lint.Fix)
	assert.False(t, m.Pipeline.Lint.Disabled)
}

func TestLoadAliasFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sex.csv"), []byte("raw,code\nm,MALE\nw,FEMALE\n?,\n"), 0o600))
	doc := `
data_sources:
  - name: a
    source: a.csv
    contexts:
      - identifier: sex
        data_context: subject_sex
        alias_map:
          path: sex.csv
          key_column: raw
          alias_column: code
          mappings:
            m: OTHER_SEX
pipeline:
  meta_data: {cohort_name: c, created_by: me}
  loader: {kafka: {topic: t}}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(doc), 0o600))

	m, err := Load(filepath.Join(dir, "manifest.yaml"))
	require.NoError(t, err)

	mappings := m.DataSources[0].Contexts[0].AliasMap.Mappings
	assert.Equal(t, "OTHER_SEX", *mappings["m"], "inline entries win")
	assert.Equal(t, "FEMALE", *mappings["w"])
	assert.Nil(t, mappings["?"])
	assert.Equal(t, []string{"?", "m", "w"}, mappings.Keys())
	assert.Equal(t, "me", m.Pipeline.MetaData.CreatedBy)
}

func TestSecretsResolveFromEnvironment(t *testing.T) {
	t.Setenv("VOCAB_PASS", "s3cret")
	s := Secrets{User: "alice", Password: "env:VOCAB_PASS"}.Resolve()
	assert.Equal(t, "alice", s.User)
	assert.Equal(t, "s3cret", s.Password)
}
