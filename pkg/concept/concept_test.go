package concept

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestUnmarshalYAMLForms(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Concept
	}{
		{"scalar", `hpo`, Of(Hpo)},
		{"alias", `hpo_label_or_id`, Of(Hpo)},
		{"timed alias", `onset_age`, Timed(Onset, Age)},
		{"timed map", `{onset: date}`, Timed(Onset, Date)},
		{"boundary map", `{reference_range: lower}`, Range(Lower)},
		{"quantitative", `{quantitative_measurement: {assay_id: "LOINC:2345-7", unit_id: "UO:0000022"}}`, Quantitative("LOINC:2345-7", "UO:0000022")},
		{"qualitative", `{qualitative_measurement: {assay_id: "LOINC:94500-6"}}`, Qualitative("LOINC:94500-6")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Concept
			require.NoError(t, yaml.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnmarshalYAMLRejectsInvalid(t *testing.T) {
	for _, in := range []string{
		`unknown_thing`,
		`onset`,
		`{onset: week}`,
		`{reference_range: middle}`,
		`{quantitative_measurement: {assay_id: "LOINC:1"}}`,
		`{hpo: age}`,
		`[hpo]`,
	} {
		var c Concept
		assert.Error(t, yaml.Unmarshal([]byte(in), &c), in)
	}
}

func TestParseRoundTripsString(t *testing.T) {
	for _, c := range []Concept{
		Of(SubjectID),
		Timed(TimeOfDeath, Age),
		Range(Upper),
		Quantitative("LOINC:2345-7", "UO:0000022"),
		Qualitative("LOINC:94500-6"),
	} {
		parsed, err := Parse(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}
}

func TestMarshalYAMLRoundTrip(t *testing.T) {
	in := Quantitative("LOINC:2345-7", "UO:0000022")
	out, err := yaml.Marshal(in)
	require.NoError(t, err)

	var back Concept
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, in, back)
}

func TestFamilyAndPredicates(t *testing.T) {
	assert.Equal(t, FamilyIndividual, Of(SubjectSex).Family())
	assert.Equal(t, FamilyMeasurement, Range(Lower).Family())
	assert.Equal(t, FamilyMedicalAction, Timed(TimeOfProcedure, Date).Family())
	assert.True(t, Timed(Onset, Age).IsTimeElement())
	assert.False(t, Of(Hpo).IsTimeElement())
	assert.True(t, Concept{}.IsNone())
	assert.True(t, Concept{}.Equal(Of(None)))
	assert.False(t, Timed(Onset, Age).Equal(Timed(Onset, Date)))
}
