package resolver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/phenoxtract/pkg/concept"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/manifest"
	"github.com/synaptica-ai/phenoxtract/pkg/table"
)

func sampleTable(headers ...string) *table.Table {
	tbl := table.New("sample")
	for _, h := range headers {
		tbl.Columns = append(tbl.Columns, table.NewColumn(h, []string{"x"}))
	}
	return tbl
}

func ctx(id manifest.Identifier, data concept.Concept) manifest.SeriesContextConfig {
	return manifest.SeriesContextConfig{Identifier: id, DataContext: data}
}

func TestExactNameResolutionIgnoresDeclarationOrder(t *testing.T) {
	tbl := sampleTable("sex", "subject_id", "dob")

	forward, err := Resolve(tbl, []manifest.SeriesContextConfig{
		ctx(manifest.Single("subject_id"), concept.Of(concept.SubjectID)),
		ctx(manifest.Single("sex"), concept.Of(concept.SubjectSex)),
	})
	require.NoError(t, err)
	backward, err := Resolve(tbl, []manifest.SeriesContextConfig{
		ctx(manifest.Single("sex"), concept.Of(concept.SubjectSex)),
		ctx(manifest.Single("subject_id"), concept.Of(concept.SubjectID)),
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1}, forward[0].Indexes)
	assert.Equal(t, []int{0}, forward[1].Indexes)
	assert.Equal(t, forward[0].Indexes, backward[1].Indexes)
	assert.Equal(t, forward[1].Indexes, backward[0].Indexes)
}

func TestExactMatchWinsOverPattern(t *testing.T) {
	tbl := sampleTable("a.b", "axb")
	got, err := Resolve(tbl, []manifest.SeriesContextConfig{ctx(manifest.Single("a.b"), concept.Of(concept.Hpo))})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, got[0].Indexes)
}

func TestRegexFallbackMatchesWholeHeader(t *testing.T) {
	tbl := sampleTable("hpo_1", "onset", "hpo_2", "my_hpo_3")

	got, err := Resolve(tbl, []manifest.SeriesContextConfig{
		ctx(manifest.Single(`hpo_\d`), concept.Of(concept.Hpo)),
		ctx(manifest.Single(`nothing.*`), concept.Of(concept.Disease)),
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, got[0].Indexes, "partial matches must not bind")
	assert.Empty(t, got[1].Indexes)
	assert.Equal(t, 0, got[1].Cardinality())
}

func TestListIdentifierBindsInListOrder(t *testing.T) {
	tbl := sampleTable("b", "a", "c")
	got, err := Resolve(tbl, []manifest.SeriesContextConfig{
		ctx(manifest.List("c", "missing", "a"), concept.Of(concept.Hpo)),
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, got[0].Indexes)
	assert.Equal(t, []string{"missing"}, got[0].Missing)
	assert.Equal(t, []string{"c", "a"}, headersOf(tbl, got[0]))
}

func TestListIdentifierBindingTwiceIsConfigError(t *testing.T) {
	tbl := sampleTable("a", "b")
	_, err := Resolve(tbl, []manifest.SeriesContextConfig{ctx(manifest.List("a", "a"), concept.Of(concept.Hpo))})
	require.Error(t, err)
	assert.True(t, extract.IsConfigError(err))
	assert.True(t, errors.Is(err, extract.ErrDuplicateBinding))
}

func TestMalformedPatternIsConfigError(t *testing.T) {
	tbl := sampleTable("a")
	_, err := Resolve(tbl, []manifest.SeriesContextConfig{ctx(manifest.Single("(unclosed"), concept.Of(concept.Hpo))})
	require.Error(t, err)
	assert.True(t, extract.IsConfigError(err))

	exact := sampleTable("(unclosed")
	got, err := Resolve(exact, []manifest.SeriesContextConfig{ctx(manifest.Single("(unclosed"), concept.Of(concept.Hpo))})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, got[0].Indexes)
}

func TestHeaderlessTablesUseIndexHeaders(t *testing.T) {
	tbl := sampleTable("0", "1", "2")
	got, err := Resolve(tbl, []manifest.SeriesContextConfig{ctx(manifest.Single(`[12]`), concept.Of(concept.Hpo))})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got[0].Indexes)
}

func TestInertContext(t *testing.T) {
	tbl := sampleTable("note")
	got, err := Resolve(tbl, []manifest.SeriesContextConfig{{Identifier: manifest.Single("note")}})
	require.NoError(t, err)
	assert.True(t, got[0].Inert())
}

func TestSubjectFromHeaderOrDataContext(t *testing.T) {
	for name, cfg := range map[string]manifest.SeriesContextConfig{
		"data":   ctx(manifest.Single("patient"), concept.Of(concept.SubjectID)),
		"header": {Identifier: manifest.Single("patient"), HeaderContext: concept.Of(concept.SubjectID)},
	} {
		t.Run(name, func(t *testing.T) {
			tbl := table.New("sample", table.NewColumn("patient", []string{"P001", ""}))
			tc, err := Bind(tbl, []manifest.SeriesContextConfig{cfg})
			require.NoError(t, err)

			rc, ok := tc.SubjectContext()
			require.True(t, ok)
			assert.True(t, rc.IsSubject())
			assert.Equal(t, "P001", tc.SubjectAt(0))
			assert.Equal(t, "", tc.SubjectAt(1))
		})
	}
}

func headersOf(tbl *table.Table, r *Resolved) []string {
	var out []string
	for _, col := range r.Columns(tbl) {
		out = append(out, col.Header)
	}
	return out
}
