package grouper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/phenoxtract/pkg/concept"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/manifest"
	"github.com/synaptica-ai/phenoxtract/pkg/resolver"
)

func member(name, block string, data concept.Concept, indexes ...int) *resolver.Resolved {
	return &resolver.Resolved{
		Config: manifest.SeriesContextConfig{
			Identifier:      manifest.Single(name),
			DataContext:     data,
			BuildingBlockID: block,
		},
		Indexes: indexes,
		Data:    data,
	}
}

func TestGroupSeparatesStandaloneAndBlocks(t *testing.T) {
	subject := member("id", "", concept.Of(concept.SubjectID), 0)
	hpo := member("hpo", "pheno", concept.Of(concept.Hpo), 1, 3)
	onset := member("onset", "pheno", concept.Timed(concept.Onset, concept.Age), 2, 4)
	lonely := member("disease", "dx", concept.Of(concept.Disease), 5)
	inert := member("notes", "", concept.Of(concept.None), 6)

	part, err := Group("t", []*resolver.Resolved{subject, hpo, onset, lonely, inert})
	require.NoError(t, err)

	assert.Equal(t, []*resolver.Resolved{subject, lonely}, part.Standalone)
	require.Len(t, part.Blocks, 1)
	assert.Equal(t, "pheno", part.Blocks[0].ID)
	assert.Equal(t, 2, part.Blocks[0].Cardinality)
	assert.Equal(t, []*resolver.Resolved{hpo, onset}, part.Blocks[0].Members)
}

func TestGroupExcludesMismatchedBlocks(t *testing.T) {
	hpo := member("hpo", "pheno", concept.Of(concept.Hpo), 1, 2)
	onset := member("onset", "pheno", concept.Timed(concept.Onset, concept.Age), 3)
	unbound := member("status", "pheno", concept.Of(concept.ObservationStatus))
	assay := member("glucose", "lab", concept.Quantitative("LOINC:2345-7", "UO:0000022"), 4)
	low := member("low", "lab", concept.Range(concept.Lower), 5)

	part, err := Group("t", []*resolver.Resolved{hpo, onset, unbound, assay, low})
	require.Error(t, err)
	assert.True(t, extract.IsCollectionError(err))
	assert.ErrorIs(t, err, extract.ErrCardinality)
	assert.Contains(t, err.Error(), "block=pheno")

	require.Len(t, part.Blocks, 1)
	assert.Equal(t, "lab", part.Blocks[0].ID)
}

func TestLedgerRejectsCrossTableMismatch(t *testing.T) {
	ledger := NewLedger()
	first := Partition{Blocks: []*Block{{ID: "pheno", Cardinality: 2}, {ID: "lab", Cardinality: 1}}}
	second := Partition{Blocks: []*Block{{ID: "pheno", Cardinality: 3}, {ID: "lab", Cardinality: 1}}}

	kept, err := ledger.Check("a", first)
	require.NoError(t, err)
	assert.Len(t, kept.Blocks, 2)

	kept, err = ledger.Check("b", second)
	require.Error(t, err)
	assert.True(t, extract.IsCollectionError(err))
	require.Len(t, kept.Blocks, 1)
	assert.Equal(t, "lab", kept.Blocks[0].ID)
	assert.Len(t, second.Blocks, 2)
}
