package genes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	g, ok := Lookup("brca1")
	require.True(t, ok)
	assert.Equal(t, "BRCA1", g.Symbol)
	assert.Equal(t, "17", g.Chromosome)

	_, ok = Lookup("NOPE1")
	assert.False(t, ok)
}

func TestSearch(t *testing.T) {
	results := Search("BRCA", 10)
	require.Len(t, results, 2)
	assert.Equal(t, "BRCA1", results[0].Symbol)
	assert.Equal(t, "BRCA2", results[1].Symbol)

	results = Search("repair", 1)
	assert.Len(t, results, 1, "limit is applied")

	assert.Empty(t, Search("zzzz", 10))
}

func TestInRegion(t *testing.T) {
	assert.True(t, InRegion("22", 50_700_000, []string{"SHANK3"}))
	assert.True(t, InRegion("chr22", 50_700_000, []string{"SHANK3"}), "chr prefix accepted")
	assert.False(t, InRegion("22", 1000, []string{"SHANK3"}))
	assert.False(t, InRegion("2", 50_700_000, []string{"SHANK3"}), "wrong chromosome")
	assert.False(t, InRegion("22", 50_700_000, []string{"UNKNOWN"}))
	assert.True(t, InRegion("17", 43_100_000, []string{"SHANK3", "BRCA1"}), "any listed gene matches")
}

func TestInterpret(t *testing.T) {
	interp, ok := Interpret("BRCA1", 43_100_000, "A", "G")
	require.True(t, ok)
	assert.Equal(t, "uncertain_significance", interp.Classification)

	interp, ok = Interpret("BRCA1", 43_100_000, "AT", "A")
	require.True(t, ok)
	assert.Equal(t, "likely_disruptive", interp.Classification)

	interp, ok = Interpret("BRCA1", 1, "A", "G")
	require.True(t, ok)
	assert.Equal(t, "outside_gene_region", interp.Classification)

	_, ok = Interpret("NOPE1", 1, "A", "G")
	assert.False(t, ok)
}
