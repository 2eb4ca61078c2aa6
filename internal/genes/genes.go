// Package genes holds the fixed gene catalog: symbol metadata, genomic
// regions used by theory execution for hit counting, and the variant
// interpretation rule table. The catalog is an immutable compile-time
// table; changes require a release.
package genes

import (
	"sort"
	"strings"

	"github.com/xtergo/dnaresearch-sub000/internal/model"
)

// catalog is the fixed region table. Coordinates are GRCh38, rounded to the
// enclosing kilobase.
var catalog = []model.Gene{
	{Symbol: "SHANK3", Name: "SH3 and multiple ankyrin repeat domains 3", Chromosome: "22", Start: 50_674_000, End: 50_733_000, Description: "Synaptic scaffolding protein; strong autism association."},
	{Symbol: "NRXN1", Name: "Neurexin 1", Chromosome: "2", Start: 50_145_000, End: 51_259_000, Description: "Presynaptic cell adhesion molecule."},
	{Symbol: "SYNGAP1", Name: "Synaptic Ras GTPase activating protein 1", Chromosome: "6", Start: 33_387_000, End: 33_421_000, Description: "Regulator of synaptic plasticity."},
	{Symbol: "CHD8", Name: "Chromodomain helicase DNA binding protein 8", Chromosome: "14", Start: 21_385_000, End: 21_457_000, Description: "Chromatin remodeler; recurrent de novo autism gene."},
	{Symbol: "MECP2", Name: "Methyl-CpG binding protein 2", Chromosome: "X", Start: 154_021_000, End: 154_098_000, Description: "Transcriptional regulator; Rett syndrome."},
	{Symbol: "BRCA1", Name: "BRCA1 DNA repair associated", Chromosome: "17", Start: 43_044_000, End: 43_125_000, Description: "Homologous recombination repair; hereditary breast and ovarian cancer."},
	{Symbol: "BRCA2", Name: "BRCA2 DNA repair associated", Chromosome: "13", Start: 32_315_000, End: 32_400_000, Description: "Homologous recombination repair."},
	{Symbol: "TP53", Name: "Tumor protein p53", Chromosome: "17", Start: 7_668_000, End: 7_688_000, Description: "Tumor suppressor; Li-Fraumeni syndrome."},
	{Symbol: "PTEN", Name: "Phosphatase and tensin homolog", Chromosome: "10", Start: 87_863_000, End: 87_971_000, Description: "PI3K pathway tumor suppressor."},
	{Symbol: "APOE", Name: "Apolipoprotein E", Chromosome: "19", Start: 44_905_000, End: 44_909_000, Description: "Lipid transport; cardiovascular and neurological risk."},
	{Symbol: "LDLR", Name: "Low density lipoprotein receptor", Chromosome: "19", Start: 11_089_000, End: 11_133_000, Description: "Familial hypercholesterolemia."},
	{Symbol: "MTHFR", Name: "Methylenetetrahydrofolate reductase", Chromosome: "1", Start: 11_785_000, End: 11_806_000, Description: "Folate metabolism."},
}

var bySymbol = func() map[string]model.Gene {
	m := make(map[string]model.Gene, len(catalog))
	for _, g := range catalog {
		m[g.Symbol] = g
	}
	return m
}()

// Lookup returns a gene by symbol (case-insensitive).
func Lookup(symbol string) (model.Gene, bool) {
	g, ok := bySymbol[strings.ToUpper(symbol)]
	return g, ok
}

// Search returns catalog entries whose symbol or name contains the query,
// case-insensitively, sorted by symbol, capped at limit.
func Search(query string, limit int) []model.Gene {
	if limit <= 0 {
		limit = 10
	}
	q := strings.ToLower(query)
	var out []model.Gene
	for _, g := range catalog {
		if strings.Contains(strings.ToLower(g.Symbol), q) || strings.Contains(strings.ToLower(g.Name), q) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// InRegion reports whether (chrom, pos) falls inside the region of any of
// the named genes. Unknown symbols are ignored. Chromosome matching accepts
// a "chr" prefix.
func InRegion(chrom string, pos int, symbols []string) bool {
	c := strings.TrimPrefix(strings.ToLower(chrom), "chr")
	for _, sym := range symbols {
		g, ok := bySymbol[strings.ToUpper(sym)]
		if !ok {
			continue
		}
		if strings.ToLower(g.Chromosome) == c && pos >= g.Start && pos <= g.End {
			return true
		}
	}
	return false
}

// Interpretation is a plain-language classification of a single variant.
type Interpretation struct {
	Gene           string `json:"gene"`
	Classification string `json:"classification"`
	Summary        string `json:"summary"`
}

// Interpret classifies a variant against the rule table. This is a lookup,
// not a clinical assessment; the wording says so.
func Interpret(symbol string, position int, ref, alt string) (Interpretation, bool) {
	g, ok := Lookup(symbol)
	if !ok {
		return Interpretation{}, false
	}

	in := position >= g.Start && position <= g.End
	result := Interpretation{Gene: g.Symbol}
	switch {
	case !in:
		result.Classification = "outside_gene_region"
		result.Summary = "The position does not fall within the " + g.Symbol + " gene region; no gene-specific interpretation applies."
	case len(ref) != len(alt):
		result.Classification = "likely_disruptive"
		result.Summary = "An insertion or deletion within " + g.Symbol + " can shift the reading frame and is often disruptive. This is a research annotation, not a clinical finding."
	case ref == alt:
		result.Classification = "reference_match"
		result.Summary = "The variant matches the reference sequence for " + g.Symbol + "."
	default:
		result.Classification = "uncertain_significance"
		result.Summary = "A single-nucleotide change in " + g.Symbol + " of uncertain significance. This is a research annotation, not a clinical finding."
	}
	return result, true
}
