package geneset

import (
	"math"
	"sort"

	"github.com/biopareto/server/internal/pareto"
)

// GeneCount is how many solutions select a gene.
type GeneCount struct {
	Gene    string  `json:"gene"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// PercentGroup collects the genes sharing one rounded frequency level.
type PercentGroup struct {
	Percent float64  `json:"percent"`
	Genes   []string `json:"genes"`
}

// Frequencies is the gene frequency analysis across a set of solutions.
type Frequencies struct {
	TotalSolutions int            `json:"total_solutions"`
	Genes          []GeneCount    `json:"genes"`
	Universal      []string       `json:"universal_genes"`
	Groups         []PercentGroup `json:"percent_groups"`
}

// Percent rounds count/total to one decimal place.
func Percent(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*1000) / 10
}

// FrequencyAcross counts genes over the solutions of the visible fronts.
// Genes present in every solution are reported as universal; the rest are
// grouped by percentage, lowest level first.
func FrequencyAcross(fronts []pareto.Front) Frequencies {
	counts := make(map[string]int)
	total := 0
	for _, f := range fronts {
		if !f.Visible {
			continue
		}
		for _, s := range f.Solutions {
			total++
			for _, g := range s.Genes {
				counts[g]++
			}
		}
	}

	out := Frequencies{
		TotalSolutions: total,
		Genes:          make([]GeneCount, 0, len(counts)),
		Universal:      []string{},
		Groups:         []PercentGroup{},
	}
	levels := make(map[float64][]string)
	for g, n := range counts {
		pct := Percent(n, total)
		out.Genes = append(out.Genes, GeneCount{Gene: g, Count: n, Percent: pct})
		if n == total {
			out.Universal = append(out.Universal, g)
			continue
		}
		levels[pct] = append(levels[pct], g)
	}
	sort.Slice(out.Genes, func(i, j int) bool {
		if out.Genes[i].Count != out.Genes[j].Count {
			return out.Genes[i].Count > out.Genes[j].Count
		}
		return out.Genes[i].Gene < out.Genes[j].Gene
	})
	sort.Strings(out.Universal)
	for pct, genes := range levels {
		sort.Strings(genes)
		out.Groups = append(out.Groups, PercentGroup{Percent: pct, Genes: genes})
	}
	sort.Slice(out.Groups, func(i, j int) bool { return out.Groups[i].Percent < out.Groups[j].Percent })
	return out
}

// Group returns the genes at a percentage level, or nil.
func (f Frequencies) Group(percent float64) []string {
	for _, g := range f.Groups {
		if g.Percent == percent {
			return g.Genes
		}
	}
	return nil
}
