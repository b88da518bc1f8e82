package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/biopareto/server/internal/enrich"
	"github.com/biopareto/server/internal/geneset"
	"github.com/biopareto/server/internal/pareto"
)

// ReportThreshold is the p-value cut applied to the enrichment section.
const ReportThreshold = 0.05

// WriteReport writes the plain text analysis report. res may be nil.
func WriteReport(w io.Writer, doc *pareto.Document, res *enrich.Result, now time.Time) error {
	bw := bufio.NewWriter(w)
	rule := strings.Repeat("=", 70)

	fmt.Fprintln(bw, rule)
	fmt.Fprintln(bw, "BIO PARETO ANALYZER REPORT")
	fmt.Fprintf(bw, "Generated: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(bw, rule)
	fmt.Fprintln(bw)

	fronts := doc.Fronts()
	objectives := doc.MainObjectives()
	if len(objectives) == 0 {
		objectives = []string{"N/A"}
	}
	fmt.Fprintln(bw, "1. DATA SUMMARY")
	fmt.Fprintln(bw, strings.Repeat("-", 20))
	fmt.Fprintf(bw, "Total Loaded Fronts: %d\n", len(fronts))
	fmt.Fprintf(bw, "Main Objectives: %s\n\n", strings.Join(objectives, ", "))
	if len(fronts) > 0 {
		fmt.Fprintln(bw, "Front Details:")
		for _, f := range fronts {
			fmt.Fprintf(bw, "  - Name: %s | Solutions: %d | Objectives: %s\n",
				f.Name, len(f.Solutions), strings.Join(f.Objectives, ", "))
		}
		fmt.Fprintln(bw)
	}

	freq := geneset.FrequencyAcross(fronts)
	if freq.TotalSolutions > 0 {
		fmt.Fprintln(bw, "2. GENE FREQUENCY SUMMARY")
		fmt.Fprintln(bw, strings.Repeat("-", 25))
		fmt.Fprintf(bw, "Total Unique Genes: %d\n", len(freq.Genes))
		fmt.Fprintf(bw, "Genes in 100%% of solutions: %d\n", len(freq.Universal))
		if len(freq.Universal) > 0 {
			fmt.Fprintf(bw, "  > 100%% Genes: %s\n", strings.Join(freq.Universal, ", "))
		}
		fmt.Fprintln(bw)
	}

	if res != nil {
		fmt.Fprintf(bw, "3. BIOLOGICAL ENRICHMENT (P < %g)\n", ReportThreshold)
		fmt.Fprintln(bw, strings.Repeat("-", 35))
		terms := res.Filter(ReportThreshold)
		if len(terms) == 0 {
			fmt.Fprintln(bw, "No significant enrichment results were found.")
			fmt.Fprintln(bw)
		} else {
			fmt.Fprintf(bw, "Analyzed %d genes.\n", res.OriginalCount)
			fmt.Fprintf(bw, "Found %d significant terms.\n\n", len(terms))
			tw := tabwriter.NewWriter(bw, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "Source\tTerm\tP-Value\tMatched")
			for _, t := range terms {
				fmt.Fprintf(tw, "%s\t%s\t%.3e\t%d\n", t.Source, t.TermName, t.PValue, t.IntersectionSize)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(bw)
		}
	}

	return bw.Flush()
}
