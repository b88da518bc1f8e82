package geneset

import (
	"fmt"
	"time"
)

// Promotion is a gene group derived from an analysis, ready to be staged on
// the interest panel.
type Promotion struct {
	Name    string   `json:"name"`
	Comment string   `json:"comment"`
	Genes   []string `json:"genes"`
	Sources []string `json:"sources"`
}

const stampLayout = "2006-01-02 15:04:05"

// PromoteRecord turns one intersection record into a gene group.
func PromoteRecord(r Record) Promotion {
	return Promotion{
		Name:    r.Name,
		Comment: fmt.Sprintf("Genes found in the intersection '%s'.", r.Name),
		Genes:   append([]string(nil), r.Genes...),
		Sources: []string{r.Name},
	}
}

// PromoteIntersections merges all records into one gene group whose sources
// are the record names.
func PromoteIntersections(records []Record, now time.Time) Promotion {
	sources := make([]string, len(records))
	for i, r := range records {
		sources[i] = r.Name
	}
	genes := Union(records)
	return Promotion{
		Name: "All Intersections Set - " + now.Format(stampLayout),
		Comment: fmt.Sprintf("Union of %d intersections. Total unique genes: %d.",
			len(records), len(genes)),
		Genes:   genes,
		Sources: sources,
	}
}

// PromoteUnion stores the full union of an analysis, crediting every source.
func PromoteUnion(a Analysis, now time.Time) Promotion {
	return Promotion{
		Name: "Combined Union Set - " + now.Format(stampLayout),
		Comment: fmt.Sprintf("Union of %d sources. Total unique genes: %d.",
			len(a.Sources), len(a.UniqueGenes)),
		Genes:   append([]string(nil), a.UniqueGenes...),
		Sources: append([]string(nil), a.Sources...),
	}
}
