package pareto

import (
	"github.com/montanaflynn/stats"
)

// ObjectiveSummary holds descriptive statistics of one objective over a front.
type ObjectiveSummary struct {
	Objective string  `json:"objective"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Mean      float64 `json:"mean"`
	Median    float64 `json:"median"`
	StdDev    float64 `json:"std_dev"`
}

// FrontSummary describes a front for listings.
type FrontSummary struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Solutions    int                `json:"solutions"`
	UniqueGenes  int                `json:"unique_genes"`
	Visible      bool               `json:"visible"`
	Main         bool               `json:"is_main"`
	Consolidated bool               `json:"is_consolidated"`
	Objectives   []ObjectiveSummary `json:"objectives"`
}

// Summarize computes per-objective statistics for a front.
func Summarize(f Front) FrontSummary {
	genes := make(map[string]struct{})
	for _, s := range f.Solutions {
		for _, g := range s.Genes {
			genes[g] = struct{}{}
		}
	}

	out := FrontSummary{
		ID:           f.ID,
		Name:         f.Name,
		Solutions:    len(f.Solutions),
		UniqueGenes:  len(genes),
		Visible:      f.Visible,
		Main:         f.Main,
		Consolidated: f.Consolidated,
		Objectives:   make([]ObjectiveSummary, 0, len(f.Objectives)),
	}
	for _, name := range f.Objectives {
		values := make([]float64, 0, len(f.Solutions))
		for _, s := range f.Solutions {
			if v, ok := s.Values[name]; ok {
				values = append(values, v.Value)
			}
		}
		if len(values) == 0 {
			continue
		}
		summary := ObjectiveSummary{Objective: name}
		summary.Min, _ = stats.Min(values)
		summary.Max, _ = stats.Max(values)
		summary.Mean, _ = stats.Mean(values)
		summary.Median, _ = stats.Median(values)
		summary.StdDev, _ = stats.StandardDeviation(values)
		out.Objectives = append(out.Objectives, summary)
	}
	return out
}

// ExampleUpload is a minimal valid upload file offered for download.
const ExampleUpload = `[
  {
    "selected_genes": ["BRCA1", "TP53", "EGFR"],
    "accuracy": 0.92,
    "num_genes": 3,
    "solution_id": "Sol_1"
  },
  {
    "selected_genes": ["BRCA1", "TP53", "EGFR", "MYC"],
    "accuracy": 0.94,
    "num_genes": 4,
    "solution_id": "Sol_2"
  }
]
`
