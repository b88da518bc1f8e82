// Package enrich submits gene lists to functional enrichment services.
package enrich

import (
	"errors"
	"fmt"
	"sort"
)

// Provider identifies an enrichment service.
type Provider string

const (
	ProviderGProfiler Provider = "gprofiler"
	ProviderReactome  Provider = "reactome"
)

// Valid reports whether p is a supported provider.
func (p Provider) Valid() bool {
	return p == ProviderGProfiler || p == ProviderReactome
}

// DefaultThreshold is the significance cut-off used when none is given.
const DefaultThreshold = 0.05

// ErrCollaboratorFailure marks a service that was unreachable or answered
// with an error. A successful call with no terms is not a failure.
var ErrCollaboratorFailure = errors.New("enrichment service failure")

// CollaboratorError carries the details of a failed call.
type CollaboratorError struct {
	Provider   Provider
	StatusCode int
	Err        error
}

func (e *CollaboratorError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *CollaboratorError) Unwrap() []error {
	return []error{ErrCollaboratorFailure, e.Err}
}

// Term is one enriched term or pathway.
type Term struct {
	Source            string   `json:"source"`
	TermName          string   `json:"term_name"`
	Description       string   `json:"description"`
	PValue            float64  `json:"p_value"`
	TermSize          int      `json:"term_size,omitempty"`
	QuerySize         int      `json:"query_size,omitempty"`
	IntersectionSize  int      `json:"intersection_size"`
	Precision         float64  `json:"precision,omitempty"`
	Recall            float64  `json:"recall,omitempty"`
	SourceOrder       string   `json:"source_order,omitempty"`
	Significant       bool     `json:"significant"`
	IntersectionGenes []string `json:"intersection_genes,omitempty"`
	FDR               *float64 `json:"fdr_value,omitempty"`
	EntitiesFound     int      `json:"entities_found,omitempty"`
	EntitiesTotal     int      `json:"entities_total,omitempty"`
}

// Result is the outcome of one successful enrichment call.
type Result struct {
	Provider      Provider `json:"provider"`
	Organism      string   `json:"organism"`
	OrganismUsed  string   `json:"organism_used,omitempty"`
	Token         string   `json:"token,omitempty"`
	Terms         []Term   `json:"results"`
	Validated     []string `json:"gene_list_validated"`
	Unrecognized  []string `json:"gene_list_unrecognized"`
	OriginalCount int      `json:"gene_list_original_count"`
}

// Empty reports a successful call that returned no terms.
func (r Result) Empty() bool {
	return len(r.Terms) == 0
}

// Filter returns the terms with p below threshold, most significant first.
// Thresholds outside (0, 1] fall back to DefaultThreshold.
func (r Result) Filter(threshold float64) []Term {
	if !(threshold > 0 && threshold <= 1) {
		threshold = DefaultThreshold
	}
	var out []Term
	for _, t := range r.Terms {
		if t.PValue < threshold {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PValue != out[j].PValue {
			return out[i].PValue < out[j].PValue
		}
		return out[i].IntersectionSize > out[j].IntersectionSize
	})
	return out
}
