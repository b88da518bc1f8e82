// Package panel holds the interest panel: the user's curated collection of
// solutions and gene groups.
package panel

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/biopareto/server/internal/pareto"
)

// Kind is the wire tag of an item's payload.
type Kind string

const (
	KindSolution       Kind = "solution"
	KindSolutionSet    Kind = "solution_set"
	KindGeneSet        Kind = "gene_set"
	KindIndividualGene Kind = "individual_gene"
	KindCombinedGroup  Kind = "combined_gene_group"
)

// Payload is the typed data of a panel item. The concrete types below are
// the only implementations.
type Payload interface {
	Kind() Kind
	isPayload()
}

// SolutionPayload is one saved solution.
type SolutionPayload struct {
	SolutionID string                   `json:"solution_id"`
	FrontName  string                   `json:"front_name"`
	UniqueID   string                   `json:"unique_id"`
	Genes      []string                 `json:"selected_genes"`
	Objectives map[string]pareto.Number `json:"objectives,omitempty"`
}

// SolutionSetPayload is a group of saved solutions.
type SolutionSetPayload struct {
	Solutions        []SolutionPayload `json:"solutions"`
	UniqueGenesCount int               `json:"unique_genes_count"`
}

// GeneSetPayload is a named list of genes, optionally tagged with the
// frequency level it was taken from.
type GeneSetPayload struct {
	Name      string   `json:"name"`
	Genes     []string `json:"genes"`
	Frequency *float64 `json:"frequency,omitempty"`
	Count     int      `json:"count"`
}

// IndividualGenePayload is a single gene and where it was picked.
type IndividualGenePayload struct {
	Gene   string `json:"gene"`
	Source string `json:"source"`
}

// CombinedGroupPayload is a gene group derived from an overlap analysis.
type CombinedGroupPayload struct {
	Genes       []string `json:"genes"`
	GeneCount   int      `json:"gene_count"`
	SourceItems []string `json:"source_items"`
}

func (SolutionPayload) Kind() Kind       { return KindSolution }
func (SolutionSetPayload) Kind() Kind    { return KindSolutionSet }
func (GeneSetPayload) Kind() Kind        { return KindGeneSet }
func (IndividualGenePayload) Kind() Kind { return KindIndividualGene }
func (CombinedGroupPayload) Kind() Kind  { return KindCombinedGroup }

func (SolutionPayload) isPayload()       {}
func (SolutionSetPayload) isPayload()    {}
func (GeneSetPayload) isPayload()        {}
func (IndividualGenePayload) isPayload() {}
func (CombinedGroupPayload) isPayload()  {}

// Item is one entry of the interest panel.
type Item struct {
	ID         string
	Name       string
	Comment    string
	ToolOrigin Origin
	Data       Payload
	Timestamp  string
}

type itemJSON struct {
	Type       Kind            `json:"type"`
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Comment    string          `json:"comment"`
	ToolOrigin Origin          `json:"tool_origin"`
	Data       json.RawMessage `json:"data"`
	Timestamp  string          `json:"timestamp"`
}

// Kind returns the payload kind.
func (it Item) Kind() Kind {
	if it.Data == nil {
		return ""
	}
	return it.Data.Kind()
}

func (it Item) MarshalJSON() ([]byte, error) {
	if it.Data == nil {
		return nil, fmt.Errorf("panel item %q has no data", it.ID)
	}
	data, err := json.Marshal(it.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(itemJSON{
		Type:       it.Data.Kind(),
		ID:         it.ID,
		Name:       it.Name,
		Comment:    it.Comment,
		ToolOrigin: it.ToolOrigin,
		Data:       data,
		Timestamp:  it.Timestamp,
	})
}

func (it *Item) UnmarshalJSON(b []byte) error {
	var raw itemJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	data, err := decodePayload(raw.Type, raw.Data)
	if err != nil {
		return fmt.Errorf("panel item %q: %w", raw.ID, err)
	}
	*it = Item{
		ID:         raw.ID,
		Name:       raw.Name,
		Comment:    raw.Comment,
		ToolOrigin: raw.ToolOrigin,
		Data:       data,
		Timestamp:  raw.Timestamp,
	}
	return nil
}

func decodePayload(kind Kind, raw json.RawMessage) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch kind {
	case KindSolution:
		var v SolutionPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindSolutionSet:
		var v SolutionSetPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindGeneSet:
		var v GeneSetPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindIndividualGene:
		var v IndividualGenePayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindCombinedGroup:
		var v CombinedGroupPayload
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, fmt.Errorf("unknown item type %q", kind)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Genes returns the gene list an item contributes to an overlap analysis.
func Genes(it Item) []string {
	switch p := it.Data.(type) {
	case SolutionPayload:
		return append([]string(nil), p.Genes...)
	case SolutionSetPayload:
		return unionGenes(p.Solutions)
	case GeneSetPayload:
		return append([]string(nil), p.Genes...)
	case IndividualGenePayload:
		return []string{p.Gene}
	case CombinedGroupPayload:
		return append([]string(nil), p.Genes...)
	}
	return nil
}

// SourceName is the label an item carries in an overlap analysis.
func SourceName(it Item) string {
	switch p := it.Data.(type) {
	case SolutionPayload:
		return fmt.Sprintf("%s (from %s)", p.SolutionID, p.FrontName)
	case IndividualGenePayload:
		return "Gene: " + p.Gene
	}
	return it.Name
}

func unionGenes(solutions []SolutionPayload) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range solutions {
		for _, g := range s.Genes {
			if !seen[g] {
				seen[g] = true
				out = append(out, g)
			}
		}
	}
	sort.Strings(out)
	return out
}

// FromPoint builds a solution payload from a plotted point.
func FromPoint(p pareto.Point) SolutionPayload {
	objectives := make(map[string]pareto.Number, len(p.Objectives))
	for k, v := range p.Objectives {
		objectives[k] = v
	}
	return SolutionPayload{
		SolutionID: p.SolutionID,
		FrontName:  p.FrontName,
		UniqueID:   p.UniqueID,
		Genes:      append([]string(nil), p.Solution.Genes...),
		Objectives: objectives,
	}
}

const (
	timestampLayout = "2006-01-02 15:04:05"
	idStampLayout   = "20060102150405"
)

// Timestamp formats the time items are stamped with.
func Timestamp(t time.Time) string {
	return t.Format(timestampLayout)
}
