// Package export writes the loaded solutions, gene lists, workbook and text
// report downloads.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/biopareto/server/internal/pareto"
)

// ErrNoData is returned when no visible front holds any solution.
var ErrNoData = errors.New("no solutions to export")

// Table is a flat rendering of tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// visibleSolutions returns the solutions of every visible front, stamped with
// their front name.
func visibleSolutions(doc *pareto.Document) []pareto.Solution {
	var out []pareto.Solution
	for _, f := range doc.VisibleFronts() {
		for _, s := range f.Solutions {
			c := s.Clone()
			c.FrontName = f.Name
			out = append(out, c)
		}
	}
	return out
}

// SolutionsTable flattens the visible solutions: identity columns, then the
// main objectives in schema order, then any other numeric field, then extra
// fields. Genes are joined with ", ".
func SolutionsTable(doc *pareto.Document) (Table, error) {
	sols := visibleSolutions(doc)
	if len(sols) == 0 {
		return Table{}, ErrNoData
	}

	objectives := slices.Clone(doc.MainObjectives())
	seen := make(map[string]bool, len(objectives))
	for _, o := range objectives {
		seen[o] = true
	}
	extraSet := make(map[string]bool)
	var others []string
	for _, s := range sols {
		for k := range s.Values {
			if !seen[k] {
				seen[k] = true
				others = append(others, k)
			}
		}
		for k := range s.Extra {
			extraSet[k] = true
		}
	}
	slices.Sort(others)
	objectives = append(objectives, others...)
	extras := slices.Sorted(maps.Keys(extraSet))

	t := Table{Headers: []string{pareto.FieldSolutionID, pareto.FieldFrontName, pareto.FieldGenes}}
	t.Headers = append(t.Headers, objectives...)
	t.Headers = append(t.Headers, extras...)

	for _, s := range sols {
		row := []string{s.ID, s.FrontName, strings.Join(s.Genes, ", ")}
		for _, o := range objectives {
			if v, ok := s.Values[o]; ok {
				row = append(row, v.String())
			} else {
				row = append(row, "")
			}
		}
		for _, e := range extras {
			row = append(row, rawString(s.Extra[e]))
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// rawString renders a raw JSON value for a table cell. Strings lose their
// quotes; everything else is written as-is.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// WriteCSV writes a table as CSV.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSolutionsCSV writes the visible solutions as CSV.
func WriteSolutionsCSV(w io.Writer, doc *pareto.Document) error {
	t, err := SolutionsTable(doc)
	if err != nil {
		return err
	}
	return WriteCSV(w, t)
}

// WriteSolutionsJSON writes the visible solutions as an indented JSON array
// of flat records.
func WriteSolutionsJSON(w io.Writer, doc *pareto.Document) error {
	sols := visibleSolutions(doc)
	if len(sols) == 0 {
		return ErrNoData
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sols)
}

// UniqueGenes returns the sorted distinct genes of the visible solutions.
func UniqueGenes(doc *pareto.Document) ([]string, error) {
	sols := visibleSolutions(doc)
	if len(sols) == 0 {
		return nil, ErrNoData
	}
	set := make(map[string]struct{})
	for _, s := range sols {
		for _, g := range s.Genes {
			set[g] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set)), nil
}

// WriteGenesCSV writes the unique genes as a single-column CSV.
func WriteGenesCSV(w io.Writer, doc *pareto.Document) error {
	genes, err := UniqueGenes(doc)
	if err != nil {
		return err
	}
	t := Table{Headers: []string{"Gene"}}
	for _, g := range genes {
		t.Rows = append(t.Rows, []string{g})
	}
	return WriteCSV(w, t)
}

// WriteGenesTXT writes the unique genes one per line.
func WriteGenesTXT(w io.Writer, doc *pareto.Document) error {
	genes, err := UniqueGenes(doc)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, strings.Join(genes, "\n"))
	return err
}
