// Package pareto holds the front document: uploaded Pareto fronts, their
// solutions and objective schema, and the consolidation history.
package pareto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Reserved record fields. Everything else numeric is an objective.
const (
	FieldSolutionID = "solution_id"
	FieldGenes      = "selected_genes"
	FieldNumGenes   = "num_genes"
	FieldFrontName  = "front_name"
	FieldOriginalID = "original_solution_id"
)

// Number is a numeric objective value. Integers are kept distinct from floats
// so they serialize the way they were uploaded. Raw holds the uploaded
// literal when float64 cannot reproduce it.
type Number struct {
	Value   float64
	Integer bool
	Raw     string
}

// Int returns an integer Number.
func Int(v int) Number {
	return Number{Value: float64(v), Integer: true}
}

// Float returns a floating Number.
func Float(v float64) Number {
	return Number{Value: v}
}

func parseNumber(raw string) (Number, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Number{}, fmt.Errorf("invalid number %q: %w", raw, err)
	}
	n := Number{Value: v, Integer: !strings.ContainsAny(raw, ".eE")}
	if n.String() != raw {
		n.Raw = raw
	}
	return n, nil
}

func (n Number) String() string {
	if n.Raw != "" {
		return n.Raw
	}
	if n.Integer && math.Abs(n.Value) < 1<<63 {
		return strconv.FormatInt(int64(n.Value), 10)
	}
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}

// MarshalJSON writes the number in its uploaded form.
func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalJSON parses a JSON number.
func (n *Number) UnmarshalJSON(data []byte) error {
	parsed, err := parseNumber(string(bytes.TrimSpace(data)))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// Solution is one gene-selection result.
type Solution struct {
	ID         string
	Genes      []string
	Values     map[string]Number
	Extra      map[string]json.RawMessage
	OriginalID string
	FrontName  string
}

// Value returns the value stored under the exact field name.
func (s Solution) Value(name string) (Number, bool) {
	v, ok := s.Values[name]
	return v, ok
}

// Lookup finds a value by field name, falling back to a case and punctuation
// insensitive match. It returns the matched field name.
func (s Solution) Lookup(name string) (Number, string, bool) {
	if v, ok := s.Values[name]; ok {
		return v, name, true
	}
	want := NormalizeColumn(name)
	keys := slices.Sorted(maps.Keys(s.Values))
	for _, k := range keys {
		if NormalizeColumn(k) == want {
			return s.Values[k], k, true
		}
	}
	return Number{}, "", false
}

// Clone returns a deep copy.
func (s Solution) Clone() Solution {
	out := s
	out.Genes = slices.Clone(s.Genes)
	out.Values = maps.Clone(s.Values)
	if s.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(s.Extra))
		for k, v := range s.Extra {
			out.Extra[k] = slices.Clone(v)
		}
	}
	return out
}

// MarshalJSON writes the flat record form: id, genes, numeric fields and
// extra fields in key order, then provenance fields.
func (s Solution) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	writeField := func(key string, value []byte) {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(value)
	}

	id, err := json.Marshal(s.ID)
	if err != nil {
		return nil, err
	}
	writeField(FieldSolutionID, id)

	genes := s.Genes
	if genes == nil {
		genes = []string{}
	}
	g, err := json.Marshal(genes)
	if err != nil {
		return nil, err
	}
	writeField(FieldGenes, g)

	for _, k := range slices.Sorted(maps.Keys(s.Values)) {
		writeField(k, []byte(s.Values[k].String()))
	}
	for _, k := range slices.Sorted(maps.Keys(s.Extra)) {
		writeField(k, s.Extra[k])
	}
	if s.OriginalID != "" {
		v, _ := json.Marshal(s.OriginalID)
		writeField(FieldOriginalID, v)
	}
	if s.FrontName != "" {
		v, _ := json.Marshal(s.FrontName)
		writeField(FieldFrontName, v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the flat record form written by MarshalJSON or found in
// upload files.
func (s *Solution) UnmarshalJSON(data []byte) error {
	rec, err := parseRecord(data)
	if err != nil {
		return err
	}
	*s = rec.sol
	return nil
}

// UniqueID is the cross-front dedup key of a solution.
func UniqueID(solutionID, frontName string) string {
	return solutionID + "|" + frontName
}

// NormalizeColumn folds a field name for tolerant comparison: "1-Auc",
// "1_auc" and "1 AUC" all compare equal.
func NormalizeColumn(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch r {
		case '-', '_', ' ':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Front is one named collection of solutions sharing an objective schema.
type Front struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Solutions    []Solution `json:"solutions"`
	Objectives   []string   `json:"objectives"`
	Visible      bool       `json:"visible"`
	Main         bool       `json:"is_main"`
	Consolidated bool       `json:"is_consolidated"`
}

// Axes is the objective pair shown on the plot.
type Axes struct {
	X string `json:"x"`
	Y string `json:"y"`
}

// Set reports whether both axes are named.
func (a Axes) Set() bool {
	return a.X != "" && a.Y != ""
}

// Swap returns the axes with x and y exchanged.
func (a Axes) Swap() Axes {
	return Axes{X: a.Y, Y: a.X}
}

// Point is a solution projected onto an axis pair. It is the entry type of
// the selection set.
type Point struct {
	SolutionID string            `json:"id"`
	FrontName  string            `json:"front_name"`
	UniqueID   string            `json:"unique_id"`
	X          Number            `json:"x"`
	Y          Number            `json:"y"`
	Axes       Axes              `json:"axes"`
	Objectives map[string]Number `json:"objectives"`
	Solution   Solution          `json:"full_data"`
}

// Project builds the point for a solution of front f under axes. It reports
// false when either axis cannot be resolved on the solution.
func Project(f Front, s Solution, axes Axes) (Point, bool) {
	x, _, okX := s.Lookup(axes.X)
	y, _, okY := s.Lookup(axes.Y)
	if !okX || !okY {
		return Point{}, false
	}
	objectives := make(map[string]Number, len(f.Objectives))
	for _, name := range f.Objectives {
		if v, _, ok := s.Lookup(name); ok {
			objectives[name] = v
		}
	}
	return Point{
		SolutionID: s.ID,
		FrontName:  f.Name,
		UniqueID:   UniqueID(s.ID, f.Name),
		X:          x,
		Y:          y,
		Axes:       axes,
		Objectives: objectives,
		Solution:   s,
	}, true
}
