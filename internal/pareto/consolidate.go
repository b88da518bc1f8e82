package pareto

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConsolidationReport describes a consolidation.
type ConsolidationReport struct {
	FrontID   string `json:"front_id"`
	FrontName string `json:"front_name"`
	Solutions int    `json:"solutions"`
	// Overwritten counts axis values injected over a different existing value.
	Overwritten int `json:"overwritten"`
}

// DefaultConsolidatedName is the name used when the user gives none.
func DefaultConsolidatedName(now time.Time) string {
	return "Consolidated_Front_" + now.Format("1504")
}

// Consolidate replaces all fronts with a single front built from the selected
// points, pushing the current fronts onto the history stack. Axis values the
// user was viewing are written into each solution under the literal axis
// names before sorting by (x, y).
func (d *Document) Consolidate(points []Point, name string, axes Axes, now time.Time) (*Document, ConsolidationReport, error) {
	if len(points) == 0 {
		return d, ConsolidationReport{}, ErrEmptySelection
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultConsolidatedName(now)
	}

	var report ConsolidationReport
	seen := make(map[string]bool, len(points))
	solutions := make([]Solution, 0, len(points))
	for _, p := range points {
		if seen[p.UniqueID] {
			continue
		}
		seen[p.UniqueID] = true

		sol := p.Solution.Clone()
		if sol.Values == nil {
			sol.Values = make(map[string]Number)
		}
		x, y := p.X, p.Y
		if p.Axes != axes {
			if v, _, ok := sol.Lookup(axes.X); ok {
				x = v
			}
			if v, _, ok := sol.Lookup(axes.Y); ok {
				y = v
			}
		}
		report.Overwritten += inject(&sol, axes.X, x)
		if axes.Y != axes.X {
			report.Overwritten += inject(&sol, axes.Y, y)
		}
		solutions = append(solutions, sol)
	}

	sort.SliceStable(solutions, func(i, j int) bool {
		xi, xj := solutions[i].Values[axes.X].Value, solutions[j].Values[axes.X].Value
		if xi != xj {
			return xi < xj
		}
		return solutions[i].Values[axes.Y].Value < solutions[j].Values[axes.Y].Value
	})

	for i := range solutions {
		solutions[i].OriginalID = solutions[i].ID
		solutions[i].ID = fmt.Sprintf("Sol_%d", i+1)
		solutions[i].FrontName = name
	}

	front := Front{
		ID:           uuid.NewString(),
		Name:         name,
		Solutions:    solutions,
		Objectives:   slices.Clone(d.mainObjectives),
		Visible:      true,
		Main:         true,
		Consolidated: true,
	}
	next := &Document{
		fronts:             []Front{front},
		history:            d.history.Push(d.fronts),
		mainObjectives:     slices.Clone(d.mainObjectives),
		explicitObjectives: slices.Clone(d.explicitObjectives),
	}

	report.FrontID = front.ID
	report.FrontName = name
	report.Solutions = len(solutions)
	return next, report, nil
}

func inject(sol *Solution, field string, v Number) int {
	if field == "" {
		return 0
	}
	overwritten := 0
	if old, ok := sol.Values[field]; ok && old.Value != v.Value {
		overwritten = 1
	}
	sol.Values[field] = v
	return overwritten
}
