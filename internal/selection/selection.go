// Package selection implements the selected-solutions set and the click and
// lasso operations over a coordinate index.
package selection

import (
	"slices"

	"github.com/biopareto/server/internal/coord"
	"github.com/biopareto/server/internal/pareto"
)

// Set is an ordered set of selected points keyed by unique id. Operations
// return a new Set and leave the receiver untouched.
type Set struct {
	entries []pareto.Point
}

// Entries returns the selected points in selection order.
func (s Set) Entries() []pareto.Point {
	return slices.Clone(s.entries)
}

// Len returns the number of selected points.
func (s Set) Len() int {
	return len(s.entries)
}

// Empty reports whether nothing is selected.
func (s Set) Empty() bool {
	return len(s.entries) == 0
}

// Contains reports whether a unique id is selected.
func (s Set) Contains(uniqueID string) bool {
	return slices.ContainsFunc(s.entries, func(p pareto.Point) bool { return p.UniqueID == uniqueID })
}

// UniqueIDs returns the selected unique ids in selection order.
func (s Set) UniqueIDs() []string {
	ids := make([]string, len(s.entries))
	for i, p := range s.entries {
		ids[i] = p.UniqueID
	}
	return ids
}

// Add appends the points that are not yet selected.
func (s Set) Add(points ...pareto.Point) Set {
	have := make(map[string]bool, len(s.entries)+len(points))
	for _, p := range s.entries {
		have[p.UniqueID] = true
	}
	next := slices.Clone(s.entries)
	for _, p := range points {
		if have[p.UniqueID] {
			continue
		}
		have[p.UniqueID] = true
		next = append(next, p)
	}
	return Set{entries: next}
}

// Remove drops the given unique ids.
func (s Set) Remove(uniqueIDs ...string) Set {
	drop := make(map[string]bool, len(uniqueIDs))
	for _, id := range uniqueIDs {
		drop[id] = true
	}
	next := make([]pareto.Point, 0, len(s.entries))
	for _, p := range s.entries {
		if !drop[p.UniqueID] {
			next = append(next, p)
		}
	}
	return Set{entries: next}
}

// RenameFront rewrites entries of a renamed front so their unique ids keep
// pointing at existing solutions.
func (s Set) RenameFront(oldName, newName string) Set {
	next := slices.Clone(s.entries)
	for i, p := range next {
		if p.FrontName != oldName {
			continue
		}
		p.FrontName = newName
		p.UniqueID = pareto.UniqueID(p.SolutionID, newName)
		next[i] = p
	}
	return Set{entries: next}
}

// PruneFront drops every entry of a front.
func (s Set) PruneFront(name string) Set {
	next := make([]pareto.Point, 0, len(s.entries))
	for _, p := range s.entries {
		if p.FrontName != name {
			next = append(next, p)
		}
	}
	return Set{entries: next}
}

// Click is a click on the plot.
type Click struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	// UniqueIDs is a group already resolved by the client, such as an
	// aggregated marker. When set it is used instead of the coordinate.
	UniqueIDs []string `json:"unique_ids,omitempty"`
	// UniqueID identifies the clicked point itself and is used when the
	// coordinate resolves nothing.
	UniqueID string `json:"unique_id,omitempty"`
}

// Coordinate is a plotted position.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is a rectangular selection region.
type Box struct {
	X0 float64 `json:"x0"`
	X1 float64 `json:"x1"`
	Y0 float64 `json:"y0"`
	Y1 float64 `json:"y1"`
}

// Lasso is a region selection: the points the client found inside the drawn
// region, and optionally the bounding box itself.
type Lasso struct {
	Points []Coordinate `json:"points"`
	Box    *Box         `json:"box,omitempty"`
}

// ApplyClick toggles the coincident group under a click. If every solution
// of the group is selected the whole group is removed; otherwise the missing
// members are added. A nil index means the axes are not resolvable and the
// set is returned unchanged.
func ApplyClick(s Set, ix *coord.Index, c Click) Set {
	if ix == nil {
		return s
	}
	group := resolveClick(ix, c)
	if len(group) == 0 {
		return s
	}
	ids := make([]string, len(group))
	all := true
	for i, p := range group {
		ids[i] = p.UniqueID
		if !s.Contains(p.UniqueID) {
			all = false
		}
	}
	if all {
		return s.Remove(ids...)
	}
	return s.Add(group...)
}

func resolveClick(ix *coord.Index, c Click) []pareto.Point {
	if len(c.UniqueIDs) > 0 {
		var group []pareto.Point
		for _, id := range c.UniqueIDs {
			if p, ok := ix.Point(id); ok {
				group = append(group, p)
			}
		}
		return group
	}
	if group := ix.At(c.X, c.Y); len(group) > 0 {
		return group
	}
	if c.UniqueID != "" {
		return ix.GroupOf(c.UniqueID)
	}
	return nil
}

// ApplyLasso adds every solution coincident with a point in the region. It
// never removes anything.
func ApplyLasso(s Set, ix *coord.Index, l Lasso) Set {
	if ix == nil {
		return s
	}
	for _, pt := range l.Points {
		s = s.Add(ix.At(pt.X, pt.Y)...)
	}
	if l.Box != nil {
		for _, g := range ix.InBox(l.Box.X0, l.Box.X1, l.Box.Y0, l.Box.Y1) {
			s = s.Add(g.Points...)
		}
	}
	return s
}
