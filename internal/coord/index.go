// Package coord maps plotted coordinates back to the solutions drawn there.
package coord

import (
	"math"
	"strconv"
	"strings"

	"github.com/biopareto/server/internal/pareto"
)

// DefaultPrecision is the number of decimals two coordinates must agree on to
// be treated as the same point.
const DefaultPrecision = 3

// Key is a quantized coordinate: each axis value rounded to precision
// decimals and kept in its decimal form.
type Key struct {
	X string
	Y string
}

// Quantize rounds v half-to-even on its exact binary value and returns the
// decimal text. Negative zero keys as zero.
func Quantize(v float64, precision int) string {
	s := strconv.FormatFloat(v, 'f', precision, 64)
	if strings.HasPrefix(s, "-") && strings.Trim(s[1:], "0.") == "" {
		return s[1:]
	}
	return s
}

// KeyOf returns the key of a coordinate.
func KeyOf(x, y float64, precision int) Key {
	return Key{X: Quantize(x, precision), Y: Quantize(y, precision)}
}

// Group is the set of solutions sharing one quantized coordinate.
type Group struct {
	Key    Key            `json:"-"`
	X      float64        `json:"x"`
	Y      float64        `json:"y"`
	Points []pareto.Point `json:"points"`
}

// Fronts returns the distinct front names of the group in first-seen order.
func (g Group) Fronts() []string {
	var names []string
	seen := make(map[string]bool)
	for _, p := range g.Points {
		if !seen[p.FrontName] {
			seen[p.FrontName] = true
			names = append(names, p.FrontName)
		}
	}
	return names
}

// Duplicate reports whether more than one solution sits on the coordinate.
func (g Group) Duplicate() bool {
	return len(g.Points) > 1
}

// Shared reports whether solutions from at least two fronts coincide.
func (g Group) Shared() bool {
	return len(g.Fronts()) > 1
}

// Index is the coordinate → solutions mapping for one axis pair over the
// visible fronts. It is immutable once built.
type Index struct {
	axes      pareto.Axes
	precision int
	groups    []Group
	byKey     map[Key]int
	byUID     map[string]Key
	points    int
}

// Build indexes every visible front's solutions under axes. Solutions
// missing either axis are skipped.
func Build(fronts []pareto.Front, axes pareto.Axes, precision int) *Index {
	ix := &Index{
		axes:      axes,
		precision: precision,
		byKey:     make(map[Key]int),
		byUID:     make(map[string]Key),
	}
	for _, f := range fronts {
		if !f.Visible {
			continue
		}
		for _, s := range f.Solutions {
			p, ok := pareto.Project(f, s, axes)
			if !ok {
				continue
			}
			if _, dup := ix.byUID[p.UniqueID]; dup {
				continue
			}
			key := KeyOf(p.X.Value, p.Y.Value, precision)
			i, ok := ix.byKey[key]
			if !ok {
				i = len(ix.groups)
				ix.byKey[key] = i
				gx, _ := strconv.ParseFloat(key.X, 64)
				gy, _ := strconv.ParseFloat(key.Y, 64)
				ix.groups = append(ix.groups, Group{Key: key, X: gx, Y: gy})
			}
			ix.groups[i].Points = append(ix.groups[i].Points, p)
			ix.byUID[p.UniqueID] = key
			ix.points++
		}
	}
	return ix
}

// Axes returns the axis pair the index was built for.
func (ix *Index) Axes() pareto.Axes {
	return ix.axes
}

// Precision returns the grouping precision.
func (ix *Index) Precision() int {
	return ix.precision
}

// Groups returns all groups in first-seen order.
func (ix *Index) Groups() []Group {
	out := make([]Group, len(ix.groups))
	copy(out, ix.groups)
	return out
}

// Len returns the number of indexed solutions.
func (ix *Index) Len() int {
	return ix.points
}

// At returns the solutions at a coordinate.
func (ix *Index) At(x, y float64) []pareto.Point {
	i, ok := ix.byKey[KeyOf(x, y, ix.precision)]
	if !ok {
		return nil
	}
	return ix.groups[i].Points
}

// Point returns the indexed projection of a solution.
func (ix *Index) Point(uniqueID string) (pareto.Point, bool) {
	key, ok := ix.byUID[uniqueID]
	if !ok {
		return pareto.Point{}, false
	}
	for _, p := range ix.groups[ix.byKey[key]].Points {
		if p.UniqueID == uniqueID {
			return p, true
		}
	}
	return pareto.Point{}, false
}

// GroupOf returns the coincident group containing a solution.
func (ix *Index) GroupOf(uniqueID string) []pareto.Point {
	key, ok := ix.byUID[uniqueID]
	if !ok {
		return nil
	}
	return ix.groups[ix.byKey[key]].Points
}

// InBox returns the groups whose coordinate lies inside the closed box.
func (ix *Index) InBox(minX, maxX, minY, maxY float64) []Group {
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	var out []Group
	for _, g := range ix.groups {
		if g.X >= minX && g.X <= maxX && g.Y >= minY && g.Y <= maxY {
			out = append(out, g)
		}
	}
	return out
}

// Bounds returns the extent of the indexed coordinates.
func (ix *Index) Bounds() (minX, maxX, minY, maxY float64, ok bool) {
	if len(ix.groups) == 0 {
		return 0, 0, 0, 0, false
	}
	minX, maxX = ix.groups[0].X, ix.groups[0].X
	minY, maxY = ix.groups[0].Y, ix.groups[0].Y
	for _, g := range ix.groups[1:] {
		minX = math.Min(minX, g.X)
		maxX = math.Max(maxX, g.X)
		minY = math.Min(minY, g.Y)
		maxY = math.Max(maxY, g.Y)
	}
	return minX, maxX, minY, maxY, true
}
