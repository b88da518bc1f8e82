package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biopareto/server/internal/coord"
	"github.com/biopareto/server/internal/pareto"
)

var axes = pareto.Axes{X: "acc", Y: "num_genes"}

func testIndex(t *testing.T) *coord.Index {
	t.Helper()
	sol := func(id string, x float64, y int) pareto.Solution {
		return pareto.Solution{
			ID:     id,
			Values: map[string]pareto.Number{"acc": pareto.Float(x), "num_genes": pareto.Int(y)},
		}
	}
	fronts := []pareto.Front{
		{Name: "A", Visible: true, Solutions: []pareto.Solution{sol("a", 0.9, 3), sol("c", 0.5, 1)}},
		{Name: "B", Visible: true, Solutions: []pareto.Solution{sol("b", 0.9, 3)}},
	}
	ix := coord.Build(fronts, axes, coord.DefaultPrecision)
	require.Equal(t, 3, ix.Len())
	return ix
}

func TestApplyClick_GroupToggle(t *testing.T) {
	ix := testIndex(t)
	click := Click{X: 0.9, Y: 3}

	s := ApplyClick(Set{}, ix, click)
	assert.Equal(t, []string{"a|A", "b|B"}, s.UniqueIDs(), "neither selected adds both")

	s = ApplyClick(s, ix, click)
	assert.True(t, s.Empty(), "both selected removes both")

	a, _ := ix.Point("a|A")
	s = Set{}.Add(a)
	s = ApplyClick(s, ix, click)
	assert.Equal(t, []string{"a|A", "b|B"}, s.UniqueIDs(), "partial overlap adds the rest")
}

func TestApplyClick_PreResolvedGroup(t *testing.T) {
	ix := testIndex(t)
	s := ApplyClick(Set{}, ix, Click{X: 100, Y: 100, UniqueIDs: []string{"b|B", "missing"}})
	assert.Equal(t, []string{"b|B"}, s.UniqueIDs())
}

func TestApplyClick_FallsBackToPointID(t *testing.T) {
	ix := testIndex(t)
	s := ApplyClick(Set{}, ix, Click{X: 7, Y: 7, UniqueID: "c|A"})
	assert.Equal(t, []string{"c|A"}, s.UniqueIDs())
}

func TestApplyClick_NoIndexIsNoop(t *testing.T) {
	ix := testIndex(t)
	a, _ := ix.Point("a|A")
	s := Set{}.Add(a)
	assert.Equal(t, s, ApplyClick(s, nil, Click{X: 0.9, Y: 3}))
	assert.Equal(t, s, ApplyLasso(s, nil, Lasso{Points: []Coordinate{{X: 0.5, Y: 1}}}))
}

func TestApplyLasso_UnionOnly(t *testing.T) {
	ix := testIndex(t)
	a, _ := ix.Point("a|A")
	s := Set{}.Add(a)

	s = ApplyLasso(s, ix, Lasso{Points: []Coordinate{{X: 0.9, Y: 3}, {X: 0.5, Y: 1}}})
	assert.Equal(t, []string{"a|A", "b|B", "c|A"}, s.UniqueIDs())

	s = ApplyLasso(s, ix, Lasso{Points: []Coordinate{{X: 0.9, Y: 3}}})
	assert.Equal(t, 3, s.Len(), "lasso over a selected group never removes")
}

func TestApplyLasso_Box(t *testing.T) {
	ix := testIndex(t)
	s := ApplyLasso(Set{}, ix, Lasso{Box: &Box{X0: 0.4, X1: 0.6, Y0: 0, Y1: 2}})
	assert.Equal(t, []string{"c|A"}, s.UniqueIDs())
}

func TestSet_RemoveRenamePrune(t *testing.T) {
	ix := testIndex(t)
	s := ApplyLasso(Set{}, ix, Lasso{Points: []Coordinate{{X: 0.9, Y: 3}, {X: 0.5, Y: 1}}})

	removed := s.Remove("b|B")
	assert.Equal(t, []string{"a|A", "c|A"}, removed.UniqueIDs())
	assert.Equal(t, 3, s.Len(), "receiver is unchanged")

	renamed := s.RenameFront("A", "Alpha")
	assert.Equal(t, []string{"a|Alpha", "b|B", "c|Alpha"}, renamed.UniqueIDs())
	assert.Equal(t, "Alpha", renamed.Entries()[0].FrontName)

	pruned := s.PruneFront("A")
	assert.Equal(t, []string{"b|B"}, pruned.UniqueIDs())
}
