package session

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biopareto/server/internal/pareto"
	"github.com/biopareto/server/internal/selection"
)

const (
	frontA = `[
		{"solution_id": "s1", "selected_genes": ["BRCA1", "TP53"], "accuracy": 0.91},
		{"solution_id": "s2", "selected_genes": ["TP53"], "accuracy": 0.85},
		{"solution_id": "s3", "selected_genes": ["EGFR", "MYC", "TP53"], "accuracy": 0.95}
	]`
	frontB = `[
		{"solution_id": "s1", "selected_genes": ["TP53", "KRAS"], "accuracy": 0.91},
		{"solution_id": "s2", "selected_genes": ["PTEN"], "accuracy": 0.88}
	]`
)

func newLoaded(t *testing.T) *Store {
	t.Helper()
	s, err := New(Options{Now: func() time.Time { return time.Date(2024, 5, 1, 14, 5, 0, 0, time.UTC) }})
	require.NoError(t, err)
	report := s.Upload([]pareto.Upload{
		{Filename: "front_a.json", Data: []byte(frontA)},
		{Filename: "front_b.json", Data: []byte(frontB)},
	})
	require.Len(t, report.Loaded, 2)
	return s
}

func frontID(t *testing.T, s *Store, name string) string {
	t.Helper()
	for _, f := range s.Snapshot().Doc.Fronts() {
		if f.Name == name {
			return f.ID
		}
	}
	t.Fatalf("front %s not found", name)
	return ""
}

func TestUpload_SetsDefaultAxes(t *testing.T) {
	s := newLoaded(t)
	snap := s.Snapshot()
	assert.Equal(t, pareto.Axes{X: "accuracy", Y: "num_genes"}, snap.Axes)
	assert.Equal(t, 5, snap.Doc.SolutionCount())
	require.NotNil(t, s.Index())
	assert.Same(t, s.Index(), s.Index(), "index is cached per version")
}

func TestClick_SharedCoordinate(t *testing.T) {
	s := newLoaded(t)
	// front_a s1 and front_b s1 both sit at (0.91, 2).
	sel := s.Click(selection.Click{X: 0.91, Y: 2})
	assert.Equal(t, []string{"s1|front_a", "s1|front_b"}, sel.UniqueIDs())

	sel = s.Click(selection.Click{X: 0.91, Y: 2})
	assert.True(t, sel.Empty())
}

func TestSelectionSurvivesSwapAndRename(t *testing.T) {
	s := newLoaded(t)
	s.Click(selection.Click{X: 0.85, Y: 1})

	s.SwapAxes()
	assert.Equal(t, 1, s.Snapshot().Selection.Len())

	require.NoError(t, s.Rename(frontID(t, s, "front_a"), "Alpha"))
	assert.Equal(t, []string{"s2|Alpha"}, s.Snapshot().Selection.UniqueIDs())

	sel := s.Click(selection.Click{X: 1, Y: 0.85})
	assert.True(t, sel.Empty(), "renamed entry still toggles off")
}

func TestUploadClearsSelection(t *testing.T) {
	s := newLoaded(t)
	s.Click(selection.Click{X: 0.85, Y: 1})
	s.Upload([]pareto.Upload{{Filename: "front_c.json", Data: []byte(frontB)}})
	assert.True(t, s.Snapshot().Selection.Empty())
}

func TestFailedUploadKeepsSelection(t *testing.T) {
	s := newLoaded(t)
	s.Click(selection.Click{X: 0.85, Y: 1})
	report := s.Upload([]pareto.Upload{{Filename: "bad.json", Data: []byte(`{}`)}})
	assert.Empty(t, report.Loaded)
	assert.Equal(t, 1, s.Snapshot().Selection.Len())
}

func TestDeletePrunesSelection(t *testing.T) {
	s := newLoaded(t)
	s.Lasso(selection.Lasso{Box: &selection.Box{X0: 0, X1: 1, Y0: 0, Y1: 10}})
	require.Equal(t, 5, s.Snapshot().Selection.Len())

	require.NoError(t, s.Delete(frontID(t, s, "front_b")))
	assert.Equal(t, []string{"s1|front_a", "s2|front_a", "s3|front_a"}, sortedIDs(s.Snapshot().Selection))
}

func TestConsolidateAndRestore(t *testing.T) {
	s := newLoaded(t)
	before := s.Snapshot().Doc.Fronts()

	_, err := s.Consolidate("Combined")
	assert.ErrorIs(t, err, pareto.ErrEmptySelection)

	s.Lasso(selection.Lasso{Box: &selection.Box{X0: 0, X1: 1, Y0: 0, Y1: 10}})
	s.SetLayout(Layout{XRange: [2]float64{0, 1}})
	report, err := s.Consolidate("")
	require.NoError(t, err)
	assert.Equal(t, "Consolidated_Front_1405", report.FrontName)
	assert.Equal(t, 5, report.Solutions)

	snap := s.Snapshot()
	assert.True(t, snap.Selection.Empty())
	assert.Nil(t, snap.Layout)
	assert.True(t, snap.CanRestore())
	require.Len(t, snap.Doc.Fronts(), 1)

	require.NoError(t, s.Restore())
	assert.Equal(t, before, s.Snapshot().Doc.Fronts())
	assert.ErrorIs(t, s.Restore(), pareto.ErrHistoryEmpty)
}

func TestSetAxes_RejectsUnknown(t *testing.T) {
	s := newLoaded(t)
	assert.ErrorIs(t, s.SetAxes(pareto.Axes{X: "accuracy", Y: "nope"}), ErrUnknownObjective)
	require.NoError(t, s.SetAxes(pareto.Axes{X: "num_genes", Y: "accuracy"}))
	assert.Equal(t, "num_genes", s.Snapshot().Axes.X)
}

func TestEmptySessionIsNoop(t *testing.T) {
	s, err := New(Options{})
	require.NoError(t, err)
	assert.Nil(t, s.Index())
	assert.True(t, s.Click(selection.Click{X: 1, Y: 1}).Empty())

	s = newLoaded(t)
	s.ClearAll()
	snap := s.Snapshot()
	assert.True(t, snap.Doc.Empty())
	assert.False(t, snap.Axes.Set())
}

func sortedIDs(sel selection.Set) []string {
	ids := sel.UniqueIDs()
	sort.Strings(ids)
	return ids
}
