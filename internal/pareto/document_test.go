package pareto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frontA = `[
	{"solution_id": "s1", "selected_genes": ["BRCA1", "TP53"], "accuracy": 0.91},
	{"solution_id": "s2", "selected_genes": ["BRCA1"], "accuracy": 0.85},
	{"solution_id": "s3", "selected_genes": ["EGFR", "TP53", "MYC"], "accuracy": 0.95}
]`

const frontB = `[
	{"solution_id": "s1", "selected_genes": ["MYC"], "accuracy": 0.80},
	{"solution_id": "s2", "selected_genes": ["MYC", "KRAS"], "accuracy": 0.88}
]`

func loadAB(t *testing.T) *Document {
	t.Helper()
	doc, report := New().Load([]Upload{upload("front_a.json", frontA), upload("front_b.json", frontB)})
	require.Empty(t, report.Failed)
	return doc
}

func allPoints(t *testing.T, doc *Document, axes Axes) []Point {
	t.Helper()
	var points []Point
	for _, f := range doc.VisibleFronts() {
		for _, s := range f.Solutions {
			p, ok := Project(f, s, axes)
			require.True(t, ok)
			points = append(points, p)
		}
	}
	return points
}

func TestDocument_LoadScenario(t *testing.T) {
	doc := loadAB(t)

	fronts := doc.Fronts()
	require.Len(t, fronts, 2)
	assert.Equal(t, "front_a", fronts[0].Name)
	assert.Equal(t, "front_b", fronts[1].Name)
	assert.True(t, fronts[0].Main)
	assert.False(t, fronts[1].Main)
	assert.Equal(t, 5, doc.SolutionCount())
	assert.ElementsMatch(t, []string{"accuracy", "num_genes"}, doc.MainObjectives())
	assert.Equal(t, Axes{X: "accuracy", Y: "num_genes"}, doc.DefaultAxes())
}

func TestDocument_LoadBatchContinuesPastFailures(t *testing.T) {
	doc, report := New().Load([]Upload{
		upload("front_a.json", frontA),
		upload("bad.json", `{}`),
		upload("other.json", `[{"selected_genes": ["A"], "auc": 0.7}]`),
		upload("front_b.json", frontB),
	})

	assert.Equal(t, []string{"front_a", "front_b"}, report.Loaded)
	require.Len(t, report.Failed, 2)
	assert.Equal(t, "bad.json", report.Failed[0].Filename)
	assert.Equal(t, "other.json", report.Failed[1].Filename)
	assert.Len(t, doc.Fronts(), 2)
	assert.Contains(t, report.Message(), "Successfully loaded 2 front(s). Total fronts: 2 | Errors: ")

	for _, f := range doc.Fronts() {
		assert.ElementsMatch(t, doc.MainObjectives(), f.Objectives)
	}
}

func TestDocument_LoadAllFailedKeepsDocument(t *testing.T) {
	base := loadAB(t)
	doc, report := base.Load([]Upload{upload("bad.json", `[]`)})
	assert.Same(t, base, doc)
	assert.Equal(t, "Failed to load any fronts. bad.json: not a list or empty", report.Message())
}

func TestDocument_DuplicateFilenamesGetDistinctNames(t *testing.T) {
	doc, _ := New().Load([]Upload{upload("front_a.json", frontA), upload("front_a.json", frontA)})
	fronts := doc.Fronts()
	require.Len(t, fronts, 2)
	assert.Equal(t, "front_a (2)", fronts[1].Name)
}

func TestDocument_RenameAndLocks(t *testing.T) {
	doc := loadAB(t)
	a := doc.Fronts()[0]

	renamed, err := doc.Rename(a.ID, "Alpha")
	require.NoError(t, err)
	f, _ := renamed.Front(a.ID)
	assert.Equal(t, "Alpha", f.Name)
	orig, _ := doc.Front(a.ID)
	assert.Equal(t, "front_a", orig.Name, "transition must not modify the previous document")

	_, err = renamed.Rename(a.ID, "front_b")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = renamed.Rename("missing", "x")
	assert.ErrorIs(t, err, ErrFrontNotFound)

	consolidated, _, err := doc.Consolidate(allPoints(t, doc, doc.DefaultAxes()), "C", doc.DefaultAxes(), time.Now())
	require.NoError(t, err)
	c := consolidated.Fronts()[0]
	same, err := consolidated.Rename(c.ID, "Other")
	assert.ErrorIs(t, err, ErrFrontLocked)
	assert.Same(t, consolidated, same)
	_, err = consolidated.Delete(c.ID)
	assert.ErrorIs(t, err, ErrFrontLocked)
}

func TestDocument_DeletePromotesAndResets(t *testing.T) {
	doc := loadAB(t)
	fronts := doc.Fronts()

	doc, err := doc.Delete(fronts[0].ID)
	require.NoError(t, err)
	require.Len(t, doc.Fronts(), 1)
	assert.True(t, doc.Fronts()[0].Main)
	assert.ElementsMatch(t, []string{"accuracy", "num_genes"}, doc.MainObjectives())

	doc, err = doc.Delete(fronts[1].ID)
	require.NoError(t, err)
	assert.True(t, doc.Empty())
	assert.Nil(t, doc.MainObjectives())
	assert.Nil(t, doc.ExplicitObjectives())
}

func TestDocument_VisibilityAndMain(t *testing.T) {
	doc := loadAB(t)
	b := doc.Fronts()[1]

	hidden, err := doc.SetVisible(b.ID, false)
	require.NoError(t, err)
	visible := hidden.VisibleFronts()
	require.Len(t, visible, 1)
	assert.Equal(t, "front_a", visible[0].Name)

	promoted, err := doc.SetMain(b.ID)
	require.NoError(t, err)
	main, ok := promoted.MainFront()
	require.True(t, ok)
	assert.Equal(t, b.ID, main.ID)
	assert.Equal(t, b.Objectives, promoted.MainObjectives())
}

func TestDocument_ClearAll(t *testing.T) {
	doc := loadAB(t).Clear()
	assert.True(t, doc.Empty())
	assert.Equal(t, 0, doc.History().Len())
	assert.Nil(t, doc.MainObjectives())
}

func TestSummarize(t *testing.T) {
	doc := loadAB(t)
	s := Summarize(doc.Fronts()[0])
	assert.Equal(t, 3, s.Solutions)
	assert.Equal(t, 4, s.UniqueGenes)
	require.Len(t, s.Objectives, 2)
	assert.Equal(t, "accuracy", s.Objectives[0].Objective)
	assert.InDelta(t, 0.85, s.Objectives[0].Min, 1e-9)
	assert.InDelta(t, 0.95, s.Objectives[0].Max, 1e-9)
	assert.InDelta(t, 0.91, s.Objectives[0].Median, 1e-9)
	assert.InDelta(t, 2.0, s.Objectives[1].Mean, 1e-9)
}

func TestExampleUploadIsValid(t *testing.T) {
	_, err := Normalize(upload("test.json", ExampleUpload), nil)
	require.NoError(t, err)
}
