package pareto

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upload(name, body string) Upload {
	return Upload{Filename: name, Data: []byte(body)}
}

func TestNormalize_ObjectivesInEncounterOrder(t *testing.T) {
	n, err := Normalize(upload("front_a.json", `[
		{"selected_genes": ["A", "B"], "zeta": 1, "accuracy": 0.9, "label": "x"},
		{"selected_genes": ["C"], "zeta": 2, "accuracy": 0.8, "label": "y"}
	]`), nil)
	require.NoError(t, err)

	f := n.Front
	assert.Equal(t, "front_a", f.Name)
	assert.Equal(t, []string{"zeta", "accuracy", "num_genes"}, f.Objectives)
	assert.Equal(t, []string{"zeta", "accuracy"}, n.Explicit)
	assert.True(t, f.Main)
	assert.True(t, f.Visible)
	assert.NotEmpty(t, f.ID)

	require.Len(t, f.Solutions, 2)
	assert.Equal(t, "Sol_1", f.Solutions[0].ID)
	assert.Equal(t, "Sol_2", f.Solutions[1].ID)
	assert.Equal(t, Int(2), f.Solutions[0].Values["num_genes"])
	assert.Equal(t, Int(1), f.Solutions[1].Values["num_genes"])
	assert.Equal(t, json.RawMessage(`"x"`), f.Solutions[0].Extra["label"])
}

func TestNormalize_KeepsExplicitNumGenes(t *testing.T) {
	n, err := Normalize(upload("f.json", `[{"selected_genes": ["A"], "num_genes": 7, "accuracy": 0.5, "solution_id": "s1"}]`), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"num_genes", "accuracy"}, n.Front.Objectives)
	assert.Equal(t, Int(7), n.Front.Solutions[0].Values["num_genes"])
	assert.Equal(t, "s1", n.Front.Solutions[0].ID)
}

func TestNormalize_KeepsNumberLiterals(t *testing.T) {
	n, err := Normalize(upload("f.json", `[{"selected_genes": ["A"], "big": 12345678901234567, "huge": 100000000000000000000, "ratio": 1.50, "acc": 0.25}]`), nil)
	require.NoError(t, err)
	vals := n.Front.Solutions[0].Values

	assert.Equal(t, "12345678901234567", vals["big"].String())
	assert.True(t, vals["big"].Integer)
	assert.Equal(t, "100000000000000000000", vals["huge"].String())
	assert.Equal(t, "1.50", vals["ratio"].String())
	assert.Equal(t, Float(0.25), vals["acc"])

	data, err := json.Marshal(vals["big"])
	require.NoError(t, err)
	assert.Equal(t, "12345678901234567", string(data))
}

func TestNormalize_StructuralErrors(t *testing.T) {
	cases := []struct {
		name   string
		file   string
		body   string
		reason string
	}{
		{"object", "a.json", `{"selected_genes": []}`, "not a list or empty"},
		{"empty", "a.json", `[]`, "not a list or empty"},
		{"noGenes", "a.json", `[{"accuracy": 0.9}]`, "missing selected_genes"},
		{"noNumeric", "a.json", `[{"selected_genes": ["A"], "solution_id": "s"}]`, "no numeric objectives"},
		{"badJSON", "a.json", `[{`, "invalid JSON"},
		{"extension", "a.csv", `[]`, "only JSON files are accepted"},
		{"duplicateID", "a.json", `[{"selected_genes": [], "acc": 1, "solution_id": "s"}, {"selected_genes": [], "acc": 2, "solution_id": "s"}]`, `record 2: duplicate solution_id "s"`},
		{"missingObjective", "a.json", `[{"selected_genes": [], "acc": 1}, {"selected_genes": []}]`, `record 2: missing objective "acc"`},
		{"geneTypes", "a.json", `[{"selected_genes": [1], "acc": 1}]`, "record 1: selected_genes must contain strings"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(upload(tc.file, tc.body), nil)
			var se *StructuralError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tc.file, se.File)
			assert.Equal(t, tc.reason, se.Reason)
		})
	}
}

func TestNormalize_ObjectiveMismatch(t *testing.T) {
	_, err := Normalize(upload("b.json", `[{"selected_genes": ["A"], "auc": 0.7}]`), []string{"accuracy", "num_genes"})
	var me *ObjectiveMismatchError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, []string{"auc", "num_genes"}, me.Got)
	assert.Contains(t, err.Error(), "Objectives mismatch")
}

func TestNormalize_SetComparisonIgnoresOrder(t *testing.T) {
	n, err := Normalize(upload("b.json", `[{"selected_genes": ["A"], "num_genes": 1, "accuracy": 0.7}]`), []string{"accuracy", "num_genes"})
	require.NoError(t, err)
	assert.False(t, n.Front.Main)
}

func TestNormalize_CompressedUploads(t *testing.T) {
	body := []byte(`[{"selected_genes": ["A"], "accuracy": 0.9}]`)

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write(body)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	var zs bytes.Buffer
	enc, err := zstd.NewWriter(&zs)
	require.NoError(t, err)
	_, err = enc.Write(body)
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	for _, u := range []Upload{
		{Filename: "run1.json.gz", Data: gz.Bytes()},
		{Filename: "run1.json.zst", Data: zs.Bytes()},
	} {
		n, err := Normalize(u, nil)
		require.NoError(t, err, u.Filename)
		assert.Equal(t, "run1", n.Front.Name)
		assert.Len(t, n.Front.Solutions, 1)
	}
}

func TestSolution_JSONRoundTrip(t *testing.T) {
	in := Solution{
		ID:         "Sol_1",
		Genes:      []string{"TP53", "BRCA1"},
		Values:     map[string]Number{"accuracy": Float(0.92), "num_genes": Int(2)},
		Extra:      map[string]json.RawMessage{"note": json.RawMessage(`"ok"`)},
		OriginalID: "s9",
		FrontName:  "Combined",
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"solution_id":"Sol_1","selected_genes":["TP53","BRCA1"],"accuracy":0.92,"num_genes":2,"note":"ok","original_solution_id":"s9","front_name":"Combined"}`, string(data))

	var out Solution
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestNormalizeColumn(t *testing.T) {
	assert.Equal(t, NormalizeColumn("1-Auc"), NormalizeColumn("1_auc"))
	assert.Equal(t, NormalizeColumn("Num Genes"), NormalizeColumn("num_genes"))
	assert.NotEqual(t, NormalizeColumn("auc"), NormalizeColumn("acc"))
}

func TestFrontName(t *testing.T) {
	assert.Equal(t, "front_a", FrontName("front_a.json"))
	assert.Equal(t, "front_a", FrontName("/tmp/up/front_a.JSON"))
	assert.Equal(t, "run.v2", FrontName("run.v2.json.gz"))
}
