package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newValidateCmd()
	switch args[0] {
	case "frequency":
		cmd = newFrequencyCmd()
	case "overlap":
		cmd = newOverlapCmd()
	case "export":
		cmd = newExportCmd()
	}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args[1:])
	err := cmd.Execute()
	return out.String(), err
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "run1.json", `[{"selected_genes": ["TP53", "MYC"], "accuracy": 0.9}]`)
	bad := writeFile(t, dir, "bad.json", `{}`)

	out, err := run(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "run1")
	assert.Contains(t, out, "accuracy")

	_, err = run(t, "validate", good, bad)
	assert.Error(t, err)
}

func TestOverlap_MixedSources(t *testing.T) {
	dir := t.TempDir()
	front := writeFile(t, dir, "run1.json", `[{"selected_genes": ["TP53", "MYC"], "accuracy": 0.9}]`)
	list := writeFile(t, dir, "markers.txt", "TP53\nKRAS, PTEN\n")

	out, err := run(t, "overlap", front, list)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Mode: venn | Sources: 2 | Unique genes: 4"))
	assert.Contains(t, out, "TP53")
}

func TestExport_Formats(t *testing.T) {
	dir := t.TempDir()
	front := writeFile(t, dir, "run1.json", `[{"selected_genes": ["TP53", "MYC"], "accuracy": 0.9}]`)

	out, err := run(t, "export", front, "--format", "genes-txt")
	require.NoError(t, err)
	assert.Equal(t, "MYC\nTP53", out)

	target := filepath.Join(dir, "out.xlsx")
	_, err = run(t, "export", front, "--format", "xlsx", "-o", target)
	require.NoError(t, err)
	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	_, err = run(t, "export", front, "--format", "pdf")
	assert.Error(t, err)
}
