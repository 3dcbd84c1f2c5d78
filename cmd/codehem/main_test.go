package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacekjursza/codehem/core"
	"github.com/jacekjursza/codehem/internal/patch"
)

const calcSource = "def calculate(x):\n    return x * 2\n"

func init() {
	color.NoColor = true
}

// run executes the CLI with args and returns what it printed to stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	err := root.Execute()
	return out.String(), err
}

func calcFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calc.py")
	require.NoError(t, os.WriteFile(path, []byte(calcSource), 0o644))
	return path
}

func TestExtractCommand(t *testing.T) {
	file := calcFile(t)

	out, err := run(t, "", "extract", file)
	require.NoError(t, err)
	assert.Contains(t, out, "1-2")
	assert.Contains(t, out, "FILE.calculate[function]")
	assert.Contains(t, out, "FILE.calculate[function].x[parameter]")

	out, err = run(t, "", "extract", "--json", "--kind", "function", file)
	require.NoError(t, err)
	var views []struct {
		Path  string     `json:"path"`
		Kind  string     `json:"kind"`
		Range core.Range `json:"range"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.NotEmpty(t, views)
	assert.Equal(t, "FILE.calculate[function]", views[0].Path)
	assert.Equal(t, "function", views[0].Kind)
	assert.Equal(t, core.Range{Start: 1, End: 2}, views[0].Range)

	_, err = run(t, "", "extract", "--kind", "klass", file)
	assert.Error(t, err)
}

func TestLocateCommand(t *testing.T) {
	file := calcFile(t)

	out, err := run(t, "", "locate", file, "calculate")
	require.NoError(t, err)
	assert.Equal(t, "1 2\n", out)

	_, err = run(t, "", "locate", file, "Missing.run")
	assert.True(t, errors.Is(err, core.ErrNotFound))

	_, err = run(t, "", "locate", filepath.Join(t.TempDir(), "notes.txt"), "x")
	assert.Error(t, err)
}

func TestFingerprintCommand(t *testing.T) {
	file := calcFile(t)

	out, err := run(t, "", "fingerprint", file, "FILE.calculate[function]")
	require.NoError(t, err)
	assert.Equal(t, patch.Fingerprint(strings.TrimSuffix(calcSource, "\n"))+"\n", out)
}

func TestPatchCommand(t *testing.T) {
	file := calcFile(t)
	fp := patch.Fingerprint(strings.TrimSuffix(calcSource, "\n"))

	out, err := run(t, "", "patch", file, "calculate",
		"--expect", fp, "--text", "def calculate(x):\n    return x * 3\n")
	require.NoError(t, err)
	assert.Contains(t, out, "ok calculate +1 -1")
	assert.Contains(t, out, "+    return x * 3")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "def calculate(x):\n    return x * 3\n", string(data))

	// The old fingerprint is now stale.
	_, err = run(t, "", "patch", file, "calculate", "--expect", fp, "--text", "def calculate(x):\n    return 0\n")
	assert.True(t, errors.Is(err, core.ErrConflict))
}

func TestPatchCommand_DryRunAndStdin(t *testing.T) {
	file := calcFile(t)

	out, err := run(t, "def helper():\n    pass\n", "patch", file, "FILE", "--mode", "append", "--stdin", "--dry-run", "--json")
	require.NoError(t, err)

	var res patch.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, calcSource+"def helper():\n    pass\n", res.Code)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, calcSource, string(data))

	_, err = run(t, "", "patch", file, "calculate", "--mode", "upsert", "--text", "x")
	assert.Error(t, err)
	_, err = run(t, "", "patch", file, "calculate")
	assert.Error(t, err)
}

func TestFindCommand(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "calc.py"), []byte(calcSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "more.py"), []byte(calcSource), 0o644))

	out, err := run(t, "", "find", root, "calculate", "function")
	require.NoError(t, err)
	assert.Equal(t, "calc.py:1\tFILE.calculate[function]\n", out)

	out, err = run(t, "", "find", "--all", root, "calculate", "function")
	require.NoError(t, err)
	assert.Equal(t, "calc.py:1\tFILE.calculate[function]\npkg/more.py:1\tFILE.calculate[function]\n", out)

	_, err = run(t, "", "find", root, "calculate", "method")
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestHistoryCommand(t *testing.T) {
	_, err := run(t, "", "history")
	assert.Error(t, err)

	t.Setenv("CODEHEM_JOURNAL_DSN", filepath.Join(t.TempDir(), "journal.db"))
	file := calcFile(t)

	_, err = run(t, "", "patch", file, "calculate", "--text", "def calculate(x):\n    return x\n")
	require.NoError(t, err)

	out, err := run(t, "", "history", "calc.py")
	require.NoError(t, err)
	assert.Contains(t, out, "calc.py")
	assert.Contains(t, out, "replace")
	assert.Contains(t, out, "+1 -1")
}

func TestSplitTarget(t *testing.T) {
	root, file, err := splitTarget("", filepath.Join("/work", "src", "calc.py"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/work", "src"), root)
	assert.Equal(t, "calc.py", file)

	root, file, err = splitTarget("/work", filepath.Join("/work", "src", "calc.py"))
	require.NoError(t, err)
	assert.Equal(t, "/work", root)
	assert.Equal(t, "src/calc.py", file)
}

func TestVersionFlag(t *testing.T) {
	out, err := run(t, "", "--version")
	require.NoError(t, err)
	assert.Equal(t, "codehem version dev\n", out)
}
