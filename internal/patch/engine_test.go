package patch_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacekjursza/codehem/core"
	"github.com/jacekjursza/codehem/internal/extractor"
	"github.com/jacekjursza/codehem/internal/patch"
	"github.com/jacekjursza/codehem/providers/builtin"
)

const fooSource = "class Foo:\n    def bar(self):\n        return 1\n"

func newEngine(t *testing.T, language string) *patch.Engine {
	t.Helper()
	registry, err := builtin.NewRegistry(nil)
	require.NoError(t, err)
	ex, err := extractor.New(registry, language)
	require.NoError(t, err)
	return patch.New(ex)
}

func TestFingerprint(t *testing.T) {
	// sha256("") in lowercase hex.
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", patch.Fingerprint(""))
	assert.Len(t, patch.Fingerprint("def bar(): pass"), 64)
	assert.NotEqual(t, patch.Fingerprint("a"), patch.Fingerprint("a "))
}

func TestEngine_Fingerprint(t *testing.T) {
	e := newEngine(t, "python")

	fp, err := e.Fingerprint(fooSource, "bar[method]")
	require.NoError(t, err)
	assert.Equal(t, patch.Fingerprint("    def bar(self):\n        return 1"), fp)

	_, err = e.Fingerprint(fooSource, "Foo.missing")
	var nf *core.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Foo.missing", nf.Path)
}

func TestApply_Replace(t *testing.T) {
	e := newEngine(t, "python")
	before, err := e.Fingerprint(fooSource, "bar[method]")
	require.NoError(t, err)

	res, err := e.Apply(fooSource, "bar[method]", "def bar(self):\n    return 2\n", patch.Replace, before)
	require.NoError(t, err)

	assert.Equal(t, "ok", res.Status)
	assert.Equal(t, 1, res.LinesAdded)
	assert.Equal(t, 1, res.LinesRemoved)
	assert.Equal(t, "class Foo:\n    def bar(self):\n        return 2\n", res.Code)
	assert.Contains(t, res.Code, "return 2")
	assert.Equal(t, before, res.Before)
	assert.Equal(t, patch.Fingerprint("    def bar(self):\n        return 2"), res.After)
	assert.Equal(t, core.Range{Start: 2, End: 3}, res.Range)
	assert.Contains(t, res.Diff, "-        return 1")
	assert.Contains(t, res.Diff, "+        return 2")
}

func TestApply_ConflictLeavesSourceUntouched(t *testing.T) {
	e := newEngine(t, "python")
	stale := strings.Repeat("0", 64)

	res, err := e.Apply(fooSource, "bar[method]", "def bar(self):\n    return 2\n", patch.Replace, stale)
	assert.Nil(t, res)

	var conflict *core.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.True(t, errors.Is(err, core.ErrConflict))
	assert.Equal(t, stale, conflict.Expected)
	assert.Equal(t, patch.Fingerprint("    def bar(self):\n        return 1"), conflict.Actual)
	assert.Equal(t, "bar[method]", conflict.Path)
}

func TestApply_StaleFingerprintSucceedsExactlyOnce(t *testing.T) {
	e := newEngine(t, "python")
	h, err := e.Fingerprint(fooSource, "Foo.bar")
	require.NoError(t, err)

	first, err := e.Apply(fooSource, "Foo.bar", "def bar(self):\n    return 2", patch.Replace, h)
	require.NoError(t, err)

	second, err := e.Apply(first.Code, "Foo.bar", "def bar(self):\n    return 3", patch.Replace, h)
	assert.Nil(t, second)
	assert.True(t, errors.Is(err, core.ErrConflict))

	// Re-reading the fingerprint is the way forward.
	fresh, err := e.Fingerprint(first.Code, "Foo.bar")
	require.NoError(t, err)
	third, err := e.Apply(first.Code, "Foo.bar", "def bar(self):\n    return 3", patch.Replace, fresh)
	require.NoError(t, err)
	assert.Contains(t, third.Code, "return 3")
}

func TestApply_NotFound(t *testing.T) {
	e := newEngine(t, "python")
	for _, path := range []string{"Foo.missing", "Missing", "Foo..bar", "Foo[klass]"} {
		t.Run(path, func(t *testing.T) {
			_, err := e.Apply(fooSource, path, "pass", patch.Replace, "")
			var nf *core.NotFoundError
			require.ErrorAs(t, err, &nf)
			assert.Equal(t, path, nf.Path)
			assert.True(t, errors.Is(err, core.ErrNotFound))
		})
	}
}

func TestApply_ReplaceMultiLineReflow(t *testing.T) {
	e := newEngine(t, "python")
	src := "def total(items):\n    s = 0\n    for i in items:\n        s += i\n    return s\n"

	res, err := e.Apply(src, "total", "def total(items):\n    return sum(items)\n", patch.Replace, "")
	require.NoError(t, err)

	assert.Equal(t, "def total(items):\n    return sum(items)\n", res.Code)
	assert.Equal(t, 1, res.LinesAdded)
	assert.Equal(t, 4, res.LinesRemoved)
}

func TestApply_AppendPython(t *testing.T) {
	e := newEngine(t, "python")

	res, err := e.Apply(fooSource, "Foo", "def baz(self):\n    return 3\n", patch.Append, "")
	require.NoError(t, err)

	want := "class Foo:\n    def bar(self):\n        return 1\n    def baz(self):\n        return 3\n"
	assert.Equal(t, want, res.Code)
	assert.Equal(t, 2, res.LinesAdded)
	assert.Equal(t, 0, res.LinesRemoved)
	assert.Equal(t, core.Range{Start: 1, End: 5}, res.Range)
}

func TestApply_AppendTypeScriptBeforeClosingBrace(t *testing.T) {
	e := newEngine(t, "typescript")
	src := "class Box {\n  open(): void {\n    this.isOpen = true;\n  }\n}\n"

	res, err := e.Apply(src, "Box[class]", "close(): void {\n  this.isOpen = false;\n}", patch.Append, "")
	require.NoError(t, err)

	want := "class Box {\n  open(): void {\n    this.isOpen = true;\n  }\n  close(): void {\n    this.isOpen = false;\n  }\n}\n"
	assert.Equal(t, want, res.Code)
	assert.Equal(t, 3, res.LinesAdded)
	assert.Equal(t, 0, res.LinesRemoved)
}

func TestApply_AppendToEmptyBraceBody(t *testing.T) {
	e := newEngine(t, "typescript")
	src := "class Empty {\n}\n"

	res, err := e.Apply(src, "Empty[class]", "size = 0;", patch.Append, "")
	require.NoError(t, err)
	assert.Equal(t, "class Empty {\n    size = 0;\n}\n", res.Code)
}

func TestApply_AppendToSingleLineElements(t *testing.T) {
	registry, err := builtin.NewRegistry(nil)
	require.NoError(t, err)

	tests := []struct {
		name      string
		language  string
		source    string
		path      string
		text      string
		want      string
		wantRange core.Range
	}{
		{
			name:      "empty braced class",
			language:  "typescript",
			source:    "class A {}\n",
			path:      "A[class]",
			text:      "size = 0;",
			want:      "class A {\n    size = 0;\n}\n",
			wantRange: core.Range{Start: 1, End: 3},
		},
		{
			name:      "one-line method inside class",
			language:  "typescript",
			source:    "class A {\n  m() { return 1; }\n}\n",
			path:      "A.m[method]",
			text:      "log();",
			want:      "class A {\n  m() { return 1;\n      log();\n  }\n}\n",
			wantRange: core.Range{Start: 2, End: 4},
		},
		{
			name:      "one-line function followed by code",
			language:  "javascript",
			source:    "function f() { return 1; }\nconst z = 1;\n",
			path:      "f[function]",
			text:      "log();",
			want:      "function f() { return 1;\n    log();\n}\nconst z = 1;\n",
			wantRange: core.Range{Start: 1, End: 3},
		},
		{
			name:      "python inline function body",
			language:  "python",
			source:    "def f(): return 1\nx = 2\n",
			path:      "f",
			text:      "y = 3",
			want:      "def f():\n    return 1\n    y = 3\nx = 2\n",
			wantRange: core.Range{Start: 1, End: 3},
		},
		{
			name:      "python inline class body",
			language:  "python",
			source:    "class A: pass\n",
			path:      "A",
			text:      "def m(self):\n    return {'a': 1}",
			want:      "class A:\n    pass\n    def m(self):\n        return {'a': 1}\n",
			wantRange: core.Range{Start: 1, End: 4},
		},
		{
			name:      "python annotated inline method",
			language:  "python",
			source:    "class A:\n    def m(self, x: int) -> int: return x\n",
			path:      "A.m",
			text:      "y = 1",
			want:      "class A:\n    def m(self, x: int) -> int:\n        return x\n        y = 1\n",
			wantRange: core.Range{Start: 2, End: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, tt.language)
			res, err := e.Apply(tt.source, tt.path, tt.text, patch.Append, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Code)
			assert.Equal(t, tt.wantRange, res.Range)

			entry, err := registry.Get(tt.language)
			require.NoError(t, err)
			v := entry.Syntax.Validate([]byte(res.Code))
			assert.True(t, v.Valid, "patched code has syntax errors: %v", v.Errors)
		})
	}
}

func TestApply_AppendToFile(t *testing.T) {
	e := newEngine(t, "python")

	res, err := e.Apply(fooSource, "FILE", "def helper():\n    pass\n", patch.Append, "")
	require.NoError(t, err)
	assert.Equal(t, fooSource+"def helper():\n    pass\n", res.Code)
	assert.Equal(t, 2, res.LinesAdded)
}

func TestApply_ReplaceFileGuardedByFingerprint(t *testing.T) {
	e := newEngine(t, "python")
	fp, err := e.Fingerprint(fooSource, "FILE")
	require.NoError(t, err)
	assert.Equal(t, patch.Fingerprint(strings.TrimSuffix(fooSource, "\n")), fp)

	res, err := e.Apply(fooSource, "FILE", "x = 1\n", patch.Replace, fp)
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", res.Code)
}

func TestApply_ReindentsToTarget(t *testing.T) {
	e := newEngine(t, "python")

	res, err := e.Apply(fooSource, "Foo.bar", "            def bar(self):\n                return 2", patch.Replace, "")
	require.NoError(t, err)
	assert.Equal(t, "class Foo:\n    def bar(self):\n        return 2\n", res.Code)
}

func TestParseMode(t *testing.T) {
	m, err := patch.ParseMode("append")
	require.NoError(t, err)
	assert.Equal(t, patch.Append, m)

	m, err = patch.ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, patch.Replace, m)

	_, err = patch.ParseMode("upsert")
	assert.Error(t, err)
	assert.Equal(t, "append", patch.Append.String())
}
