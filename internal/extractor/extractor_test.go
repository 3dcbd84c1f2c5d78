package extractor_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacekjursza/codehem/core"
	"github.com/jacekjursza/codehem/internal/extractor"
	"github.com/jacekjursza/codehem/providers"
	"github.com/jacekjursza/codehem/providers/builtin"
	"github.com/jacekjursza/codehem/providers/catalog"
	"github.com/jacekjursza/codehem/providers/python"
)

func newExtractor(t *testing.T, language string) *extractor.Extractor {
	t.Helper()
	registry, err := builtin.NewRegistry(nil)
	require.NoError(t, err)
	ex, err := extractor.New(registry, language)
	require.NoError(t, err)
	return ex
}

// shape is the kind and name of an element, for compact assertions.
type shape struct {
	Kind core.Kind
	Name string
}

func shapes(elements []*core.Element) []shape {
	out := make([]shape, 0, len(elements))
	for _, el := range elements {
		out = append(out, shape{el.Kind, el.Name})
	}
	return out
}

func childrenOfKind(tree *core.Tree, id core.ElementID, kinds ...core.Kind) []*core.Element {
	var out []*core.Element
	for _, c := range tree.Children(id) {
		for _, k := range kinds {
			if c.Kind == k {
				out = append(out, c)
			}
		}
	}
	return out
}

var memberKinds = []core.Kind{
	core.KindMethod, core.KindProperty, core.KindPropertyGetter,
	core.KindPropertySetter, core.KindStaticProperty,
}

func TestExtract_ClassWithMethod(t *testing.T) {
	ex := newExtractor(t, "python")
	tree := ex.Extract("class Foo:\n    def bar(self):\n        return 1\n")

	roots := tree.Roots()
	require.Len(t, roots, 1)
	foo := roots[0]
	assert.Equal(t, core.KindClass, foo.Kind)
	assert.Equal(t, "Foo", foo.Name)
	assert.Equal(t, core.Range{Start: 1, End: 3}, foo.Range)

	members := tree.Children(foo.ID)
	require.Len(t, members, 1)
	bar := members[0]
	assert.Equal(t, core.KindMethod, bar.Kind)
	assert.Equal(t, "bar", bar.Name)
	assert.Equal(t, core.Range{Start: 2, End: 3}, bar.Range)
	assert.Equal(t, "Foo", bar.ParentName)
	assert.Equal(t, "    def bar(self):\n        return 1", bar.Content)
}

func TestExtract_PythonGetterAndSetter(t *testing.T) {
	src := `class Temperature:
    def __init__(self, celsius):
        self._celsius = celsius

    @property
    def value(self):
        return self._celsius

    @value.setter
    def value(self, v):
        self._celsius = v
`
	tree := newExtractor(t, "python").Extract(src)
	require.Len(t, tree.Roots(), 1)
	cls := tree.Roots()[0]

	members := childrenOfKind(tree, cls.ID, memberKinds...)
	assert.Equal(t, []shape{
		{core.KindMethod, "__init__"},
		{core.KindProperty, "_celsius"},
		{core.KindPropertyGetter, "value"},
		{core.KindPropertySetter, "value"},
	}, shapes(members))

	getter := members[2]
	assert.Equal(t, core.Range{Start: 5, End: 7}, getter.Range)
	decos := tree.Decorators(getter.ID)
	require.Len(t, decos, 1)
	assert.Equal(t, "property", decos[0].Name)

	setter := members[3]
	assert.Equal(t, core.Range{Start: 9, End: 11}, setter.Range)
	params := childrenOfKind(tree, setter.ID, core.KindParameter)
	require.Len(t, params, 1)
	assert.Equal(t, "v", params[0].Name)
}

func TestExtract_PythonPropertiesAndStatics(t *testing.T) {
	src := `class Config:
    DEBUG = False
    retries: int = 3

    def __init__(self, name):
        self.name = name
        self.name = name.strip()
        local = 1

    def run(self):
        self.started = True
        counter = 0
`
	tree := newExtractor(t, "python").Extract(src)
	require.Len(t, tree.Roots(), 1)
	cls := tree.Roots()[0]

	assert.Equal(t, []shape{
		{core.KindStaticProperty, "DEBUG"},
		{core.KindStaticProperty, "retries"},
		{core.KindMethod, "__init__"},
		{core.KindProperty, "name"},
		{core.KindMethod, "run"},
	}, shapes(childrenOfKind(tree, cls.ID, memberKinds...)))

	statics := childrenOfKind(tree, cls.ID, core.KindStaticProperty)
	require.Len(t, statics, 2)
	assert.Equal(t, core.PropertyPayload{Type: "int", Value: "3"}, statics[1].Payload)

	props := childrenOfKind(tree, cls.ID, core.KindProperty)
	require.Len(t, props, 1)
	assert.Equal(t, 6, props[0].Range.Start)
}

func TestExtract_ImportsMergeIntoBlocks(t *testing.T) {
	src := `import os
import sys
# typing helpers
from typing import List

def main():
    pass

import json
`
	tree := newExtractor(t, "python").Extract(src)
	assert.Equal(t, []shape{
		{core.KindImport, ""},
		{core.KindFunction, "main"},
		{core.KindImport, ""},
	}, shapes(tree.Roots()))

	block := tree.Roots()[0]
	assert.Equal(t, core.Range{Start: 1, End: 4}, block.Range)
	assert.Equal(t, "import os\nimport sys\n# typing helpers\nfrom typing import List", block.Content)
	assert.Equal(t, core.ImportPayload{Statements: []string{
		"import os", "import sys", "from typing import List",
	}}, block.Payload)

	assert.Equal(t, core.Range{Start: 9, End: 9}, tree.Roots()[2].Range)
}

func TestExtract_Decorators(t *testing.T) {
	src := `@app.route("/x")
@login_required
def handler(request):
    return request
`
	tree := newExtractor(t, "python").Extract(src)
	require.Len(t, tree.Roots(), 1)
	fn := tree.Roots()[0]
	assert.Equal(t, core.KindFunction, fn.Kind)
	assert.Equal(t, core.Range{Start: 1, End: 4}, fn.Range)

	payload, ok := fn.Payload.(core.CallablePayload)
	require.True(t, ok)
	assert.Equal(t, []string{"app.route", "login_required"}, payload.Decorators)

	decos := tree.Decorators(fn.ID)
	require.Len(t, decos, 2)
	assert.Equal(t, core.DecoratorPayload{
		Expression: `@app.route("/x")`,
		TargetKind: core.KindFunction,
		TargetName: "handler",
	}, decos[0].Payload)
	assert.Equal(t, core.Range{Start: 2, End: 2}, decos[1].Range)
}

func TestExtract_FunctionSignature(t *testing.T) {
	src := `async def fetch(url: str, timeout: int = 5) -> bytes:
    return b""
`
	tree := newExtractor(t, "python").Extract(src)
	require.Len(t, tree.Roots(), 1)
	fn := tree.Roots()[0]

	payload := fn.Payload.(core.CallablePayload)
	assert.True(t, payload.Async)

	params := childrenOfKind(tree, fn.ID, core.KindParameter)
	require.Len(t, params, 2)
	assert.Equal(t, "url", params[0].Name)
	assert.Equal(t, core.ParameterPayload{Type: "str"}, params[0].Payload)
	assert.Equal(t, "timeout", params[1].Name)
	assert.Equal(t, core.ParameterPayload{Type: "int", Default: "5", Optional: true}, params[1].Payload)

	ret := childrenOfKind(tree, fn.ID, core.KindReturnValue)
	require.Len(t, ret, 1)
	assert.Equal(t, core.ReturnPayload{Type: "bytes", Values: []string{`b""`}}, ret[0].Payload)
}

func TestExtract_ReturnValueWithoutAnnotation(t *testing.T) {
	tests := []struct {
		name        string
		language    string
		src         string
		wantRange   core.Range
		wantContent string
		wantValues  []string
	}{
		{
			name:        "python first return",
			language:    "python",
			src:         "def pick(x):\n    if x:\n        return 1\n    return 2\n",
			wantRange:   core.Range{Start: 3, End: 3},
			wantContent: "return 1",
			wantValues:  []string{"1", "2"},
		},
		{
			name:        "typescript arrow expression body",
			language:    "typescript",
			src:         "const double = (x) =>\n  x * 2;\n",
			wantRange:   core.Range{Start: 2, End: 2},
			wantContent: "x * 2",
			wantValues:  []string{"x * 2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := newExtractor(t, tt.language).Extract(tt.src)
			require.Len(t, tree.Roots(), 1)
			ret := childrenOfKind(tree, tree.Roots()[0].ID, core.KindReturnValue)
			require.Len(t, ret, 1)
			assert.Equal(t, tt.wantRange, ret[0].Range)
			assert.Equal(t, tt.wantContent, ret[0].Content)
			assert.Equal(t, core.ReturnPayload{Values: tt.wantValues}, ret[0].Payload)

			lines := strings.Split(tt.src, "\n")
			assert.Contains(t, strings.Join(lines[ret[0].Range.Start-1:ret[0].Range.End], "\n"), ret[0].Content)
		})
	}

	tree := newExtractor(t, "python").Extract("def noop(x):\n    print(x)\n")
	require.Len(t, tree.Roots(), 1)
	assert.Empty(t, childrenOfKind(tree, tree.Roots()[0].ID, core.KindReturnValue))
}

func TestExtract_MethodOutsideClassIsKindedByBinder(t *testing.T) {
	src := "def helper(self, x):\n    return x\n\ndef plain(x):\n    return x\n"
	tree := newExtractor(t, "python").Extract(src)
	assert.Equal(t, []shape{
		{core.KindMethod, "helper"},
		{core.KindFunction, "plain"},
	}, shapes(tree.Roots()))
}

func TestExtract_TypeScript(t *testing.T) {
	src := `import { a } from "./a";
import b from "./b";

export class Service extends Base {
  static instances = 0;
  name: string = "svc";

  constructor(id: number) {
    super();
    this.count = 0;
  }

  get label(): string {
    return this.name;
  }

  set label(v: string) {
    this.name = v;
  }

  async run(input: string): Promise<void> {
    await go(input);
  }
}

export function helper(x: number): number {
  return x * 2;
}

export const arrow = (y: number) => y + 1;

interface Shape {
  area(): number;
}

type Id = string;

enum Color {
  Red,
  Green,
}
`
	tree := newExtractor(t, "typescript").Extract(src)
	assert.Equal(t, []shape{
		{core.KindImport, ""},
		{core.KindClass, "Service"},
		{core.KindFunction, "helper"},
		{core.KindFunction, "arrow"},
		{core.KindInterface, "Shape"},
		{core.KindTypeAlias, "Id"},
		{core.KindEnum, "Color"},
	}, shapes(tree.Roots()))

	roots := tree.Roots()
	assert.Equal(t, core.Range{Start: 1, End: 2}, roots[0].Range)
	assert.Equal(t, core.Range{Start: 4, End: 24}, roots[1].Range)
	assert.Equal(t, core.Range{Start: 26, End: 28}, roots[2].Range)
	assert.Equal(t, core.Range{Start: 30, End: 30}, roots[3].Range)

	svc := roots[1]
	assert.Equal(t, core.ClassPayload{Bases: []string{"Base"}}, svc.Payload)

	members := childrenOfKind(tree, svc.ID, memberKinds...)
	assert.Equal(t, []shape{
		{core.KindStaticProperty, "instances"},
		{core.KindProperty, "name"},
		{core.KindMethod, "constructor"},
		{core.KindProperty, "count"},
		{core.KindPropertyGetter, "label"},
		{core.KindPropertySetter, "label"},
		{core.KindMethod, "run"},
	}, shapes(members))

	assert.Equal(t, core.PropertyPayload{Value: "0"}, members[0].Payload)
	assert.Equal(t, core.PropertyPayload{Type: "string", Value: `"svc"`}, members[1].Payload)

	run := members[6]
	assert.True(t, run.Payload.(core.CallablePayload).Async)
	ret := childrenOfKind(tree, run.ID, core.KindReturnValue)
	require.Len(t, ret, 1)
	assert.Equal(t, "Promise<void>", ret[0].Payload.(core.ReturnPayload).Type)

	helper := roots[2]
	params := childrenOfKind(tree, helper.ID, core.KindParameter)
	require.Len(t, params, 1)
	assert.Equal(t, "x", params[0].Name)
	assert.Equal(t, "number", params[0].Payload.(core.ParameterPayload).Type)
}

func TestExtract_JavaScriptClass(t *testing.T) {
	src := `class Counter {
  count = 0;
  static total = 0;

  increment() {
    this.count++;
  }
}

function make() {
  return new Counter();
}
`
	tree := newExtractor(t, "javascript").Extract(src)
	assert.Equal(t, []shape{
		{core.KindClass, "Counter"},
		{core.KindFunction, "make"},
	}, shapes(tree.Roots()))

	assert.Equal(t, []shape{
		{core.KindProperty, "count"},
		{core.KindStaticProperty, "total"},
		{core.KindMethod, "increment"},
	}, shapes(childrenOfKind(tree, tree.Roots()[0].ID, memberKinds...)))
}

func TestExtractKind(t *testing.T) {
	ex := newExtractor(t, "python")
	src := "import os\n\nclass A:\n    def m(self):\n        pass\n\ndef f():\n    pass\n"

	classes := ex.ExtractKind(src, core.KindClass)
	assert.Equal(t, []shape{{core.KindClass, "A"}}, shapes(classes.Roots()))
	assert.Len(t, classes.Children(classes.Roots()[0].ID), 1)

	funcs := ex.ExtractKind(src, core.KindFunction)
	assert.Equal(t, []shape{{core.KindFunction, "f"}}, shapes(funcs.Roots()))

	assert.Zero(t, ex.ExtractKind(src, core.KindMethod).Len())
}

func TestExtractMembers(t *testing.T) {
	ex := newExtractor(t, "python")
	src := "class A:\n    def m(self):\n        pass\n\nclass B:\n    def n(self):\n        pass\n"

	tree := ex.ExtractMembers(src, core.KindClass, "B")
	require.Len(t, tree.Roots(), 1)
	assert.Equal(t, "B", tree.Roots()[0].Name)
	assert.Equal(t, []shape{{core.KindMethod, "n"}}, shapes(tree.Children(tree.Roots()[0].ID)))

	assert.Zero(t, ex.ExtractMembers(src, core.KindClass, "Missing").Len())
}

func TestExtract_MalformedSourceDoesNotPanic(t *testing.T) {
	ex := newExtractor(t, "python")
	assert.NotPanics(t, func() {
		ex.Extract("class Broken(:\n  def\n)))\n")
	})
	assert.NotPanics(t, func() {
		newExtractor(t, "typescript").Extract("export class { get set ( {{{")
	})
	assert.Zero(t, ex.Extract("").Len())
}

// A structural query that never matches must be transparent: the fallback
// pattern finds the same elements.
func TestExtract_FallsBackWhenQueryFindsNothing(t *testing.T) {
	lang := python.Language()
	lang.Overrides[core.KindClass] = catalog.Template{
		Query:    `((class_definition name: (identifier) @name) @element (#eq? @name "__never__"))`,
		Fallback: `(?m)^(?P<indent>[ \t]*){prefix}class[ \t]+(?P<name>{identifier})`,
	}
	lang.Overrides[core.KindFunction] = catalog.Template{
		Query:    `((function_definition name: (identifier) @name) @element (#eq? @name "__never__"))`,
		Fallback: `(?m)^(?P<indent>[ \t]*){prefix}(?P<name>{identifier})[ \t]*{suffix}`,
	}
	registry := providers.NewRegistry(nil)
	require.NoError(t, registry.Register(lang, python.New()))
	require.NoError(t, registry.Errors())

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ex, err := extractor.New(registry, "python", extractor.WithLogger(logger))
	require.NoError(t, err)

	src := "class Foo:\n    def bar(self):\n        return 1\n\ndef top(x):\n    return x\n"
	tree := ex.Extract(src)

	assert.Equal(t, []shape{
		{core.KindClass, "Foo"},
		{core.KindFunction, "top"},
	}, shapes(tree.Roots()))
	foo := tree.Roots()[0]
	assert.Equal(t, core.Range{Start: 1, End: 3}, foo.Range)
	assert.Equal(t, core.Range{Start: 5, End: 6}, tree.Roots()[1].Range)

	members := tree.Children(foo.ID)
	require.Len(t, members, 1)
	assert.Equal(t, shape{core.KindMethod, "bar"}, shape{members[0].Kind, members[0].Name})
	assert.Equal(t, core.Range{Start: 2, End: 3}, members[0].Range)

	assert.Contains(t, logs.String(), "extractor.fallback")
}
