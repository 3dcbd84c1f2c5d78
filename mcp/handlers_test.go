package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacekjursza/codehem/core"
	"github.com/jacekjursza/codehem/internal/patch"
	"github.com/jacekjursza/codehem/internal/workspace"
	"github.com/jacekjursza/codehem/providers/builtin"
)

const calcSource = "def calculate(x):\n    return x * 2\n"

func newTestServer(t *testing.T, files map[string]string) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry, err := builtin.NewRegistry(logger)
	require.NoError(t, err)
	ws, err := workspace.Open(context.Background(), root, registry, workspace.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return NewServer(ws, logger, "test"), root
}

func callTool(args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{Params: mcpgo.CallToolParams{Arguments: args}}
}

func decode(t *testing.T, resp *mcpgo.CallToolResult, v any) {
	t.Helper()
	require.NotNil(t, resp)
	require.Len(t, resp.Content, 1)
	text, ok := resp.Content[0].(mcpgo.TextContent)
	require.True(t, ok, "expected text content")
	require.NoError(t, json.Unmarshal([]byte(text.Text), v))
}

func TestWithLengthCheck(t *testing.T) {
	handler := withLengthCheck(func(_ context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		return mcpgo.NewToolResultText("ok"), nil
	})

	tests := []struct {
		name        string
		args        map[string]any
		expectedErr bool
	}{
		{"short string passes through", map[string]any{"text": "def f(): pass"}, false},
		{"string at exact limit passes through", map[string]any{"text": strings.Repeat("x", maxArgLen)}, false},
		{"string one byte over limit is rejected", map[string]any{"text": strings.Repeat("x", maxArgLen+1)}, true},
		{"non-string argument is allowed", map[string]any{"all": true}, false},
		{"nil arguments passes through", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := handler(context.Background(), callTool(tt.args))
			if tt.expectedErr {
				require.Error(t, err)
				assert.ErrorContains(t, err, "exceeds maximum length")
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestExtractHandler(t *testing.T) {
	s, _ := newTestServer(t, map[string]string{"calc.py": calcSource})

	resp, err := s.extractHandler(context.Background(), callTool(map[string]any{"file": "calc.py"}))
	require.NoError(t, err)
	var all []Element
	decode(t, resp, &all)
	require.NotEmpty(t, all)
	assert.Equal(t, "FILE.calculate[function]", all[0].Path)
	assert.Equal(t, core.Range{Start: 1, End: 2}, all[0].Range)

	resp, err = s.extractHandler(context.Background(), callTool(map[string]any{"file": "calc.py", "kind": "parameter"}))
	require.NoError(t, err)
	var params []Element
	decode(t, resp, &params)
	require.Len(t, params, 1)
	assert.Equal(t, "x", params[0].Name)
	assert.Equal(t, core.KindParameter, params[0].Kind)

	_, err = s.extractHandler(context.Background(), callTool(map[string]any{"file": "calc.py", "kind": "widget"}))
	assert.ErrorContains(t, err, "unknown kind")

	_, err = s.extractHandler(context.Background(), callTool(map[string]any{}))
	assert.Error(t, err)
}

func TestLocateHandler(t *testing.T) {
	s, _ := newTestServer(t, map[string]string{"calc.py": calcSource})

	resp, err := s.locateHandler(context.Background(), callTool(map[string]any{"file": "calc.py", "path": "calculate"}))
	require.NoError(t, err)
	var rng core.Range
	decode(t, resp, &rng)
	assert.Equal(t, core.Range{Start: 1, End: 2}, rng)

	_, err = s.locateHandler(context.Background(), callTool(map[string]any{"file": "calc.py", "path": "missing"}))
	var nf *core.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestPatchHandler_GuardedReplace(t *testing.T) {
	s, root := newTestServer(t, map[string]string{"calc.py": calcSource})
	ctx := context.Background()

	resp, err := s.fingerprintHandler(ctx, callTool(map[string]any{"file": "calc.py", "path": "calculate"}))
	require.NoError(t, err)
	var fp struct {
		Fingerprint string `json:"fingerprint"`
	}
	decode(t, resp, &fp)
	assert.Equal(t, patch.Fingerprint(strings.TrimSuffix(calcSource, "\n")), fp.Fingerprint)

	replacement := "def calculate(x):\n    return x * 3\n"
	resp, err = s.patchHandler(ctx, callTool(map[string]any{
		"file":   "calc.py",
		"path":   "calculate",
		"text":   replacement,
		"expect": fp.Fingerprint,
	}))
	require.NoError(t, err)
	var res patch.Result
	decode(t, resp, &res)
	assert.Equal(t, "ok", res.Status)
	assert.Empty(t, res.Code)
	assert.Equal(t, fp.Fingerprint, res.Before)

	data, err := os.ReadFile(filepath.Join(root, "calc.py"))
	require.NoError(t, err)
	assert.Equal(t, replacement, string(data))

	// The old fingerprint is now stale.
	_, err = s.patchHandler(ctx, callTool(map[string]any{
		"file":   "calc.py",
		"path":   "calculate",
		"text":   calcSource,
		"expect": fp.Fingerprint,
	}))
	assert.ErrorIs(t, err, core.ErrConflict)

	_, err = s.patchHandler(ctx, callTool(map[string]any{
		"file": "calc.py",
		"path": "calculate",
		"text": calcSource,
		"mode": "prepend",
	}))
	assert.ErrorContains(t, err, "unknown patch mode")
}

func TestFindHandler(t *testing.T) {
	s, _ := newTestServer(t, map[string]string{
		"a/calc.py": calcSource,
		"b/calc.py": calcSource,
	})
	ctx := context.Background()

	resp, err := s.findHandler(ctx, callTool(map[string]any{"name": "calculate", "kind": "function"}))
	require.NoError(t, err)
	var first []workspace.Location
	decode(t, resp, &first)
	require.Len(t, first, 1)
	assert.Equal(t, "a/calc.py", first[0].File)

	resp, err = s.findHandler(ctx, callTool(map[string]any{"name": "calculate", "kind": "function", "all": true}))
	require.NoError(t, err)
	var all []workspace.Location
	decode(t, resp, &all)
	assert.Len(t, all, 2)

	_, err = s.findHandler(ctx, callTool(map[string]any{"name": "nothing", "kind": "class"}))
	var nf *core.NotFoundError
	assert.ErrorAs(t, err, &nf)
}
