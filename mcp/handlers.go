package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/jacekjursza/codehem/core"
	"github.com/jacekjursza/codehem/internal/address"
	"github.com/jacekjursza/codehem/internal/patch"
)

// Element is one entry of an extract response.
type Element struct {
	Path  string     `json:"path"`
	Kind  core.Kind  `json:"kind"`
	Name  string     `json:"name"`
	Range core.Range `json:"range"`
}

// jsonResult serialises v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcpgo.CallToolResult, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}
	return mcpgo.NewToolResultText(string(out)), nil
}

func parseKind(s string) (core.Kind, error) {
	k, ok := core.ParseKind(s)
	if !ok || k == core.KindUnknown {
		return core.KindUnknown, fmt.Errorf("unknown kind %q", s)
	}
	return k, nil
}

func (s *Server) extractHandler(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return nil, err
	}
	var filter core.Kind
	if kind := req.GetString("kind", ""); kind != "" {
		if filter, err = parseKind(kind); err != nil {
			return nil, err
		}
	}

	tree, err := s.ws.Extract(ctx, file)
	if err != nil {
		return nil, err
	}
	elements := []Element{}
	tree.Walk(func(el *core.Element) bool {
		if filter == core.KindUnknown || el.Kind == filter {
			elements = append(elements, Element{
				Path:  address.Canonical(tree, el.ID),
				Kind:  el.Kind,
				Name:  el.Name,
				Range: el.Range,
			})
		}
		return true
	})
	return jsonResult(elements)
}

func (s *Server) locateHandler(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return nil, err
	}
	path, err := req.RequireString("path")
	if err != nil {
		return nil, err
	}
	rng, err := s.ws.Locate(file, path)
	if err != nil {
		return nil, err
	}
	return jsonResult(rng)
}

func (s *Server) fingerprintHandler(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return nil, err
	}
	path, err := req.RequireString("path")
	if err != nil {
		return nil, err
	}
	fp, err := s.ws.Fingerprint(file, path)
	if err != nil {
		return nil, err
	}
	return jsonResult(map[string]string{"path": path, "fingerprint": fp})
}

func (s *Server) patchHandler(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return nil, err
	}
	path, err := req.RequireString("path")
	if err != nil {
		return nil, err
	}
	text, err := req.RequireString("text")
	if err != nil {
		return nil, err
	}
	mode, err := patch.ParseMode(req.GetString("mode", ""))
	if err != nil {
		return nil, err
	}

	res, err := s.ws.ApplyPatch(ctx, file, path, text, mode, req.GetString("expect", ""))
	if err != nil {
		return nil, err
	}
	// The client already has the file; the diff says what changed.
	out := *res
	out.Code = ""
	return jsonResult(out)
}

func (s *Server) findHandler(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return nil, err
	}
	kindArg, err := req.RequireString("kind")
	if err != nil {
		return nil, err
	}
	kind, err := parseKind(kindArg)
	if err != nil {
		return nil, err
	}

	locs := s.ws.FindAll(name, kind)
	if len(locs) == 0 {
		return nil, &core.NotFoundError{Path: fmt.Sprintf("%s[%s]", name, kind)}
	}
	if !req.GetBool("all", false) {
		locs = locs[:1]
	}
	return jsonResult(locs)
}
