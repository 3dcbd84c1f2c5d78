// Package mcp exposes a workspace to MCP clients over stdio.
package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jacekjursza/codehem/internal/workspace"
)

// maxArgLen bounds every string argument a client may send.
const maxArgLen = 1 << 20

// Server serves the element tools of one workspace.
type Server struct {
	ws     *workspace.Workspace
	logger *slog.Logger
	mcp    *server.MCPServer
}

// NewServer creates a server over ws and registers every tool.
func NewServer(ws *workspace.Workspace, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		ws:     ws,
		logger: logger,
		mcp:    server.NewMCPServer("codehem", version),
	}
	s.register()
	return s
}

// Serve reads requests from in and writes responses to out until ctx ends
// or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("mcp.serve", "root", s.ws.Root(), "files", len(s.ws.Files()))
	if err := server.NewStdioServer(s.mcp).Listen(ctx, in, out); err != nil {
		return fmt.Errorf("serving MCP: %w", err)
	}
	return nil
}

func (s *Server) register() {
	s.mcp.AddTool(mcpgo.NewTool("extract",
		mcpgo.WithDescription("Lists the elements of a file with their canonical paths and line ranges."),
		mcpgo.WithString("file", mcpgo.Required(), mcpgo.Description("File path relative to the workspace root")),
		mcpgo.WithString("kind", mcpgo.Description("Only list elements of this kind (class, method, function, ...)")),
	), s.withLogging("extract", withLengthCheck(s.extractHandler)))

	s.mcp.AddTool(mcpgo.NewTool("locate",
		mcpgo.WithDescription("Returns the 1-indexed inclusive line range a path expression addresses."),
		mcpgo.WithString("file", mcpgo.Required(), mcpgo.Description("File path relative to the workspace root")),
		mcpgo.WithString("path", mcpgo.Required(), mcpgo.Description(`Path expression such as "Foo.bar" or "Foo[class].bar[method]"`)),
	), s.withLogging("locate", withLengthCheck(s.locateHandler)))

	s.mcp.AddTool(mcpgo.NewTool("fingerprint",
		mcpgo.WithDescription("Returns the SHA-256 fingerprint of an element. Pass it as expect to patch."),
		mcpgo.WithString("file", mcpgo.Required(), mcpgo.Description("File path relative to the workspace root")),
		mcpgo.WithString("path", mcpgo.Required(), mcpgo.Description("Path expression of the element")),
	), s.withLogging("fingerprint", withLengthCheck(s.fingerprintHandler)))

	s.mcp.AddTool(mcpgo.NewTool("patch",
		mcpgo.WithDescription("Replaces an element or appends to its body, guarded by its fingerprint."),
		mcpgo.WithString("file", mcpgo.Required(), mcpgo.Description("File path relative to the workspace root")),
		mcpgo.WithString("path", mcpgo.Required(), mcpgo.Description("Path expression of the element, or FILE")),
		mcpgo.WithString("text", mcpgo.Required(), mcpgo.Description("New element text, or the text to append")),
		mcpgo.WithString("mode", mcpgo.Enum("replace", "append"), mcpgo.Description(`Patch mode (default "replace")`)),
		mcpgo.WithString("expect", mcpgo.Description("Fingerprint the element must currently have")),
	), s.withLogging("patch", withLengthCheck(s.patchHandler)))

	s.mcp.AddTool(mcpgo.NewTool("find",
		mcpgo.WithDescription("Finds where an element is declared in the workspace, in walk order."),
		mcpgo.WithString("name", mcpgo.Required(), mcpgo.Description("Element name (exact match)")),
		mcpgo.WithString("kind", mcpgo.Required(), mcpgo.Description("Element kind, e.g. function or class")),
		mcpgo.WithBoolean("all", mcpgo.Description("Return every match instead of the first (default: false)")),
	), s.withLogging("find", withLengthCheck(s.findHandler)))
}

func (s *Server) withLogging(tool string, next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		res, err := next(ctx, req)
		if err != nil {
			s.logger.Debug("mcp.tool_failed", "tool", tool, "error", err)
		}
		return res, err
	}
}

// withLengthCheck rejects requests with an oversized string argument.
func withLengthCheck(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		for name, v := range req.GetArguments() {
			if str, ok := v.(string); ok && len(str) > maxArgLen {
				return nil, fmt.Errorf("argument %q exceeds maximum length of %d bytes", name, maxArgLen)
			}
		}
		return next(ctx, req)
	}
}
