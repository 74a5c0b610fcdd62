// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes note reference tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/noterefs/internal/apperr"
	"github.com/starford/noterefs/internal/models"
	"github.com/starford/noterefs/internal/storage"
	"github.com/starford/noterefs/internal/workspace"
)

const regionFormatURI = "noterefs://region-format"

// Server wraps the MCP server with the reference tools.
type Server struct {
	mcp   *server.MCPServer
	store storage.Provider
	ws    *workspace.Workspace
}

// New creates a new MCP server with all tools registered.
func New(store storage.Provider, ws *workspace.Workspace) *Server {
	s := &Server{store: store, ws: ws}

	s.mcp = server.NewMCPServer(
		"noterefs",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_references",
		mcp.WithDescription("List the outbound links and inbound backlinks of a note as JSON."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.getReferences)

	s.mcp.AddTool(mcp.NewTool("render_references",
		mcp.WithDescription("Return the note content with its references summary drawn after the header. "+
			"The layout is described by the get_region_format tool or the "+regionFormatURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note")),
	), s.renderReferences)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path of the note to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes or notes in a specific folder."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_region_format",
		mcp.WithDescription("Returns the layout of the references summary drawn into notes."),
	), s.getRegionFormat)

	s.mcp.AddResource(
		mcp.NewResource(regionFormatURI, "References Summary Format",
			mcp.WithResourceDescription("Layout of the read-only links and backlinks summary."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRegionFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func toolError(path string, err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) getReferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := s.ws.References(ctx, path)
	if err != nil {
		return toolError(path, err), nil
	}
	out, _ := json.MarshalIndent(snap, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) renderReferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, _, err := s.ws.Preview(ctx, path)
	if err != nil {
		return toolError(path, err), nil
	}
	return mcp.NewToolResultText(string(content)), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := s.ws.References(ctx, path)
	if err != nil {
		return toolError(path, err), nil
	}
	if len(snap.Backlinks.Entries) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(joinPaths(snap.Backlinks.Entries)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := ""
	if f, err := req.RequireString("folder"); err == nil {
		folder = f
	}

	metas, err := s.store.List(folder)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	paths := make([]string, 0, len(metas))
	for _, m := range metas {
		paths = append(paths, m.Path)
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) getRegionFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RegionFormat), nil
}

func (s *Server) readRegionFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      regionFormatURI,
			MIMEType: "text/markdown",
			Text:     RegionFormat,
		},
	}, nil
}

func joinPaths(refs []models.Reference) string {
	paths := make([]string, len(refs))
	for i, r := range refs {
		paths[i] = r.RelativePath
	}
	return strings.Join(paths, "\n")
}
