package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/noterefs/internal/loop"
	"github.com/starford/noterefs/internal/references"
	"github.com/starford/noterefs/internal/testutil"
	"github.com/starford/noterefs/internal/workspace"
)

const header = "---\ntitle: A\n---\n"

func testServer(t *testing.T) *Server {
	t.Helper()

	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)

	l := loop.New(0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = l.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	ws, err := workspace.New(workspace.Options{
		Loop:       l,
		Store:      store,
		Index:      db,
		References: references.DefaultConfig(),
	})
	if err != nil {
		t.Fatal(err)
	}

	testutil.WriteNote(t, store, db, "a.md", header+"links to [[b]] and [[c]]\n")
	testutil.WriteNote(t, store, db, "b.md", "back to [[a]]\n")
	testutil.WriteNote(t, store, db, "notes/d.md", "[[a]]\n")

	return New(store, ws)
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "get_references":
		result, err = srv.getReferences(ctx, req)
	case "render_references":
		result, err = srv.renderReferences(ctx, req)
	case "get_backlinks":
		result, err = srv.getBacklinks(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "get_region_format":
		result, err = srv.getRegionFormat(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestGetReferences(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "get_references", map[string]interface{}{"path": "a.md"})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	var snap references.Snapshot
	if err := json.Unmarshal([]byte(resultText(r)), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.Links.Entries) != 2 {
		t.Errorf("links = %+v, want b.md and c.md", snap.Links.Entries)
	}
	if len(snap.Backlinks.Entries) != 2 {
		t.Errorf("backlinks = %+v, want b.md and notes/d.md", snap.Backlinks.Entries)
	}
}

func TestRenderReferences(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "render_references", map[string]interface{}{"path": "a.md"})
	want := header +
		"2 links:\n  b.md\n  c.md\n" +
		"2 backlinks:\n  b.md\n  notes/d.md\n" +
		"\nlinks to [[b]] and [[c]]\n"
	if got := resultText(r); got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
}

func TestGetBacklinks(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "get_backlinks", map[string]interface{}{"path": "a.md"})
	if text := resultText(r); text != "b.md\nnotes/d.md" {
		t.Errorf("backlinks = %q", text)
	}

	r = callTool(t, srv, "get_backlinks", map[string]interface{}{"path": "notes/d.md"})
	if text := resultText(r); text != "no backlinks found" {
		t.Errorf("backlinks = %q", text)
	}
}

func TestMissingNote(t *testing.T) {
	srv := testServer(t)
	for _, tool := range []string{"get_references", "render_references", "get_backlinks"} {
		r := callTool(t, srv, tool, map[string]interface{}{"path": "nope.md"})
		if !r.IsError {
			t.Errorf("%s: expected error for missing note", tool)
		}
		if !strings.Contains(resultText(r), "not found") {
			t.Errorf("%s: error = %q", tool, resultText(r))
		}
	}

	r := callTool(t, srv, "get_references", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing path argument")
	}
}

func TestListNotes(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "list_notes", map[string]interface{}{"folder": "notes"})
	if text := resultText(r); text != "notes/d.md" {
		t.Errorf("list = %q", text)
	}
}

func TestRegionFormat(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "get_region_format", nil)
	if !strings.Contains(resultText(r), "read-only") {
		t.Error("region format should describe the read-only summary")
	}

	contents, err := srv.readRegionFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != regionFormatURI || tc.Text != RegionFormat {
		t.Errorf("resource = %+v", contents[0])
	}
}
