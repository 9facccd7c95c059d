package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/akimixu/mksearch/internal/events"
	"github.com/akimixu/mksearch/internal/searchservice"
	"github.com/akimixu/mksearch/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	_, store := testutil.TestWorkspace(t, map[string]string{
		"src/app.go":          "package app\n\n// alpha talks to beta\nfunc Alpha() {}\n",
		"src/only_alpha.go":   "package app\n\nvar alpha = 1\n",
		"docs/notes.md":       "Beta first, then alpha.\n",
		"node_modules/x/x.js": "alpha beta",
	})
	db := testutil.TestDB(t)

	svc, err := searchservice.New(store, events.Discard, searchservice.WithHistory(db))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(svc.Close)

	return New(svc, store, "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_files":
		result, err = srv.searchFiles(ctx, req)
	case "read_file":
		result, err = srv.readFile(ctx, req)
	case "search_history":
		result, err = srv.searchHistory(ctx, req)
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

func TestSearchFiles(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "search_files", map[string]interface{}{
		"keywords": "alpha, beta",
		"exclude":  "node_modules",
	})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.HasPrefix(text, "2 of 3 files contain all keywords") {
		t.Errorf("summary = %q", text)
	}
	for _, want := range []string{"src/app.go", "docs/notes.md", `"matchedKeywords"`} {
		if !strings.Contains(text, want) {
			t.Errorf("result missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "only_alpha.go") {
		t.Error("file with one keyword should not match")
	}
}

func TestSearchFilesMissingKeywords(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "search_files", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error without keywords")
	}
}

func TestSearchFilesNoCandidates(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "search_files", map[string]interface{}{
		"keywords": "alpha",
		"include":  "**/*.rs",
	})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	if text := resultText(r); !strings.Contains(text, "no files matched") {
		t.Errorf("result = %q", text)
	}
}

func TestReadFile(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "read_file", map[string]interface{}{"path": "docs/notes.md"})
	if text := resultText(r); text != "Beta first, then alpha.\n" {
		t.Errorf("read result = %q", text)
	}

	r = callTool(t, srv, "read_file", map[string]interface{}{"path": "src/app.go", "line": 3})
	if text := resultText(r); !strings.Contains(text, `"text": "// alpha talks to beta"`) {
		t.Errorf("line result = %q", text)
	}
}

func TestReadFileMissing(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "read_file", map[string]interface{}{"path": "nope.txt"})
	if !r.IsError {
		t.Error("expected error for missing file")
	}
	r = callTool(t, srv, "read_file", map[string]interface{}{"path": "../escape.txt"})
	if !r.IsError {
		t.Error("expected error for path outside workspace")
	}
}

func TestSearchHistory(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "search_history", map[string]interface{}{})
	if text := resultText(r); text != "no searches recorded" {
		t.Errorf("empty history = %q", text)
	}

	_ = callTool(t, srv, "search_files", map[string]interface{}{"keywords": "alpha,beta"})
	r = callTool(t, srv, "search_history", map[string]interface{}{"limit": 5})
	if text := resultText(r); !strings.HasPrefix(text, "alpha, beta  [completed]") {
		t.Errorf("history = %q", text)
	}
}

func TestQuerySyntaxResource(t *testing.T) {
	srv := testServer(t)
	contents, err := srv.readSyntaxResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("unexpected content type %T", contents[0])
	}
	if !strings.Contains(tc.Text, "logical AND") {
		t.Error("syntax text missing AND semantics")
	}
}
