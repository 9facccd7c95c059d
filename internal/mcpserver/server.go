// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes mksearch tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/akimixu/mksearch/internal/apperr"
	"github.com/akimixu/mksearch/internal/report"
	"github.com/akimixu/mksearch/internal/searchservice"
	"github.com/akimixu/mksearch/internal/storage"
)

// DefaultMaxResults bounds search_files when the caller gives no limit.
const DefaultMaxResults = 100

const syntaxURI = "mksearch://query-syntax"

// Server wraps the MCP server with mksearch tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *searchservice.Service
	store storage.Provider
}

// New creates a new MCP server with all mksearch tools registered.
func New(svc *searchservice.Service, store storage.Provider, version string) *Server {
	s := &Server{svc: svc, store: store}

	s.mcp = server.NewMCPServer(
		"mksearch",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_files",
		mcp.WithDescription("Find workspace files that contain ALL of the given keywords. "+
			"Returns every matching file with line/character positions per keyword. "+
			"See the "+syntaxURI+" resource for the argument syntax."),
		mcp.WithString("keywords", mcp.Required(), mcp.Description("Comma-separated keywords; all must occur")),
		mcp.WithString("include", mcp.Description("Include glob, default **/*")),
		mcp.WithString("exclude", mcp.Description("Comma-separated folder names to skip, e.g. node_modules,dist")),
		mcp.WithBoolean("case_sensitive", mcp.Description("Match case exactly")),
		mcp.WithBoolean("whole_word", mcp.Description("Only match whole words")),
		mcp.WithNumber("max_results", mcp.Description("Stop after this many files (default 100)")),
	), s.searchFiles)

	s.mcp.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read a workspace file, or one line of it when line is given."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the workspace root")),
		mcp.WithNumber("line", mcp.Description("Optional 1-based line to return with its location")),
	), s.readFile)

	s.mcp.AddTool(mcp.NewTool("search_history",
		mcp.WithDescription("List recent distinct searches, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum entries (default 20)")),
	), s.searchHistory)

	s.mcp.AddResource(
		mcp.NewResource(syntaxURI, "Query Syntax",
			mcp.WithResourceDescription("How keywords, globs and flags are interpreted."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSyntaxResource,
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

func (s *Server) searchFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keywords, err := req.RequireString("keywords")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sreq := searchservice.Request{
		Keywords:       keywords,
		IncludePattern: req.GetString("include", ""),
		ExcludePattern: req.GetString("exclude", ""),
		CaseSensitive:  req.GetBool("case_sensitive", false),
		WholeWord:      req.GetBool("whole_word", false),
		MaxResults:     req.GetInt("max_results", DefaultMaxResults),
	}
	res, err := s.svc.Quick(ctx, sreq)
	switch {
	case errors.Is(err, apperr.ErrNoCandidates):
		return mcp.NewToolResultText("no files matched the include/exclude patterns"), nil
	case err != nil:
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts, _ := sreq.Options()
	var b strings.Builder
	b.WriteString(report.Summary(opts.Keywords, res.Results, res.Summary))
	if len(res.Results) > 0 {
		out, _ := json.MarshalIndent(res.Results, "", "  ")
		b.WriteString("\n")
		b.Write(out)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) readFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if line := req.GetInt("line", 0); line > 0 {
		loc, err := s.svc.Open(searchservice.OpenRequest{FilePath: path, Line: &line})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out, _ := json.MarshalIndent(loc, "", "  ")
		return mcp.NewToolResultText(string(out)), nil
	}
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, apperr.ErrOutsideWorkspace) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) searchHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.svc.History(req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("no searches recorded"), nil
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf("%s  [%s]  %d/%d files  %s",
			strings.Join(e.Keywords, ", "), e.Outcome, e.Found, e.Total, e.StartedAt.Format("2006-01-02 15:04"))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readSyntaxResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      syntaxURI,
			MIMEType: "text/markdown",
			Text:     QuerySyntax,
		},
	}, nil
}
