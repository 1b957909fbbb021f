// Package mcpserver exposes page trees to agents over the Model Context
// Protocol. Every tool goes through an editor.Service, so edits made by an
// agent follow the same session rules as the CLI and the terminal UI.
package mcpserver

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	gojson "github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agentic-research/blocktree/internal/editor"
	"github.com/agentic-research/blocktree/internal/filter"
	"github.com/agentic-research/blocktree/internal/query"
	"github.com/agentic-research/blocktree/internal/tree"
	"github.com/agentic-research/blocktree/internal/writeback"
)

// Server wraps an MCP server bound to one editor.Service.
type Server struct {
	svc *editor.Service
	mcp *server.MCPServer
	log *slog.Logger
}

// New registers the tree tools.
func New(svc *editor.Service, version string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		svc: svc,
		mcp: server.NewMCPServer("blocktree", version, server.WithToolCapabilities(false)),
		log: log,
	}
	s.registerTools()
	return s
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// Serve speaks MCP over the given streams until ctx is done or in closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

func (s *Server) registerTools() {
	pageID := mcp.WithString("page_id", mcp.Required(), mcp.Description("Page id"))
	nodeID := mcp.WithString("node_id", mcp.Required(), mcp.Description("Node id"))

	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List loaded pages with status and node counts"),
		mcp.WithString("search", mcp.Description("Fuzzy match on title and URL")),
		mcp.WithBoolean("all", mcp.Description("Ignore the URL allow-list")),
	), s.listPages)

	s.mcp.AddTool(mcp.NewTool("get_tree",
		mcp.WithDescription("Return a page's block forest as JSON"),
		pageID,
		mcp.WithString("exclude", mcp.Description("Hide nodes with this component name")),
	), s.getTree)

	s.mcp.AddTool(mcp.NewTool("get_node",
		mcp.WithDescription("Return one node as JSON"),
		pageID, nodeID,
	), s.getNode)

	s.mcp.AddTool(mcp.NewTool("query",
		mcp.WithDescription("Evaluate a JSONPath expression against a page forest"),
		pageID,
		mcp.WithString("path", mcp.Required(), mcp.Description("JSONPath, e.g. $..[?(@.component.name == 'Text')]")),
	), s.query)

	s.mcp.AddTool(mcp.NewTool("edit_node",
		mcp.WithDescription("Replace a node with new JSON. The id must stay the same."),
		pageID, nodeID,
		mcp.WithString("json", mcp.Required(), mcp.Description("The full replacement node")),
	), s.editNode)

	s.mcp.AddTool(mcp.NewTool("delete_node",
		mcp.WithDescription("Delete every node with the given id"),
		pageID, nodeID,
	), s.deleteNode)

	s.mcp.AddTool(mcp.NewTool("save_page",
		mcp.WithDescription("Write a page's edited forest back to the content API"),
		pageID,
	), s.savePage)

	s.mcp.AddTool(mcp.NewTool("lint_page",
		mcp.WithDescription("Check a page's custom JavaScript for syntax errors"),
		pageID,
	), s.lintPage)

	s.mcp.AddTool(mcp.NewTool("components",
		mcp.WithDescription("Component usage across loaded pages"),
	), s.components)
}

func (s *Server) listPages(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions := editor.Search(s.svc.Pages(req.GetBool("all", false)), req.GetString("search", ""))
	out := make([]editor.PageSummary, len(sessions))
	for i, sess := range sessions {
		out[i] = editor.Describe(sess)
	}
	return jsonResult(out)
}

func (s *Server) getTree(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("page_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess, err := s.svc.Session(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f := sess.Forest()
	if term := req.GetString("exclude", ""); term != "" {
		f = filter.ExcludeComponent(f, term)
	}
	return jsonResult(f)
}

func (s *Server) lintPage(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("page_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess, err := s.svc.Session(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := writeback.ValidateScript(sess.Page()); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("ok"), nil
}

func (s *Server) getNode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid, nid, errRes := pageAndNode(req)
	if errRes != nil {
		return errRes, nil
	}
	sess, err := s.svc.Session(pid)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, ok := sess.Find(nid)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("node %s not found on page %s", nid, pid)), nil
	}
	return mcp.NewToolResultText(n.Pretty()), nil
}

func (s *Server) query(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid, err := req.RequireString("page_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	expr, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess, err := s.svc.Session(pid)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	matches, err := query.Select(sess.Forest(), expr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	values := make([]any, len(matches))
	for i, m := range matches {
		values[i] = m.Value
	}
	return jsonResult(values)
}

func (s *Server) editNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid, nid, errRes := pageAndNode(req)
	if errRes != nil {
		return errRes, nil
	}
	raw, err := req.RequireString("json")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.EditNode(ctx, pid, nid, []byte(raw)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.log.Info("node edited via mcp", "page_id", pid, "node_id", nid)
	return mcp.NewToolResultText(fmt.Sprintf("updated %s on %s", nid, pid)), nil
}

func (s *Server) deleteNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid, nid, errRes := pageAndNode(req)
	if errRes != nil {
		return errRes, nil
	}
	sess, err := s.svc.Session(pid)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	before := tree.Count(sess.Forest())
	if err := s.svc.DeleteNode(ctx, pid, nid); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	removed := before - tree.Count(sess.Forest())
	return mcp.NewToolResultText(fmt.Sprintf("removed %d node(s)", removed)), nil
}

func (s *Server) savePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid, err := req.RequireString("page_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.Save(ctx, pid); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("saved " + pid), nil
}

func (s *Server) components(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Components().Components())
}

func pageAndNode(req mcp.CallToolRequest) (string, string, *mcp.CallToolResult) {
	pid, err := req.RequireString("page_id")
	if err != nil {
		return "", "", mcp.NewToolResultError(err.Error())
	}
	nid, err := req.RequireString("node_id")
	if err != nil {
		return "", "", mcp.NewToolResultError(err.Error())
	}
	return pid, nid, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := gojson.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
