// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Wisp tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dverna/wisp/internal/linktree"
	"github.com/dverna/wisp/internal/noteservice"
)

// Server wraps the MCP server with Wisp tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all Wisp tools registered.
func New(svc *noteservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Wisp",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through notes content and titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a note."),
		mcp.WithString("identity", mcp.Required(), mcp.Description("Note identity (vault-relative path without .md, e.g. topics/go)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note under the given identity. "+
			"Content MUST follow the canonical note format (optional YAML frontmatter "+
			"with title, Markdown body with [[wikilinks]]). Read the contract first via "+
			"the get_note_contract tool or the wisp://note-format resource."),
		mcp.WithString("identity", mcp.Required(), mcp.Description("Identity for the new note (no .md extension)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content following the Wisp note format contract")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the canonical Wisp note format contract. "+
			"Call this before creating or updating notes to ensure correct structure."),
	), s.getNoteContract)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all note identities, optionally under a folder prefix."),
		mcp.WithString("folder", mcp.Description("Optional folder prefix (empty for all)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("note_links",
		mcp.WithDescription("A note's outgoing links, backlinks, and whether it is a stub "+
			"(a link target with no note behind it)."),
		mcp.WithString("identity", mcp.Required(), mcp.Description("Identity of the note to inspect")),
	), s.noteLinks)

	s.mcp.AddTool(mcp.NewTool("resolve_link",
		mcp.WithDescription("Follow a link target: if the target is a stub, create a "+
			"skeleton note for it; otherwise report the existing note."),
		mcp.WithString("identity", mcp.Required(), mcp.Description("Link target identity to resolve")),
	), s.resolveLink)

	s.mcp.AddTool(mcp.NewTool("graph_snapshot",
		mcp.WithDescription("The current link graph projected onto the character grid: "+
			"node cells, weight glyphs, edges, and simulation state, as JSON."),
	), s.graphSnapshot)

	s.mcp.AddTool(mcp.NewTool("link_tree",
		mcp.WithDescription("The link hierarchy as an indented forest. Each note appears "+
			"once; repeat references are marked as back-references."),
		mcp.WithString("sort", mcp.Description("Sibling order: alpha (default) or links")),
	), s.linkTree)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource("wisp://note-format", "Note Format Contract",
			mcp.WithResourceDescription("Canonical Markdown note format that all notes must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
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

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	identity, err := req.RequireString("identity")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, identity)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", identity)), nil
	}
	return mcp.NewToolResultText(note.Content), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	identity, err := req.RequireString("identity")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.CreateNote(ctx, identity, []byte(content)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", identity)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := ""
	if f, err := req.RequireString("folder"); err == nil {
		folder = f
	}

	rows, _, err := s.svc.ListNotes(ctx, 0, 0, "identity")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var identities []string
	for _, r := range rows {
		if folder != "" && !strings.HasPrefix(r.Identity, folder+"/") {
			continue
		}
		identities = append(identities, r.Identity)
	}
	return mcp.NewToolResultText(strings.Join(identities, "\n")), nil
}

func (s *Server) noteLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	identity, err := req.RequireString("identity")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sum, err := s.svc.NoteLinks(ctx, identity)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(sum, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) resolveLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	identity, err := req.RequireString("identity")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Resolve(ctx, identity)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) graphSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := s.svc.Engine().Snapshot()
	out, _ := json.MarshalIndent(snap, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) linkTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sortParam := ""
	if v, err := req.RequireString("sort"); err == nil {
		sortParam = v
	}
	mode, err := linktree.ParseSortMode(sortParam)
	if err != nil {
		return mcp.NewToolResultError("sort must be alpha or links"), nil
	}
	rows := s.svc.Engine().TreeSnapshot(mode)
	if len(rows) == 0 {
		return mcp.NewToolResultText("no notes"), nil
	}
	return mcp.NewToolResultText(linktree.Render(rows)), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "wisp://note-format",
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
