// Package mcp is the externally-addressable operation surface: it maps the
// five tool names onto the wiki session, applying title normalization,
// authorization checks and response shaping on the way.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/foomo/mediawiki-mcp/fault"
	"github.com/foomo/mediawiki-mcp/render"
	"github.com/foomo/mediawiki-mcp/wiki"
	"github.com/foomo/mediawiki-mcp/wiki/vo"
)

const (
	ServerName = "mcp-mediawiki"
	Version    = "0.2.0"

	instructions = "MediaWiki MCP server for searching and retrieving wiki content."
)

type GetPageRequest struct {
	Title  string `json:"title"`            // The page title
	Format string `json:"format,omitempty"` // "wikitext" (default) or "markdown"
}

type UpdatePageRequest struct {
	Title     string `json:"title"`               // The page title
	Content   string `json:"content"`             // The new page content
	Summary   string `json:"summary"`             // The edit summary, required
	Operation string `json:"operation,omitempty"` // "replace" (default) or "append"
	DryRun    bool   `json:"dryRun,omitempty"`    // Preview the edit without writing
}

type SearchPagesRequest struct {
	Query string `json:"query"` // The full-text search query
	Limit int    `json:"limit,omitempty"`
}

type GetPageHistoryRequest struct {
	Title string `json:"title"` // The page title
	Limit int    `json:"limit,omitempty"`
}

type ServerStatusRequest struct{}

// NewServer creates the MCP server with the five wiki tools registered. The
// writeToken, when non-empty, gates update_page for callers arriving over
// the network transport; stdio callers are implicitly trusted.
func NewServer(session wiki.Session, writeToken string) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		Version,
		server.WithToolCapabilities(false),
		server.WithInstructions(instructions),
	)

	getPageTool := mcp.NewTool("get_page",
		mcp.WithDescription("Get the full content and metadata of a wiki page by title"),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("The title of the page to read (case-insensitive)"),
		),
		mcp.WithString("format",
			mcp.Description("Content format: 'wikitext' (default) or 'markdown'"),
		),
	)
	s.AddTool(getPageTool, mcp.NewTypedToolHandler(getPageHandler(session)))

	updatePageTool := mcp.NewTool("update_page",
		mcp.WithDescription("Create or edit a wiki page. Each call produces a fresh revision."),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("The title of the page to create or edit"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The content to write"),
		),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("The edit summary describing the change"),
		),
		mcp.WithString("operation",
			mcp.Description("'replace' (default) overwrites the page, 'append' adds the content after the existing text"),
		),
		mcp.WithBoolean("dryRun",
			mcp.Description("When true, return what would be saved without writing"),
		),
	)
	s.AddTool(updatePageTool, mcp.NewTypedToolHandler(updatePageHandler(session, writeToken)))

	searchPagesTool := mcp.NewTool("search_pages",
		mcp.WithDescription("Full-text search over the wiki, in relevance order"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search query"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default 5, capped at 50)"),
		),
	)
	s.AddTool(searchPagesTool, mcp.NewTypedToolHandler(searchPagesHandler(session)))

	historyTool := mcp.NewTool("get_page_history",
		mcp.WithDescription("List a page's revisions, most recent first"),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("The title of the page"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of revisions (default 5, capped at 50)"),
		),
	)
	s.AddTool(historyTool, mcp.NewTypedToolHandler(getPageHistoryHandler(session)))

	statusTool := mcp.NewTool("server_status",
		mcp.WithDescription("Report the wiki connection, its version and the session state"),
	)
	s.AddTool(statusTool, mcp.NewTypedToolHandler(serverStatusHandler(session)))

	return s
}

// toolError shapes a classified failure into the wire payload
// {kind, message, hint?} so every transport keeps the full taxonomy.
func toolError(err error) *mcp.CallToolResult {
	payload, merr := json.Marshal(fault.ResponseFor(err))
	if merr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(string(payload))
}

func toolJSON(v any) *mcp.CallToolResult {
	payload, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err))
	}
	return mcp.NewToolResultText(string(payload))
}

func getPageHandler(session wiki.Session) func(ctx context.Context, request mcp.CallToolRequest, args GetPageRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args GetPageRequest) (*mcp.CallToolResult, error) {
		title := wiki.NormalizeTitle(args.Title)
		if title == "" {
			return toolError(fault.New(fault.InvalidArgument, "title is required")), nil
		}
		if args.Format != "" && args.Format != "wikitext" && args.Format != "markdown" {
			return toolError(fault.Newf(fault.InvalidArgument, "format must be 'wikitext' or 'markdown', got %q", args.Format)), nil
		}

		doc, err := session.Fetch(ctx, title)
		if err != nil {
			if fault.IsKind(err, fault.NotFound) {
				err = withSuggestions(ctx, session, err, title)
			}
			return toolError(err), nil
		}

		if args.Format == "markdown" {
			// Conversion is best-effort: the page still returns as
			// wikitext when rendering or conversion fails.
			if html, rerr := session.Render(ctx, doc.Title); rerr == nil {
				if markdown, merr := render.ToMarkdown(html); merr == nil {
					doc.Content = markdown
					doc.ContentFormat = "markdown"
				}
			}
		}
		return toolJSON(doc), nil
	}
}

// withSuggestions enriches a NotFound with a "did you mean" hint from a
// best-effort search. A failing search never masks the original NotFound.
func withSuggestions(ctx context.Context, session wiki.Session, err error, title string) error {
	result, serr := session.Search(ctx, title, 3)
	if serr != nil || len(result.Results) == 0 {
		return err
	}
	titles := make([]string, 0, len(result.Results))
	for _, hit := range result.Results {
		titles = append(titles, hit.Title)
	}
	return fault.WithHint(err, "Did you mean: "+strings.Join(titles, ", ")+"?")
}

func updatePageHandler(session wiki.Session, writeToken string) func(ctx context.Context, request mcp.CallToolRequest, args UpdatePageRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args UpdatePageRequest) (*mcp.CallToolResult, error) {
		title := wiki.NormalizeTitle(args.Title)
		if title == "" {
			return toolError(fault.New(fault.InvalidArgument, "title is required")), nil
		}
		if strings.TrimSpace(args.Summary) == "" {
			return toolError(fault.New(fault.InvalidArgument, "summary is required and must not be empty")), nil
		}
		operation := args.Operation
		if operation == "" {
			operation = "replace"
		}
		if operation != "replace" && operation != "append" {
			return toolError(fault.Newf(fault.InvalidArgument, "operation must be 'replace' or 'append', got %q", operation)), nil
		}

		// Authorization is checked before any remote call: no partial
		// writes on a rejected request.
		if err := authorizeWrite(ctx, writeToken); err != nil {
			return toolError(err), nil
		}
		if !session.CanWrite() {
			return toolError(fault.WithHint(
				fault.New(fault.Unauthorized, "no bot credentials configured, writes are disabled"),
				"configure MW_BOT_USER and MW_BOT_PASS to enable writes")), nil
		}

		content := args.Content
		if operation == "append" {
			current, err := session.Fetch(ctx, title)
			switch {
			case err == nil:
				content = current.Content + "\n" + args.Content
			case fault.IsKind(err, fault.NotFound):
				// Appending to a missing page degrades to a create.
			default:
				return toolError(err), nil
			}
		}

		if args.DryRun {
			return toolJSON(&vo.WriteResult{
				Status:  "dry-run",
				Title:   title,
				Content: content,
				Summary: args.Summary,
			}), nil
		}

		result, err := session.Save(ctx, title, content, args.Summary)
		if err != nil {
			return toolError(err), nil
		}
		return toolJSON(result), nil
	}
}

func searchPagesHandler(session wiki.Session) func(ctx context.Context, request mcp.CallToolRequest, args SearchPagesRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args SearchPagesRequest) (*mcp.CallToolResult, error) {
		result, err := session.Search(ctx, args.Query, args.Limit)
		if err != nil {
			return toolError(err), nil
		}
		return toolJSON(result), nil
	}
}

func getPageHistoryHandler(session wiki.Session) func(ctx context.Context, request mcp.CallToolRequest, args GetPageHistoryRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args GetPageHistoryRequest) (*mcp.CallToolResult, error) {
		history, err := session.History(ctx, args.Title, args.Limit)
		if err != nil {
			return toolError(err), nil
		}
		return toolJSON(history), nil
	}
}

func serverStatusHandler(session wiki.Session) func(ctx context.Context, request mcp.CallToolRequest, args ServerStatusRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args ServerStatusRequest) (*mcp.CallToolResult, error) {
		report, err := session.Status(ctx)
		if err != nil {
			return toolError(err), nil
		}
		report.ServerVersion = ServerName + " " + Version
		return toolJSON(report), nil
	}
}
