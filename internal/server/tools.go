package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"doxnav/internal/analysis"
	"doxnav/internal/generator"
	"doxnav/internal/storage"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultSearchLimit = 20

// Arguments structs

type SearchNavArgs struct {
	Query string `json:"query" jsonschema:"Case-insensitive text to find in entry titles"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of results, 20 when omitted"`
}

type LookupLinkArgs struct {
	Link string `json:"link" jsonschema:"Page link such as structvalue.html or structvalue.html#details"`
}

type ListSitesArgs struct{}

type LintSiteArgs struct {
	Dir string `json:"dir" jsonschema:"Doxygen HTML output directory containing navtreedata.js"`
}

type RenderSiteArgs struct {
	Dir    string `json:"dir" jsonschema:"Catalogued HTML directory as shown by list_sites"`
	Format string `json:"format,omitempty" jsonschema:"text, markdown or mermaid; text when omitted"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "search_nav",
		Description: "Finds navigation entries whose title contains the query, across all catalogued sites",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args SearchNavArgs) (*mcp.CallToolResult, any, error) {
		query := strings.TrimSpace(args.Query)
		if query == "" {
			return errorResult("query is required"), nil, nil
		}
		limit := args.Limit
		if limit <= 0 {
			limit = defaultSearchLimit
		}
		nodes, err := s.store.Search(ctx, query, limit)
		if err != nil {
			return errorResult(fmt.Sprintf("search failed: %v", err)), nil, nil
		}
		if len(nodes) == 0 {
			return textResult(fmt.Sprintf("No entries match %q.", query)), nil, nil
		}
		return jsonResult(nodes)
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "lookup_link",
		Description: "Lists every navigation entry pointing at a page, with its breadcrumb",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args LookupLinkArgs) (*mcp.CallToolResult, any, error) {
		link := strings.TrimSpace(args.Link)
		if link == "" {
			return errorResult("link is required"), nil, nil
		}
		nodes, err := s.store.LookupLink(ctx, link)
		if err != nil {
			return errorResult(fmt.Sprintf("lookup failed: %v", err)), nil, nil
		}
		if len(nodes) == 0 {
			return textResult(fmt.Sprintf("No entries link to %s.", link)), nil, nil
		}
		return jsonResult(nodes)
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_sites",
		Description: "Lists catalogued Doxygen sites with their node counts and lint totals",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ListSitesArgs) (*mcp.CallToolResult, any, error) {
		sites, err := s.store.ListSites(ctx)
		if err != nil {
			return errorResult(fmt.Sprintf("failed to list sites: %v", err)), nil, nil
		}
		if len(sites) == 0 {
			return textResult("No sites catalogued yet. Run `doxnav scan` first."), nil, nil
		}
		return jsonResult(sites)
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "lint_site",
		Description: "Loads a Doxygen HTML directory from disk and reports navigation tree problems",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args LintSiteArgs) (*mcp.CallToolResult, any, error) {
		if strings.TrimSpace(args.Dir) == "" {
			return errorResult("dir is required"), nil, nil
		}
		site, err := s.crawler.Load(ctx, args.Dir)
		if err != nil {
			log.Printf("⚠️ lint_site %s: %v", args.Dir, err)
			return errorResult(fmt.Sprintf("failed to load %s: %v", args.Dir, err)), nil, nil
		}
		return jsonResult(analysis.Lint(site, s.lint))
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "render_site",
		Description: "Renders the catalogued navigation tree of a site as text, markdown or mermaid",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args RenderSiteArgs) (*mcp.CallToolResult, any, error) {
		format, err := generator.ParseFormat(args.Format)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		dir, err := filepath.Abs(args.Dir)
		if err != nil {
			return errorResult(fmt.Sprintf("invalid dir: %v", err)), nil, nil
		}
		tree, err := s.store.LoadTree(ctx, dir)
		if errors.Is(err, storage.ErrSiteNotFound) {
			return errorResult(fmt.Sprintf("%s is not catalogued", args.Dir)), nil, nil
		}
		if err != nil {
			return errorResult(fmt.Sprintf("failed to load tree: %v", err)), nil, nil
		}
		return textResult(generator.Render(format, tree)), nil, nil
	})
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("failed to encode result: %v", err)), nil, nil
	}
	return textResult(string(data)), nil, nil
}
