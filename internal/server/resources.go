package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const usageURI = "doxnav://usage"

const usageGuide = `# doxnav MCP server

doxnav catalogues the navigation trees (navtreedata.js and its child
scripts) of Doxygen HTML output. Sites are catalogued with ` + "`doxnav scan`" + `;
the tools below read that catalogue.

## Tools

- **search_nav** ` + "`{query, limit?}`" + `: entries whose title contains the query,
  case-insensitively. Each result carries its site, tree path, depth, link
  and breadcrumb of ancestor titles.
- **lookup_link** ` + "`{link}`" + `: every entry pointing at a page. A link without
  an anchor also matches anchored links into the same page.
- **list_sites** ` + "`{}`" + `: catalogued directories with node counts and lint totals.
- **lint_site** ` + "`{dir}`" + `: loads a directory from disk and reports problems
  such as empty titles, unresolved child scripts or a stale NAVTREEINDEX.
- **render_site** ` + "`{dir, format?}`" + `: the catalogued tree as text, markdown
  or a mermaid mindmap.

Tree paths are dot-separated child positions starting at the top-level
entry, e.g. ` + "`0.2.1`" + `. Argument schemas are published at
` + "`doxnav://schemas/{tool_name}`" + `.
`

func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         usageURI,
		Name:        "Usage",
		Description: "How to use the doxnav navigation tools",
		MIMEType:    "text/markdown",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      usageURI,
					MIMEType: "text/markdown",
					Text:     usageGuide,
				},
			},
		}, nil
	})

	schemaMap := buildSchemaMap()

	s.mcpServer.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "doxnav://schemas/{tool_name}",
		Name:        "Tool Schema",
		Description: "JSON schema for the named tool's arguments",
		MIMEType:    "application/schema+json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI
		toolName := strings.TrimPrefix(uri, "doxnav://schemas/")
		schemaJSON, ok := schemaMap[toolName]
		if !ok {
			return nil, fmt.Errorf("unknown tool schema: %q", toolName)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/schema+json",
					Text:     schemaJSON,
				},
			},
		}, nil
	})
}

func buildSchemaMap() map[string]string {
	m := make(map[string]string)
	addSchema[SearchNavArgs](m, "search_nav")
	addSchema[LookupLinkArgs](m, "lookup_link")
	addSchema[ListSitesArgs](m, "list_sites")
	addSchema[LintSiteArgs](m, "lint_site")
	addSchema[RenderSiteArgs](m, "render_site")
	return m
}

func addSchema[T any](m map[string]string, name string) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return
	}
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return
	}
	m[name] = string(schemaJSON)
}
