package server

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"doxnav/internal/analysis"
	"doxnav/internal/crawler"
	"doxnav/internal/extractor"
	"doxnav/internal/navtree"
	"doxnav/internal/storage"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const siteDir = "/docs/expr/html"

func connect(t *testing.T) *mcp.ClientSession {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "doxnav.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.SaveSite(context.Background(), &storage.Snapshot{
		Dir:         siteDir,
		ContentHash: "h",
		Tree: []*navtree.Node{
			navtree.NewGroup("Expressions", "index.html",
				navtree.NewGroup("Data Structures", "annotated.html",
					navtree.NewLeaf("Value", "structvalue.html#details"),
				),
				navtree.NewLeaf("Globals", "globals.html"),
			),
		},
	})
	require.NoError(t, err)

	s := New(store, crawler.NewCrawler(extractor.NewExtractor(), 1), analysis.DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.serveWithTransport(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-serveErr:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop after cancel")
		}
		_ = session.Close()
	})
	return session
}

func callText(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text, res.IsError
}

func TestServer_ListsTools(t *testing.T) {
	session := connect(t)
	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"search_nav", "lookup_link", "list_sites", "lint_site", "render_site"}, names)
}

func TestServer_SearchNav(t *testing.T) {
	session := connect(t)

	text, isErr := callText(t, session, "search_nav", map[string]any{"query": "value"})
	require.False(t, isErr, text)
	var nodes []storage.NodeRecord
	require.NoError(t, json.Unmarshal([]byte(text), &nodes))
	require.Len(t, nodes, 1)
	assert.Equal(t, "0.0.0", nodes[0].Path)
	assert.Equal(t, []string{"Expressions", "Data Structures"}, nodes[0].Breadcrumb)

	text, isErr = callText(t, session, "search_nav", map[string]any{"query": "nothing here"})
	assert.False(t, isErr)
	assert.Contains(t, text, "No entries match")

	_, isErr = callText(t, session, "search_nav", map[string]any{"query": "  "})
	assert.True(t, isErr)
}

func TestServer_LookupLink(t *testing.T) {
	session := connect(t)

	text, isErr := callText(t, session, "lookup_link", map[string]any{"link": "structvalue.html"})
	require.False(t, isErr, text)
	var nodes []storage.NodeRecord
	require.NoError(t, json.Unmarshal([]byte(text), &nodes))
	require.Len(t, nodes, 1)
	assert.Equal(t, siteDir, nodes[0].Site)
	require.NotNil(t, nodes[0].Link)
	assert.Equal(t, "structvalue.html#details", *nodes[0].Link)
}

func TestServer_ListSitesAndRender(t *testing.T) {
	session := connect(t)

	text, isErr := callText(t, session, "list_sites", map[string]any{})
	require.False(t, isErr, text)
	var sites []storage.SiteRecord
	require.NoError(t, json.Unmarshal([]byte(text), &sites))
	require.Len(t, sites, 1)
	assert.Equal(t, 4, sites[0].NodeCount)

	text, isErr = callText(t, session, "render_site", map[string]any{"dir": siteDir, "format": "markdown"})
	require.False(t, isErr, text)
	assert.Contains(t, text, "- [Expressions](index.html)")

	// Relative dirs resolve against the working directory.
	cwd, err := os.Getwd()
	require.NoError(t, err)
	rel, err := filepath.Rel(cwd, siteDir)
	require.NoError(t, err)
	text, isErr = callText(t, session, "render_site", map[string]any{"dir": rel})
	require.False(t, isErr, text)
	assert.Contains(t, text, "Expressions")

	_, isErr = callText(t, session, "render_site", map[string]any{"dir": "/elsewhere"})
	assert.True(t, isErr)
	_, isErr = callText(t, session, "render_site", map[string]any{"dir": siteDir, "format": "svg"})
	assert.True(t, isErr)
}

func TestServer_LintSite(t *testing.T) {
	session := connect(t)

	text, isErr := callText(t, session, "lint_site", map[string]any{"dir": filepath.Join("..", "..", "testdata", "html")})
	require.False(t, isErr, text)
	var report analysis.Report
	require.NoError(t, json.Unmarshal([]byte(text), &report))
	assert.Empty(t, report.Issues)

	_, isErr = callText(t, session, "lint_site", map[string]any{"dir": t.TempDir()})
	assert.True(t, isErr)
}

func TestServer_Resources(t *testing.T) {
	session := connect(t)
	ctx := context.Background()

	res, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: usageURI})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Contains(t, res.Contents[0].Text, "search_nav")

	res, err = session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "doxnav://schemas/search_nav"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &schema))
	assert.Equal(t, []any{"query"}, schema["required"])

	_, err = session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "doxnav://schemas/unknown"})
	assert.Error(t, err)
}
