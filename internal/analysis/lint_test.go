package analysis

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"doxnav/internal/crawler"
	"doxnav/internal/extractor"
	"doxnav/internal/index"
	"doxnav/internal/navtree"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadSite(t *testing.T, dir string) *crawler.Site {
	t.Helper()
	site, err := crawler.NewCrawler(extractor.NewExtractor(), 1).Load(context.Background(), dir)
	require.NoError(t, err)
	return site
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func issuesWithCode(r *Report, code string) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Code == code {
			out = append(out, i)
		}
	}
	return out
}

func TestLint_FixtureIsClean(t *testing.T) {
	site := loadSite(t, filepath.Join("..", "..", "testdata", "html"))
	report := Lint(site, DefaultOptions())
	assert.Empty(t, report.Issues)
	assert.False(t, report.HasErrors())
}

func TestLint_StructuralErrors(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"navtreedata.js": `var NAVTREE =
[
  [ "Top", "index.html", [
    [ "", "a.html", null ],
    [ "Empty", "", null ],
    [ "Dangling", null, null ],
    [ "Group", null, [] ],
    [ "Twice", "b.html", null ],
    [ "Twice", "c.html", null ],
    [ "Sheet", "data.pdf", null ],
    [ "Gone", "missing.html#x", null ],
    [ "Remote", "https://example.com/", null ],
    [ "Bad", "d.html", "no-such-name" ],
    [ "Lost", "e.html", "lost" ],
    [ "Loop", "f.html", "loop" ]
  ] ]
];

var NAVTREEINDEX =
[
"index.html"
];

var SYNCONMSG = '';
var SYNCOFFMSG = 'off';
var EXTRA = 1;
`,
		"index.html": "", "a.html": "", "b.html": "", "c.html": "", "data.pdf": "",
		"d.html": "", "e.html": "", "f.html": "",
		"loop.js": "var loop =\n[\n    [ \"Again\", \"f.html\", \"loop\" ]\n];\n",
	})

	report := Lint(loadSite(t, dir), DefaultOptions())
	require.True(t, report.HasErrors())

	title := issuesWithCode(report, CodeEmptyTitle)
	require.Len(t, title, 1)
	assert.Equal(t, "0.0", title[0].Path)

	assert.Len(t, issuesWithCode(report, CodeEmptyLink), 1)

	nullLeaf := issuesWithCode(report, CodeNullLinkLeaf)
	require.Len(t, nullLeaf, 2)
	assert.Equal(t, "Dangling", nullLeaf[0].Title)
	assert.Equal(t, "Group", nullLeaf[1].Title)

	dup := issuesWithCode(report, CodeDuplicateSibling)
	require.Len(t, dup, 1)
	assert.Equal(t, "0.5", dup[0].Path)

	ext := issuesWithCode(report, CodeBadExtension)
	require.Len(t, ext, 1)
	assert.Equal(t, "Sheet", ext[0].Title)

	missing := issuesWithCode(report, CodeMissingTarget)
	require.Len(t, missing, 1)
	assert.Equal(t, "Gone", missing[0].Title)

	bad := issuesWithCode(report, CodeBadRef)
	require.Len(t, bad, 1)
	assert.Equal(t, "0.9", bad[0].Path)

	lost := issuesWithCode(report, CodeUnresolvedRef)
	require.Len(t, lost, 1)
	assert.Equal(t, "lost.js", lost[0].File)

	assert.Len(t, issuesWithCode(report, CodeRefCycle), 1)
	assert.Len(t, issuesWithCode(report, CodeSyncMessage), 1)
	assert.Len(t, issuesWithCode(report, CodeUnknownVar), 1)

	// No index chunk files exist yet.
	stale := issuesWithCode(report, CodeIndexStale)
	require.NotEmpty(t, stale)
	assert.Contains(t, stale[len(stale)-1].Message, "found 0 index chunk files")
}

func TestLint_Index(t *testing.T) {
	base := "var NAVTREE =\n[\n  [ \"Top\", \"index.html\", [\n    [ \"A\", \"a.html\", null ]\n  ] ]\n];\n\n"
	tooltips := "\nvar SYNCONMSG = 'on';\nvar SYNCOFFMSG = 'off';\n"

	t.Run("empty", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"navtreedata.js": base + "var NAVTREEINDEX =\n[\n];\n" + tooltips,
		})
		report := Lint(loadSite(t, dir), Options{})
		assert.Equal(t, []string{CodeIndexEmpty}, report.Codes())
	})

	t.Run("unsorted and stale", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"navtreedata.js": base + "var NAVTREEINDEX =\n[\n\"z.html\",\n\"a.html\"\n];\n" + tooltips,
		})
		report := Lint(loadSite(t, dir), Options{})
		assert.Equal(t, []string{CodeIndexStale, CodeIndexUnsorted}, report.Codes())
	})

	t.Run("chunk out of date", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"navtreedata.js":   base + "var NAVTREEINDEX =\n[\n\"a.html\"\n];\n" + tooltips,
			"navtreeindex0.js": "var NAVTREEINDEX0 =\n{\n\"a.html\":[1],\n\"index.html\":[]\n};\n",
		})
		report := Lint(loadSite(t, dir), Options{})
		stale := issuesWithCode(report, CodeIndexStale)
		require.Len(t, stale, 1)
		assert.Equal(t, "navtreeindex0.js", stale[0].File)
	})

	t.Run("broken chunk", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"navtreedata.js":   base + "var NAVTREEINDEX =\n[\n\"a.html\"\n];\n" + tooltips,
			"navtreeindex0.js": "var NAVTREEINDEX0 = [ 1 ];\n",
		})
		report := Lint(loadSite(t, dir), Options{})
		broken := issuesWithCode(report, CodeBadChunk)
		require.Len(t, broken, 1)
		assert.Equal(t, "navtreeindex0.js", broken[0].File)
	})
}

func TestLint_IndexChunkSize(t *testing.T) {
	site := loadSite(t, filepath.Join("..", "..", "testdata", "html"))
	chunks := index.NewIndexer(10).Build(site.Document.Tree, site.Scripts())
	require.Greater(t, len(chunks), 1)
	index.Apply(site.Document, chunks)
	site.Chunks = chunks

	opts := DefaultOptions()
	opts.ChunkSize = 10
	assert.Empty(t, issuesWithCode(Lint(site, opts), CodeIndexStale))
	assert.NotEmpty(t, issuesWithCode(Lint(site, DefaultOptions()), CodeIndexStale))
}

func TestLint_DepthAndRoots(t *testing.T) {
	doc := navtree.NewDocument(
		navtree.NewGroup("L1", "1.html",
			navtree.NewGroup("L2", "2.html",
				navtree.NewLeaf("L3", "3.html"),
			),
		),
		navtree.NewLeaf("Second", "s.html"),
	)
	doc.Index = []string{"1.html"}
	site := &crawler.Site{Document: doc}

	report := Lint(site, Options{MaxDepth: 2})
	depth := issuesWithCode(report, CodeMaxDepth)
	require.Len(t, depth, 1)
	assert.Equal(t, "0.0.0", depth[0].Path)
	assert.Len(t, issuesWithCode(report, CodeMultipleRoots), 1)
	assert.Equal(t, 0, report.Count(SeverityError))
	assert.Equal(t, 2, report.Count(SeverityWarning))
}

func TestLint_CycleDetected(t *testing.T) {
	loop := navtree.NewGroup("Loop", "l.html")
	loop.Children.Nodes = append(loop.Children.Nodes, loop)
	doc := navtree.NewDocument(loop)
	doc.Index = []string{"l.html"}

	report := Lint(&crawler.Site{Document: doc}, Options{})
	assert.Contains(t, report.Codes(), CodeCycle)
}

func TestIssue_String(t *testing.T) {
	i := Issue{Code: CodeEmptyLink, Severity: SeverityError, File: "navtreedata.js", Path: "0.1", Message: "link is an empty string"}
	assert.Equal(t, "navtreedata.js@0.1: error [empty-link] link is an empty string", i.String())
}
