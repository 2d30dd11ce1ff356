package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"doxnav/internal/analysis"
	"doxnav/internal/crawler"
	"doxnav/internal/extractor"
	"doxnav/internal/navtree"
	"doxnav/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixtureDir = filepath.Join("..", "..", "testdata", "html")

func copyFixture(t *testing.T, dst string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dst, 0755))
	entries, err := os.ReadDir(fixtureDir)
	require.NoError(t, err)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(fixtureDir, e.Name()))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dst, e.Name()), data, 0644))
	}
}

func newTestScan(t *testing.T) (*Scan, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "doxnav.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	cr := crawler.NewCrawler(extractor.NewExtractor(), 2)
	return NewScan(store, cr, analysis.DefaultOptions()), store
}

func TestScan_Run(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	siteA := filepath.Join(root, "a", "html")
	siteB := filepath.Join(root, "b", "html")
	broken := filepath.Join(root, "broken", "html")
	copyFixture(t, siteA)
	copyFixture(t, siteB)
	require.NoError(t, os.MkdirAll(broken, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(broken, navtree.DataFileName), []byte("var NAVTREE = [ [ \"x\", "), 0644))

	scan, store := newTestScan(t)
	scan.ReportPath = filepath.Join(root, ".doxnav", "scan_report.json")

	report, err := scan.Run(ctx, []string{root}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{siteA, siteB}, report.SitesWithStatus(SiteSaved))
	assert.Equal(t, []string{broken}, report.SitesWithStatus(SiteFailed))
	require.NotEmpty(t, report.Signals)
	assert.Equal(t, "load_failed", report.Signals[0].Code)

	sites, err := store.ListSites(ctx)
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Greater(t, sites[0].NodeCount, 27, "child script nodes are catalogued")

	data, err := os.ReadFile(scan.ReportPath)
	require.NoError(t, err)
	var saved Report
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, "scan", saved.Mode)
	assert.Equal(t, 2, saved.Summary.SitesByStatus[SiteSaved])
	assert.Equal(t, 1, saved.Summary.SignalsBySeverity["critical"])

	// Unchanged content is skipped.
	report, err = scan.Run(ctx, []string{root}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{siteA, siteB}, report.SitesWithStatus(SiteUnchanged))

	// A vanished site is pruned; force rewrites the rest.
	require.NoError(t, os.RemoveAll(filepath.Join(root, "b")))
	report, err = scan.Run(ctx, []string{root}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{siteA}, report.SitesWithStatus(SiteSaved))
	assert.Equal(t, []string{siteB}, report.SitesWithStatus(SitePruned))

	sites, err = store.ListSites(ctx)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, siteA, sites[0].Dir)
}

func TestScan_RunMissingRoot(t *testing.T) {
	scan, _ := newTestScan(t)
	report, err := scan.Run(context.Background(), []string{filepath.Join(t.TempDir(), "nope")}, false)
	require.Error(t, err)
	require.Len(t, report.Stages, 1)
	assert.Equal(t, StageError, report.Stages[0].Status)
}

func TestReport_Finalize(t *testing.T) {
	r := NewReport("scan", []string{"/docs"})
	h := r.BeginStage("load")
	r.EndStage(h, map[string]float64{" sites ": 2, "": 1}, nil)
	h = r.BeginStage("prune")
	r.EndStage(h, nil, assert.AnError)
	r.AddSignal("a", "load", "INFO", "first", 0)
	r.AddSignal("b", "load", "critical", "second", 0)
	r.AddSignal("", "load", "warning", "dropped", 0)
	r.AddSite(SiteMetric{Dir: "/docs/html", Status: SiteSaved, Errors: 2, Warnings: 1})
	r.AddSite(SiteMetric{Status: SiteSaved})
	r.Finalize()

	assert.Equal(t, map[string]float64{"sites": 2}, r.Stages[0].Counters)
	assert.Equal(t, StageOK, r.Stages[0].Status)
	assert.Equal(t, StageError, r.Stages[1].Status)
	assert.Equal(t, assert.AnError.Error(), r.Stages[1].Error)
	require.Len(t, r.Signals, 2)
	assert.Equal(t, "b", r.Signals[0].Code)
	assert.Equal(t, "info", r.Signals[1].Severity)
	assert.Equal(t, 1, r.Summary.FailedStages)
	assert.Equal(t, 1, r.Summary.Sites)
	assert.Equal(t, 2, r.Summary.LintErrors)
	assert.Equal(t, 1, r.Summary.LintWarnings)
	assert.Equal(t, 1, r.Summary.SignalsBySeverity["info"])
}

func gitCmd(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}

func TestUpdate_Run(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	ctx := context.Background()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	siteA := filepath.Join(root, "a", "html")
	siteB := filepath.Join(root, "b", "html")
	siteC := filepath.Join(root, "c", "html")
	copyFixture(t, siteA)
	copyFixture(t, siteB)
	gitCmd(t, root, "init", "-q")
	gitCmd(t, root, "add", ".")
	gitCmd(t, root, "commit", "-q", "-m", "docs")

	scan, store := newTestScan(t)
	_, err = scan.Run(ctx, []string{root}, false)
	require.NoError(t, err)

	update := NewUpdate(scan, root)
	report, err := update.Run(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, report.Sites, "clean worktree rescans nothing")

	data, err := os.ReadFile(filepath.Join(siteA, navtree.DataFileName))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(siteA, navtree.DataFileName), append(data, '\n'), 0644))
	require.NoError(t, os.RemoveAll(filepath.Join(root, "b")))
	copyFixture(t, siteC)

	report, err = update.Run(ctx, "HEAD")
	require.NoError(t, err)
	assert.Equal(t, []string{siteA, siteC}, report.SitesWithStatus(SiteSaved))
	assert.Equal(t, []string{siteB}, report.SitesWithStatus(SitePruned))

	sites, err := store.ListSites(ctx)
	require.NoError(t, err)
	var dirs []string
	for _, s := range sites {
		dirs = append(dirs, s.Dir)
	}
	assert.ElementsMatch(t, []string{siteA, siteC}, dirs)
}

func TestRealPath_MissingTail(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "gone", "html"), realPath(filepath.Join(root, "gone", "html")))
}
