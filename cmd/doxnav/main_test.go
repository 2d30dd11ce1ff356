package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"doxnav/internal/navtree"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixtureDir = filepath.Join("..", "..", "testdata", "html")

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Flag values outlive a single Execute.
	for _, c := range append([]*cobra.Command{rootCmd}, rootCmd.Commands()...) {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestLintCommand(t *testing.T) {
	out, err := run(t, "lint", fixtureDir)
	require.NoError(t, err)
	assert.Contains(t, out, "no problems found")

	dir := t.TempDir()
	bad := "var NAVTREE =\n[\n  [ \"\", \"index.html\", null ]\n];\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, navtree.DataFileName), []byte(bad), 0644))
	out, err = run(t, "lint", dir)
	assert.ErrorIs(t, err, errLintFailed)
	assert.Contains(t, out, "[empty-title]")
}

func TestFmtCommand_FixtureIsCanonical(t *testing.T) {
	out, err := run(t, "fmt", fixtureDir)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func copySite(t *testing.T, dst string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dst, 0755))
	entries, err := os.ReadDir(fixtureDir)
	require.NoError(t, err)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(fixtureDir, e.Name()))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dst, e.Name()), data, 0644))
	}
}

func TestFmtWriteKeepsExtraVariables(t *testing.T) {
	site := filepath.Join(t.TempDir(), "html")
	copySite(t, site)
	path := filepath.Join(site, navtree.DataFileName)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(data, "\nvar LISTOFALLMEMBERS = 'keep me';\n"...), 0644))

	_, err = run(t, "fmt", "--write", site)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "var LISTOFALLMEMBERS = 'keep me';")

	out, err := run(t, "fmt", site)
	require.NoError(t, err)
	assert.Empty(t, out, "rewritten file is canonical")

	_, err = run(t, "reindex", site)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "var LISTOFALLMEMBERS = 'keep me';")
}

func TestReindexThenLint_CustomChunkSize(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "doxnav.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("index:\n  chunk_size: 10\n"), 0644))
	site := filepath.Join(dir, "html")
	copySite(t, site)

	_, err := run(t, "--config", cfgPath, "reindex", site)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(site, "navtreeindex1.js"))

	out, err := run(t, "--config", cfgPath, "lint", site)
	require.NoError(t, err)
	assert.NotContains(t, out, "index-stale")
	assert.Contains(t, out, "no problems found")
}

func TestParseCommand(t *testing.T) {
	out, err := run(t, "parse", filepath.Join(fixtureDir, "files.js"))
	require.NoError(t, err)
	var script struct {
		Name    string           `json:"name"`
		Entries []map[string]any `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &script))
	assert.Equal(t, "files", script.Name)
	assert.Len(t, script.Entries, 3)

	_, err = run(t, "parse", filepath.Join(fixtureDir, "index.html"))
	assert.Error(t, err)

	// Documents lint would reject are still dumped.
	bad := filepath.Join(t.TempDir(), navtree.DataFileName)
	require.NoError(t, os.WriteFile(bad, []byte("var NAVTREE = [ [ \"A\", \"\", null ] ];\nvar NAVTREEINDEX = [ \"\" ];"), 0644))
	out, err = run(t, "parse", bad)
	require.NoError(t, err)
	assert.Contains(t, out, `"link": ""`)
}

func TestExportThenBuildReproducesSite(t *testing.T) {
	exported := filepath.Join(t.TempDir(), "nav.json")
	_, err := run(t, "export", fixtureDir, "--output", exported)
	require.NoError(t, err)

	outDir := t.TempDir()
	_, err = run(t, "build", exported, outDir)
	require.NoError(t, err)

	for _, name := range []string{navtree.DataFileName, "navtreeindex0.js"} {
		want, err := os.ReadFile(filepath.Join(fixtureDir, name))
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(outDir, name))
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got), name)
	}
}

func TestBuildFromOutlineAndLocate(t *testing.T) {
	dir := t.TempDir()
	outline := filepath.Join(dir, "nav.yaml")
	require.NoError(t, os.WriteFile(outline, []byte(`
tree:
  - title: Project
    link: index.html
    children:
      - title: Files
        ref: files
scripts:
  files:
    - title: main.c
      link: main_8c.html
`), 0644))

	site := filepath.Join(dir, "html")
	_, err := run(t, "build", outline, site)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(site, "files.js"))
	assert.FileExists(t, filepath.Join(site, "navtreeindex0.js"))

	out, err := run(t, "locate", site, "main_8c.html")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0\tProject > Files > main.c\n", out)

	_, err = run(t, "locate", site, "missing.html")
	assert.Error(t, err)
}

func TestRenderCommand(t *testing.T) {
	out, err := run(t, "render", fixtureDir, "--format", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "- [Mathematic Expressions Library](index.html)")
	assert.Contains(t, out, "errors.c", "child scripts are inlined")

	_, err = run(t, "render", fixtureDir, "--format", "svg")
	assert.Error(t, err)
}
