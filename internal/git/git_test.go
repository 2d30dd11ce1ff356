package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNameStatus(t *testing.T) {
	out := []byte("M\tdocs/html/navtreedata.js\nD\tdocs/html/files.js\nR100\told.js\tdocs/html/new.js\n\n")
	changes, err := parseNameStatus(out, "/repo")
	require.NoError(t, err)
	require.Len(t, changes, 3)

	assert.Equal(t, filepath.Join("/repo", "docs", "html", "navtreedata.js"), changes[0].Path)
	assert.False(t, changes[0].Deleted)
	assert.True(t, changes[1].Deleted)
	assert.Equal(t, filepath.Join("/repo", "docs", "html", "new.js"), changes[2].Path)

	_, err = parseNameStatus([]byte("garbage"), "/repo")
	assert.Error(t, err)
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

func TestChangedFiles_Repository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	gitCmd(t, dir, "init", "-q")
	html := filepath.Join(dir, "html")
	require.NoError(t, os.MkdirAll(html, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(html, "navtreedata.js"), []byte("var NAVTREE = [];\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(html, "files.js"), []byte("var files = [];\n"), 0644))
	gitCmd(t, dir, "add", ".")
	gitCmd(t, dir, "commit", "-q", "-m", "init")

	require.NoError(t, os.WriteFile(filepath.Join(html, "navtreedata.js"), []byte("var NAVTREE = [ ];\n"), 0644))
	require.NoError(t, os.Remove(filepath.Join(html, "files.js")))
	require.NoError(t, os.WriteFile(filepath.Join(html, "navtreeindex0.js"), []byte("var NAVTREEINDEX0 = {};\n"), 0644))

	changes, err := ChangedFiles(context.Background(), html, "HEAD")
	require.NoError(t, err)

	byName := make(map[string]ChangedFile)
	for _, c := range changes {
		byName[filepath.Base(c.Path)] = c
	}
	require.Len(t, byName, 3)
	assert.Equal(t, "M", byName["navtreedata.js"].Status)
	assert.True(t, byName["files.js"].Deleted)
	assert.Equal(t, "?", byName["navtreeindex0.js"].Status)
}
