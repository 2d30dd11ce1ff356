package generator

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"doxnav/internal/navtree"
)

// SiteFiles is everything doxnav writes into an HTML output directory.
type SiteFiles struct {
	Document *navtree.Document
	Scripts  []*navtree.ChildScript
	Chunks   []*navtree.IndexChunk
}

// WriteResult lists the files that changed on disk.
type WriteResult struct {
	Written   []string
	Unchanged []string
	Removed   []string
}

// WriteSite writes navigation scripts into dir. Files whose content is
// already identical are left alone, and navtreeindexN.js files beyond the
// new chunk count are removed when chunks are given.
func WriteSite(dir string, files SiteFiles) (*WriteResult, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	res := &WriteResult{}

	put := func(name string, data []byte) error {
		path := filepath.Join(dir, name)
		if old, err := os.ReadFile(path); err == nil && bytes.Equal(old, data) {
			res.Unchanged = append(res.Unchanged, name)
			return nil
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		res.Written = append(res.Written, name)
		return nil
	}

	if files.Document != nil {
		if err := put(navtree.DataFileName, DocumentBytes(files.Document)); err != nil {
			return res, err
		}
	}
	for _, s := range files.Scripts {
		if err := put(navtree.ChildScriptFileName(s.Name), ChildScriptBytes(s)); err != nil {
			return res, err
		}
	}
	for _, c := range files.Chunks {
		if err := put(c.FileName(), IndexChunkBytes(c)); err != nil {
			return res, err
		}
	}
	if files.Chunks != nil {
		removed, err := removeStaleChunks(dir, len(files.Chunks))
		res.Removed = removed
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

var chunkFilePattern = regexp.MustCompile(`^navtreeindex(\d+)\.js$`)

func removeStaleChunks(dir string, keep int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, e := range entries {
		m := chunkFilePattern.FindStringSubmatch(e.Name())
		if m == nil || e.IsDir() {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < keep {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return removed, err
		}
		removed = append(removed, e.Name())
	}
	return removed, nil
}
