package crawler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"doxnav/internal/extractor"
	"doxnav/internal/navtree"
	"doxnav/internal/resolver"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"
)

// IgnoreFileName holds gitignore-style patterns excluded from discovery.
const IgnoreFileName = ".doxnavignore"

// Site is one loaded Doxygen HTML output directory.
type Site struct {
	Dir         string
	Document    *navtree.Document
	Resolved    *resolver.Resolved
	Chunks      []*navtree.IndexChunk
	ChunkErrors []error
	// Files lists the navigation scripts covered by ContentHash.
	Files       []string
	ContentHash string
}

// Scripts returns ref name -> entries for the child scripts that loaded.
func (s *Site) Scripts() map[string][]*navtree.Node {
	return s.Resolved.Nodes()
}

// LoadResult pairs a directory with its site or the error that stopped it.
type LoadResult struct {
	Dir  string
	Site *Site
	Err  error
}

// Crawler discovers and loads Doxygen navigation data.
type Crawler struct {
	extractor *extractor.Extractor
	ignored   []string
	workers   int
}

// NewCrawler creates a crawler. workers bounds LoadAll; values below one
// load sequentially.
func NewCrawler(ext *extractor.Extractor, workers int) *Crawler {
	if workers < 1 {
		workers = 1
	}
	return &Crawler{
		extractor: ext,
		ignored:   []string{".git", "node_modules", "vendor"},
		workers:   workers,
	}
}

// Discover walks root and returns every directory containing
// navtreedata.js, sorted.
func (c *Crawler) Discover(root string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	matcher, err := loadIgnore(root)
	if err != nil {
		return nil, err
	}

	var dirs []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)

		if d.IsDir() {
			if path != root {
				for _, ign := range c.ignored {
					if d.Name() == ign {
						return filepath.SkipDir
					}
				}
				if matcher != nil && matcher.MatchesPath(filepath.ToSlash(rel)+"/") {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if d.Name() != navtree.DataFileName {
			return nil
		}
		if matcher != nil && matcher.MatchesPath(filepath.ToSlash(rel)) {
			return nil
		}
		dirs = append(dirs, filepath.Dir(path))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	sort.Strings(dirs)
	return dirs, nil
}

func loadIgnore(root string) (*ignore.GitIgnore, error) {
	path := filepath.Join(root, IgnoreFileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	matcher, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return matcher, nil
}

// Load parses a site's navtreedata.js, resolves its child scripts and reads
// its index chunks. Only a broken navtreedata.js fails the load; child
// script and chunk problems are recorded on the site.
func (c *Crawler) Load(ctx context.Context, dir string) (*Site, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	doc, err := c.extractor.ParseDocumentFile(ctx, filepath.Join(dir, navtree.DataFileName))
	if err != nil {
		return nil, err
	}

	resolved, err := resolver.NewResolver(c.extractor, os.DirFS(dir)).Resolve(ctx, doc.Tree)
	if err != nil {
		return nil, err
	}

	site := &Site{Dir: dir, Document: doc, Resolved: resolved}

	chunkFiles, err := chunkFileNames(dir)
	if err != nil {
		return nil, err
	}
	for _, name := range chunkFiles {
		chunk, err := c.extractor.ParseIndexChunkFile(ctx, filepath.Join(dir, name))
		if err != nil {
			site.ChunkErrors = append(site.ChunkErrors, err)
			continue
		}
		site.Chunks = append(site.Chunks, chunk)
	}
	sort.Slice(site.Chunks, func(i, j int) bool {
		return site.Chunks[i].Number < site.Chunks[j].Number
	})

	files := []string{navtree.DataFileName}
	for _, name := range resolved.Names() {
		files = append(files, navtree.ChildScriptFileName(name))
	}
	files = append(files, chunkFiles...)
	sort.Strings(files)
	site.Files = files

	hash, err := ContentHash(dir, files)
	if err != nil {
		return nil, err
	}
	site.ContentHash = hash
	return site, nil
}

// LoadAll loads dirs concurrently. Results keep the order of dirs; a
// failing site does not stop the others.
func (c *Crawler) LoadAll(ctx context.Context, dirs []string) ([]LoadResult, error) {
	results := make([]LoadResult, len(dirs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, dir := range dirs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			site, err := c.Load(gctx, dir)
			results[i] = LoadResult{Dir: dir, Site: site, Err: err}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func chunkFileNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && extractor.Classify(e.Name()) == extractor.KindIndexChunk {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// ContentHash digests the named files of dir, in order, including their
// names so that renames change the hash.
func ContentHash(dir string, files []string) (string, error) {
	h := sha256.New()
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return "", fmt.Errorf("failed to hash %s: %w", name, err)
		}
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write(data)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
