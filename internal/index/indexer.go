package index

import (
	"sort"

	"doxnav/internal/navtree"
)

// DefaultChunkSize is the number of links Doxygen writes per
// navtreeindexN.js file.
const DefaultChunkSize = 250

// Indexer builds the NAVTREEINDEX lookup tables for a tree.
type Indexer struct {
	chunkSize int
}

// NewIndexer creates an indexer; a non-positive size selects the default.
func NewIndexer(chunkSize int) *Indexer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Indexer{chunkSize: chunkSize}
}

// Entries maps every linked node to its position below the top node, in
// preorder. When a link occurs more than once the first occurrence wins.
// Ref children are followed through resolved when present.
func (i *Indexer) Entries(tree []*navtree.Node, resolved map[string][]*navtree.Node) []navtree.IndexEntry {
	if len(tree) == 0 {
		return nil
	}
	b := &builder{
		resolved: resolved,
		seen:     make(map[string]bool),
		active:   make(map[string]bool),
		visited:  make(map[*navtree.Node]bool),
	}
	// Only the first top-level entry is addressable by the viewer.
	b.visit(tree[0], navtree.Path{})
	return b.entries
}

type builder struct {
	resolved map[string][]*navtree.Node
	seen     map[string]bool
	active   map[string]bool
	visited  map[*navtree.Node]bool
	entries  []navtree.IndexEntry
}

func (b *builder) visit(n *navtree.Node, p navtree.Path) {
	if n == nil || b.visited[n] {
		return
	}
	b.visited[n] = true
	defer delete(b.visited, n)

	if n.Link != nil && !b.seen[*n.Link] {
		b.seen[*n.Link] = true
		b.entries = append(b.entries, navtree.IndexEntry{Link: *n.Link, Path: p.Clone()})
	}

	var children []*navtree.Node
	switch n.Children.Kind {
	case navtree.KindList:
		children = n.Children.Nodes
	case navtree.KindRef:
		ref := n.Children.Ref
		if b.active[ref] {
			return
		}
		b.active[ref] = true
		defer delete(b.active, ref)
		children = b.resolved[ref]
	}
	for idx, c := range children {
		b.visit(c, append(p.Clone(), idx))
	}
}

// Chunks sorts entries by link and splits them into navtreeindexN.js files.
func (i *Indexer) Chunks(entries []navtree.IndexEntry) []*navtree.IndexChunk {
	sorted := make([]navtree.IndexEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].Link < sorted[b].Link
	})

	var chunks []*navtree.IndexChunk
	for start := 0; start < len(sorted); start += i.chunkSize {
		end := start + i.chunkSize
		if end > len(sorted) {
			end = len(sorted)
		}
		chunks = append(chunks, &navtree.IndexChunk{
			Number:  len(chunks),
			Entries: sorted[start:end],
			Trailer: "\n",
		})
	}
	return chunks
}

// Build is Entries followed by Chunks.
func (i *Indexer) Build(tree []*navtree.Node, resolved map[string][]*navtree.Node) []*navtree.IndexChunk {
	return i.Chunks(i.Entries(tree, resolved))
}

// Keys returns the first link of every chunk, which is what NAVTREEINDEX
// holds.
func Keys(chunks []*navtree.IndexChunk) []string {
	keys := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Entries) > 0 {
			keys = append(keys, c.Entries[0].Link)
		}
	}
	return keys
}

// Apply replaces the document's NAVTREEINDEX with the chunk keys.
func Apply(doc *navtree.Document, chunks []*navtree.IndexChunk) {
	doc.Index = Keys(chunks)
}

// Lookup finds the path for a link across chunks, using NAVTREEINDEX keys to
// pick the chunk the way the viewer does.
func Lookup(keys []string, chunks []*navtree.IndexChunk, link string) (navtree.Path, bool) {
	n := sort.SearchStrings(keys, link)
	// SearchStrings returns the insertion point; the owning chunk starts at
	// or before it.
	if n == len(keys) || keys[n] != link {
		n--
	}
	if n < 0 || n >= len(chunks) {
		return nil, false
	}
	for _, e := range chunks[n].Entries {
		if e.Link == link {
			return e.Path, true
		}
	}
	return nil, false
}
