package navtree

import (
	"fmt"
	"strconv"
	"strings"
)

// File and variable names used by Doxygen's HTML navigation scripts.
const (
	DataFileName = "navtreedata.js"

	VarTree    = "NAVTREE"
	VarIndex   = "NAVTREEINDEX"
	VarSyncOn  = "SYNCONMSG"
	VarSyncOff = "SYNCOFFMSG"

	DefaultSyncOn  = "click to disable panel synchronisation"
	DefaultSyncOff = "click to enable panel synchronisation"
)

type ChildKind int

const (
	// KindNone marks a leaf; serialized as null.
	KindNone ChildKind = iota
	// KindList holds children inline as a nested array.
	KindList
	// KindRef names a child script (<ref>.js) loaded lazily by the viewer.
	KindRef
)

func (k ChildKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindList:
		return "list"
	case KindRef:
		return "ref"
	default:
		return "unknown"
	}
}

// Children is the third component of a navigation entry.
type Children struct {
	Kind  ChildKind
	Nodes []*Node
	Ref   string
}

// Node is one [title, link, children] entry of the navigation tree.
type Node struct {
	Title    string
	Link     *string
	Children Children
}

// NewLeaf returns a node without children.
func NewLeaf(title, link string) *Node {
	return &Node{Title: title, Link: &link}
}

// NewGroup returns a node holding children inline. An empty link yields a
// null link, which Doxygen uses for pure grouping entries.
func NewGroup(title, link string, children ...*Node) *Node {
	n := &Node{Title: title, Children: Children{Kind: KindList, Nodes: children}}
	if link != "" {
		n.Link = &link
	}
	if n.Children.Nodes == nil {
		n.Children.Nodes = []*Node{}
	}
	return n
}

// NewRef returns a node whose children live in the child script <ref>.js.
func NewRef(title, link, ref string) *Node {
	return &Node{Title: title, Link: &link, Children: Children{Kind: KindRef, Ref: ref}}
}

func (n *Node) IsLeaf() bool {
	return n.Children.Kind == KindNone
}

// HasLink reports whether the link is non-null.
func (n *Node) HasLink() bool {
	return n.Link != nil
}

func (n *Node) LinkOr(fallback string) string {
	if n.Link == nil {
		return fallback
	}
	return *n.Link
}

// File returns the link without its #anchor.
func (n *Node) File() string {
	file, _, _ := strings.Cut(n.LinkOr(""), "#")
	return file
}

// Anchor returns the fragment after '#', or "".
func (n *Node) Anchor() string {
	_, anchor, _ := strings.Cut(n.LinkOr(""), "#")
	return anchor
}

// Document is the content of navtreedata.js.
type Document struct {
	// Preamble and Trailer hold raw text around the statements (licence
	// comments, final newline) so that rewriting is byte-exact.
	Preamble string
	Tree     []*Node
	Index    []string
	SyncOn   string
	SyncOff  string
	// Extra holds top-level variables other than the four known ones, in
	// source order. They are written back after SYNCOFFMSG.
	Extra   []ExtraVar
	Trailer string
}

// ExtraVar is an unrecognised top-level variable kept verbatim.
type ExtraVar struct {
	Name string
	// Source is the complete statement, e.g. `var FOO = 'bar';`.
	Source string
}

// NewDocument returns a document with Doxygen's default tooltips.
func NewDocument(tree ...*Node) *Document {
	if tree == nil {
		tree = []*Node{}
	}
	return &Document{
		Tree:    tree,
		Index:   []string{},
		SyncOn:  DefaultSyncOn,
		SyncOff: DefaultSyncOff,
	}
}

// Root returns the top node, which Doxygen emits as the single element of
// NAVTREE.
func (d *Document) Root() *Node {
	if len(d.Tree) == 0 {
		return nil
	}
	return d.Tree[0]
}

// ChildScript is a <name>.js file defining `var name = [...]`.
type ChildScript struct {
	Name     string
	Nodes    []*Node
	Indent   int
	Preamble string
	Trailer  string
}

// DefaultChildIndent is the first-level indent Doxygen uses in child scripts.
const DefaultChildIndent = 4

func ChildScriptFileName(name string) string {
	return name + ".js"
}

// IndexEntry maps a link to the position of its node below the top node.
type IndexEntry struct {
	Link string
	Path Path
}

// IndexChunk is one navtreeindexN.js file.
type IndexChunk struct {
	Number  int
	Entries []IndexEntry
	Trailer string
}

func (c *IndexChunk) VarName() string {
	return VarIndex + strconv.Itoa(c.Number)
}

func (c *IndexChunk) FileName() string {
	return IndexChunkFileName(c.Number)
}

func IndexChunkFileName(n int) string {
	return fmt.Sprintf("navtreeindex%d.js", n)
}

// Path addresses a node by child positions, starting at the NAVTREE array.
type Path []int

func (p Path) String() string {
	if len(p) == 0 {
		return ""
	}
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ".")
}

// Parent returns the enclosing path, or nil for a top-level entry.
func (p Path) Parent() Path {
	if len(p) <= 1 {
		return nil
	}
	return p[:len(p)-1]
}

func (p Path) Clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// ParsePath is the inverse of Path.String.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	parts := strings.Split(s, ".")
	p := make(Path, len(parts))
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("invalid path segment %q in %q", part, s)
		}
		p[i] = v
	}
	return p, nil
}
