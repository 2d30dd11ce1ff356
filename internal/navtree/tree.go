package navtree

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// SkipChildren returned from a WalkFunc prunes the node's subtree.
	SkipChildren = errors.New("skip children")
	// ErrCycle is reported when a node is reachable more than once.
	ErrCycle = errors.New("node reachable more than once")

	ErrNotFound = errors.New("node not found")
)

// WalkFunc receives each node with its path; the path is owned by the callee.
type WalkFunc func(n *Node, p Path) error

// Walk visits inline children in preorder. Ref children are not followed.
func Walk(nodes []*Node, fn WalkFunc) error {
	seen := make(map[*Node]bool)
	return walk(nodes, nil, seen, fn)
}

func walk(nodes []*Node, prefix Path, seen map[*Node]bool, fn WalkFunc) error {
	for i, n := range nodes {
		if n == nil {
			continue
		}
		p := append(prefix.Clone(), i)
		if seen[n] {
			return fmt.Errorf("%w at %s", ErrCycle, p)
		}
		seen[n] = true

		err := fn(n, p.Clone())
		if errors.Is(err, SkipChildren) {
			continue
		}
		if err != nil {
			return err
		}
		if n.Children.Kind == KindList {
			if err := walk(n.Children.Nodes, p, seen, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Count returns the number of nodes reachable inline.
func Count(nodes []*Node) int {
	total := 0
	_ = Walk(nodes, func(*Node, Path) error {
		total++
		return nil
	})
	return total
}

// Depth returns the length of the longest path, 0 for an empty tree.
func Depth(nodes []*Node) int {
	max := 0
	_ = Walk(nodes, func(_ *Node, p Path) error {
		if len(p) > max {
			max = len(p)
		}
		return nil
	})
	return max
}

// Find resolves a path against inline children.
func Find(nodes []*Node, p Path) (*Node, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrNotFound)
	}
	var cur *Node
	level := nodes
	for i, idx := range p {
		if idx < 0 || idx >= len(level) || level[idx] == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p[:i+1])
		}
		cur = level[idx]
		if cur.Children.Kind == KindList {
			level = cur.Children.Nodes
		} else {
			level = nil
		}
	}
	return cur, nil
}

// Breadcrumb returns the titles from the top node down to p.
func Breadcrumb(nodes []*Node, p Path) ([]string, error) {
	titles := make([]string, 0, len(p))
	for i := range p {
		n, err := Find(nodes, p[:i+1])
		if err != nil {
			return nil, err
		}
		titles = append(titles, n.Title)
	}
	return titles, nil
}

// Equal compares two node sequences structurally.
func Equal(a, b []*Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !equalNode(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalNode(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Title != b.Title {
		return false
	}
	if (a.Link == nil) != (b.Link == nil) {
		return false
	}
	if a.Link != nil && *a.Link != *b.Link {
		return false
	}
	if a.Children.Kind != b.Children.Kind {
		return false
	}
	switch a.Children.Kind {
	case KindRef:
		return a.Children.Ref == b.Children.Ref
	case KindList:
		return Equal(a.Children.Nodes, b.Children.Nodes)
	}
	return true
}

// Clone deep-copies a node sequence.
func Clone(nodes []*Node) []*Node {
	if nodes == nil {
		return nil
	}
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = cloneNode(n)
	}
	return out
}

func cloneNode(n *Node) *Node {
	if n == nil {
		return nil
	}
	c := &Node{Title: n.Title, Children: Children{Kind: n.Children.Kind, Ref: n.Children.Ref}}
	if n.Link != nil {
		link := *n.Link
		c.Link = &link
	}
	if n.Children.Kind == KindList {
		c.Children.Nodes = Clone(n.Children.Nodes)
		if c.Children.Nodes == nil {
			c.Children.Nodes = []*Node{}
		}
	}
	return c
}

// EqualDocuments compares everything that is serialized.
func EqualDocuments(a, b *Document) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Preamble != b.Preamble || a.Trailer != b.Trailer {
		return false
	}
	if a.SyncOn != b.SyncOn || a.SyncOff != b.SyncOff {
		return false
	}
	if !slices.Equal(a.Index, b.Index) || !slices.Equal(a.Extra, b.Extra) {
		return false
	}
	return Equal(a.Tree, b.Tree)
}
