package navtree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() []*Node {
	return []*Node{
		NewGroup("Mathematic Expressions Library", "index.html",
			NewGroup("General Info Index", "index.html",
				NewGroup("Introduction", "index.html#intro_sec",
					NewLeaf("Expressions", "index.html#expressions"),
				),
			),
			NewLeaf("Todo List", "todo.html"),
			NewGroup("Files", "",
				NewRef("File List", "files.html", "files"),
			),
		),
	}
}

func TestWalk_PreorderPaths(t *testing.T) {
	var titles []string
	var paths []string
	err := Walk(sampleTree(), func(n *Node, p Path) error {
		titles = append(titles, n.Title)
		paths = append(paths, p.String())
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Mathematic Expressions Library", "General Info Index", "Introduction",
		"Expressions", "Todo List", "Files", "File List",
	}, titles)
	assert.Equal(t, []string{"0", "0.0", "0.0.0", "0.0.0.0", "0.1", "0.2", "0.2.0"}, paths)
}

func TestWalk_SkipChildren(t *testing.T) {
	count := 0
	err := Walk(sampleTree(), func(n *Node, p Path) error {
		count++
		if n.Title == "General Info Index" {
			return SkipChildren
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestWalk_DetectsCycle(t *testing.T) {
	root := NewGroup("root", "index.html")
	child := NewGroup("child", "a.html", root)
	root.Children.Nodes = append(root.Children.Nodes, child)

	err := Walk([]*Node{root}, func(*Node, Path) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycle))
}

func TestCountAndDepth(t *testing.T) {
	tree := sampleTree()
	assert.Equal(t, 7, Count(tree))
	assert.Equal(t, 4, Depth(tree))
	assert.Equal(t, 0, Depth(nil))
}

func TestFindAndBreadcrumb(t *testing.T) {
	tree := sampleTree()

	n, err := Find(tree, Path{0, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, "Expressions", n.Title)
	assert.Equal(t, "index.html", n.File())
	assert.Equal(t, "expressions", n.Anchor())

	crumbs, err := Breadcrumb(tree, Path{0, 2, 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"Mathematic Expressions Library", "Files", "File List"}, crumbs)

	_, err = Find(tree, Path{0, 9})
	assert.True(t, errors.Is(err, ErrNotFound))

	// Ref children are not inline, so nothing lives below them.
	_, err = Find(tree, Path{0, 2, 0, 0})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestEqualAndClone(t *testing.T) {
	a := sampleTree()
	b := Clone(a)
	assert.True(t, Equal(a, b))

	b[0].Children.Nodes[2].Link = nil
	assert.True(t, Equal(a, b), "grouping node already had a null link")

	b[0].Children.Nodes[1].Title = "Bug List"
	assert.False(t, Equal(a, b))
	assert.Equal(t, "Todo List", a[0].Children.Nodes[1].Title, "clone must not share nodes")
}

func TestNewGroup_EmptyLinkIsNull(t *testing.T) {
	g := NewGroup("Files", "")
	assert.False(t, g.HasLink())
	assert.Equal(t, "-", g.LinkOr("-"))
	assert.Equal(t, KindList, g.Children.Kind)
	assert.NotNil(t, g.Children.Nodes)
}

func TestParsePath(t *testing.T) {
	p, err := ParsePath("0.5.2")
	require.NoError(t, err)
	assert.Equal(t, Path{0, 5, 2}, p)
	assert.Equal(t, Path{0, 5}, p.Parent())
	assert.Nil(t, Path{0}.Parent())

	p, err = ParsePath("")
	require.NoError(t, err)
	assert.Empty(t, p)

	_, err = ParsePath("0.x")
	assert.Error(t, err)
	_, err = ParsePath("-1")
	assert.Error(t, err)
}

func TestIndexChunkNames(t *testing.T) {
	c := &IndexChunk{Number: 3}
	assert.Equal(t, "NAVTREEINDEX3", c.VarName())
	assert.Equal(t, "navtreeindex3.js", c.FileName())
	assert.Equal(t, "files.js", ChildScriptFileName("files"))
}
