package resolver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"

	"doxnav/internal/extractor"
	"doxnav/internal/navtree"
)

type ProblemCode string

const (
	ProblemMissing  ProblemCode = "missing"
	ProblemParse    ProblemCode = "parse"
	ProblemInvalid  ProblemCode = "invalid"
	ProblemMismatch ProblemCode = "mismatch"
	ProblemCycle    ProblemCode = "cycle"
)

// Problem records a child script that could not be used.
type Problem struct {
	Ref  string
	File string
	Code ProblemCode
	Err  error
}

func (p Problem) Error() string {
	return fmt.Sprintf("%s (%s): %v", p.File, p.Code, p.Err)
}

type ResolveStats struct {
	Attempted int
	Resolved  int
	Skipped   int
}

// Resolved holds the child scripts reachable from a tree.
type Resolved struct {
	Scripts  map[string]*navtree.ChildScript
	Problems []Problem
	Stats    ResolveStats
}

// Nodes returns ref name -> entries for the scripts that loaded.
func (r *Resolved) Nodes() map[string][]*navtree.Node {
	if r == nil {
		return nil
	}
	out := make(map[string][]*navtree.Node, len(r.Scripts))
	for name, s := range r.Scripts {
		out[name] = s.Nodes
	}
	return out
}

// Names returns the loaded script names in sorted order.
func (r *Resolved) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.Scripts))
	for name := range r.Scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var identifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// ValidRef reports whether ref can name a child script variable.
func ValidRef(ref string) bool {
	return identifier.MatchString(ref)
}

// Resolver loads child scripts referenced by string children.
type Resolver struct {
	ext  *extractor.Extractor
	fsys fs.FS
}

// NewResolver creates a resolver reading scripts from fsys, usually
// os.DirFS of the HTML output directory.
func NewResolver(ext *extractor.Extractor, fsys fs.FS) *Resolver {
	return &Resolver{ext: ext, fsys: fsys}
}

// Resolve loads every script reachable from tree. Failures are collected as
// problems instead of stopping resolution.
func (r *Resolver) Resolve(ctx context.Context, tree []*navtree.Node) (*Resolved, error) {
	res := &Resolved{Scripts: make(map[string]*navtree.ChildScript)}
	edges := make(map[string][]string)
	failed := make(map[string]bool)

	queue := refsOf(tree)
	roots := append([]string(nil), queue...)
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ref := queue[0]
		queue = queue[1:]
		if _, ok := res.Scripts[ref]; ok || failed[ref] {
			continue
		}
		res.Stats.Attempted++

		script, problem := r.load(ctx, ref)
		if problem != nil {
			res.Problems = append(res.Problems, *problem)
			res.Stats.Skipped++
			failed[ref] = true
			continue
		}
		res.Scripts[ref] = script
		res.Stats.Resolved++

		children := refsOf(script.Nodes)
		edges[ref] = children
		queue = append(queue, children...)
	}

	for _, cycle := range findCycles(roots, edges) {
		res.Problems = append(res.Problems, Problem{
			Ref:  cycle[0],
			File: navtree.ChildScriptFileName(cycle[0]),
			Code: ProblemCycle,
			Err:  fmt.Errorf("reference cycle %v", cycle),
		})
	}
	return res, nil
}

func (r *Resolver) load(ctx context.Context, ref string) (*navtree.ChildScript, *Problem) {
	file := navtree.ChildScriptFileName(ref)
	if !ValidRef(ref) {
		return nil, &Problem{Ref: ref, File: file, Code: ProblemInvalid, Err: fmt.Errorf("%q is not a script name", ref)}
	}
	src, err := fs.ReadFile(r.fsys, file)
	if err != nil {
		code := ProblemParse
		if errors.Is(err, fs.ErrNotExist) {
			code = ProblemMissing
		}
		return nil, &Problem{Ref: ref, File: file, Code: code, Err: err}
	}
	script, err := r.ext.ParseChildScript(ctx, src)
	if err != nil {
		var pe *extractor.ParseError
		if errors.As(err, &pe) {
			pe.File = file
		}
		return nil, &Problem{Ref: ref, File: file, Code: ProblemParse, Err: err}
	}
	if script.Name != ref {
		return nil, &Problem{Ref: ref, File: file, Code: ProblemMismatch,
			Err: fmt.Errorf("script declares %q, expected %q", script.Name, ref)}
	}
	return script, nil
}

// refsOf lists ref children reachable inline, in preorder, without
// duplicates.
func refsOf(nodes []*navtree.Node) []string {
	var refs []string
	seen := make(map[string]bool)
	_ = navtree.Walk(nodes, func(n *navtree.Node, _ navtree.Path) error {
		if n.Children.Kind == navtree.KindRef && !seen[n.Children.Ref] {
			seen[n.Children.Ref] = true
			refs = append(refs, n.Children.Ref)
		}
		return nil
	})
	return refs
}

// findCycles returns each distinct cycle in the ref graph once.
func findCycles(roots []string, edges map[string][]string) [][]string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int)
	var stack []string
	var cycles [][]string

	var visit func(string)
	visit = func(ref string) {
		color[ref] = grey
		stack = append(stack, ref)
		for _, next := range edges[ref] {
			switch color[next] {
			case white:
				visit(next)
			case grey:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == next {
						cycles = append(cycles, append([]string(nil), stack[i:]...))
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[ref] = black
	}
	for _, root := range roots {
		if color[root] == white {
			visit(root)
		}
	}
	return cycles
}

// Expand returns a copy of tree with every resolvable ref replaced by its
// entries. Cyclic refs are left as refs and nodes reachable through a
// pointer cycle are dropped.
func Expand(tree []*navtree.Node, nodes map[string][]*navtree.Node) []*navtree.Node {
	e := &expander{nodes: nodes, active: make(map[string]bool), visiting: make(map[*navtree.Node]bool)}
	return e.expand(tree)
}

type expander struct {
	nodes    map[string][]*navtree.Node
	active   map[string]bool
	visiting map[*navtree.Node]bool
}

func (e *expander) expand(tree []*navtree.Node) []*navtree.Node {
	out := make([]*navtree.Node, 0, len(tree))
	for _, n := range tree {
		if n == nil || e.visiting[n] {
			continue
		}
		e.visiting[n] = true
		c := &navtree.Node{Title: n.Title, Children: n.Children}
		if n.Link != nil {
			link := *n.Link
			c.Link = &link
		}
		switch n.Children.Kind {
		case navtree.KindList:
			c.Children.Nodes = e.expand(n.Children.Nodes)
		case navtree.KindRef:
			ref := n.Children.Ref
			if sub, ok := e.nodes[ref]; ok && !e.active[ref] {
				e.active[ref] = true
				c.Children = navtree.Children{Kind: navtree.KindList, Nodes: e.expand(sub)}
				delete(e.active, ref)
			}
		}
		delete(e.visiting, n)
		out = append(out, c)
	}
	return out
}
