package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"doxnav/internal/navtree"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// ErrNoNavTree is returned when navtreedata.js does not assign NAVTREE.
var ErrNoNavTree = errors.New("no NAVTREE assignment found")

// ParseError locates a problem in a navigation script.
type ParseError struct {
	File   string
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", loc, e.Line, e.Column)
	}
	if loc == "" {
		return e.Msg
	}
	return loc + ": " + e.Msg
}

func errorAt(n *sitter.Node, format string, args ...any) *ParseError {
	p := n.StartPoint()
	return &ParseError{Line: int(p.Row) + 1, Column: int(p.Column) + 1, Msg: fmt.Sprintf(format, args...)}
}

// FileKind classifies a navigation script by its file name.
type FileKind int

const (
	KindUnknown FileKind = iota
	KindData
	KindIndexChunk
	KindChildScript
)

var indexChunkName = regexp.MustCompile(`^navtreeindex(\d+)\.js$`)

// Classify reports which parser handles the given file.
func Classify(path string) FileKind {
	base := filepath.Base(path)
	switch {
	case base == navtree.DataFileName:
		return KindData
	case indexChunkName.MatchString(base):
		return KindIndexChunk
	case strings.HasSuffix(base, ".js"):
		return KindChildScript
	}
	return KindUnknown
}

// Extractor parses Doxygen navigation scripts with tree-sitter.
type Extractor struct {
	lang *sitter.Language
}

// NewExtractor creates an extractor bound to the JavaScript grammar.
func NewExtractor() *Extractor {
	return &Extractor{lang: javascript.GetLanguage()}
}

// declaration is one `var name = value` found at the top level.
type declaration struct {
	name  string
	value *sitter.Node
	stmt  *sitter.Node
}

type program struct {
	src      []byte
	decls    []declaration
	preamble string
	trailer  string
}

func (e *Extractor) parseProgram(ctx context.Context, src []byte) (*program, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(e.lang)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	root := tree.RootNode()
	if root.HasError() {
		if bad := firstError(root); bad != nil {
			return nil, errorAt(bad, "syntax error near %q", snippet(bad.Content(src)))
		}
		return nil, &ParseError{Msg: "syntax error"}
	}

	prog := &program{src: src}
	var first, last *sitter.Node
	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		if stmt.Type() == "comment" {
			continue
		}
		if first == nil {
			first = stmt
		}
		last = stmt

		switch stmt.Type() {
		case "variable_declaration", "lexical_declaration":
			for j := 0; j < int(stmt.NamedChildCount()); j++ {
				d := stmt.NamedChild(j)
				if d.Type() != "variable_declarator" {
					continue
				}
				name := d.ChildByFieldName("name")
				value := d.ChildByFieldName("value")
				if name == nil || value == nil {
					return nil, errorAt(d, "declaration without initializer")
				}
				prog.decls = append(prog.decls, declaration{name: name.Content(src), value: value, stmt: stmt})
			}
		case "expression_statement":
			// `NAME = value;` without var, as some generators emit.
			expr := stmt.NamedChild(0)
			if expr == nil || expr.Type() != "assignment_expression" {
				return nil, errorAt(stmt, "unexpected statement")
			}
			left := expr.ChildByFieldName("left")
			right := expr.ChildByFieldName("right")
			if left == nil || right == nil || left.Type() != "identifier" {
				return nil, errorAt(stmt, "unexpected assignment")
			}
			prog.decls = append(prog.decls, declaration{name: left.Content(src), value: right, stmt: stmt})
		default:
			return nil, errorAt(stmt, "unexpected %s", stmt.Type())
		}
	}

	if first == nil {
		prog.preamble = string(src)
		return prog, nil
	}
	prog.preamble = string(src[:first.StartByte()])
	prog.trailer = string(src[last.EndByte():])
	return prog, nil
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		if c.HasError() || c.IsMissing() || c.Type() == "ERROR" {
			if bad := firstError(c); bad != nil {
				return bad
			}
		}
	}
	return nil
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return s
}

// extraSource returns the statement declaring d. A statement that declares
// several variables is narrowed to a plain `var` for d alone.
func extraSource(d declaration, src []byte) string {
	if d.stmt.Type() == "expression_statement" || d.stmt.NamedChildCount() == 1 {
		return d.stmt.Content(src)
	}
	return "var " + d.name + " = " + d.value.Content(src) + ";"
}

// ParseDocument parses the content of navtreedata.js.
func (e *Extractor) ParseDocument(ctx context.Context, src []byte) (*navtree.Document, error) {
	prog, err := e.parseProgram(ctx, src)
	if err != nil {
		return nil, err
	}

	doc := &navtree.Document{Preamble: prog.preamble, Trailer: prog.trailer, Index: []string{}}
	foundTree := false
	for _, d := range prog.decls {
		switch d.name {
		case navtree.VarTree:
			lit, err := decodeLiteral(d.value, src)
			if err != nil {
				return nil, err
			}
			nodes, err := decodeEntries(lit)
			if err != nil {
				return nil, err
			}
			doc.Tree = nodes
			foundTree = true
		case navtree.VarIndex:
			lit, err := decodeLiteral(d.value, src)
			if err != nil {
				return nil, err
			}
			if lit.kind != valArray {
				return nil, errorAt(d.value, "%s must be an array, got %s", navtree.VarIndex, lit.kind)
			}
			for _, item := range lit.items {
				if item.kind != valString {
					return nil, errorAt(item.node, "%s entries must be strings, got %s", navtree.VarIndex, item.kind)
				}
				doc.Index = append(doc.Index, item.str)
			}
		case navtree.VarSyncOn, navtree.VarSyncOff:
			lit, err := decodeLiteral(d.value, src)
			if err != nil {
				return nil, err
			}
			if lit.kind != valString {
				return nil, errorAt(d.value, "%s must be a string, got %s", d.name, lit.kind)
			}
			if d.name == navtree.VarSyncOn {
				doc.SyncOn = lit.str
			} else {
				doc.SyncOff = lit.str
			}
		default:
			doc.Extra = append(doc.Extra, navtree.ExtraVar{Name: d.name, Source: extraSource(d, src)})
		}
	}
	if !foundTree {
		return nil, ErrNoNavTree
	}
	return doc, nil
}

// ParseChildScript parses a lazily loaded child script such as files.js.
func (e *Extractor) ParseChildScript(ctx context.Context, src []byte) (*navtree.ChildScript, error) {
	prog, err := e.parseProgram(ctx, src)
	if err != nil {
		return nil, err
	}
	if len(prog.decls) == 0 {
		return nil, &ParseError{Msg: "child script declares no array"}
	}
	if len(prog.decls) > 1 {
		return nil, errorAt(prog.decls[1].stmt, "child script declares more than one variable")
	}
	d := prog.decls[0]
	lit, err := decodeLiteral(d.value, src)
	if err != nil {
		return nil, err
	}
	nodes, err := decodeEntries(lit)
	if err != nil {
		return nil, err
	}

	indent := navtree.DefaultChildIndent
	if len(lit.items) > 0 {
		indent = int(lit.items[0].node.StartPoint().Column)
	}
	return &navtree.ChildScript{
		Name:     d.name,
		Nodes:    nodes,
		Indent:   indent,
		Preamble: prog.preamble,
		Trailer:  prog.trailer,
	}, nil
}

// ParseIndexChunk parses a navtreeindexN.js file.
func (e *Extractor) ParseIndexChunk(ctx context.Context, src []byte) (*navtree.IndexChunk, error) {
	prog, err := e.parseProgram(ctx, src)
	if err != nil {
		return nil, err
	}
	if len(prog.decls) != 1 {
		return nil, &ParseError{Msg: fmt.Sprintf("index chunk must declare exactly one variable, found %d", len(prog.decls))}
	}
	d := prog.decls[0]
	numText := strings.TrimPrefix(d.name, navtree.VarIndex)
	num, err := strconv.Atoi(numText)
	if err != nil || numText == "" || num < 0 {
		return nil, errorAt(d.stmt, "unexpected index variable %q", d.name)
	}

	lit, err := decodeLiteral(d.value, src)
	if err != nil {
		return nil, err
	}
	if lit.kind != valObject {
		return nil, errorAt(d.value, "%s must be an object, got %s", d.name, lit.kind)
	}

	chunk := &navtree.IndexChunk{Number: num, Trailer: prog.trailer}
	for i, key := range lit.keys {
		val := lit.fields[i]
		if val.kind != valArray {
			return nil, errorAt(val.node, "index path for %q must be an array", key)
		}
		path := make(navtree.Path, 0, len(val.items))
		for _, item := range val.items {
			if item.kind != valNumber {
				return nil, errorAt(item.node, "index path for %q must hold integers", key)
			}
			path = append(path, item.num)
		}
		chunk.Entries = append(chunk.Entries, navtree.IndexEntry{Link: key, Path: path})
	}
	return chunk, nil
}

// decodeEntries turns an array literal of [title, link, children] tuples
// into nodes.
func decodeEntries(lit literal) ([]*navtree.Node, error) {
	if lit.kind != valArray {
		return nil, errorAt(lit.node, "navigation entries must be an array, got %s", lit.kind)
	}
	nodes := make([]*navtree.Node, 0, len(lit.items))
	for _, item := range lit.items {
		n, err := decodeEntry(item)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func decodeEntry(lit literal) (*navtree.Node, error) {
	if lit.kind != valArray {
		return nil, errorAt(lit.node, "navigation entry must be an array, got %s", lit.kind)
	}
	if len(lit.items) != 3 {
		return nil, errorAt(lit.node, "navigation entry must have 3 elements, got %d", len(lit.items))
	}
	title, link, children := lit.items[0], lit.items[1], lit.items[2]

	if title.kind != valString {
		return nil, errorAt(title.node, "entry title must be a string, got %s", title.kind)
	}
	n := &navtree.Node{Title: title.str}

	switch link.kind {
	case valString:
		s := link.str
		n.Link = &s
	case valNull:
	default:
		return nil, errorAt(link.node, "entry link must be a string or null, got %s", link.kind)
	}

	switch children.kind {
	case valNull:
		n.Children = navtree.Children{Kind: navtree.KindNone}
	case valString:
		n.Children = navtree.Children{Kind: navtree.KindRef, Ref: children.str}
	case valArray:
		nodes, err := decodeEntries(children)
		if err != nil {
			return nil, err
		}
		n.Children = navtree.Children{Kind: navtree.KindList, Nodes: nodes}
	default:
		return nil, errorAt(children.node, "entry children must be an array, string or null, got %s", children.kind)
	}
	return n, nil
}

// ParseDocumentFile reads and parses a navtreedata.js file.
func (e *Extractor) ParseDocumentFile(ctx context.Context, path string) (*navtree.Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	doc, err := e.ParseDocument(ctx, src)
	return doc, withFile(err, path)
}

// ParseChildScriptFile reads and parses a child script.
func (e *Extractor) ParseChildScriptFile(ctx context.Context, path string) (*navtree.ChildScript, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	script, err := e.ParseChildScript(ctx, src)
	return script, withFile(err, path)
}

// ParseIndexChunkFile reads and parses a navtreeindexN.js file.
func (e *Extractor) ParseIndexChunkFile(ctx context.Context, path string) (*navtree.IndexChunk, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	chunk, err := e.ParseIndexChunk(ctx, src)
	return chunk, withFile(err, path)
}

func withFile(err error, path string) error {
	if err == nil {
		return nil
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		pe.File = path
		return pe
	}
	return fmt.Errorf("%s: %w", path, err)
}

// ParseFile parses any navigation script, choosing the parser from the file
// name. The result is a *navtree.Document, *navtree.ChildScript or
// *navtree.IndexChunk.
func (e *Extractor) ParseFile(ctx context.Context, path string) (any, error) {
	var (
		v   any
		err error
	)
	switch Classify(path) {
	case KindData:
		v, err = e.ParseDocumentFile(ctx, path)
	case KindIndexChunk:
		v, err = e.ParseIndexChunkFile(ctx, path)
	case KindChildScript:
		v, err = e.ParseChildScriptFile(ctx, path)
	default:
		return nil, fmt.Errorf("%s: not a navigation script", path)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}
