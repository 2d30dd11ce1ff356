package analysis

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"doxnav/internal/crawler"
	"doxnav/internal/extractor"
	"doxnav/internal/index"
	"doxnav/internal/navtree"
	"doxnav/internal/resolver"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue codes reported by Lint.
const (
	CodeCycle            = "cycle"
	CodeEmptyTitle       = "empty-title"
	CodeEmptyLink        = "empty-link"
	CodeNullLinkLeaf     = "null-link-leaf"
	CodeBadRef           = "bad-ref"
	CodeUnresolvedRef    = "unresolved-ref"
	CodeRefCycle         = "ref-cycle"
	CodeMaxDepth         = "max-depth"
	CodeBadExtension     = "bad-extension"
	CodeMissingTarget    = "missing-target"
	CodeDuplicateSibling = "duplicate-sibling"
	CodeMultipleRoots    = "multiple-roots"
	CodeIndexEmpty       = "index-empty"
	CodeIndexUnsorted    = "index-unsorted"
	CodeIndexStale       = "index-stale"
	CodeBadChunk         = "bad-chunk"
	CodeSyncMessage      = "sync-message"
	CodeUnknownVar       = "unknown-var"
)

// Issue is a single lint finding. Path is empty for file-level issues.
type Issue struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	File     string   `json:"file"`
	Path     string   `json:"path,omitempty"`
	Title    string   `json:"title,omitempty"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	loc := i.File
	if i.Path != "" {
		loc += "@" + i.Path
	}
	return fmt.Sprintf("%s: %s [%s] %s", loc, i.Severity, i.Code, i.Message)
}

// Report collects the issues found in one site.
type Report struct {
	Dir    string  `json:"dir"`
	Issues []Issue `json:"issues"`
}

func (r *Report) HasErrors() bool {
	return r.Count(SeverityError) > 0
}

// Count returns the number of issues with the given severity.
func (r *Report) Count(s Severity) int {
	n := 0
	for _, i := range r.Issues {
		if i.Severity == s {
			n++
		}
	}
	return n
}

// Codes returns the distinct issue codes in sorted order.
func (r *Report) Codes() []string {
	seen := make(map[string]bool)
	var codes []string
	for _, i := range r.Issues {
		if !seen[i.Code] {
			seen[i.Code] = true
			codes = append(codes, i.Code)
		}
	}
	sort.Strings(codes)
	return codes
}

// Options tunes the optional checks.
type Options struct {
	// MaxDepth warns about deeper nodes; zero disables the check.
	MaxDepth int
	// Extension is the expected link file suffix, usually ".html".
	Extension string
	// CheckTargets stats every linked file inside the site directory.
	CheckTargets bool
	// ChunkSize is the links-per-chunk the index is regenerated with;
	// zero means Doxygen's 250.
	ChunkSize int
}

// DefaultOptions matches what Doxygen produces.
func DefaultOptions() Options {
	return Options{MaxDepth: 8, Extension: ".html", CheckTargets: true}
}

type linter struct {
	site    *crawler.Site
	opts    Options
	report  *Report
	targets map[string]bool
}

// Lint checks a loaded site.
func Lint(site *crawler.Site, opts Options) *Report {
	l := &linter{
		site:    site,
		opts:    opts,
		report:  &Report{Dir: site.Dir, Issues: []Issue{}},
		targets: make(map[string]bool),
	}
	doc := site.Document

	l.checkNodes(navtree.DataFileName, doc.Tree)
	for _, name := range site.Resolved.Names() {
		l.checkNodes(navtree.ChildScriptFileName(name), site.Resolved.Scripts[name].Nodes)
	}
	l.checkProblems()
	l.checkDepth()
	l.checkIndex()

	if len(doc.Tree) > 1 {
		l.add(CodeMultipleRoots, SeverityWarning, navtree.DataFileName, nil, "",
			fmt.Sprintf("%s has %d top-level entries; only the first is indexed", navtree.VarTree, len(doc.Tree)))
	}
	if doc.SyncOn == "" {
		l.add(CodeSyncMessage, SeverityWarning, navtree.DataFileName, nil, "", navtree.VarSyncOn+" is empty or missing")
	}
	if doc.SyncOff == "" {
		l.add(CodeSyncMessage, SeverityWarning, navtree.DataFileName, nil, "", navtree.VarSyncOff+" is empty or missing")
	}
	for _, v := range doc.Extra {
		l.add(CodeUnknownVar, SeverityWarning, navtree.DataFileName, nil, "", fmt.Sprintf("unrecognised variable %s", v.Name))
	}
	return l.report
}

func (l *linter) add(code string, sev Severity, file string, p navtree.Path, title, msg string) {
	issue := Issue{Code: code, Severity: sev, File: file, Title: title, Message: msg}
	if p != nil {
		issue.Path = p.String()
	}
	l.report.Issues = append(l.report.Issues, issue)
}

func (l *linter) checkNodes(file string, nodes []*navtree.Node) {
	l.checkSiblings(file, nil, nodes)
	err := navtree.Walk(nodes, func(n *navtree.Node, p navtree.Path) error {
		if strings.TrimSpace(n.Title) == "" {
			l.add(CodeEmptyTitle, SeverityError, file, p, "", "entry has an empty title")
		}
		switch {
		case n.Link != nil && *n.Link == "":
			l.add(CodeEmptyLink, SeverityError, file, p, n.Title, "link is an empty string")
		case n.Link == nil && !hasChildren(n):
			l.add(CodeNullLinkLeaf, SeverityError, file, p, n.Title, "leaf entry has a null link")
		case n.Link != nil:
			l.checkLink(file, p, n)
		}
		if n.Children.Kind == navtree.KindRef && !resolver.ValidRef(n.Children.Ref) {
			l.add(CodeBadRef, SeverityError, file, p, n.Title,
				fmt.Sprintf("child reference %q is not a script name", n.Children.Ref))
		}
		if n.Children.Kind == navtree.KindList {
			l.checkSiblings(file, p, n.Children.Nodes)
		}
		return nil
	})
	if errors.Is(err, navtree.ErrCycle) {
		l.add(CodeCycle, SeverityError, file, nil, "", err.Error())
	}
}

func hasChildren(n *navtree.Node) bool {
	switch n.Children.Kind {
	case navtree.KindRef:
		return true
	case navtree.KindList:
		return len(n.Children.Nodes) > 0
	}
	return false
}

func (l *linter) checkSiblings(file string, parent navtree.Path, nodes []*navtree.Node) {
	seen := make(map[string]int)
	for i, n := range nodes {
		if n == nil {
			continue
		}
		seen[n.Title]++
		if seen[n.Title] == 2 {
			p := append(parent.Clone(), i)
			l.add(CodeDuplicateSibling, SeverityWarning, file, p, n.Title,
				fmt.Sprintf("title %q repeats among its siblings", n.Title))
		}
	}
}

func external(link string) bool {
	return strings.Contains(link, "://") || strings.HasPrefix(link, "mailto:")
}

func (l *linter) checkLink(file string, p navtree.Path, n *navtree.Node) {
	if external(*n.Link) {
		return
	}
	target := n.File()
	if target == "" {
		// Anchor-only link into the current page.
		return
	}
	if l.opts.Extension != "" && !strings.HasSuffix(target, l.opts.Extension) {
		l.add(CodeBadExtension, SeverityWarning, file, p, n.Title,
			fmt.Sprintf("link %s does not end in %s", *n.Link, l.opts.Extension))
	}
	if l.opts.CheckTargets && l.site.Dir != "" {
		ok, cached := l.targets[target]
		if !cached {
			_, err := os.Stat(filepath.Join(l.site.Dir, filepath.FromSlash(target)))
			ok = err == nil
			l.targets[target] = ok
		}
		if !ok {
			l.add(CodeMissingTarget, SeverityWarning, file, p, n.Title,
				fmt.Sprintf("%s does not exist", target))
		}
	}
}

func (l *linter) checkProblems() {
	if l.site.Resolved == nil {
		return
	}
	for _, p := range l.site.Resolved.Problems {
		switch p.Code {
		case resolver.ProblemInvalid:
			// Reported by bad-ref at the referencing entry.
		case resolver.ProblemCycle:
			l.add(CodeRefCycle, SeverityError, p.File, nil, "", p.Err.Error())
		default:
			l.add(CodeUnresolvedRef, SeverityError, p.File, nil, "",
				fmt.Sprintf("child script %s: %v", p.Ref, p.Err))
		}
	}
}

func (l *linter) checkDepth() {
	if l.opts.MaxDepth <= 0 {
		return
	}
	expanded := resolver.Expand(l.site.Document.Tree, l.site.Scripts())
	_ = navtree.Walk(expanded, func(n *navtree.Node, p navtree.Path) error {
		if len(p) > l.opts.MaxDepth {
			l.add(CodeMaxDepth, SeverityWarning, navtree.DataFileName, p, n.Title,
				fmt.Sprintf("depth %d exceeds %d", len(p), l.opts.MaxDepth))
			return navtree.SkipChildren
		}
		return nil
	})
}

func (l *linter) checkIndex() {
	doc := l.site.Document
	keys := doc.Index
	chunks := index.NewIndexer(l.opts.ChunkSize).Build(doc.Tree, l.site.Scripts())
	want := index.Keys(chunks)

	if len(keys) == 0 && len(want) > 0 {
		l.add(CodeIndexEmpty, SeverityError, navtree.DataFileName, nil, "", navtree.VarIndex+" is empty but the tree has links")
		return
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			l.add(CodeIndexUnsorted, SeverityError, navtree.DataFileName, nil, "",
				fmt.Sprintf("%s is not strictly ascending at %q", navtree.VarIndex, keys[i]))
			break
		}
	}
	if !slices.Equal(keys, want) {
		l.add(CodeIndexStale, SeverityWarning, navtree.DataFileName, nil, "",
			fmt.Sprintf("%s is %v, regenerated keys are %v", navtree.VarIndex, keys, want))
	}

	// Chunk files are only compared for sites loaded from disk.
	if l.site.Dir == "" {
		return
	}
	for _, err := range l.site.ChunkErrors {
		l.add(CodeBadChunk, SeverityError, chunkFile(err), nil, "", err.Error())
	}
	if len(l.site.ChunkErrors) > 0 {
		return
	}
	if len(l.site.Chunks) != len(chunks) {
		l.add(CodeIndexStale, SeverityWarning, navtree.DataFileName, nil, "",
			fmt.Sprintf("found %d index chunk files, expected %d", len(l.site.Chunks), len(chunks)))
		return
	}
	for i, c := range l.site.Chunks {
		if !equalEntries(c.Entries, chunks[i].Entries) {
			l.add(CodeIndexStale, SeverityWarning, c.FileName(), nil, "",
				"index chunk differs from the regenerated one")
		}
	}
}

func chunkFile(err error) string {
	var pe *extractor.ParseError
	if errors.As(err, &pe) && pe.File != "" {
		return filepath.Base(pe.File)
	}
	return ""
}

func equalEntries(a, b []navtree.IndexEntry) bool {
	return slices.EqualFunc(a, b, func(x, y navtree.IndexEntry) bool {
		return x.Link == y.Link && slices.Equal(x.Path, y.Path)
	})
}
