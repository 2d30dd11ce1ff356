package generator

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"doxnav/internal/navtree"

	"gopkg.in/yaml.v3"
)

// OutlineNode is an authoring-friendly navigation entry. An entry with
// neither children nor ref is a leaf.
type OutlineNode struct {
	Title    string        `yaml:"title"`
	Link     string        `yaml:"link,omitempty"`
	Children []OutlineNode `yaml:"children,omitempty"`
	Ref      string        `yaml:"ref,omitempty"`
}

type outlineFile struct {
	SyncOn  string                   `yaml:"sync_on"`
	SyncOff string                   `yaml:"sync_off"`
	Tree    []OutlineNode            `yaml:"tree"`
	Scripts map[string][]OutlineNode `yaml:"scripts"`
}

// Outline is a parsed outline: the main document and the child scripts it
// defines, sorted by name.
type Outline struct {
	Document *navtree.Document
	Scripts  []*navtree.ChildScript
}

// LoadOutline builds navigation data from YAML such as
//
//	tree:
//	  - title: My Project
//	    link: index.html
//	    children:
//	      - title: Files
//	        ref: files
//	scripts:
//	  files:
//	    - title: main.c
//	      link: main_8c.html
func LoadOutline(r io.Reader) (*Outline, error) {
	var f outlineFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("outline is empty")
		}
		return nil, fmt.Errorf("failed to parse outline: %w", err)
	}
	if len(f.Tree) == 0 {
		return nil, fmt.Errorf("outline has no tree entries")
	}

	tree, err := outlineNodes(f.Tree, "tree")
	if err != nil {
		return nil, err
	}
	doc := navtree.NewDocument(tree...)
	doc.Trailer = "\n"
	if f.SyncOn != "" {
		doc.SyncOn = f.SyncOn
	}
	if f.SyncOff != "" {
		doc.SyncOff = f.SyncOff
	}

	out := &Outline{Document: doc}
	names := make([]string, 0, len(f.Scripts))
	for name := range f.Scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		nodes, err := outlineNodes(f.Scripts[name], "scripts."+name)
		if err != nil {
			return nil, err
		}
		out.Scripts = append(out.Scripts, &navtree.ChildScript{
			Name:    name,
			Nodes:   nodes,
			Indent:  navtree.DefaultChildIndent,
			Trailer: "\n",
		})
	}
	return out, nil
}

func outlineNodes(in []OutlineNode, where string) ([]*navtree.Node, error) {
	out := make([]*navtree.Node, 0, len(in))
	for i, o := range in {
		at := fmt.Sprintf("%s[%d]", where, i)
		if strings.TrimSpace(o.Title) == "" {
			return nil, fmt.Errorf("%s: title is required", at)
		}
		if o.Ref != "" && len(o.Children) > 0 {
			return nil, fmt.Errorf("%s (%s): children and ref are mutually exclusive", at, o.Title)
		}

		n := &navtree.Node{Title: o.Title}
		if o.Link != "" {
			link := o.Link
			n.Link = &link
		}
		switch {
		case o.Ref != "":
			n.Children = navtree.Children{Kind: navtree.KindRef, Ref: o.Ref}
		case len(o.Children) > 0:
			children, err := outlineNodes(o.Children, at+".children")
			if err != nil {
				return nil, err
			}
			n.Children = navtree.Children{Kind: navtree.KindList, Nodes: children}
		}
		out = append(out, n)
	}
	return out, nil
}
