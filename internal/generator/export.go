package generator

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"doxnav/internal/navtree"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed navtree.schema.json
var navtreeSchemaJSON []byte

const navtreeSchemaURL = "https://doxnav.github.io/schema/navtree.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// ExportedNode is the JSON form of a navigation entry. Children is a
// pointer so that an empty child list survives as [] while a leaf omits it.
type ExportedNode struct {
	Title    string          `json:"title"`
	Link     *string         `json:"link"`
	Children *[]ExportedNode `json:"children,omitempty"`
	Ref      string          `json:"ref,omitempty"`
}

// Export is the JSON document produced by ExportJSON.
type Export struct {
	NavTree  []ExportedNode            `json:"navtree"`
	Index    []string                  `json:"index"`
	SyncOn   string                    `json:"sync_on"`
	SyncOff  string                    `json:"sync_off"`
	Preamble string                    `json:"preamble,omitempty"`
	Trailer  string                    `json:"trailer,omitempty"`
	Scripts  map[string][]ExportedNode `json:"scripts,omitempty"`
	Extra    []ExportedVar             `json:"extra,omitempty"`
}

// ExportedVar is an unrecognised navtreedata.js variable and its statement.
type ExportedVar struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

func navtreeSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(navtreeSchemaURL, bytes.NewReader(navtreeSchemaJSON)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile(navtreeSchemaURL)
	})
	return compiledSchema, schemaErr
}

// ValidateJSON checks raw JSON against the embedded navigation schema.
func ValidateJSON(data []byte) error {
	schema, err := navtreeSchema()
	if err != nil {
		return fmt.Errorf("failed to compile navtree schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("navtree schema validation failed: %w", err)
	}
	return nil
}

// ExportDocument converts a document, plus any loaded child scripts, to
// its JSON form without validating it.
func ExportDocument(doc *navtree.Document, scripts map[string][]*navtree.Node) *Export {
	out := &Export{
		NavTree:  ExportNodes(doc.Tree),
		Index:    append([]string{}, doc.Index...),
		SyncOn:   doc.SyncOn,
		SyncOff:  doc.SyncOff,
		Preamble: doc.Preamble,
		Trailer:  doc.Trailer,
	}
	if len(scripts) > 0 {
		out.Scripts = make(map[string][]ExportedNode, len(scripts))
		for name, nodes := range scripts {
			out.Scripts[name] = ExportNodes(nodes)
		}
	}
	for _, v := range doc.Extra {
		out.Extra = append(out.Extra, ExportedVar{Name: v.Name, Source: v.Source})
	}
	return out
}

// ExportJSON is ExportDocument as indented JSON. The output is validated
// before it is returned.
func ExportJSON(doc *navtree.Document, scripts map[string][]*navtree.Node) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}
	data, err := json.MarshalIndent(ExportDocument(doc, scripts), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal navtree: %w", err)
	}
	if err := ValidateJSON(data); err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// ImportJSON validates and decodes the output of ExportJSON.
func ImportJSON(data []byte) (*navtree.Document, map[string][]*navtree.Node, error) {
	if err := ValidateJSON(data); err != nil {
		return nil, nil, err
	}
	var in Export
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, nil, fmt.Errorf("failed to decode navtree: %w", err)
	}
	doc := &navtree.Document{
		Preamble: in.Preamble,
		Tree:     importNodes(in.NavTree),
		Index:    in.Index,
		SyncOn:   in.SyncOn,
		SyncOff:  in.SyncOff,
		Trailer:  in.Trailer,
	}
	for _, v := range in.Extra {
		doc.Extra = append(doc.Extra, navtree.ExtraVar{Name: v.Name, Source: v.Source})
	}
	var scripts map[string][]*navtree.Node
	if len(in.Scripts) > 0 {
		scripts = make(map[string][]*navtree.Node, len(in.Scripts))
		for name, nodes := range in.Scripts {
			scripts[name] = importNodes(nodes)
		}
	}
	return doc, scripts, nil
}

// ExportNodes converts entries to their JSON form, dropping nil entries.
func ExportNodes(nodes []*navtree.Node) []ExportedNode {
	out := make([]ExportedNode, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		e := ExportedNode{Title: n.Title, Link: n.Link}
		switch n.Children.Kind {
		case navtree.KindList:
			children := ExportNodes(n.Children.Nodes)
			e.Children = &children
		case navtree.KindRef:
			e.Ref = n.Children.Ref
		}
		out = append(out, e)
	}
	return out
}

func importNodes(in []ExportedNode) []*navtree.Node {
	out := make([]*navtree.Node, 0, len(in))
	for _, e := range in {
		n := &navtree.Node{Title: e.Title}
		if e.Link != nil {
			link := *e.Link
			n.Link = &link
		}
		switch {
		case e.Children != nil:
			n.Children = navtree.Children{Kind: navtree.KindList, Nodes: importNodes(*e.Children)}
		case e.Ref != "":
			n.Children = navtree.Children{Kind: navtree.KindRef, Ref: e.Ref}
		}
		out = append(out, n)
	}
	return out
}
