package generator

import (
	"fmt"
	"regexp"
	"strings"

	"doxnav/internal/navtree"
)

// Format selects a human-readable rendering of a navigation tree.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatMermaid  Format = "mermaid"
)

// ParseFormat accepts the format names used on the command line.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatText, "":
		return FormatText, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatMermaid:
		return FormatMermaid, nil
	}
	return "", fmt.Errorf("unknown render format %q (want text, markdown or mermaid)", s)
}

// Render dispatches to the renderer for f.
func Render(f Format, nodes []*navtree.Node) string {
	switch f {
	case FormatMarkdown:
		return RenderMarkdown(nodes)
	case FormatMermaid:
		return RenderMermaid(nodes)
	default:
		return RenderText(nodes)
	}
}

// RenderText draws the tree with box-drawing connectors, like tree(1).
// Unresolved refs are shown as "-> name.js".
func RenderText(nodes []*navtree.Node) string {
	var sb strings.Builder
	renderTextLevel(&sb, nodes, "", make(map[*navtree.Node]bool))
	return sb.String()
}

func renderTextLevel(sb *strings.Builder, nodes []*navtree.Node, prefix string, seen map[*navtree.Node]bool) {
	for i, n := range nodes {
		if n == nil || seen[n] {
			continue
		}
		last := i == len(nodes)-1
		branch, next := "├── ", "│   "
		if last {
			branch, next = "└── ", "    "
		}
		sb.WriteString(prefix)
		sb.WriteString(branch)
		sb.WriteString(textLabel(n))
		sb.WriteString("\n")

		seen[n] = true
		if n.Children.Kind == navtree.KindList {
			renderTextLevel(sb, n.Children.Nodes, prefix+next, seen)
		}
		delete(seen, n)
	}
}

func textLabel(n *navtree.Node) string {
	label := n.Title
	if n.Link != nil {
		label += " (" + *n.Link + ")"
	}
	if n.Children.Kind == navtree.KindRef {
		label += " -> " + navtree.ChildScriptFileName(n.Children.Ref)
	}
	return label
}

var markdownSpecial = strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`, `*`, `\*`, `_`, `\_`)

// RenderMarkdown renders a nested bullet list with links.
func RenderMarkdown(nodes []*navtree.Node) string {
	var sb strings.Builder
	_ = navtree.Walk(nodes, func(n *navtree.Node, p navtree.Path) error {
		sb.WriteString(strings.Repeat("  ", len(p)-1))
		sb.WriteString("- ")
		title := markdownSpecial.Replace(n.Title)
		if n.Link != nil && *n.Link != "" {
			sb.WriteString(fmt.Sprintf("[%s](%s)", title, strings.ReplaceAll(*n.Link, " ", "%20")))
		} else {
			sb.WriteString(title)
		}
		if n.Children.Kind == navtree.KindRef {
			sb.WriteString(fmt.Sprintf(" _(children in `%s`)_", navtree.ChildScriptFileName(n.Children.Ref)))
		}
		sb.WriteString("\n")
		return nil
	})
	return sb.String()
}

// RenderMermaid renders the tree as a Mermaid mindmap. A forest gets a
// synthetic root so the mindmap stays single-rooted.
func RenderMermaid(nodes []*navtree.Node) string {
	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("mindmap\n")

	base := 1
	if len(nodes) != 1 {
		sb.WriteString("  root((navigation))\n")
		base = 2
	}
	_ = navtree.Walk(nodes, func(n *navtree.Node, p navtree.Path) error {
		indent := strings.Repeat("  ", base+len(p)-1)
		id := sanitizeMermaidID("n_" + strings.ReplaceAll(p.String(), ".", "_"))
		label := mermaidLabel(n.Title)
		if len(nodes) == 1 && len(p) == 1 {
			sb.WriteString(fmt.Sprintf("%s%s((%s))\n", indent, id, label))
		} else {
			sb.WriteString(fmt.Sprintf("%s%s[%s]\n", indent, id, label))
		}
		if n.Children.Kind == navtree.KindRef {
			refID := sanitizeMermaidID(id + "_ref")
			sb.WriteString(fmt.Sprintf("%s  %s)%s(\n", indent, refID, mermaidLabel(navtree.ChildScriptFileName(n.Children.Ref))))
		}
		return nil
	})
	sb.WriteString("```\n")
	return sb.String()
}

var mermaidIDPattern = regexp.MustCompile(`[^a-z0-9_]`)

func sanitizeMermaidID(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return "node"
	}
	v = mermaidIDPattern.ReplaceAllString(strings.ReplaceAll(v, "-", "_"), "_")
	if v[0] >= '0' && v[0] <= '9' {
		v = "n_" + v
	}
	return v
}

var mermaidLabelReplacer = strings.NewReplacer(
	"(", " ", ")", " ", "[", " ", "]", " ", "{", " ", "}", " ",
	"\n", " ", `"`, "#quot;",
)

// mermaidLabel drops characters that would close a mindmap node shape.
func mermaidLabel(s string) string {
	return strings.Join(strings.Fields(mermaidLabelReplacer.Replace(s)), " ")
}
