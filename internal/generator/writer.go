package generator

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"doxnav/internal/navtree"
)

// dataIndent is the first-level indent of NAVTREE entries; each nesting
// level adds levelIndent.
const (
	dataIndent  = 2
	levelIndent = 2
)

// WriteDocument serializes navtreedata.js in Doxygen's layout.
func WriteDocument(w io.Writer, doc *navtree.Document) error {
	var sb strings.Builder
	sb.WriteString(doc.Preamble)

	sb.WriteString("var " + navtree.VarTree + " =\n[\n")
	writeEntries(&sb, doc.Tree, dataIndent)
	sb.WriteString("];\n\n")

	sb.WriteString("var " + navtree.VarIndex + " =\n[\n")
	for i, key := range doc.Index {
		if i > 0 {
			sb.WriteString(",\n")
		}
		sb.WriteString(quoteDouble(key))
	}
	if len(doc.Index) > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString("];\n\n")

	sb.WriteString("var " + navtree.VarSyncOn + " = " + quoteSingle(doc.SyncOn) + ";\n")
	sb.WriteString("var " + navtree.VarSyncOff + " = " + quoteSingle(doc.SyncOff) + ";")
	for _, v := range doc.Extra {
		sb.WriteString("\n" + v.Source)
	}
	sb.WriteString(doc.Trailer)

	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteChildScript serializes a child script such as files.js.
func WriteChildScript(w io.Writer, script *navtree.ChildScript) error {
	indent := script.Indent
	if indent <= 0 {
		indent = navtree.DefaultChildIndent
	}
	var sb strings.Builder
	sb.WriteString(script.Preamble)
	sb.WriteString("var " + script.Name + " =\n[\n")
	writeEntries(&sb, script.Nodes, indent)
	sb.WriteString("];")
	sb.WriteString(script.Trailer)
	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteIndexChunk serializes a navtreeindexN.js file.
func WriteIndexChunk(w io.Writer, chunk *navtree.IndexChunk) error {
	var sb strings.Builder
	sb.WriteString("var " + chunk.VarName() + " =\n{\n")
	for i, e := range chunk.Entries {
		if i > 0 {
			sb.WriteString(",\n")
		}
		sb.WriteString(quoteDouble(e.Link))
		sb.WriteString(":[")
		for j, v := range e.Path {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Itoa(v))
		}
		sb.WriteString("]")
	}
	if len(chunk.Entries) > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString("};")
	sb.WriteString(chunk.Trailer)
	_, err := io.WriteString(w, sb.String())
	return err
}

// DocumentBytes is WriteDocument into memory.
func DocumentBytes(doc *navtree.Document) []byte {
	var buf bytes.Buffer
	_ = WriteDocument(&buf, doc)
	return buf.Bytes()
}

func ChildScriptBytes(script *navtree.ChildScript) []byte {
	var buf bytes.Buffer
	_ = WriteChildScript(&buf, script)
	return buf.Bytes()
}

func IndexChunkBytes(chunk *navtree.IndexChunk) []byte {
	var buf bytes.Buffer
	_ = WriteIndexChunk(&buf, chunk)
	return buf.Bytes()
}

func writeEntries(sb *strings.Builder, nodes []*navtree.Node, indent int) {
	for i, n := range nodes {
		if i > 0 {
			sb.WriteString(",\n")
		}
		writeEntry(sb, n, indent)
	}
	if len(nodes) > 0 {
		sb.WriteString("\n")
	}
}

func writeEntry(sb *strings.Builder, n *navtree.Node, indent int) {
	pad := strings.Repeat(" ", indent)
	sb.WriteString(pad)
	sb.WriteString("[ ")
	sb.WriteString(quoteDouble(n.Title))
	sb.WriteString(", ")
	if n.Link == nil {
		sb.WriteString("null")
	} else {
		sb.WriteString(quoteDouble(*n.Link))
	}
	sb.WriteString(", ")

	switch n.Children.Kind {
	case navtree.KindRef:
		sb.WriteString(quoteDouble(n.Children.Ref))
		sb.WriteString(" ]")
	case navtree.KindList:
		if len(n.Children.Nodes) == 0 {
			sb.WriteString("[] ]")
			return
		}
		sb.WriteString("[\n")
		writeEntries(sb, n.Children.Nodes, indent+levelIndent)
		sb.WriteString(pad)
		sb.WriteString("] ]")
	default:
		sb.WriteString("null ]")
	}
}

func quoteDouble(s string) string {
	return quote(s, '"')
}

func quoteSingle(s string) string {
	return quote(s, '\'')
}

func quote(s string, q byte) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte(q)
	for _, r := range s {
		switch {
		case r == rune(q):
			sb.WriteByte('\\')
			sb.WriteByte(q)
		case r == '\\':
			sb.WriteString(`\\`)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r < 0x20 || r == 0x2028 || r == 0x2029:
			sb.WriteString(fmt.Sprintf(`\u%04x`, r))
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte(q)
	return sb.String()
}
