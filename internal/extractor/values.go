package extractor

import (
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"
)

type valueKind int

const (
	valNull valueKind = iota
	valString
	valNumber
	valArray
	valObject
)

func (k valueKind) String() string {
	switch k {
	case valNull:
		return "null"
	case valString:
		return "string"
	case valNumber:
		return "number"
	case valArray:
		return "array"
	case valObject:
		return "object"
	}
	return "value"
}

// literal is a decoded JavaScript literal. Only the subset Doxygen emits is
// supported.
type literal struct {
	kind   valueKind
	str    string
	num    int
	items  []literal
	keys   []string
	fields []literal
	node   *sitter.Node
}

// decodeLiteral converts a tree-sitter expression node into a literal.
func decodeLiteral(n *sitter.Node, src []byte) (literal, error) {
	switch n.Type() {
	case "null":
		return literal{kind: valNull, node: n}, nil
	case "string":
		s, err := unquoteJS(n.Content(src))
		if err != nil {
			return literal{}, errorAt(n, "%v", err)
		}
		return literal{kind: valString, str: s, node: n}, nil
	case "number":
		v, err := strconv.Atoi(n.Content(src))
		if err != nil {
			return literal{}, errorAt(n, "unsupported number literal %q", n.Content(src))
		}
		return literal{kind: valNumber, num: v, node: n}, nil
	case "parenthesized_expression":
		if n.NamedChildCount() == 1 {
			return decodeLiteral(n.NamedChild(0), src)
		}
	case "array":
		out := literal{kind: valArray, node: n, items: []literal{}}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() == "comment" {
				continue
			}
			item, err := decodeLiteral(c, src)
			if err != nil {
				return literal{}, err
			}
			out.items = append(out.items, item)
		}
		return out, nil
	case "object":
		out := literal{kind: valObject, node: n}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() == "comment" {
				continue
			}
			if c.Type() != "pair" {
				return literal{}, errorAt(c, "unsupported object member %s", c.Type())
			}
			key, err := decodeKey(c.ChildByFieldName("key"), src)
			if err != nil {
				return literal{}, err
			}
			val, err := decodeLiteral(c.ChildByFieldName("value"), src)
			if err != nil {
				return literal{}, err
			}
			out.keys = append(out.keys, key)
			out.fields = append(out.fields, val)
		}
		return out, nil
	}
	return literal{}, errorAt(n, "unsupported expression %s", n.Type())
}

func decodeKey(n *sitter.Node, src []byte) (string, error) {
	if n == nil {
		return "", &ParseError{Msg: "object member without key"}
	}
	switch n.Type() {
	case "string":
		s, err := unquoteJS(n.Content(src))
		if err != nil {
			return "", errorAt(n, "%v", err)
		}
		return s, nil
	case "property_identifier", "number":
		return n.Content(src), nil
	}
	return "", errorAt(n, "unsupported object key %s", n.Type())
}
