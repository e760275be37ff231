package syntax

import (
	"strings"
)

// Position is a 1-based line and column. Columns count bytes.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Node is a read-only syntax node. Kind is the tree-sitter rust node type
// (function_item, binary_expression, ...). Field is the grammar field under
// which the node hangs from its parent, if any.
type Node struct {
	Kind     string
	Field    string
	Start    Position
	End      Position
	Children []*Node

	startByte uint32
	endByte   uint32
	src       []byte
}

func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	return string(n.src[n.startByte:n.endByte])
}

// ChildByField returns the first child hanging under field.
func (n *Node) ChildByField(field string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Field == field {
			return c
		}
	}
	return nil
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the children of the visited node.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// FindAll collects descendants (including n) whose kind is one of kinds.
func (n *Node) FindAll(kinds ...string) []*Node {
	var out []*Node
	n.Walk(func(c *Node) bool {
		for _, k := range kinds {
			if c.Kind == k {
				out = append(out, c)
				break
			}
		}
		return true
	})
	return out
}

// Contains reports whether other lies within n's byte range.
func (n *Node) Contains(other *Node) bool {
	return other.startByte >= n.startByte && other.endByte <= n.endByte
}

// Before reports whether n starts before other.
func (n *Node) Before(other *Node) bool {
	return n.startByte < other.startByte
}

type Attribute struct {
	Text string
	Pos  Position
	Node *Node
}

type Param struct {
	Name string
	Type string
	Pos  Position
	Node *Node
}

type Function struct {
	Name string
	// Attrs are the outer attributes (#[...]) written directly above the fn.
	Attrs  []Attribute
	Params []Param
	// Signature is the source text from the visibility modifier up to the
	// body, whitespace collapsed.
	Signature string
	Body      *Node
	Pos       Position
	Node      *Node
}

// Tree is the parsed form of one source file. It is never mutated after
// Parse returns and may be shared between goroutines.
type Tree struct {
	Path      string
	Source    []byte
	Root      *Node
	Functions []*Function
}

// Line returns the text of the 1-based line n without its line terminator.
func (t *Tree) Line(n int) string {
	lines := strings.Split(string(t.Source), "\n")
	if n < 1 || n > len(lines) {
		return ""
	}
	return strings.TrimRight(lines[n-1], "\r")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
