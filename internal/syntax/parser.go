package syntax

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// ParseError reports source that tree-sitter could not parse cleanly.
type ParseError struct {
	Path   string
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s:%d:%d: %s", e.Path, e.Line, e.Column, e.Msg)
}

var skipKinds = map[string]bool{
	"line_comment":  true,
	"block_comment": true,
}

// Parse builds a Tree for one Rust source file. The tree-sitter tree is
// released before returning; the result only references src.
func Parse(ctx context.Context, path string, src []byte) (*Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(rust.GetLanguage())

	st, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer st.Close()

	root := st.RootNode()
	if root.HasError() {
		return nil, describeError(path, root, src)
	}
	t := &Tree{Path: path, Source: src}
	t.Root = convert(root, "", src)
	t.Functions = collectFunctions(t.Root)
	return t, nil
}

func convert(n *sitter.Node, field string, src []byte) *Node {
	out := &Node{
		Kind:      n.Type(),
		Field:     field,
		Start:     toPosition(n.StartPoint()),
		End:       toPosition(n.EndPoint()),
		startByte: n.StartByte(),
		endByte:   n.EndByte(),
		src:       src,
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || skipKinds[c.Type()] {
			continue
		}
		f := n.FieldNameForChild(i)
		// keep anonymous tokens only when they carry a field (operators)
		if !c.IsNamed() && f == "" {
			continue
		}
		out.Children = append(out.Children, convert(c, f, src))
	}
	return out
}

func toPosition(p sitter.Point) Position {
	return Position{Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

func describeError(path string, root *sitter.Node, src []byte) *ParseError {
	var bad *sitter.Node
	var find func(n *sitter.Node)
	find = func(n *sitter.Node) {
		if bad != nil {
			return
		}
		if n.Type() == "ERROR" || n.IsMissing() {
			bad = n
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			if c != nil && (c.HasError() || c.IsMissing()) {
				find(c)
			}
		}
	}
	find(root)
	if bad == nil {
		return &ParseError{Path: path, Line: 1, Column: 1, Msg: "syntax error"}
	}
	pos := toPosition(bad.StartPoint())
	msg := "unexpected input"
	if bad.IsMissing() {
		msg = fmt.Sprintf("missing %q", bad.Type())
	} else if text := strings.TrimSpace(bad.Content(src)); text != "" {
		if len(text) > 40 {
			text = text[:40] + "..."
		}
		msg = fmt.Sprintf("unexpected %q", text)
	}
	return &ParseError{Path: path, Line: pos.Line, Column: pos.Column, Msg: msg}
}

// collectFunctions finds every fn with a body: free functions, methods in
// impl blocks and functions nested in modules.
func collectFunctions(root *Node) []*Function {
	var out []*Function
	var visit func(n *Node)
	visit = func(n *Node) {
		for i, c := range n.Children {
			if c.Kind == "function_item" {
				if fn := newFunction(c, n.Children[:i]); fn != nil {
					out = append(out, fn)
				}
			}
			visit(c)
		}
	}
	visit(root)
	return out
}

func newFunction(n *Node, preceding []*Node) *Function {
	body := n.ChildByField("body")
	name := n.ChildByField("name")
	if body == nil || name == nil {
		return nil
	}
	fn := &Function{
		Name: name.Text(),
		Body: body,
		Pos:  n.Start,
		Node: n,
	}
	// outer attributes are siblings directly above the item
	start := len(preceding)
	for start > 0 && preceding[start-1].Kind == "attribute_item" {
		start--
	}
	for _, a := range preceding[start:] {
		fn.Attrs = append(fn.Attrs, Attribute{Text: collapseSpace(a.Text()), Pos: a.Start, Node: a})
	}
	if params := n.ChildByField("parameters"); params != nil {
		for _, p := range params.Children {
			if p.Kind != "parameter" {
				continue
			}
			pat, typ := p.ChildByField("pattern"), p.ChildByField("type")
			if pat == nil || typ == nil {
				continue
			}
			fn.Params = append(fn.Params, Param{
				Name: strings.TrimSpace(strings.TrimPrefix(pat.Text(), "mut ")),
				Type: collapseSpace(typ.Text()),
				Pos:  p.Start,
				Node: p,
			})
		}
	}
	fn.Signature = collapseSpace(string(n.src[n.startByte:body.startByte]))
	return fn
}
