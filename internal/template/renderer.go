package template

import (
	"maps"
	"strings"

	starctx "github.com/leapstack-labs/dynmacro/internal/starlark"
	"go.starlark.net/starlark"
)

// RenderString parses and renders a template in one step.
func RenderString(input, file string, ctx *starctx.ExecutionContext) (string, error) {
	tmpl, err := ParseString(input, file)
	if err != nil {
		return "", err
	}
	return tmpl.Render(ctx)
}

// Render executes the template against ctx and returns the produced text.
func (t *Template) Render(ctx *starctx.ExecutionContext) (string, error) {
	r := &renderer{ctx: ctx, file: t.File}
	if err := r.renderNodes(t.Nodes, starlark.StringDict{}); err != nil {
		return "", err
	}
	return r.out.String(), nil
}

// Globals returns the engine values the template was compiled with.
func (t *Template) Globals() starlark.StringDict {
	return maps.Clone(t.globals)
}

type renderer struct {
	ctx  *starctx.ExecutionContext
	file string
	out  strings.Builder
}

// renderNodes writes nodes to the output. locals is the current scope; set
// statements bind into it and loop bodies render in a copy of it.
func (r *renderer) renderNodes(nodes []Node, locals starlark.StringDict) error {
	for _, node := range nodes {
		if err := r.renderNode(node, locals); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) renderNode(node Node, locals starlark.StringDict) error {
	switch n := node.(type) {
	case *TextNode:
		r.out.WriteString(n.Text)

	case *ExprNode:
		s, err := r.ctx.EvalExprStringWithLocals(n.Expr, r.file, n.Pos().Line, locals)
		if err != nil {
			return WrapRenderError(n.Pos(), "expression failed", err)
		}
		r.out.WriteString(s)

	case *SetNode:
		v, err := r.eval(n.Expr, n.Pos(), locals)
		if err != nil {
			return err
		}
		locals[n.Name] = v

	case *ForBlock:
		return r.renderFor(n, locals)

	case *IfBlock:
		return r.renderIf(n, locals)

	default:
		return NewRenderErrorf(node.Pos(), "unexpected node type %T", node)
	}
	return nil
}

func (r *renderer) renderFor(n *ForBlock, locals starlark.StringDict) error {
	seq, err := r.eval(n.IterExpr, n.Pos(), locals)
	if err != nil {
		return err
	}

	iter := starlark.Iterate(seq)
	if iter == nil {
		return NewRenderErrorf(n.Pos(), "cannot iterate over %s", seq.Type())
	}
	defer iter.Done()

	var item starlark.Value
	for iter.Next(&item) {
		scope := maps.Clone(locals)
		scope[n.VarName] = item
		if err := r.renderNodes(n.Body, scope); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) renderIf(n *IfBlock, locals starlark.StringDict) error {
	ok, err := r.truth(n.Condition, n.Pos(), locals)
	if err != nil {
		return err
	}
	if ok {
		return r.renderNodes(n.Body, locals)
	}

	for _, branch := range n.ElseIfs {
		ok, err := r.truth(branch.Condition, branch.pos, locals)
		if err != nil {
			return err
		}
		if ok {
			return r.renderNodes(branch.Body, locals)
		}
	}

	if n.Else != nil {
		return r.renderNodes(n.Else, locals)
	}
	return nil
}

func (r *renderer) eval(expr string, pos Position, locals starlark.StringDict) (starlark.Value, error) {
	v, err := r.ctx.EvalExprWithLocals(expr, r.file, pos.Line, locals)
	if err != nil {
		return nil, WrapRenderError(pos, "expression failed", err)
	}
	return v, nil
}

func (r *renderer) truth(expr string, pos Position, locals starlark.StringDict) (bool, error) {
	v, err := r.eval(expr, pos, locals)
	if err != nil {
		return false, err
	}
	return bool(v.Truth()), nil
}
