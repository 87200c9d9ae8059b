package planner

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/stencilgo/internal/expr"
	"github.com/vk/stencilgo/internal/template"
)

// provablyDisjoint reports whether two nodes' effective conditions can be
// statically proven mutually exclusive. The prover is minimal and purely
// syntactic; anything it cannot recognize counts as "cannot prove".
//
// Recognized forms:
//   - ref == lit1  vs  ref == lit2   (same reference, different literals)
//   - e            vs  !e            (identical canonical source text)
func provablyDisjoint(a, b *template.Node, tpl *template.Template) bool {
	for _, condA := range effectiveConditions(a, tpl) {
		for _, condB := range effectiveConditions(b, tpl) {
			if disjointPair(condA, condB, tpl.Sources) {
				return true
			}
		}
	}
	return false
}

// effectiveConditions collects a node's own condition plus its group's.
func effectiveConditions(n *template.Node, tpl *template.Template) []hcl.Expression {
	var conds []hcl.Expression
	if n.Condition != nil {
		conds = append(conds, n.Condition)
	}
	if n.Group != nil {
		if group, ok := tpl.Node(*n.Group); ok && group.Condition != nil {
			conds = append(conds, group.Condition)
		}
	}
	return conds
}

func disjointPair(a, b hcl.Expression, sources map[string][]byte) bool {
	sa, okA := asSyntax(a)
	sb, okB := asSyntax(b)
	if !okA || !okB {
		return false
	}

	if negationOf(sa, sb, sources) || negationOf(sb, sa, sources) {
		return true
	}

	refA, litA, okA := equalityParts(sa)
	refB, litB, okB := equalityParts(sb)
	if okA && okB && refA == refB && !litA.RawEquals(litB) {
		return true
	}

	return false
}

func asSyntax(e hcl.Expression) (hclsyntax.Expression, bool) {
	se, ok := e.(hclsyntax.Expression)
	if !ok {
		return nil, false
	}
	return unwrap(se), true
}

// unwrap strips parentheses and template wrapping so the prover sees the
// structural expression.
func unwrap(e hclsyntax.Expression) hclsyntax.Expression {
	for {
		switch inner := e.(type) {
		case *hclsyntax.ParenthesesExpr:
			e = inner.Expression
		case *hclsyntax.TemplateWrapExpr:
			e = inner.Wrapped
		default:
			return e
		}
	}
}

// negationOf reports whether a is the logical negation of b, compared by
// canonical source text.
func negationOf(a, b hclsyntax.Expression, sources map[string][]byte) bool {
	unary, ok := a.(*hclsyntax.UnaryOpExpr)
	if !ok || unary.Op != hclsyntax.OpLogicalNot {
		return false
	}
	negated := expr.SourceText(unwrap(unary.Val), sources)
	return negated != "" && negated == expr.SourceText(b, sources)
}

// equalityParts decomposes `ref == literal` (either operand order) into a
// canonical traversal key and the literal value.
func equalityParts(e hclsyntax.Expression) (string, cty.Value, bool) {
	binary, ok := e.(*hclsyntax.BinaryOpExpr)
	if !ok || binary.Op != hclsyntax.OpEqual {
		return "", cty.NilVal, false
	}

	lhs, rhs := unwrap(binary.LHS), unwrap(binary.RHS)
	if ref, lit, ok := refAndLiteral(lhs, rhs); ok {
		return ref, lit, true
	}
	if ref, lit, ok := refAndLiteral(rhs, lhs); ok {
		return ref, lit, true
	}
	return "", cty.NilVal, false
}

func refAndLiteral(refSide, litSide hclsyntax.Expression) (string, cty.Value, bool) {
	traversalExpr, ok := refSide.(*hclsyntax.ScopeTraversalExpr)
	if !ok {
		return "", cty.NilVal, false
	}

	lit, ok := literalValue(litSide)
	if !ok {
		return "", cty.NilVal, false
	}
	return expr.TraversalKey(traversalExpr.Traversal), lit, true
}

// literalValue extracts a constant scalar from a literal or a literal-only
// template string.
func literalValue(e hclsyntax.Expression) (cty.Value, bool) {
	switch lit := e.(type) {
	case *hclsyntax.LiteralValueExpr:
		return lit.Val, true
	case *hclsyntax.TemplateExpr:
		if len(lit.Parts) != 1 {
			return cty.NilVal, false
		}
		part, ok := lit.Parts[0].(*hclsyntax.LiteralValueExpr)
		if !ok {
			return cty.NilVal, false
		}
		sv, err := convert.Convert(part.Val, cty.String)
		if err != nil {
			return cty.NilVal, false
		}
		return sv, true
	default:
		return cty.NilVal, false
	}
}
