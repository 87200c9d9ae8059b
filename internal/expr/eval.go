package expr

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/stencilgo/internal/nodeid"
)

// Evaluate resolves an expression against the scope. It returns one of the
// error types declared in this package when evaluation fails.
func Evaluate(e hcl.Expression, scope *Scope) (cty.Value, error) {
	syntaxExpr, ok := e.(hclsyntax.Expression)
	if !ok {
		return cty.NilVal, &InvalidExpressionError{
			Detail:  "expression does not come from native template syntax",
			Subject: e.Range(),
		}
	}
	return eval(syntaxExpr, scope)
}

// EvaluateBool resolves an expression and converts the result to a boolean.
func EvaluateBool(e hcl.Expression, scope *Scope) (bool, error) {
	v, err := Evaluate(e, scope)
	if err != nil {
		return false, err
	}
	b, err := toBool(v, e.Range())
	if err != nil {
		return false, err
	}
	return b, nil
}

// EvaluateString resolves an expression and converts the result to a string.
func EvaluateString(e hcl.Expression, scope *Scope) (string, error) {
	v, err := Evaluate(e, scope)
	if err != nil {
		return "", err
	}
	sv, convErr := convert.Convert(v, cty.String)
	if convErr != nil || sv.IsNull() {
		return "", &InvalidExpressionError{
			Detail:  "expression must produce a string",
			Subject: e.Range(),
		}
	}
	return sv.AsString(), nil
}

// eval is the recursive AST walk. The switch mirrors the constructs the
// language supports; anything else is rejected rather than silently passed
// to hcl's own evaluator.
func eval(e hclsyntax.Expression, s *Scope) (cty.Value, error) {
	switch e := e.(type) {
	case *hclsyntax.LiteralValueExpr:
		return e.Val, nil

	case *hclsyntax.ParenthesesExpr:
		return eval(e.Expression, s)

	case *hclsyntax.TemplateWrapExpr:
		return eval(e.Wrapped, s)

	case *hclsyntax.TemplateExpr:
		return evalTemplate(e, s)

	case *hclsyntax.ScopeTraversalExpr:
		return evalTraversal(e.Traversal, s)

	case *hclsyntax.RelativeTraversalExpr:
		src, err := eval(e.Source, s)
		if err != nil {
			return cty.NilVal, err
		}
		return applySteps(src, e.Traversal, e.Range())

	case *hclsyntax.UnaryOpExpr:
		val, err := eval(e.Val, s)
		if err != nil {
			return cty.NilVal, err
		}
		result, opErr := e.Op.Impl.Call([]cty.Value{val})
		if opErr != nil {
			return cty.NilVal, &InvalidExpressionError{
				Detail:  fmt.Sprintf("unary operation failed: %s", opErr),
				Subject: e.Range(),
			}
		}
		return result, nil

	case *hclsyntax.BinaryOpExpr:
		// Both operands are evaluated before either error is reported;
		// there is no short-circuit, including for logical and/or.
		lhs, lhsErr := eval(e.LHS, s)
		rhs, rhsErr := eval(e.RHS, s)
		if lhsErr != nil {
			return cty.NilVal, lhsErr
		}
		if rhsErr != nil {
			return cty.NilVal, rhsErr
		}
		result, opErr := e.Op.Impl.Call([]cty.Value{lhs, rhs})
		if opErr != nil {
			return cty.NilVal, &InvalidExpressionError{
				Detail:  fmt.Sprintf("operation failed: %s", opErr),
				Subject: e.Range(),
			}
		}
		return result, nil

	case *hclsyntax.ConditionalExpr:
		return evalConditional(e, s)

	case *hclsyntax.FunctionCallExpr:
		return evalCall(e, s)

	case *hclsyntax.TupleConsExpr:
		vals := make([]cty.Value, 0, len(e.Exprs))
		for _, itemExpr := range e.Exprs {
			v, err := eval(itemExpr, s)
			if err != nil {
				return cty.NilVal, err
			}
			vals = append(vals, v)
		}
		if len(vals) == 0 {
			return cty.EmptyTupleVal, nil
		}
		return cty.TupleVal(vals), nil

	case *hclsyntax.ObjectConsExpr:
		attrs := map[string]cty.Value{}
		for _, item := range e.Items {
			key, err := evalObjectKey(item.KeyExpr, s)
			if err != nil {
				return cty.NilVal, err
			}
			val, err := eval(item.ValueExpr, s)
			if err != nil {
				return cty.NilVal, err
			}
			attrs[key] = val
		}
		return cty.ObjectVal(attrs), nil

	case *hclsyntax.IndexExpr:
		coll, err := eval(e.Collection, s)
		if err != nil {
			return cty.NilVal, err
		}
		key, err := eval(e.Key, s)
		if err != nil {
			return cty.NilVal, err
		}
		result, diags := hcl.Index(coll, key, e.SrcRange.Ptr())
		if diags.HasErrors() {
			return cty.NilVal, &InvalidExpressionError{
				Detail:  diags.Error(),
				Subject: e.SrcRange,
			}
		}
		return result, nil

	default:
		return cty.NilVal, &InvalidExpressionError{
			Detail:  fmt.Sprintf("unsupported expression construct %T", e),
			Subject: e.Range(),
		}
	}
}

// evalConditional implements the eager ternary contract: both branches are
// evaluated regardless of the condition's outcome. A ReferenceUnavailableError
// in the branch NOT selected is tolerated when the ternary's condition
// references one of the variables gating the excluded producer; that makes
// the ternary a guard. Errors in the selected branch always propagate.
func evalConditional(e *hclsyntax.ConditionalExpr, s *Scope) (cty.Value, error) {
	condVal, err := eval(e.Condition, s)
	if err != nil {
		return cty.NilVal, err
	}
	cond, err := toBool(condVal, e.Condition.Range())
	if err != nil {
		return cty.NilVal, err
	}

	trueVal, trueErr := eval(e.TrueResult, s)
	falseVal, falseErr := eval(e.FalseResult, s)

	chosenVal, chosenErr, otherErr := trueVal, trueErr, falseErr
	if !cond {
		chosenVal, chosenErr, otherErr = falseVal, falseErr, trueErr
	}

	if chosenErr != nil {
		return cty.NilVal, chosenErr
	}
	if otherErr != nil {
		var refErr *ReferenceUnavailableError
		if !errors.As(otherErr, &refErr) || !guardMatches(e.Condition, refErr) {
			return cty.NilVal, otherErr
		}
	}
	return chosenVal, nil
}

// guardMatches reports whether the ternary condition references any of the
// variables gating the excluded producer's condition.
func guardMatches(cond hclsyntax.Expression, refErr *ReferenceUnavailableError) bool {
	guardRefs := RootRefs(cond)
	for _, gr := range guardRefs {
		// A guard may also test the producer node directly.
		if gr == refErr.Node.String() {
			return true
		}
		for _, cr := range refErr.ConditionRefs {
			if gr == cr {
				return true
			}
		}
	}
	return false
}

// evalCall dispatches an external-function call through the injected table.
func evalCall(e *hclsyntax.FunctionCallExpr, s *Scope) (cty.Value, error) {
	fn, ok := s.Functions[e.Name]
	if !ok {
		known := make([]string, 0, len(s.Functions))
		for name := range s.Functions {
			known = append(known, name)
		}
		sort.Strings(known)
		return cty.NilVal, &InvalidExpressionError{
			Detail:     fmt.Sprintf("call to unknown function %q", e.Name),
			Subject:    e.NameRange,
			Suggestion: NameSuggestion(e.Name, known),
		}
	}

	args := make([]cty.Value, 0, len(e.Args))
	for _, argExpr := range e.Args {
		v, err := eval(argExpr, s)
		if err != nil {
			return cty.NilVal, err
		}
		args = append(args, v)
	}

	result, callErr := fn.Call(args)
	if callErr != nil {
		return cty.NilVal, &InvalidExpressionError{
			Detail:  fmt.Sprintf("call to %q failed: %s", e.Name, callErr),
			Subject: e.Range(),
		}
	}
	return result, nil
}

// evalTemplate concatenates the string renderings of all template parts.
func evalTemplate(e *hclsyntax.TemplateExpr, s *Scope) (cty.Value, error) {
	if len(e.Parts) == 1 {
		return eval(e.Parts[0], s)
	}

	var out string
	for _, part := range e.Parts {
		v, err := eval(part, s)
		if err != nil {
			return cty.NilVal, err
		}
		sv, convErr := convert.Convert(v, cty.String)
		if convErr != nil || sv.IsNull() {
			return cty.NilVal, &InvalidExpressionError{
				Detail:  "template interpolation must produce a string",
				Subject: part.Range(),
			}
		}
		out += sv.AsString()
	}
	return cty.StringVal(out), nil
}

// evalObjectKey resolves an object constructor key, honoring HCL's bare
// identifier shorthand ({ key = ... }).
func evalObjectKey(keyExpr hclsyntax.Expression, s *Scope) (string, error) {
	if wrapped, ok := keyExpr.(*hclsyntax.ObjectConsKeyExpr); ok {
		if kw := hcl.ExprAsKeyword(wrapped.Wrapped); kw != "" {
			return kw, nil
		}
		keyExpr = wrapped.Wrapped
	}
	v, err := eval(keyExpr, s)
	if err != nil {
		return "", err
	}
	sv, convErr := convert.Convert(v, cty.String)
	if convErr != nil || sv.IsNull() {
		return "", &InvalidExpressionError{
			Detail:  "object key must be a string",
			Subject: keyExpr.Range(),
		}
	}
	return sv.AsString(), nil
}

// evalTraversal resolves a variable reference like param.env or
// resource.audit.endpoint.
func evalTraversal(trav hcl.Traversal, s *Scope) (cty.Value, error) {
	rootName := trav.RootName()
	rng := trav.SourceRange()

	switch rootName {
	case "param":
		return evalEnvRef(trav, s.Params, "param", s, rng)
	case "var":
		return evalEnvRef(trav, s.Variables, "var", s, rng)
	case "resource", "module":
		return evalNodeRef(trav, s, rng)
	default:
		return cty.NilVal, &InvalidExpressionError{
			Detail:  fmt.Sprintf("unknown reference namespace %q; references must start with param, var, resource, or module", rootName),
			Subject: rng,
		}
	}
}

// evalEnvRef resolves a param.* or var.* reference against the environment.
func evalEnvRef(trav hcl.Traversal, values map[string]cty.Value, kind string, s *Scope, rng hcl.Range) (cty.Value, error) {
	name, rest, err := attrStep(trav, kind, rng)
	if err != nil {
		return cty.NilVal, err
	}

	val, ok := values[name]
	if !ok {
		known := make([]string, 0, len(values))
		for k := range values {
			known = append(known, k)
		}
		sort.Strings(known)
		return cty.NilVal, &InvalidExpressionError{
			Detail:     fmt.Sprintf("reference to undeclared %s %q", kind, name),
			Subject:    rng,
			Suggestion: NameSuggestion(name, known),
		}
	}
	return applySteps(val, rest, rng)
}

// evalNodeRef resolves a resource.* or module.* reference through the
// NodeReader, enforcing the unavailable-reference rule for excluded nodes.
func evalNodeRef(trav hcl.Traversal, s *Scope, rng hcl.Range) (cty.Value, error) {
	kind := nodeid.Kind(trav.RootName())
	label, rest, err := attrStep(trav, string(kind), rng)
	if err != nil {
		return cty.NilVal, err
	}
	addr := nodeid.Address{Kind: kind, Label: label}

	if s.Nodes == nil {
		return cty.NilVal, &InvalidExpressionError{
			Detail:  fmt.Sprintf("%s references are not allowed in this context", kind),
			Subject: rng,
		}
	}

	nv, ok := s.Nodes.NodeValue(addr)
	if !ok {
		return cty.NilVal, &InvalidExpressionError{
			Detail:     fmt.Sprintf("reference to undeclared node %s", addr.String()),
			Subject:    rng,
			Suggestion: NameSuggestion(label, s.Nodes.NodeLabels(kind)),
		}
	}

	if nv.Excluded {
		var path []string
		for _, step := range rest {
			if attr, ok := step.(hcl.TraverseAttr); ok {
				path = append(path, attr.Name)
			}
		}
		return cty.NilVal, &ReferenceUnavailableError{
			Node:          addr,
			Path:          path,
			ConditionRefs: nv.ConditionRefs,
			Subject:       rng,
		}
	}

	return applySteps(nv.Value, rest, rng)
}

// attrStep extracts the first attribute step after a traversal root.
func attrStep(trav hcl.Traversal, kind string, rng hcl.Range) (string, hcl.Traversal, error) {
	if len(trav) < 2 {
		return "", nil, &InvalidExpressionError{
			Detail:  fmt.Sprintf("a %s reference requires a name, e.g. %s.example", kind, kind),
			Subject: rng,
		}
	}
	attr, ok := trav[1].(hcl.TraverseAttr)
	if !ok {
		return "", nil, &InvalidExpressionError{
			Detail:  fmt.Sprintf("a %s reference must select a name with dot notation", kind),
			Subject: rng,
		}
	}
	return attr.Name, trav[2:], nil
}

// applySteps walks the remaining traversal steps into a resolved value.
func applySteps(val cty.Value, steps hcl.Traversal, rng hcl.Range) (cty.Value, error) {
	for _, step := range steps {
		switch st := step.(type) {
		case hcl.TraverseAttr:
			next, err := attrValue(val, st.Name, st.SourceRange())
			if err != nil {
				return cty.NilVal, err
			}
			val = next
		case hcl.TraverseIndex:
			result, diags := hcl.Index(val, st.Key, st.SourceRange().Ptr())
			if diags.HasErrors() {
				return cty.NilVal, &InvalidExpressionError{
					Detail:  diags.Error(),
					Subject: st.SourceRange(),
				}
			}
			val = result
		default:
			return cty.NilVal, &InvalidExpressionError{
				Detail:  "unsupported traversal step",
				Subject: rng,
			}
		}
	}
	return val, nil
}

// attrValue reads a single attribute from an object or map value.
func attrValue(val cty.Value, name string, rng hcl.Range) (cty.Value, error) {
	if val.IsNull() {
		return cty.NilVal, &InvalidExpressionError{
			Detail:  fmt.Sprintf("attempt to read property %q of a null value", name),
			Subject: rng,
		}
	}

	ty := val.Type()
	switch {
	case ty.IsObjectType():
		if !ty.HasAttribute(name) {
			known := make([]string, 0)
			for attr := range ty.AttributeTypes() {
				known = append(known, attr)
			}
			sort.Strings(known)
			return cty.NilVal, &InvalidExpressionError{
				Detail:     fmt.Sprintf("value has no property %q", name),
				Subject:    rng,
				Suggestion: NameSuggestion(name, known),
			}
		}
		return val.GetAttr(name), nil
	case ty.IsMapType():
		key := cty.StringVal(name)
		has := val.HasIndex(key)
		if has.False() {
			return cty.NilVal, &InvalidExpressionError{
				Detail:  fmt.Sprintf("map has no element %q", name),
				Subject: rng,
			}
		}
		return val.Index(key), nil
	default:
		return cty.NilVal, &InvalidExpressionError{
			Detail:  fmt.Sprintf("cannot read property %q from a %s value", name, ty.FriendlyName()),
			Subject: rng,
		}
	}
}

// toBool converts a condition result to a native bool.
func toBool(v cty.Value, rng hcl.Range) (bool, error) {
	bv, convErr := convert.Convert(v, cty.Bool)
	if convErr != nil || bv.IsNull() || !bv.IsKnown() {
		return false, &InvalidExpressionError{
			Detail:  "condition must produce a boolean",
			Subject: rng,
		}
	}
	return bv.True(), nil
}
