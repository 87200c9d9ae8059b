// Package environment resolves a template's parameters and variables into
// the read-only value map every later pass evaluates against.
package environment

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/vk/stencilgo/internal/ctxlog"
	"github.com/vk/stencilgo/internal/expr"
	"github.com/vk/stencilgo/internal/graph"
	"github.com/vk/stencilgo/internal/nodeid"
	"github.com/vk/stencilgo/internal/template"
)

// Environment is the resolved parameter and variable values, shared
// read-only during evaluation.
type Environment struct {
	Params    map[string]cty.Value
	Variables map[string]cty.Value
}

// Scope returns an expression scope over the environment. nodes may be nil
// when node references are out of scope.
func (e *Environment) Scope(nodes expr.NodeReader, funcs map[string]function.Function) *expr.Scope {
	return &expr.Scope{
		Params:    e.Params,
		Variables: e.Variables,
		Nodes:     nodes,
		Functions: funcs,
	}
}

// Resolve computes the environment for a template. overrides carries
// externally-supplied parameter values (CLI flags merged over a params
// file); raw strings are converted to each parameter's declared type.
func Resolve(ctx context.Context, tpl *template.Template, overrides map[string]string, funcs map[string]function.Function) (*Environment, error) {
	logger := ctxlog.FromContext(ctx)

	env := &Environment{
		Params:    map[string]cty.Value{},
		Variables: map[string]cty.Value{},
	}

	// Parameters resolve first, in declaration order, so a default may
	// reference params declared before it.
	for _, name := range tpl.ParamOrder() {
		p := tpl.Params[name]
		val, err := resolveParam(env, p, overrides, funcs)
		if err != nil {
			return nil, err
		}
		env.Params[name] = val
	}

	for name := range overrides {
		if _, declared := tpl.Params[name]; !declared {
			known := tpl.ParamOrder()
			msg := fmt.Sprintf("value supplied for undeclared param %q", name)
			if suggestion := expr.NameSuggestion(name, known); suggestion != "" {
				msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
			}
			return nil, fmt.Errorf("%s", msg)
		}
	}

	if err := resolveVariables(env, tpl, funcs); err != nil {
		return nil, err
	}

	logger.Debug("Environment resolved.", "params", len(env.Params), "variables", len(env.Variables))
	return env, nil
}

// resolveParam applies the precedence chain and validates the result.
func resolveParam(env *Environment, p *template.Parameter, overrides map[string]string, funcs map[string]function.Function) (cty.Value, error) {
	var val cty.Value

	if raw, ok := overrides[p.Name]; ok {
		converted, err := convert.Convert(cty.StringVal(raw), p.Type)
		if err != nil {
			return cty.NilVal, fmt.Errorf("param %q: cannot convert %q to %s: %w", p.Name, raw, p.Type.FriendlyName(), err)
		}
		val = converted
	} else if p.Default != nil {
		defaultVal, err := expr.Evaluate(p.Default, env.Scope(nil, funcs))
		if err != nil {
			return cty.NilVal, fmt.Errorf("param %q: invalid default: %w", p.Name, err)
		}
		converted, convErr := convert.Convert(defaultVal, p.Type)
		if convErr != nil {
			return cty.NilVal, fmt.Errorf("param %q: default does not match declared type %s: %w", p.Name, p.Type.FriendlyName(), convErr)
		}
		val = converted
	} else {
		return cty.NilVal, fmt.Errorf("param %q: no value supplied and no default declared", p.Name)
	}

	if p.Allowed != nil {
		if err := checkAllowed(env, p, val, funcs); err != nil {
			return cty.NilVal, err
		}
	}
	return val, nil
}

// checkAllowed enforces the allowed-value set of a parameter.
func checkAllowed(env *Environment, p *template.Parameter, val cty.Value, funcs map[string]function.Function) error {
	allowedVal, err := expr.Evaluate(p.Allowed, env.Scope(nil, funcs))
	if err != nil {
		return fmt.Errorf("param %q: invalid allowed set: %w", p.Name, err)
	}
	if !allowedVal.Type().IsTupleType() && !allowedVal.Type().IsListType() {
		return fmt.Errorf("param %q: allowed must be a list of values", p.Name)
	}

	for it := allowedVal.ElementIterator(); it.Next(); {
		_, candidate := it.Element()
		converted, convErr := convert.Convert(candidate, p.Type)
		if convErr != nil {
			continue
		}
		if converted.RawEquals(val) {
			return nil
		}
	}
	return fmt.Errorf("param %q: value %s is not in the allowed set", p.Name, val.GoString())
}

// resolveVariables evaluates variables in reference order, rejecting
// definition cycles before evaluating anything.
func resolveVariables(env *Environment, tpl *template.Template, funcs map[string]function.Function) error {
	g := graph.New()
	for _, name := range tpl.VariableOrder() {
		g.AddNode(nodeid.Address{Kind: nodeid.KindVariable, Label: name}.String())
	}

	for _, name := range tpl.VariableOrder() {
		v := tpl.Variables[name]
		consumer := nodeid.Address{Kind: nodeid.KindVariable, Label: name}
		for _, ref := range expr.References(v.Value) {
			if ref.Target.Kind != nodeid.KindVariable {
				continue
			}
			if ref.Target == consumer {
				return &graph.CyclicDependencyError{Node: consumer.String()}
			}
			if _, declared := tpl.Variables[ref.Target.Label]; !declared {
				// Evaluation reports undeclared names with a suggestion.
				continue
			}
			if err := g.AddEdge(consumer.String(), ref.Target.String()); err != nil {
				return err
			}
		}
	}

	order, err := g.TopoSort()
	if err != nil {
		return err
	}

	for _, id := range order {
		addr, parseErr := nodeid.Parse(id)
		if parseErr != nil {
			return parseErr
		}
		v := tpl.Variables[addr.Label]
		val, evalErr := expr.Evaluate(v.Value, env.Scope(nil, funcs))
		if evalErr != nil {
			return fmt.Errorf("variable %q: %w", v.Name, evalErr)
		}
		env.Variables[v.Name] = val
	}
	return nil
}
