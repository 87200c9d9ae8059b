// Package evaluator implements the conditional evaluation pass: walking
// the dependency graph in topological order, resolving every node's name,
// condition, and properties against the environment.
//
// The pass is eager: a node's property expressions are all evaluated even
// when its own condition excludes it, and the only escape is a ternary
// guard in the expression itself.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/vk/stencilgo/internal/ctxlog"
	"github.com/vk/stencilgo/internal/environment"
	"github.com/vk/stencilgo/internal/expr"
	"github.com/vk/stencilgo/internal/graph"
	"github.com/vk/stencilgo/internal/nodeid"
	"github.com/vk/stencilgo/internal/template"
)

// NodeResult is the evaluation outcome for a single node.
type NodeResult struct {
	Node *template.Node

	// Name is the resolved deployment name.
	Name string
	// Included reports whether the node's effective condition held. A
	// module member is included only when its own condition and its
	// group's condition both hold.
	Included bool
	// Properties is the object of evaluated property values. Populated
	// even for excluded nodes.
	Properties cty.Value
	// ConditionRefs are the canonical references gating this node,
	// including inherited group references.
	ConditionRefs []string
}

// Result is the annotated graph produced by the pass.
type Result struct {
	// Order is the evaluation order: producers first, declaration order
	// as the tie-break.
	Order []nodeid.Address
	// Nodes maps canonical address strings to their results.
	Nodes map[string]*NodeResult
}

// UnguardedReferenceError is the fatal surfacing of a ReferenceUnavailable
// failure that no guard absorbed.
type UnguardedReferenceError struct {
	// Consumer is the node whose expression failed.
	Consumer nodeid.Address
	// Property is the consumer's property being evaluated; empty when the
	// failure happened in the name or condition expression.
	Property string
	// Cause is the underlying unavailable reference.
	Cause *expr.ReferenceUnavailableError
}

func (e *UnguardedReferenceError) Error() string {
	where := e.Consumer.String()
	if e.Property != "" {
		where = fmt.Sprintf("%s.%s", where, e.Property)
	}
	return fmt.Sprintf("unguarded conditional reference in %s: %s", where, e.Cause.Error())
}

func (e *UnguardedReferenceError) Unwrap() error {
	return e.Cause
}

// Evaluate runs the conditional evaluation pass over a built graph.
func Evaluate(ctx context.Context, tpl *template.Template, env *environment.Environment, g *graph.Graph, funcs map[string]function.Function) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	ids, err := g.TopoSort()
	if err != nil {
		return nil, err
	}

	result := &Result{
		Nodes: map[string]*NodeResult{},
	}
	scope := env.Scope(resultReader{result}, funcs)

	for _, id := range ids {
		addr, parseErr := nodeid.Parse(id)
		if parseErr != nil {
			return nil, parseErr
		}
		node, ok := tpl.Node(addr)
		if !ok {
			return nil, fmt.Errorf("graph node %s not present in template", id)
		}

		nr, evalErr := evaluateNode(node, result, scope)
		if evalErr != nil {
			return nil, evalErr
		}

		result.Order = append(result.Order, addr)
		result.Nodes[id] = nr
		logger.Debug("Node evaluated.",
			"node", id,
			"name", nr.Name,
			"included", nr.Included,
		)
	}

	return result, nil
}

// evaluateNode resolves one node: name, condition, then every property.
func evaluateNode(node *template.Node, result *Result, scope *expr.Scope) (*NodeResult, error) {
	nr := &NodeResult{
		Node:          node,
		Name:          node.Addr.Label,
		Included:      true,
		ConditionRefs: expr.RootRefs(node.Condition),
	}

	if node.NameExpr != nil {
		name, err := expr.EvaluateString(node.NameExpr, scope)
		if err != nil {
			return nil, surfaceError(node.Addr, "", err)
		}
		nr.Name = name
	}

	if node.Condition != nil {
		included, err := expr.EvaluateBool(node.Condition, scope)
		if err != nil {
			return nil, surfaceError(node.Addr, "", err)
		}
		nr.Included = included
	}

	// A module member only deploys when its group does, and its guards
	// may legitimately test whatever gates the group.
	if node.Group != nil {
		group, ok := result.Nodes[node.Group.String()]
		if !ok {
			return nil, fmt.Errorf("module group %s evaluated after member %s", node.Group.String(), node.Addr.String())
		}
		nr.Included = nr.Included && group.Included
		nr.ConditionRefs = mergeRefs(nr.ConditionRefs, group.ConditionRefs)
	}

	// Property expressions are evaluated in sorted name order for
	// deterministic error reporting, and regardless of the condition
	// outcome above.
	attrs := map[string]cty.Value{
		"name": cty.StringVal(nr.Name),
	}
	for _, propName := range sortedPropertyNames(node) {
		v, err := expr.Evaluate(node.Properties[propName], scope)
		if err != nil {
			return nil, surfaceError(node.Addr, propName, err)
		}
		attrs[propName] = v
	}
	nr.Properties = cty.ObjectVal(attrs)

	return nr, nil
}

// surfaceError upgrades unavailable references to the fatal unguarded
// error; everything else passes through with node context attached.
func surfaceError(consumer nodeid.Address, property string, err error) error {
	var refErr *expr.ReferenceUnavailableError
	if errors.As(err, &refErr) {
		return &UnguardedReferenceError{
			Consumer: consumer,
			Property: property,
			Cause:    refErr,
		}
	}
	if property != "" {
		return fmt.Errorf("evaluating %s.%s: %w", consumer.String(), property, err)
	}
	return fmt.Errorf("evaluating %s: %w", consumer.String(), err)
}

func sortedPropertyNames(node *template.Node) []string {
	names := make([]string, 0, len(node.Properties))
	for name := range node.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func mergeRefs(a, b []string) []string {
	seen := map[string]struct{}{}
	for _, r := range a {
		seen[r] = struct{}{}
	}
	for _, r := range b {
		seen[r] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// resultReader adapts the in-progress Result to the expression scope.
// Topological order guarantees producers are present before any consumer
// asks for them.
type resultReader struct {
	result *Result
}

func (r resultReader) NodeValue(addr nodeid.Address) (expr.NodeValue, bool) {
	nr, ok := r.result.Nodes[addr.String()]
	if !ok {
		return expr.NodeValue{}, false
	}
	return expr.NodeValue{
		Value:         nr.Properties,
		Excluded:      !nr.Included,
		ConditionRefs: nr.ConditionRefs,
	}, true
}

func (r resultReader) NodeLabels(kind nodeid.Kind) []string {
	var labels []string
	for _, addr := range r.result.Order {
		if addr.Kind == kind {
			labels = append(labels, addr.Label)
		}
	}
	sort.Strings(labels)
	return labels
}
