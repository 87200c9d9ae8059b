// Package planner turns an evaluated graph into an ordered deployment
// plan, enforcing the duplicate-name invariant before any operation is
// handed to a provider.
package planner

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stencilgo/internal/ctxlog"
	"github.com/vk/stencilgo/internal/evaluator"
	"github.com/vk/stencilgo/internal/nodeid"
	"github.com/vk/stencilgo/internal/template"
)

// OpKind classifies a plan operation.
type OpKind string

const (
	// OpCreate deploys a resource through its provider handler.
	OpCreate OpKind = "create"
	// OpCreateScope opens a module scope before its members deploy.
	OpCreateScope OpKind = "create-scope"
	// OpSkip records a node excluded by its condition.
	OpSkip OpKind = "skip"
)

// Operation is a single entry of the finalized plan.
type Operation struct {
	Kind OpKind
	Node nodeid.Address
	// Type is the provider-facing resource type; empty for module scopes.
	Type string
	// Name is the resolved deployment name.
	Name string
	// Properties is the evaluated property object. Skips carry NilVal;
	// excluded values never reach a provider.
	Properties cty.Value
}

// Plan is the ordered, finalized set of include/skip decisions ready for
// execution by a provider.
type Plan struct {
	// ID uniquely identifies this plan run.
	ID string
	// Operations are in evaluation order: producers before consumers.
	Operations []Operation
}

// DuplicateNameError reports two nodes resolving to the same deployment
// name while both can be included.
type DuplicateNameError struct {
	Name  string
	Nodes []nodeid.Address
}

func (e *DuplicateNameError) Error() string {
	ids := make([]string, 0, len(e.Nodes))
	for _, addr := range e.Nodes {
		ids = append(ids, addr.String())
	}
	return fmt.Sprintf("duplicate deployment name %q declared by %v", e.Name, ids)
}

// BuildPlan converts an evaluation result into a plan. It fails with
// *DuplicateNameError before emitting anything when the name invariant is
// violated.
func BuildPlan(ctx context.Context, tpl *template.Template, res *evaluator.Result) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)

	if err := checkNameConflicts(tpl, res); err != nil {
		return nil, err
	}

	plan := &Plan{ID: uuid.NewString()}
	for _, addr := range res.Order {
		nr := res.Nodes[addr.String()]

		op := Operation{
			Node: addr,
			Type: nr.Node.Type,
			Name: nr.Name,
		}
		switch {
		case !nr.Included:
			op.Kind = OpSkip
		case addr.Kind == nodeid.KindModule:
			op.Kind = OpCreateScope
		default:
			op.Kind = OpCreate
			op.Properties = nr.Properties
		}
		plan.Operations = append(plan.Operations, op)
	}

	logger.Debug("Plan built.", "plan_id", plan.ID, "operations", len(plan.Operations))
	return plan, nil
}

// checkNameConflicts applies the conservative duplicate-name policy:
// nodes sharing a resolved name conflict when more than one is included,
// or when more than one could be included and their conditions cannot be
// statically proven disjoint. Members of the same module group count as a
// single unit and never conflict with each other through this check.
func checkNameConflicts(tpl *template.Template, res *evaluator.Result) error {
	byName := map[string][]*evaluator.NodeResult{}
	var names []string
	for _, addr := range res.Order {
		nr := res.Nodes[addr.String()]
		key := string(addr.Kind) + ":" + nr.Name
		if _, seen := byName[key]; !seen {
			names = append(names, key)
		}
		byName[key] = append(byName[key], nr)
	}

	for _, key := range names {
		group := byName[key]
		if len(group) < 2 {
			continue
		}

		included := make([]*evaluator.NodeResult, 0, len(group))
		for _, nr := range group {
			if nr.Included {
				included = append(included, nr)
			}
		}
		if len(included) > 1 {
			return conflictError(group[0].Name, included)
		}

		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if sameUnit(a.Node, b.Node) {
					continue
				}
				if provablyDisjoint(a.Node, b.Node, tpl) {
					continue
				}
				return conflictError(a.Name, []*evaluator.NodeResult{a, b})
			}
		}
	}
	return nil
}

func conflictError(name string, results []*evaluator.NodeResult) error {
	err := &DuplicateNameError{Name: name}
	for _, nr := range results {
		err.Nodes = append(err.Nodes, nr.Node.Addr)
	}
	return err
}

// sameUnit reports whether two nodes belong to the same planning unit.
func sameUnit(a, b *template.Node) bool {
	if a.Group != nil && b.Group != nil && *a.Group == *b.Group {
		return true
	}
	return false
}
