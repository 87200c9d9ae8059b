package graph

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/stencilgo/internal/ctxlog"
	"github.com/vk/stencilgo/internal/expr"
	"github.com/vk/stencilgo/internal/nodeid"
	"github.com/vk/stencilgo/internal/template"
)

// Build constructs a validated dependency graph from a loaded template.
// Edges run consumer -> producer. Cycle detection runs before returning,
// so callers never evaluate a cyclic template.
func Build(ctx context.Context, tpl *template.Template) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: starting graph construction.")

	g := New()
	for _, n := range tpl.Nodes {
		g.AddNode(n.Addr.String())
	}
	logger.Debug("Build: node creation complete.", "node_count", g.Len())

	for _, n := range tpl.Nodes {
		if err := linkNode(tpl, g, n); err != nil {
			return nil, err
		}
	}
	logger.Debug("Build: node linking complete.")

	if err := g.DetectCycles(); err != nil {
		return nil, err
	}
	logger.Debug("Build: cycle detection passed.")

	return g, nil
}

// linkNode adds the dependency edges a single node's expressions imply.
func linkNode(tpl *template.Template, g *Graph, n *template.Node) error {
	exprs := []hcl.Expression{n.NameExpr, n.Condition}
	for _, propExpr := range n.Properties {
		exprs = append(exprs, propExpr)
	}

	for _, ref := range expr.References(exprs...) {
		if !ref.Target.IsNode() {
			continue
		}
		if err := addRefEdge(tpl, g, n, ref.Target); err != nil {
			return err
		}
	}

	// Explicit depends_on entries are bare references, e.g. [resource.net].
	if n.DependsOn != nil {
		items, diags := hcl.ExprList(n.DependsOn)
		if diags.HasErrors() {
			return fmt.Errorf("depends_on of %s must be a list of references: %w", n.Addr.String(), diags)
		}
		for _, item := range items {
			refs := expr.References(item)
			if len(refs) != 1 || !refs[0].Target.IsNode() || len(refs[0].Path) != 0 {
				return fmt.Errorf("depends_on of %s must name resources or modules directly (at %s)",
					n.Addr.String(), item.Range().String())
			}
			if err := addRefEdge(tpl, g, n, refs[0].Target); err != nil {
				return err
			}
		}
	}

	// A module member follows its group scope.
	if n.Group != nil {
		if err := g.AddEdge(n.Addr.String(), n.Group.String()); err != nil {
			return err
		}
	}

	return nil
}

// addRefEdge validates the referenced producer exists and records the edge.
func addRefEdge(tpl *template.Template, g *Graph, consumer *template.Node, producer nodeid.Address) error {
	if consumer.Addr == producer {
		// Self-references surface as a cycle, with the richer message.
		return &CyclicDependencyError{Node: producer.String()}
	}

	if _, ok := tpl.Node(producer); !ok {
		var known []string
		for _, other := range tpl.Nodes {
			if other.Addr.Kind == producer.Kind {
				known = append(known, other.Addr.Label)
			}
		}
		msg := fmt.Sprintf("%s references undeclared node %s", consumer.Addr.String(), producer.String())
		if suggestion := expr.NameSuggestion(producer.Label, known); suggestion != "" {
			msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
		}
		return fmt.Errorf("%s", msg)
	}

	return g.AddEdge(consumer.Addr.String(), producer.String())
}
