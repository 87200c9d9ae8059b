package expr

import (
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/vk/stencilgo/internal/nodeid"
)

// NodeValue is what a producer node publishes to consumers during the
// evaluation pass.
type NodeValue struct {
	// Value is an object of the node's published properties (its evaluated
	// properties plus "name").
	Value cty.Value
	// Excluded marks a node whose condition resolved false. Its Value is
	// still populated (the eager contract), but reads of it from other
	// nodes fail with ReferenceUnavailableError.
	Excluded bool
	// ConditionRefs are the canonical param/var references appearing in the
	// node's condition; guards are matched against these.
	ConditionRefs []string
}

// NodeReader supplies published node values to the evaluator. The
// evaluation pass implements it over its own partial results; it is nil
// while resolving the environment, where node references are not legal.
type NodeReader interface {
	// NodeValue returns the published value for a node address.
	NodeValue(addr nodeid.Address) (NodeValue, bool)
	// NodeLabels returns all known labels for a kind, for suggestions.
	NodeLabels(kind nodeid.Kind) []string
}

// Scope is the read-only environment an expression is evaluated against.
type Scope struct {
	Params    map[string]cty.Value
	Variables map[string]cty.Value

	// Nodes may be nil when node references are out of scope (parameter
	// defaults, variable definitions).
	Nodes NodeReader

	// Functions is the injected external-function table; nil means no
	// functions are callable.
	Functions map[string]function.Function
}
