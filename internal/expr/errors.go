package expr

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/stencilgo/internal/nodeid"
)

// ReferenceUnavailableError reports a read of a property published by a node
// that was excluded by its condition. It carries the canonical references
// gating the producer so that ternary guards can be matched against it.
type ReferenceUnavailableError struct {
	// Node is the excluded producer.
	Node nodeid.Address
	// Path is the property path the consumer tried to read.
	Path []string
	// ConditionRefs are the canonical param/var references appearing in the
	// producer's condition expression.
	ConditionRefs []string
	// Subject is the source location of the offending reference.
	Subject hcl.Range
}

func (e *ReferenceUnavailableError) Error() string {
	ref := nodeid.Ref{Target: e.Node, Path: e.Path}
	return fmt.Sprintf("reference to %s is unavailable: %s is excluded by its condition (at %s)",
		ref.String(), e.Node.String(), e.Subject.String())
}

// InvalidExpressionError reports an expression that cannot be evaluated:
// unknown names, type mismatches, unsupported constructs.
type InvalidExpressionError struct {
	Detail  string
	Subject hcl.Range
	// Suggestion, when non-empty, is a close-by known name.
	Suggestion string
}

func (e *InvalidExpressionError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "invalid expression at %s: %s", e.Subject.String(), e.Detail)
	if e.Suggestion != "" {
		fmt.Fprintf(&sb, " (did you mean %q?)", e.Suggestion)
	}
	return sb.String()
}
