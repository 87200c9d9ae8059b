// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Template structure, the root container for all
// configuration loaded from a user's .hcl files.
//
// Why have a Template?
//
// A deployment description is rarely a single file. Users split params,
// variables, and resources across files and directories, and references
// routinely cross file boundaries. The Template aggregates every declared
// block into one unified view so that the graph builder and evaluator can
// resolve dependencies workspace-wide.
package template

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stencilgo/internal/nodeid"
)

// Parameter is an externally-supplied value, immutable once resolved at
// plan start.
type Parameter struct {
	Name string
	Type cty.Type

	// Default is evaluated when no external value is supplied; nil means
	// the parameter is required.
	Default hcl.Expression
	// Allowed, when non-nil, is a tuple expression restricting the
	// resolved value.
	Allowed hcl.Expression

	DeclRange hcl.Range
}

// Variable is a named expression over params and other variables.
type Variable struct {
	Name  string
	Value hcl.Expression

	DeclRange hcl.Range
}

// Node is a declared resource or module group.
type Node struct {
	Addr nodeid.Address

	// Type is the provider-facing resource type; empty for module groups.
	Type string

	// NameExpr resolves to the deployment name; nil means the label is used.
	NameExpr hcl.Expression
	// Condition gates inclusion; nil means always true.
	Condition hcl.Expression
	// DependsOn lists explicit ordering references; may be nil.
	DependsOn hcl.Expression

	// Properties maps property name to its defining expression.
	Properties map[string]hcl.Expression

	// Group is the owning module address for nodes declared inside a
	// module block; nil for top-level nodes.
	Group *nodeid.Address
	// Children lists the member addresses of a module group, in
	// declaration order. Empty for resources.
	Children []nodeid.Address

	// DeclOrder is the node's position in overall declaration order. It is
	// the tie-break for evaluation ordering, so plans are reproducible.
	DeclOrder int

	DeclRange hcl.Range
}

// Template is the unified view of every block declared across all loaded
// files. It is immutable after Load returns.
type Template struct {
	Params    map[string]*Parameter
	Variables map[string]*Variable

	// Nodes holds resources and module groups in declaration order.
	Nodes []*Node

	// Sources maps file names to raw bytes, for diagnostic snippets and
	// canonical expression text.
	Sources map[string][]byte

	paramOrder    []string
	variableOrder []string
	byAddr        map[nodeid.Address]*Node
}

// Node looks up a node by address.
func (t *Template) Node(addr nodeid.Address) (*Node, bool) {
	n, ok := t.byAddr[addr]
	return n, ok
}

// ParamOrder returns parameter names in declaration order.
func (t *Template) ParamOrder() []string {
	return t.paramOrder
}

// VariableOrder returns variable names in declaration order.
func (t *Template) VariableOrder() []string {
	return t.variableOrder
}
