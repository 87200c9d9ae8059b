// Package schema declares the HCL block structures a template file may
// contain. The structs here are decode targets for gohcl; the template
// package turns them into the runtime model.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// TemplateFile is the top-level structure of a single template file.
type TemplateFile struct {
	Params    []*ParamBlock    `hcl:"param,block"`
	Variables []*VariableBlock `hcl:"variable,block"`
	Resources []*ResourceBlock `hcl:"resource,block"`
	Modules   []*ModuleBlock   `hcl:"module,block"`
}

// ParamBlock declares an externally-supplied value, immutable once resolved
// at plan start.
type ParamBlock struct {
	Name string `hcl:"name,label"`

	// Type is a type keyword expression: string, number, or bool.
	Type hcl.Expression `hcl:"type"`
	// Default, when present, is evaluated if no external value is supplied.
	Default hcl.Expression `hcl:"default,optional"`
	// Allowed, when present, is a tuple restricting the resolved value.
	Allowed hcl.Expression `hcl:"allowed,optional"`
}

// VariableBlock declares a named expression over params and other variables.
type VariableBlock struct {
	Name  string         `hcl:"name,label"`
	Value hcl.Expression `hcl:"value"`
}

// ResourceBlock declares a deployable node.
type ResourceBlock struct {
	// Type is the provider-facing resource type, e.g. "storageAccount".
	Type string `hcl:"type,label"`
	// Label is the template-local identifier used in references.
	Label string `hcl:"label,label"`

	// Name resolves to the deployment name; defaults to the label.
	Name hcl.Expression `hcl:"name,optional"`
	// Condition gates inclusion in the plan; defaults to true.
	Condition hcl.Expression `hcl:"condition,optional"`
	// DependsOn lists explicit ordering edges, e.g. [resource.net].
	DependsOn hcl.Expression `hcl:"depends_on,optional"`

	Properties *PropertiesBlock `hcl:"properties,block"`
}

// PropertiesBlock carries the free-form property attributes of a resource.
// The body is kept raw: property names are not known up front, and the
// evaluator needs the original expressions, not decoded values.
type PropertiesBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// ModuleBlock groups resources under one shared condition so the planner
// treats them as a single unit.
type ModuleBlock struct {
	Label string `hcl:"name,label"`

	Condition hcl.Expression   `hcl:"condition,optional"`
	Resources []*ResourceBlock `hcl:"resource,block"`
}
