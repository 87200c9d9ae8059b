// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package template

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"

	"github.com/vk/stencilgo/internal/ctxlog"
	"github.com/vk/stencilgo/internal/fsutil"
	"github.com/vk/stencilgo/internal/nodeid"
	"github.com/vk/stencilgo/internal/schema"
)

// Load discovers all .hcl files under templatePath and merges them into a
// single Template. maxNodes caps the declared node count (resources plus
// module groups); zero or negative means no ceiling.
func Load(ctx context.Context, templatePath string, maxNodes int) (*Template, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading template from path", "path", templatePath)

	files, err := fsutil.FindFilesByExtension(templatePath, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to find template files in %s: %w", templatePath, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl template files found in %s", templatePath)
	}

	tpl := &Template{
		Params:    map[string]*Parameter{},
		Variables: map[string]*Variable{},
		byAddr:    map[nodeid.Address]*Node{},
	}

	parser := hclparse.NewParser()
	for _, file := range files {
		if err := loadFile(tpl, file, parser); err != nil {
			return nil, err
		}
	}

	tpl.Sources = map[string][]byte{}
	for name, f := range parser.Files() {
		tpl.Sources[name] = f.Bytes
	}

	if maxNodes > 0 && len(tpl.Nodes) > maxNodes {
		return nil, fmt.Errorf("template declares %d nodes, exceeding the configured ceiling of %d", len(tpl.Nodes), maxNodes)
	}

	logger.Debug("Template loaded",
		"files", len(files),
		"params", len(tpl.Params),
		"variables", len(tpl.Variables),
		"nodes", len(tpl.Nodes),
	)
	return tpl, nil
}

// loadFile parses a single file and merges its blocks into the template.
func loadFile(tpl *Template, filePath string, parser *hclparse.Parser) error {
	hclFile, diags := parser.ParseHCLFile(filePath)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL file %s: %w", filePath, diags)
	}

	var parsed schema.TemplateFile
	diags = gohcl.DecodeBody(hclFile.Body, nil, &parsed)
	if diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %w", filePath, diags)
	}

	for _, pb := range parsed.Params {
		if _, exists := tpl.Params[pb.Name]; exists {
			return fmt.Errorf("duplicate param %q declared in %s", pb.Name, filePath)
		}
		ptype, typeDiags := schema.TypeExprToCtyType(pb.Type)
		if typeDiags.HasErrors() {
			return fmt.Errorf("invalid param %q in %s: %w", pb.Name, filePath, typeDiags)
		}
		tpl.Params[pb.Name] = &Parameter{
			Name:      pb.Name,
			Type:      ptype,
			Default:   optionalExpr(pb.Default),
			Allowed:   optionalExpr(pb.Allowed),
			DeclRange: pb.Type.Range(),
		}
		tpl.paramOrder = append(tpl.paramOrder, pb.Name)
	}

	for _, vb := range parsed.Variables {
		if _, exists := tpl.Variables[vb.Name]; exists {
			return fmt.Errorf("duplicate variable %q declared in %s", vb.Name, filePath)
		}
		tpl.Variables[vb.Name] = &Variable{
			Name:      vb.Name,
			Value:     vb.Value,
			DeclRange: vb.Value.Range(),
		}
		tpl.variableOrder = append(tpl.variableOrder, vb.Name)
	}

	for _, rb := range parsed.Resources {
		if _, err := addResource(tpl, rb, nil); err != nil {
			return fmt.Errorf("in %s: %w", filePath, err)
		}
	}

	for _, mb := range parsed.Modules {
		if err := addModule(tpl, mb); err != nil {
			return fmt.Errorf("in %s: %w", filePath, err)
		}
	}

	return nil
}

// addResource appends a resource node, optionally owned by a module group.
func addResource(tpl *Template, rb *schema.ResourceBlock, group *nodeid.Address) (*Node, error) {
	addr := nodeid.NewResource(rb.Label)
	if _, exists := tpl.byAddr[addr]; exists {
		return nil, fmt.Errorf("duplicate resource label %q", rb.Label)
	}

	properties := map[string]hcl.Expression{}
	if rb.Properties != nil {
		attrs, diags := rb.Properties.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, fmt.Errorf("invalid properties block for resource %q: %w", rb.Label, diags)
		}
		for name, attr := range attrs {
			properties[name] = attr.Expr
		}
	}

	nameExpr := optionalExpr(rb.Name)
	condition := optionalExpr(rb.Condition)
	dependsOn := optionalExpr(rb.DependsOn)
	node := &Node{
		Addr:       addr,
		Type:       rb.Type,
		NameExpr:   nameExpr,
		Condition:  condition,
		DependsOn:  dependsOn,
		Properties: properties,
		Group:      group,
		DeclOrder:  len(tpl.Nodes),
		DeclRange:  declRange(nameExpr, condition, dependsOn),
	}
	tpl.Nodes = append(tpl.Nodes, node)
	tpl.byAddr[addr] = node
	return node, nil
}

// addModule appends a module group node followed by its member resources.
func addModule(tpl *Template, mb *schema.ModuleBlock) error {
	addr := nodeid.NewModule(mb.Label)
	if _, exists := tpl.byAddr[addr]; exists {
		return fmt.Errorf("duplicate module label %q", mb.Label)
	}

	condition := optionalExpr(mb.Condition)
	groupNode := &Node{
		Addr:      addr,
		Condition: condition,
		DeclOrder: len(tpl.Nodes),
		DeclRange: declRange(condition),
	}
	tpl.Nodes = append(tpl.Nodes, groupNode)
	tpl.byAddr[addr] = groupNode

	for _, rb := range mb.Resources {
		child, err := addResource(tpl, rb, &addr)
		if err != nil {
			return fmt.Errorf("in module %q: %w", mb.Label, err)
		}
		groupNode.Children = append(groupNode.Children, child.Addr)
	}

	return nil
}

// optionalExpr maps the placeholder gohcl synthesizes for an absent
// optional attribute back to nil. Templates are always native syntax, so
// every genuinely-written expression is an hclsyntax.Expression; the
// synthesized placeholder is not.
func optionalExpr(e hcl.Expression) hcl.Expression {
	if e == nil {
		return nil
	}
	if _, native := e.(hclsyntax.Expression); !native {
		return nil
	}
	return e
}

// declRange picks the first available expression range as a stand-in for
// the block's declaration location.
func declRange(exprs ...hcl.Expression) hcl.Range {
	for _, e := range exprs {
		if e != nil {
			return e.Range()
		}
	}
	return hcl.Range{}
}
