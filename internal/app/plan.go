// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package app

import (
	"context"
	"fmt"

	"github.com/vk/stencilgo/internal/ctxlog"
	"github.com/vk/stencilgo/internal/environment"
	"github.com/vk/stencilgo/internal/evaluator"
	"github.com/vk/stencilgo/internal/graph"
	"github.com/vk/stencilgo/internal/planner"
	"github.com/vk/stencilgo/internal/template"
	"github.com/vk/stencilgo/internal/tracing"
)

// Plan runs the full pipeline against the configured template: load,
// resolve the environment, build the dependency graph, evaluate
// conditions and properties in order, and finalize the deployment plan.
func (a *App) Plan(ctx context.Context) (*planner.Plan, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	log := a.logger

	ctx, span := tracing.Start(ctx, "app.Plan")
	defer span.End()

	tpl, err := a.loadTemplate(ctx)
	if err != nil {
		return nil, err
	}
	log.Debug("Template loaded.",
		"path", a.config.TemplatePath,
		"nodes", len(tpl.Nodes),
		"params", len(tpl.Params),
		"variables", len(tpl.Variables))

	overrides, err := a.mergeParams()
	if err != nil {
		return nil, err
	}

	env, err := environment.Resolve(ctx, tpl, overrides, a.functions)
	if err != nil {
		return nil, fmt.Errorf("resolving environment: %w", err)
	}

	g, err := graph.Build(ctx, tpl)
	if err != nil {
		return nil, err
	}

	res, err := evaluator.Evaluate(ctx, tpl, env, g, a.functions)
	if err != nil {
		return nil, err
	}

	plan, err := planner.BuildPlan(ctx, tpl, res)
	if err != nil {
		return nil, err
	}
	log.Info("Plan finalized.", "plan_id", plan.ID, "operations", len(plan.Operations))

	return plan, nil
}

func (a *App) loadTemplate(ctx context.Context) (*template.Template, error) {
	ctx, span := tracing.Start(ctx, "template.Load")
	defer span.End()

	tpl, err := template.Load(ctx, a.config.TemplatePath, a.config.MaxNodes)
	if err != nil {
		return nil, fmt.Errorf("loading template: %w", err)
	}
	return tpl, nil
}

// mergeParams layers command-line parameter overrides on top of the
// optional params file. Flags win on conflict.
func (a *App) mergeParams() (map[string]string, error) {
	merged := map[string]string{}
	if a.config.ParamsFile != "" {
		fromFile, err := environment.LoadParamsFile(a.config.ParamsFile)
		if err != nil {
			return nil, err
		}
		for k, v := range fromFile {
			merged[k] = v
		}
	}
	for k, v := range a.config.Params {
		merged[k] = v
	}
	return merged, nil
}
