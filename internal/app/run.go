// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package app

import (
	"context"
	"fmt"

	"github.com/vk/stencilgo/internal/ctxlog"
	"github.com/vk/stencilgo/internal/planner"
	"github.com/vk/stencilgo/internal/tracing"
)

const (
	serviceName    = "stencilgo"
	serviceVersion = "dev"
)

// Run executes the configured workflow end to end: build the plan, print
// it, and hand it to the provider registry when apply was requested.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	if a.config.Trace {
		shutdown, err := tracing.Init(ctx, serviceName, serviceVersion)
		if err != nil {
			return fmt.Errorf("initializing tracing: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				a.logger.Error("Tracing shutdown failed.", "error", err)
			}
		}()
	}

	plan, err := a.Plan(ctx)
	if err != nil {
		return err
	}

	a.renderPlan(plan)

	if !a.config.Apply {
		return nil
	}
	return a.providers.Apply(ctx, plan)
}

// renderPlan prints the human-readable plan summary to the application's
// output writer.
func (a *App) renderPlan(plan *planner.Plan) {
	fmt.Fprintf(a.outW, "Plan %s\n", plan.ID)

	var creates, skips int
	for _, op := range plan.Operations {
		switch op.Kind {
		case planner.OpCreate:
			creates++
			fmt.Fprintf(a.outW, "  + create %s %q (%s)\n", op.Type, op.Name, op.Node)
		case planner.OpCreateScope:
			fmt.Fprintf(a.outW, "  > scope %q (%s)\n", op.Name, op.Node)
		case planner.OpSkip:
			skips++
			fmt.Fprintf(a.outW, "  - skip %s\n", op.Node)
		}
	}
	fmt.Fprintf(a.outW, "%d to create, %d skipped.\n", creates, skips)
}
