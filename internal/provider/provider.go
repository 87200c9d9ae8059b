// Package provider is the collaborator boundary of the planner: a
// registry mapping resource types to handlers that perform the actual
// deployment work. The engine never talks to a control plane itself;
// handlers are invoked only for operations the plan marked as included.
package provider

import (
	"context"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stencilgo/internal/ctxlog"
	"github.com/vk/stencilgo/internal/expr"
	"github.com/vk/stencilgo/internal/planner"
)

// Handler performs the deployment of a single resource.
type Handler struct {
	// Apply receives the resolved deployment name and the evaluated
	// property object.
	Apply func(ctx context.Context, name string, properties cty.Value) error
}

// Registry holds the registered handlers for a single application
// instance.
type Registry struct {
	handlers map[string]*Handler
	fallback *Handler
}

// NewRegistry creates and initializes an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]*Handler),
	}
}

// Register binds a handler to a resource type. Registering the same type
// twice is a programmer error.
func (r *Registry) Register(resourceType string, h *Handler) {
	if _, exists := r.handlers[resourceType]; exists {
		panic(fmt.Sprintf("provider handler for resource type '%s' already registered", resourceType))
	}
	r.handlers[resourceType] = h
}

// SetFallback installs a handler used for resource types with no explicit
// registration. Without a fallback, unknown types fail the apply.
func (r *Registry) SetFallback(h *Handler) {
	r.fallback = h
}

// Types returns the registered resource types, sorted.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Apply executes a plan in order. Skip operations are logged and never
// reach a handler; module scopes are bookkeeping only. The first handler
// failure aborts the run.
func (r *Registry) Apply(ctx context.Context, plan *planner.Plan) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Applying plan.", "plan_id", plan.ID, "operations", len(plan.Operations))

	for _, op := range plan.Operations {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch op.Kind {
		case planner.OpSkip:
			logger.Debug("Skipping excluded node.", "node", op.Node.String())

		case planner.OpCreateScope:
			logger.Info("Entering module scope.", "module", op.Node.String(), "name", op.Name)

		case planner.OpCreate:
			handler, ok := r.handlers[op.Type]
			if !ok {
				handler = r.fallback
			}
			if handler == nil {
				msg := fmt.Sprintf("no provider handler registered for resource type %q (node %s)", op.Type, op.Node.String())
				if suggestion := expr.NameSuggestion(op.Type, r.Types()); suggestion != "" {
					msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
				}
				return fmt.Errorf("%s", msg)
			}
			if err := handler.Apply(ctx, op.Name, op.Properties); err != nil {
				return fmt.Errorf("applying %s (%s): %w", op.Node.String(), op.Name, err)
			}
			logger.Info("Resource applied.", "node", op.Node.String(), "type", op.Type, "name", op.Name)

		default:
			return fmt.Errorf("unknown plan operation kind %q", op.Kind)
		}
	}

	logger.Info("Plan applied.", "plan_id", plan.ID)
	return nil
}

// LoggingFallback returns a handler that only logs, for dry-run style
// applies where no real provider is wired.
func LoggingFallback() *Handler {
	return &Handler{
		Apply: func(ctx context.Context, name string, properties cty.Value) error {
			ctxlog.FromContext(ctx).Info("Would deploy resource.", "name", name)
			return nil
		},
	}
}
