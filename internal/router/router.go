// Package router dispatches tool invocations to category providers. Both
// transports (HTTP and stdio) funnel through the same Invoke path so
// validation, gating, and panic recovery behave identically everywhere.
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/knws/screencontrol/internal/tools"
	"github.com/knws/screencontrol/pkg/events"
)

// Provider executes the tools of one category.
type Provider interface {
	Call(ctx context.Context, name string, args map[string]any) (any, error)
}

// Invocation is one tool call from either transport.
type Invocation struct {
	Name      string
	Arguments map[string]any
}

// Result carries either a value or a tool error, never both.
type Result struct {
	Value any
	Err   string
}

func (r Result) IsError() bool { return r.Err != "" }

func errorResult(format string, args ...any) Result {
	return Result{Err: fmt.Sprintf(format, args...)}
}

type Router struct {
	registry  *tools.Registry
	providers map[tools.Category]Provider
	browserUp func() bool
	eventBus  *events.EventBus
}

// New builds a router over the registry and the per-category providers.
// browserUp reports relay connectivity; nil means never connected.
func New(registry *tools.Registry, providers map[tools.Category]Provider, browserUp func() bool, eventBus *events.EventBus) *Router {
	if browserUp == nil {
		browserUp = func() bool { return false }
	}
	return &Router{
		registry:  registry,
		providers: providers,
		browserUp: browserUp,
		eventBus:  eventBus,
	}
}

// Invoke validates and executes one tool call. It never panics; provider
// panics become error results.
func (r *Router) Invoke(ctx context.Context, inv Invocation) (result Result) {
	def, ok := r.registry.Describe(inv.Name)
	if !ok {
		return errorResult("unknown tool %q", inv.Name)
	}

	if missing := missingParams(def, inv.Arguments); len(missing) > 0 {
		return errorResult("tool %q missing required parameters: %s",
			inv.Name, strings.Join(missing, ", "))
	}

	if def.Category == tools.CategoryBrowser && !r.browserUp() {
		return errorResult("browser relay not connected")
	}

	provider, ok := r.providers[def.Category]
	if !ok {
		return errorResult("no provider for category %q", def.Category)
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = errorResult("tool %q panicked: %v", inv.Name, rec)
		}
	}()

	if r.eventBus != nil {
		r.eventBus.Publish(events.Event{
			Type: events.ToolInvoked,
			Data: map[string]interface{}{"tool": inv.Name, "category": string(def.Category)},
		})
	}

	value, err := provider.Call(ctx, inv.Name, inv.Arguments)
	if err != nil {
		return Result{Err: err.Error()}
	}
	return Result{Value: value}
}

// missingParams reports absent (or null) required parameters in the order
// the definition declares them.
func missingParams(def tools.Definition, args map[string]any) []string {
	var missing []string
	for _, name := range def.Required {
		if v, ok := args[name]; !ok || v == nil {
			missing = append(missing, name)
		}
	}
	return missing
}
