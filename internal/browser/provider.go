package browser

import (
	"context"
	"fmt"
	"strings"
)

// Caller is the slice of the relay that the tool provider needs.
type Caller interface {
	Call(ctx context.Context, action string, payload map[string]any, browser string) (any, error)
}

// Provider adapts browser-category tools onto the relay. Tool names map
// onto extension actions by stripping the browser_ prefix; a "browser"
// argument targets a specific registered extension.
type Provider struct {
	relay Caller
}

func NewProvider(relay Caller) *Provider {
	return &Provider{relay: relay}
}

func (p *Provider) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	action := strings.TrimPrefix(name, "browser_")
	if action == name {
		return nil, fmt.Errorf("unknown browser tool %q", name)
	}

	browser, _ := args["browser"].(string)
	payload := make(map[string]any, len(args))
	for k, v := range args {
		if k == "browser" {
			continue
		}
		payload[k] = v
	}

	return p.relay.Call(ctx, action, payload, browser)
}
