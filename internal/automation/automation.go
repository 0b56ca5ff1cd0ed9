// Package automation defines the capability surface for desktop control
// tools. The agent core is platform-neutral; real input synthesis and
// screen capture are supplied by a platform backend implementing Provider.
package automation

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"
)

// Provider executes automation-category tools.
type Provider interface {
	Call(ctx context.Context, name string, args map[string]any) (any, error)
}

// Stub is the platform-neutral backend. It serves the tools that need no
// OS integration (wait, system_info) and reports the rest as unsupported.
type Stub struct {
	startedAt time.Time
	version   string
}

func NewStub(version string) *Stub {
	return &Stub{startedAt: time.Now(), version: version}
}

func (s *Stub) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "wait":
		return s.wait(ctx, args)
	case "system_info":
		return s.systemInfo()
	default:
		return nil, fmt.Errorf("automation tool %q is not supported on this platform", name)
	}
}

func (s *Stub) wait(ctx context.Context, args map[string]any) (any, error) {
	ms, _ := args["milliseconds"].(float64)
	if ms < 0 {
		return nil, fmt.Errorf("milliseconds must be >= 0, got %v", ms)
	}

	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return map[string]any{"waited": ms}, nil
}

func (s *Stub) systemInfo() (any, error) {
	hostname, _ := os.Hostname()
	return map[string]any{
		"platform":      runtime.GOOS,
		"arch":          runtime.GOARCH,
		"hostname":      hostname,
		"pid":           os.Getpid(),
		"goVersion":     runtime.Version(),
		"numCPU":        runtime.NumCPU(),
		"version":       s.version,
		"uptimeSeconds": int(time.Since(s.startedAt).Seconds()),
	}, nil
}
