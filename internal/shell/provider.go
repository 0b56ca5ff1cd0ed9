package shell

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ToolProvider adapts the Manager to the tool call contract used by the
// request router.
type ToolProvider struct {
	manager    *Manager
	defaultCwd string
}

func NewToolProvider(manager *Manager, defaultCwd string) *ToolProvider {
	return &ToolProvider{manager: manager, defaultCwd: defaultCwd}
}

func (p *ToolProvider) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "shell_exec":
		return p.exec(ctx, args)
	case "shell_start_session":
		return p.startSession(args)
	case "shell_send_input":
		return p.sendInput(args)
	case "shell_stop_session":
		return p.stopSession(args)
	case "shell_read_output":
		return p.readOutput(args)
	case "shell_list_sessions":
		return map[string]any{"sessions": p.manager.List()}, nil
	default:
		return nil, fmt.Errorf("unknown shell tool %q", name)
	}
}

func (p *ToolProvider) exec(ctx context.Context, args map[string]any) (any, error) {
	command, _ := args["command"].(string)
	cwd := p.cwd(args)

	timeout := DefaultExecTimeout
	if secs, ok := args["timeout"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs * float64(time.Second))
	}

	captureStderr := true
	if v, ok := args["captureStderr"].(bool); ok {
		captureStderr = v
	}

	return p.manager.Exec(ctx, command, cwd, timeout, captureStderr)
}

func (p *ToolProvider) startSession(args map[string]any) (any, error) {
	command, _ := args["command"].(string)

	var env map[string]string
	if raw, ok := args["env"].(map[string]any); ok {
		env = make(map[string]string, len(raw))
		for k, v := range raw {
			if s, ok := v.(string); ok {
				env[k] = s
			}
		}
	}

	captureStderr := true
	if v, ok := args["captureStderr"].(bool); ok {
		captureStderr = v
	}

	return p.manager.Start(command, p.cwd(args), env, captureStderr)
}

func (p *ToolProvider) sendInput(args map[string]any) (any, error) {
	id, _ := args["sessionId"].(string)
	input, _ := args["input"].(string)

	n, err := p.manager.SendInput(id, input)
	if err != nil {
		return nil, sessionError(id, err)
	}
	return map[string]any{"sessionId": id, "bytes_written": n}, nil
}

func (p *ToolProvider) stopSession(args map[string]any) (any, error) {
	id, _ := args["sessionId"].(string)
	signal, _ := args["signal"].(string)

	if err := p.manager.Stop(id, signal); err != nil {
		return nil, sessionError(id, err)
	}
	return map[string]any{"sessionId": id, "stopped": true}, nil
}

func (p *ToolProvider) readOutput(args map[string]any) (any, error) {
	id, _ := args["sessionId"].(string)

	chunk, err := p.manager.ReadOutput(id)
	if err != nil {
		return nil, sessionError(id, err)
	}
	return chunk, nil
}

func (p *ToolProvider) cwd(args map[string]any) string {
	if cwd, ok := args["cwd"].(string); ok && cwd != "" {
		return cwd
	}
	return p.defaultCwd
}

func sessionError(id string, err error) error {
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionNotRunning) {
		return fmt.Errorf("%w: %s", err, id)
	}
	return err
}
