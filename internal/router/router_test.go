package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knws/screencontrol/internal/tools"
)

type fakeProvider struct {
	fn func(name string, args map[string]any) (any, error)
}

func (f *fakeProvider) Call(_ context.Context, name string, args map[string]any) (any, error) {
	return f.fn(name, args)
}

func newTestRouter(providers map[tools.Category]Provider, browserUp bool) *Router {
	return New(tools.NewRegistry(), providers, func() bool { return browserUp }, nil)
}

func TestInvokeUnknownTool(t *testing.T) {
	r := newTestRouter(nil, false)

	result := r.Invoke(context.Background(), Invocation{Name: "no_such_tool"})
	require.True(t, result.IsError())
	assert.Contains(t, result.Err, "unknown tool")
}

func TestInvokeMissingRequiredParams(t *testing.T) {
	r := newTestRouter(nil, false)

	result := r.Invoke(context.Background(), Invocation{Name: "click", Arguments: map[string]any{}})
	require.True(t, result.IsError())
	assert.Contains(t, result.Err, "x, y")
}

func TestInvokeNullParamCountsAsMissing(t *testing.T) {
	r := newTestRouter(nil, false)

	result := r.Invoke(context.Background(), Invocation{
		Name:      "keyboard_type",
		Arguments: map[string]any{"text": nil},
	})
	require.True(t, result.IsError())
	assert.Contains(t, result.Err, "text")
}

func TestInvokeDispatchesToCategoryProvider(t *testing.T) {
	called := ""
	providers := map[tools.Category]Provider{
		tools.CategoryShell: &fakeProvider{fn: func(name string, args map[string]any) (any, error) {
			called = name
			return map[string]any{"ok": true}, nil
		}},
	}
	r := newTestRouter(providers, false)

	result := r.Invoke(context.Background(), Invocation{
		Name:      "shell_exec",
		Arguments: map[string]any{"command": "echo hi"},
	})
	require.False(t, result.IsError(), result.Err)
	assert.Equal(t, "shell_exec", called)
	assert.Equal(t, map[string]any{"ok": true}, result.Value)
}

func TestInvokeProviderErrorBecomesToolError(t *testing.T) {
	providers := map[tools.Category]Provider{
		tools.CategoryShell: &fakeProvider{fn: func(string, map[string]any) (any, error) {
			return nil, errors.New("session not found")
		}},
	}
	r := newTestRouter(providers, false)

	result := r.Invoke(context.Background(), Invocation{
		Name:      "shell_stop_session",
		Arguments: map[string]any{"sessionId": "gone"},
	})
	require.True(t, result.IsError())
	assert.Equal(t, "session not found", result.Err)
}

func TestInvokeRecoversProviderPanic(t *testing.T) {
	providers := map[tools.Category]Provider{
		tools.CategoryFilesystem: &fakeProvider{fn: func(string, map[string]any) (any, error) {
			panic("boom")
		}},
	}
	r := newTestRouter(providers, false)

	result := r.Invoke(context.Background(), Invocation{
		Name:      "fs_read",
		Arguments: map[string]any{"path": "/tmp/x"},
	})
	require.True(t, result.IsError())
	assert.Contains(t, result.Err, "panicked")
	assert.Contains(t, result.Err, "boom")
}

func TestInvokeBrowserGatedOnRelay(t *testing.T) {
	invoked := false
	providers := map[tools.Category]Provider{
		tools.CategoryBrowser: &fakeProvider{fn: func(string, map[string]any) (any, error) {
			invoked = true
			return nil, nil
		}},
	}

	r := newTestRouter(providers, false)
	result := r.Invoke(context.Background(), Invocation{
		Name:      "browser_navigate",
		Arguments: map[string]any{"url": "https://example.com"},
	})
	require.True(t, result.IsError())
	assert.Equal(t, "browser relay not connected", result.Err)
	assert.False(t, invoked, "provider must not run while the relay is down")

	r = newTestRouter(providers, true)
	result = r.Invoke(context.Background(), Invocation{
		Name:      "browser_navigate",
		Arguments: map[string]any{"url": "https://example.com"},
	})
	assert.False(t, result.IsError(), result.Err)
	assert.True(t, invoked)
}
