package automation

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitBlocksForDuration(t *testing.T) {
	s := NewStub("test")

	start := time.Now()
	result, err := s.Call(context.Background(), "wait", map[string]any{"milliseconds": float64(50)})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, map[string]any{"waited": float64(50)}, result)
}

func TestWaitCancelled(t *testing.T) {
	s := NewStub("test")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Call(ctx, "wait", map[string]any{"milliseconds": float64(10000)})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSystemInfo(t *testing.T) {
	s := NewStub("1.2.3")

	result, err := s.Call(context.Background(), "system_info", nil)
	require.NoError(t, err)

	info := result.(map[string]any)
	assert.Equal(t, runtime.GOOS, info["platform"])
	assert.Equal(t, "1.2.3", info["version"])
}

func TestUnsupportedTool(t *testing.T) {
	s := NewStub("test")

	_, err := s.Call(context.Background(), "screenshot", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}
