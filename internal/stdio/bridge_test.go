package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knws/screencontrol/internal/router"
	"github.com/knws/screencontrol/internal/tools"
	"github.com/knws/screencontrol/pkg/events"
)

type stubProvider struct{}

func (stubProvider) Call(_ context.Context, name string, args map[string]any) (any, error) {
	if name == "shell_stop_session" {
		return nil, errors.New("session not found")
	}
	return map[string]any{"tool": name}, nil
}

type testClient struct {
	t   *testing.T
	in  io.WriteCloser
	out *bufio.Scanner
}

func newTestClient(t *testing.T, browserUp bool, bus *events.EventBus) *testClient {
	t.Helper()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	providers := map[tools.Category]router.Provider{
		tools.CategoryAutomation: stubProvider{},
		tools.CategoryFilesystem: stubProvider{},
		tools.CategoryShell:      stubProvider{},
		tools.CategoryBrowser:    stubProvider{},
	}
	up := func() bool { return browserUp }
	r := router.New(tools.NewRegistry(), providers, up, nil)

	bridge := NewBridge(inR, outW, tools.NewRegistry(), r, up, "screencontrol", "test")
	if bus != nil {
		bridge.SubscribeRelayEvents(bus)
	}
	go bridge.Run(context.Background())
	t.Cleanup(func() { inW.Close() })

	scanner := bufio.NewScanner(outR)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)
	return &testClient{t: t, in: inW, out: scanner}
}

func (c *testClient) send(line string) {
	c.t.Helper()
	_, err := c.in.Write([]byte(line + "\n"))
	require.NoError(c.t, err)
}

func (c *testClient) recv() map[string]any {
	c.t.Helper()
	require.True(c.t, c.out.Scan(), "expected a response line")
	var msg map[string]any
	require.NoError(c.t, json.Unmarshal(c.out.Bytes(), &msg))
	return msg
}

func TestInitialize(t *testing.T) {
	c := newTestClient(t, false, nil)

	c.send(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	msg := c.recv()

	assert.Equal(t, float64(1), msg["id"])
	result := msg["result"].(map[string]any)
	assert.Equal(t, ProtocolVersion, result["protocolVersion"])

	caps := result["capabilities"].(map[string]any)
	toolCaps := caps["tools"].(map[string]any)
	assert.Equal(t, true, toolCaps["listChanged"])

	info := result["serverInfo"].(map[string]any)
	assert.Equal(t, "screencontrol", info["name"])
}

func TestToolsListGatesBrowserTools(t *testing.T) {
	c := newTestClient(t, false, nil)

	c.send(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	msg := c.recv()

	listed := msg["result"].(map[string]any)["tools"].([]any)
	names := make([]string, 0, len(listed))
	for _, raw := range listed {
		names = append(names, raw.(map[string]any)["name"].(string))
	}
	assert.Contains(t, names, "shell_exec")
	assert.Contains(t, names, "fs_read")
	assert.NotContains(t, names, "browser_navigate")

	c2 := newTestClient(t, true, nil)
	c2.send(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	msg = c2.recv()
	listed = msg["result"].(map[string]any)["tools"].([]any)
	found := false
	for _, raw := range listed {
		if raw.(map[string]any)["name"] == "browser_navigate" {
			found = true
		}
	}
	assert.True(t, found, "browser tools should list while the relay is up")
}

func TestToolsCall(t *testing.T) {
	c := newTestClient(t, false, nil)

	c.send(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"system_info","arguments":{}}}`)
	msg := c.recv()

	require.Nil(t, msg["error"])
	result := msg["result"].(map[string]any)
	assert.NotEqual(t, true, result["isError"])

	content := result["content"].([]any)
	require.Len(t, content, 1)
	block := content[0].(map[string]any)
	assert.Equal(t, "text", block["type"])
	assert.Contains(t, block["text"], `"tool": "system_info"`)
}

func TestToolsCallMissingName(t *testing.T) {
	c := newTestClient(t, false, nil)

	c.send(`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"arguments":{}}}`)
	msg := c.recv()

	rpcErr := msg["result"]
	require.Nil(t, rpcErr)
	errObj := msg["error"].(map[string]any)
	assert.Equal(t, float64(codeInvalidParams), errObj["code"])
}

func TestToolsCallErrorBecomesIsErrorBlock(t *testing.T) {
	c := newTestClient(t, false, nil)

	c.send(`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"shell_stop_session","arguments":{"sessionId":"x"}}}`)
	msg := c.recv()

	require.Nil(t, msg["error"], "tool failures are results, not protocol errors")
	result := msg["result"].(map[string]any)
	assert.Equal(t, true, result["isError"])
	block := result["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "session not found", block["text"])
}

func TestUnknownMethod(t *testing.T) {
	c := newTestClient(t, false, nil)

	c.send(`{"jsonrpc":"2.0","id":6,"method":"resources/list"}`)
	msg := c.recv()

	errObj := msg["error"].(map[string]any)
	assert.Equal(t, float64(codeMethodNotFound), errObj["code"])
}

func TestParseErrorNullID(t *testing.T) {
	c := newTestClient(t, false, nil)

	c.send(`{not json at all`)
	msg := c.recv()

	assert.Nil(t, msg["id"])
	errObj := msg["error"].(map[string]any)
	assert.Equal(t, float64(codeParseError), errObj["code"])
}

func TestOversizedFrameDoesNotEndSession(t *testing.T) {
	c := newTestClient(t, false, nil)

	c.send(`{"jsonrpc":"2.0","id":8,"method":"params":"` + strings.Repeat("a", maxFrameBytes) + `"}`)
	msg := c.recv()

	assert.Nil(t, msg["id"])
	errObj := msg["error"].(map[string]any)
	assert.Equal(t, float64(codeParseError), errObj["code"])

	// The loop must still answer subsequent requests.
	c.send(`{"jsonrpc":"2.0","id":9,"method":"initialize","params":{}}`)
	msg = c.recv()
	assert.Equal(t, float64(9), msg["id"])
}

func TestInitializedNotificationIgnored(t *testing.T) {
	c := newTestClient(t, false, nil)

	c.send(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	c.send(`{"jsonrpc":"2.0","id":7,"method":"initialize","params":{}}`)

	// The next frame on the wire must answer the initialize, proving the
	// notification produced no response.
	msg := c.recv()
	assert.Equal(t, float64(7), msg["id"])
}

func TestRelayEventsTriggerListChanged(t *testing.T) {
	bus := events.NewEventBusWithConfig(events.WorkerPoolConfig{WorkerCount: 2, BufferSize: 16})
	defer bus.Shutdown()

	c := newTestClient(t, false, bus)

	bus.Publish(events.Event{Type: events.RelayConnected, Data: map[string]interface{}{"browser": "chrome"}})

	done := make(chan map[string]any, 1)
	go func() { done <- c.recv() }()

	select {
	case msg := <-done:
		assert.Equal(t, "notifications/tools/list_changed", msg["method"])
	case <-time.After(2 * time.Second):
		t.Fatal("no list_changed notification")
	}
}
