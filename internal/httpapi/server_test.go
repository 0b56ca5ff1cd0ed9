package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knws/screencontrol/internal/router"
	"github.com/knws/screencontrol/internal/tools"
)

const testKey = "test-api-key-0123456789abcdef"

type echoProvider struct{}

func (echoProvider) Call(_ context.Context, name string, args map[string]any) (any, error) {
	if name == "fs_delete" {
		return nil, errors.New("simulated tool failure")
	}
	return map[string]any{"tool": name, "args": args}, nil
}

func startTestServer(t *testing.T) *Server {
	t.Helper()

	providers := map[tools.Category]router.Provider{
		tools.CategoryAutomation: echoProvider{},
		tools.CategoryFilesystem: echoProvider{},
		tools.CategoryShell:      echoProvider{},
		tools.CategoryBrowser:    echoProvider{},
	}
	r := router.New(tools.NewRegistry(), providers, func() bool { return true }, nil)

	server := NewServer(testKey, r, func() StatusInfo {
		return StatusInfo{Version: "test", ShellSessions: 2, RelayConnected: true}
	})
	require.NoError(t, server.Start(0))
	t.Cleanup(server.Stop)
	return server
}

// rawExchange sends raw bytes and returns the full response.
func rawExchange(t *testing.T, addr, payload string) string {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(payload))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	resp, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(resp)
}

func authedPost(path, body string) string {
	return fmt.Sprintf("POST %s HTTP/1.1\r\nHost: localhost\r\nAuthorization: Bearer %s\r\nContent-Length: %d\r\n\r\n%s",
		path, testKey, len(body), body)
}

func responseBody(t *testing.T, resp string) map[string]any {
	t.Helper()
	i := strings.Index(resp, "\r\n\r\n")
	require.GreaterOrEqual(t, i, 0, "no header terminator in response")
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp[i+4:]), &body))
	return body
}

func TestHealthUnauthenticated(t *testing.T) {
	s := startTestServer(t)

	resp := rawExchange(t, s.Addr(), "GET /health HTTP/1.1\r\nHost: localhost\r\n\r\n")
	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 200"))
	assert.Equal(t, "ok", responseBody(t, resp)["status"])
}

func TestMissingAuthRejected(t *testing.T) {
	s := startTestServer(t)

	resp := rawExchange(t, s.Addr(), "POST /wait HTTP/1.1\r\nHost: localhost\r\nContent-Length: 0\r\n\r\n")
	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 401"))
}

func TestWrongKeyRejected(t *testing.T) {
	s := startTestServer(t)

	resp := rawExchange(t, s.Addr(),
		"POST /wait HTTP/1.1\r\nHost: localhost\r\nAuthorization: Bearer wrong\r\nContent-Length: 0\r\n\r\n")
	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 401"))
}

func TestOptionsPreflightAllowed(t *testing.T) {
	s := startTestServer(t)

	resp := rawExchange(t, s.Addr(), "OPTIONS /click HTTP/1.1\r\nHost: localhost\r\n\r\n")
	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 200"))
	assert.Contains(t, resp, "Access-Control-Allow-Origin: *")
}

func TestRouteDispatchesToTool(t *testing.T) {
	s := startTestServer(t)

	resp := rawExchange(t, s.Addr(), authedPost("/click", `{"x": 10, "y": 20}`))
	require.True(t, strings.HasPrefix(resp, "HTTP/1.1 200"), resp)

	body := responseBody(t, resp)
	assert.Equal(t, "click", body["tool"])
	args := body["args"].(map[string]any)
	assert.Equal(t, float64(10), args["x"])
}

func TestUnknownRoute(t *testing.T) {
	s := startTestServer(t)

	resp := rawExchange(t, s.Addr(), authedPost("/no/such/route", "{}"))
	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 404"))
}

func TestToolErrorBecomes400(t *testing.T) {
	s := startTestServer(t)

	resp := rawExchange(t, s.Addr(), authedPost("/fs/delete", `{"path": "/tmp/x"}`))
	require.True(t, strings.HasPrefix(resp, "HTTP/1.1 400"), resp)
	assert.Equal(t, "simulated tool failure", responseBody(t, resp)["error"])
}

func TestValidationErrorBecomes400(t *testing.T) {
	s := startTestServer(t)

	resp := rawExchange(t, s.Addr(), authedPost("/click", "{}"))
	require.True(t, strings.HasPrefix(resp, "HTTP/1.1 400"), resp)
	assert.Contains(t, responseBody(t, resp)["error"], "x, y")
}

func TestNonJSONBodyTreatedAsEmpty(t *testing.T) {
	s := startTestServer(t)

	resp := rawExchange(t, s.Addr(), authedPost("/system/info", "this is not json"))
	require.True(t, strings.HasPrefix(resp, "HTTP/1.1 200"), resp)

	body := responseBody(t, resp)
	assert.Empty(t, body["args"])
}

func TestOversizedRequestRejected(t *testing.T) {
	s := startTestServer(t)

	head := fmt.Sprintf("POST /wait HTTP/1.1\r\nHost: localhost\r\nAuthorization: Bearer %s\r\nContent-Length: %d\r\n\r\n",
		testKey, MaxRequestBytes+1)
	resp := rawExchange(t, s.Addr(), head)
	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 413"), resp)
}

func TestMalformedContentLengthTreatedAsZero(t *testing.T) {
	s := startTestServer(t)

	payload := fmt.Sprintf("POST /system/info HTTP/1.1\r\nHost: localhost\r\nAuthorization: Bearer %s\r\nContent-Length: banana\r\n\r\n",
		testKey)
	resp := rawExchange(t, s.Addr(), payload)
	require.True(t, strings.HasPrefix(resp, "HTTP/1.1 200"), resp)
}

func TestStalledBodyProcessedAsComplete(t *testing.T) {
	if testing.Short() {
		t.Skip("waits out the read stall timeout")
	}
	s := startTestServer(t)

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn.Close()

	// Declared body never fully arrives; after the stall timeout the
	// partial request is processed rather than dropped.
	head := fmt.Sprintf("POST /system/info HTTP/1.1\r\nHost: localhost\r\nAuthorization: Bearer %s\r\nContent-Length: 100\r\n\r\n{\"part",
		testKey)
	_, err = conn.Write([]byte(head))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(ReadStallTimeout + 5*time.Second))
	resp, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(resp), "HTTP/1.1 200"), string(resp))
}

func TestStatusEndpoint(t *testing.T) {
	s := startTestServer(t)

	resp := rawExchange(t, s.Addr(),
		fmt.Sprintf("GET /status HTTP/1.1\r\nHost: localhost\r\nAuthorization: Bearer %s\r\n\r\n", testKey))
	require.True(t, strings.HasPrefix(resp, "HTTP/1.1 200"), resp)

	body := responseBody(t, resp)
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, float64(2), body["shellSessions"])
	assert.Equal(t, true, body["relayConnected"])
}

func TestConnectionClosedAfterResponse(t *testing.T) {
	s := startTestServer(t)

	resp := rawExchange(t, s.Addr(), "GET /health HTTP/1.1\r\nHost: localhost\r\n\r\n")
	// io.ReadAll returning means the server closed its end.
	assert.Contains(t, resp, "Connection: close")
}

func TestMalformedRequestLine(t *testing.T) {
	s := startTestServer(t)

	resp := rawExchange(t, s.Addr(), "NOT A VALID REQUEST\r\n\r\n")
	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 400"), resp)
}
