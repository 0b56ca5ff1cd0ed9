// Package stdio speaks MCP over newline-delimited JSON-RPC 2.0 on
// stdin/stdout. One goroutine reads requests; tool calls execute on their
// own goroutines and responses are serialized through a write mutex so
// frames never interleave.
package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/knws/screencontrol/internal/router"
	"github.com/knws/screencontrol/internal/tools"
	"github.com/knws/screencontrol/pkg/events"
)

const ProtocolVersion = "2024-11-05"

// maxFrameBytes bounds a single request line. Oversized frames are consumed
// and answered with a parse error; they never end the loop.
const maxFrameBytes = 10 * 1024 * 1024

const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type rpcRequest struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// rpcResponse always carries an id field; a nil RawMessage marshals as
// null, which is what a parse error must report.
type rpcResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcNotification struct {
	Jsonrpc string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Bridge runs the MCP loop over a reader/writer pair.
type Bridge struct {
	in  io.Reader
	out io.Writer

	outMu sync.Mutex

	registry  *tools.Registry
	router    *router.Router
	browserUp func() bool

	name    string
	version string
}

func NewBridge(in io.Reader, out io.Writer, registry *tools.Registry, r *router.Router, browserUp func() bool, name, version string) *Bridge {
	if browserUp == nil {
		browserUp = func() bool { return false }
	}
	return &Bridge{
		in:        in,
		out:       out,
		registry:  registry,
		router:    r,
		browserUp: browserUp,
		name:      name,
		version:   version,
	}
}

// SubscribeRelayEvents pushes an unsolicited list_changed notification
// whenever relay connectivity flips, so clients re-fetch the tool list.
func (b *Bridge) SubscribeRelayEvents(bus *events.EventBus) {
	notify := func(events.Event) {
		b.writeMessage(rpcNotification{
			Jsonrpc: "2.0",
			Method:  "notifications/tools/list_changed",
		})
	}
	bus.Subscribe(events.RelayConnected, notify)
	bus.Subscribe(events.RelayDisconnected, notify)
}

// Run reads frames until the input closes or the context is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	reader := bufio.NewReaderSize(b.in, 64*1024)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line, overflow, err := readFrame(reader, maxFrameBytes)
		switch {
		case overflow:
			b.writeMessage(rpcResponse{
				Jsonrpc: "2.0",
				Error:   &rpcError{Code: codeParseError, Message: fmt.Sprintf("parse error: frame exceeds %d bytes", maxFrameBytes)},
			})
		case len(bytes.TrimSpace(line)) > 0:
			var req rpcRequest
			if jsonErr := json.Unmarshal(line, &req); jsonErr != nil {
				b.writeMessage(rpcResponse{
					Jsonrpc: "2.0",
					Error:   &rpcError{Code: codeParseError, Message: fmt.Sprintf("parse error: %v", jsonErr)},
				})
			} else {
				b.handle(ctx, req)
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// readFrame reads one newline-terminated frame. A frame longer than max is
// fully consumed but reported as overflow so the caller can answer it and
// keep reading.
func readFrame(r *bufio.Reader, max int) ([]byte, bool, error) {
	var line []byte
	overflow := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !overflow {
			line = append(line, chunk...)
			if len(line) > max {
				overflow = true
				line = nil
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return line, overflow, err
	}
}

func (b *Bridge) handle(ctx context.Context, req rpcRequest) {
	switch req.Method {
	case "initialize":
		b.respond(req.ID, map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{"listChanged": true},
			},
			"serverInfo": map[string]any{
				"name":    b.name,
				"version": b.version,
			},
		})

	case "notifications/initialized":
		// Client housekeeping, nothing to do.

	case "tools/list":
		b.respond(req.ID, map[string]any{"tools": b.listTools()})

	case "tools/call":
		// Each call gets its own goroutine so a slow tool cannot block
		// the read loop or other calls.
		go b.handleToolCall(ctx, req)

	default:
		if len(req.ID) == 0 {
			return // unknown notification, drop silently
		}
		b.respondError(req.ID, codeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (b *Bridge) listTools() []mcp.Tool {
	avail := map[tools.Category]bool{
		tools.CategoryBrowser: b.browserUp(),
	}
	return b.registry.MCPTools(avail)
}

func (b *Bridge) handleToolCall(ctx context.Context, req rpcRequest) {
	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			b.respondError(req.ID, codeInvalidParams, fmt.Sprintf("invalid params: %v", err))
			return
		}
	}
	if params.Name == "" {
		b.respondError(req.ID, codeInvalidParams, "invalid params: missing tool name")
		return
	}

	result := b.router.Invoke(ctx, router.Invocation{
		Name:      params.Name,
		Arguments: params.Arguments,
	})
	if result.IsError() {
		b.respond(req.ID, mcp.NewToolResultError(result.Err))
		return
	}
	b.respond(req.ID, mcp.NewToolResultText(formatValue(result.Value)))
}

// formatValue renders a tool result as pretty-printed JSON text. Plain
// strings pass through unquoted.
func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	default:
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(out)
	}
}

func (b *Bridge) respond(id json.RawMessage, result any) {
	if len(id) == 0 {
		return
	}
	b.writeMessage(rpcResponse{Jsonrpc: "2.0", ID: id, Result: result})
}

func (b *Bridge) respondError(id json.RawMessage, code int, message string) {
	if len(id) == 0 {
		return
	}
	b.writeMessage(rpcResponse{Jsonrpc: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}

func (b *Bridge) writeMessage(msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	b.outMu.Lock()
	defer b.outMu.Unlock()
	b.out.Write(payload)
	b.out.Write([]byte("\n"))
}
