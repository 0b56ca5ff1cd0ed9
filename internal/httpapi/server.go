// Package httpapi exposes the tool surface over a hand-parsed HTTP/1.1
// endpoint bound to the loopback interface. The parser is deliberately
// written against raw net.Conn: requests are bounded, connections serve
// one exchange, and malformed input degrades to an empty request rather
// than an aborted one.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/knws/screencontrol/internal/router"
)

const (
	// MaxRequestBytes is the ceiling for the whole request, headers and
	// body combined. Anything larger gets 413 and the connection closed.
	MaxRequestBytes = 1 << 20

	// ReadStallTimeout bounds how long a connection may dribble bytes.
	// A stalled request is processed with whatever has arrived.
	ReadStallTimeout = 5 * time.Second
)

// StatusInfo is the payload of GET /status.
type StatusInfo struct {
	Version        string `json:"version"`
	UptimeSeconds  int    `json:"uptimeSeconds"`
	ShellSessions  int    `json:"shellSessions"`
	RelayConnected bool   `json:"relayConnected"`
}

// Server serves the tool API over raw TCP.
type Server struct {
	apiKey string
	router *router.Router
	status func() StatusInfo

	listener net.Listener
	mu       sync.Mutex
	closed   bool
	wg       sync.WaitGroup
}

func NewServer(apiKey string, r *router.Router, status func() StatusInfo) *Server {
	if status == nil {
		status = func() StatusInfo { return StatusInfo{} }
	}
	return &Server{apiKey: apiKey, router: r, status: status}
}

// Start binds the loopback listener and begins accepting connections.
func (s *Server) Start(port int) error {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound address, useful with port 0 in tests.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes the listener and waits for in-flight connections.
func (s *Server) Stop() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// request is one parsed HTTP exchange.
type request struct {
	method  string
	path    string
	headers map[string]string
	body    []byte
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	req, err := readRequest(conn)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			writeResponse(conn, 413, map[string]any{"error": "request too large"})
		} else {
			writeResponse(conn, 400, map[string]any{"error": "malformed request"})
		}
		return
	}

	s.dispatch(conn, req)
}

var errTooLarge = errors.New("request exceeds size limit")

// readRequest incrementally parses one request off the wire. It moves
// through awaiting-headers and awaiting-body phases; a read stall in
// either phase completes the request with the bytes already received.
func readRequest(conn net.Conn) (*request, error) {
	conn.SetReadDeadline(time.Now().Add(ReadStallTimeout))

	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)

	// Awaiting headers: accumulate until the blank line.
	headerEnd := -1
	for headerEnd < 0 {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if len(buf) > MaxRequestBytes {
				return nil, errTooLarge
			}
			headerEnd = strings.Index(string(buf), "\r\n\r\n")
		}
		if err != nil {
			if isTimeout(err) && headerEnd < 0 {
				// Stalled mid-headers; nothing usable arrived.
				return nil, fmt.Errorf("incomplete request: %w", err)
			}
			if headerEnd < 0 {
				return nil, err
			}
		}
	}

	req, err := parseHead(string(buf[:headerEnd]))
	if err != nil {
		return nil, err
	}

	contentLength := parseContentLength(req.headers["content-length"])
	if headerEnd+4+contentLength > MaxRequestBytes {
		return nil, errTooLarge
	}

	// Awaiting body: whatever followed the blank line, then the remainder
	// up to Content-Length. A stall here treats the request as complete.
	body := append([]byte(nil), buf[headerEnd+4:]...)
	for len(body) < contentLength {
		n, err := conn.Read(chunk)
		if n > 0 {
			body = append(body, chunk[:n]...)
		}
		if err != nil {
			// Timeout or peer close both end the body early; the request
			// proceeds with the bytes that made it.
			break
		}
	}
	if len(body) > contentLength {
		body = body[:contentLength]
	}
	req.body = body
	return req, nil
}

func parseHead(head string) (*request, error) {
	lines := strings.Split(head, "\r\n")
	if len(lines) == 0 {
		return nil, errors.New("empty request")
	}

	parts := strings.Split(lines[0], " ")
	if len(parts) != 3 || !strings.HasPrefix(parts[2], "HTTP/") {
		return nil, fmt.Errorf("malformed request line %q", lines[0])
	}

	req := &request{
		method:  parts[0],
		path:    parts[1],
		headers: make(map[string]string, len(lines)-1),
	}
	if i := strings.IndexByte(req.path, '?'); i >= 0 {
		req.path = req.path[:i]
	}

	for _, line := range lines[1:] {
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:colon]))
		req.headers[key] = strings.TrimSpace(line[colon+1:])
	}
	return req, nil
}

// parseContentLength treats an absent or malformed header as zero.
func parseContentLength(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (s *Server) dispatch(conn net.Conn, req *request) {
	if req.method == "OPTIONS" {
		writeResponse(conn, 200, nil)
		return
	}

	if req.method == "GET" && req.path == "/health" {
		writeResponse(conn, 200, map[string]any{"status": "ok"})
		return
	}

	if !s.authorized(req) {
		writeResponse(conn, 401, map[string]any{"error": "unauthorized"})
		return
	}

	if req.method == "GET" && req.path == "/status" {
		writeResponse(conn, 200, s.status())
		return
	}

	tool, ok := routeTable[req.path]
	if !ok {
		writeResponse(conn, 404, map[string]any{"error": "not found"})
		return
	}

	// A non-JSON or empty body degrades to an empty argument map.
	args := map[string]any{}
	if len(req.body) > 0 {
		_ = json.Unmarshal(req.body, &args)
	}

	result := s.router.Invoke(context.Background(), router.Invocation{Name: tool, Arguments: args})
	if result.IsError() {
		writeResponse(conn, 400, map[string]any{"error": result.Err})
		return
	}

	value := result.Value
	if value == nil {
		value = map[string]any{"success": true}
	}
	writeResponse(conn, 200, value)
}

func (s *Server) authorized(req *request) bool {
	auth := req.headers["authorization"]
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return false
	}
	return subtleEqual(strings.TrimPrefix(auth, prefix), s.apiKey)
}

func subtleEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

var statusText = map[int]string{
	200: "OK",
	400: "Bad Request",
	401: "Unauthorized",
	404: "Not Found",
	413: "Payload Too Large",
	500: "Internal Server Error",
}

// writeResponse serializes one JSON response and closes the exchange.
// A serialization failure downgrades to a 500 with a fixed body.
func writeResponse(conn net.Conn, status int, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		status = 500
		payload = []byte(`{"error":"failed to serialize response"}`)
	}
	if body == nil {
		payload = nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", status, statusText[status])
	b.WriteString("Content-Type: application/json\r\n")
	b.WriteString("Access-Control-Allow-Origin: *\r\n")
	b.WriteString("Access-Control-Allow-Methods: GET, POST, OPTIONS\r\n")
	b.WriteString("Access-Control-Allow-Headers: Authorization, Content-Type\r\n")
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(payload))
	b.WriteString("Connection: close\r\n\r\n")
	b.Write(payload)

	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	conn.Write([]byte(b.String()))
}
