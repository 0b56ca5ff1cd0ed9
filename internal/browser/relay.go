// Package browser implements the websocket relay that browser extensions
// connect to. Browser-category tools are forwarded over the socket as
// request envelopes and matched to response envelopes by id.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/knws/screencontrol/pkg/events"
)

const (
	DefaultCallTimeout = 30 * time.Second
	MaxCallTimeout     = 120 * time.Second

	writeWait = 10 * time.Second
)

var ErrNotConnected = errors.New("browser relay not connected")

// message is the wire envelope in both directions.
type message struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Action  string          `json:"action,omitempty"`
	Payload map[string]any  `json:"payload,omitempty"`
	Browser string          `json:"browser,omitempty"`
	Name    string          `json:"name,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type extConn struct {
	id      string
	browser string
	name    string
	ws      *websocket.Conn
	send    chan message
	closed  chan struct{}
}

type pendingCall struct {
	connID string
	ch     chan message
}

// Relay accepts extension registrations and forwards tool calls to them.
type Relay struct {
	mu      sync.RWMutex
	conns   map[string]*extConn
	pending map[string]*pendingCall

	eventBus *events.EventBus
	timeout  time.Duration
	upgrader websocket.Upgrader

	server   *http.Server
	listener net.Listener
}

func NewRelay(eventBus *events.EventBus, callTimeout time.Duration) *Relay {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	if callTimeout > MaxCallTimeout {
		callTimeout = MaxCallTimeout
	}
	return &Relay{
		conns:    make(map[string]*extConn),
		pending:  make(map[string]*pendingCall),
		eventBus: eventBus,
		timeout:  callTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Extensions connect from extension origins; the listener is
			// loopback-only so origin filtering adds nothing here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Routes mounts the relay endpoints on a mux router.
func (r *Relay) Routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/ws", r.handleWS)
	router.HandleFunc("/relay/status", r.handleStatus).Methods(http.MethodGet)
	return router
}

// Start listens on the loopback interface and serves until Stop.
func (r *Relay) Start(port int) error {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("relay listen: %w", err)
	}
	r.listener = listener
	r.server = &http.Server{Handler: r.Routes()}

	go func() {
		if err := r.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// Listener torn down; connections unwind via their read loops.
			_ = err
		}
	}()
	return nil
}

// Addr returns the bound listener address, for tests and status output.
func (r *Relay) Addr() string {
	if r.listener == nil {
		return ""
	}
	return r.listener.Addr().String()
}

func (r *Relay) Stop(ctx context.Context) error {
	r.mu.Lock()
	conns := make([]*extConn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.ws.Close()
	}
	if r.server == nil {
		return nil
	}
	return r.server.Shutdown(ctx)
}

// Connected reports whether at least one extension is registered.
func (r *Relay) Connected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns) > 0
}

// ConnectedBrowsers lists the registered browser identifiers.
func (r *Relay) ConnectedBrowsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	browsers := make([]string, 0, len(r.conns))
	for _, c := range r.conns {
		browsers = append(browsers, c.browser)
	}
	return browsers
}

// Call forwards an action to a registered extension and waits for its
// response. browser selects a specific extension; empty picks any.
func (r *Relay) Call(ctx context.Context, action string, payload map[string]any, browser string) (any, error) {
	conn := r.pickConn(browser)
	if conn == nil {
		return nil, ErrNotConnected
	}

	id := uuid.NewString()
	call := &pendingCall{connID: conn.id, ch: make(chan message, 1)}

	r.mu.Lock()
	r.pending[id] = call
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
	}()

	req := message{Type: "request", ID: id, Action: action, Payload: payload}
	select {
	case conn.send <- req:
	case <-conn.closed:
		return nil, ErrNotConnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()
	select {
	case resp := <-call.ch:
		if resp.Error != "" {
			return nil, errors.New(resp.Error)
		}
		if len(resp.Result) == 0 {
			return nil, nil
		}
		var result any
		if err := json.Unmarshal(resp.Result, &result); err != nil {
			return nil, fmt.Errorf("malformed relay response: %w", err)
		}
		return result, nil
	case <-conn.closed:
		return nil, ErrNotConnected
	case <-timer.C:
		return nil, fmt.Errorf("browser call %q timed out after %s", action, r.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Relay) pickConn(browser string) *extConn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.conns {
		if browser == "" || c.browser == browser {
			return c
		}
	}
	return nil
}

func (r *Relay) handleWS(w http.ResponseWriter, req *http.Request) {
	ws, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}

	// The first frame must be a registration envelope.
	var reg message
	ws.SetReadDeadline(time.Now().Add(10 * time.Second))
	if err := ws.ReadJSON(&reg); err != nil || reg.Type != "register" || reg.Browser == "" {
		_ = ws.WriteJSON(message{Type: "error", Error: "expected register message with browser"})
		ws.Close()
		return
	}
	ws.SetReadDeadline(time.Time{})

	conn := &extConn{
		id:      uuid.NewString(),
		browser: reg.Browser,
		name:    reg.Name,
		ws:      ws,
		send:    make(chan message, 16),
		closed:  make(chan struct{}),
	}

	r.mu.Lock()
	r.conns[conn.id] = conn
	r.mu.Unlock()

	if r.eventBus != nil {
		r.eventBus.Publish(events.Event{
			Type: events.RelayConnected,
			Data: map[string]interface{}{"browser": conn.browser, "name": conn.name},
		})
	}

	_ = ws.WriteJSON(message{Type: "registered", Browser: conn.browser})

	go conn.writeLoop()
	r.readLoop(conn)
}

// writeLoop is the sole writer on the socket after registration.
func (c *extConn) writeLoop() {
	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (r *Relay) readLoop(conn *extConn) {
	defer r.dropConn(conn)

	for {
		var msg message
		if err := conn.ws.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type != "response" || msg.ID == "" {
			continue
		}

		r.mu.RLock()
		call, ok := r.pending[msg.ID]
		r.mu.RUnlock()
		if ok {
			select {
			case call.ch <- msg:
			default:
			}
		}
	}
}

// dropConn unregisters the connection and fails its in-flight calls.
func (r *Relay) dropConn(conn *extConn) {
	close(conn.closed)
	conn.ws.Close()

	r.mu.Lock()
	delete(r.conns, conn.id)
	for id, call := range r.pending {
		if call.connID == conn.id {
			delete(r.pending, id)
		}
	}
	r.mu.Unlock()

	if r.eventBus != nil {
		r.eventBus.Publish(events.Event{
			Type: events.RelayDisconnected,
			Data: map[string]interface{}{"browser": conn.browser, "name": conn.name},
		})
	}
}

func (r *Relay) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"connected": r.Connected(),
		"browsers":  r.ConnectedBrowsers(),
	})
}
