package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/knws/screencontrol/pkg/events"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionNotRunning = errors.New("session not running")
	ErrTooManySessions   = errors.New("too many concurrent sessions")
)

const (
	DefaultExecTimeout = 600 * time.Second
	DefaultOutputCap   = 128 * 1024
	DefaultMaxSessions = 10

	readChunkSize = 4096
	stopGrace     = 5 * time.Second
	killGrace     = 2 * time.Second
)

// Manager owns all shell child processes. The session table is the only
// state mutated from multiple directions (start, output delivery, input,
// stop); it is guarded by mu, and per-session state by the session's own
// lock. Synchronous execution and async sessions share one spawn/stream
// primitive.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	eventBus    *events.EventBus
	maxSessions int
	outputCap   int
}

func NewManager(eventBus *events.EventBus, maxSessions, outputCap int) *Manager {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if outputCap <= 0 {
		outputCap = DefaultOutputCap
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		eventBus:    eventBus,
		maxSessions: maxSessions,
		outputCap:   outputCap,
	}
}

// ExecResult is the outcome of a synchronous run-to-completion execution.
type ExecResult struct {
	ExitCode  int    `json:"exitCode"`
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	Truncated bool   `json:"truncated"`
	TimedOut  bool   `json:"timedOut"`
}

// StartInfo is returned by Start for a newly registered session.
type StartInfo struct {
	SessionID string `json:"sessionId"`
	PID       int    `json:"pid"`
}

// OutputChunk is the result of draining a session's buffers.
type OutputChunk struct {
	SessionID       string `json:"sessionId"`
	Stdout          string `json:"stdout"`
	Stderr          string `json:"stderr"`
	StdoutTruncated bool   `json:"stdoutTruncated"`
	StderrTruncated bool   `json:"stderrTruncated"`
	State           State  `json:"state"`
}

// Exec spawns a command, streams its output into an unregistered session,
// and blocks until exit or timeout. On timeout the process group is killed
// and the partial output is returned with TimedOut set. Cancellation of ctx
// also kills the process but surfaces as the context error, not a timeout.
func (m *Manager) Exec(ctx context.Context, command, cwd string, timeout time.Duration, captureStderr bool) (*ExecResult, error) {
	if command == "" {
		return nil, errors.New("command must not be empty")
	}
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}

	sess, err := m.spawn(command, cwd, nil, captureStderr, false)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	timedOut := false
	select {
	case <-sess.done:
	case <-ctx.Done():
		// Caller went away; this is not a wall-clock timeout. Kill the
		// process group and report the context error instead of a result.
		terminateTree(sess.pid)
		select {
		case <-sess.done:
		case <-time.After(killGrace):
		}
		return nil, ctx.Err()
	case <-timer.C:
		timedOut = true
	}

	if timedOut {
		terminateTree(sess.pid)
		select {
		case <-sess.done:
		case <-time.After(killGrace):
			// Reader goroutines hold the pipes; give up waiting rather
			// than block the caller past its timeout.
		}
	}

	sess.mu.Lock()
	stdout, stdoutTrunc := sess.stdout.snapshot()
	stderr, stderrTrunc := sess.stderr.snapshot()
	exitCode := -1
	if sess.exitCode != nil {
		exitCode = *sess.exitCode
	}
	sess.mu.Unlock()

	return &ExecResult{
		ExitCode:  exitCode,
		Stdout:    stdout,
		Stderr:    stderr,
		Truncated: stdoutTrunc || stderrTrunc,
		TimedOut:  timedOut,
	}, nil
}

// Start spawns a command as a registered long-running session and returns
// its id and pid. Ids are never reused.
func (m *Manager) Start(command, cwd string, env map[string]string, captureStderr bool) (*StartInfo, error) {
	if command == "" {
		return nil, errors.New("command must not be empty")
	}

	sess, err := m.spawn(command, cwd, env, captureStderr, true)
	if err != nil {
		return nil, err
	}

	if m.eventBus != nil {
		m.eventBus.Publish(events.Event{
			Type:      events.SessionStarted,
			SessionID: sess.id,
			Data: map[string]interface{}{
				"command": command,
				"pid":     sess.pid,
			},
		})
	}

	return &StartInfo{SessionID: sess.id, PID: sess.pid}, nil
}

// SendInput writes text to a running session's stdin and reports the byte
// count written.
func (m *Manager) SendInput(sessionID, input string) (int, error) {
	sess, ok := m.lookup(sessionID)
	if !ok {
		return 0, ErrSessionNotFound
	}

	sess.mu.Lock()
	if sess.state != StateRunning {
		sess.mu.Unlock()
		return 0, ErrSessionNotRunning
	}
	stdin := sess.stdin
	sess.lastActivityAt = time.Now()
	sess.mu.Unlock()

	// The write happens outside the session lock so a blocked pipe cannot
	// stall output delivery. A concurrently closing stdin surfaces here as
	// a write error.
	n, err := io.WriteString(stdin, input)
	if err != nil {
		return n, ErrSessionNotRunning
	}
	return n, nil
}

// Stop signals the session's process group and waits (bounded) for the exit
// to be observed; the exit observer removes the session from the table.
func (m *Manager) Stop(sessionID, signal string) error {
	sess, ok := m.lookup(sessionID)
	if !ok {
		return ErrSessionNotFound
	}

	sess.mu.Lock()
	sess.stopRequested = true
	pid := sess.pid
	sess.mu.Unlock()

	if err := signalTree(pid, signal); err != nil {
		sess.mu.Lock()
		sess.stopRequested = false
		sess.mu.Unlock()
		return fmt.Errorf("signal session %s: %w", sessionID, err)
	}

	select {
	case <-sess.done:
		return nil
	case <-time.After(stopGrace):
	}

	// Graceful signal ignored; escalate.
	terminateTree(pid)
	select {
	case <-sess.done:
	case <-time.After(killGrace):
	}
	return nil
}

// ReadOutput drains the session's buffered output since the last read.
func (m *Manager) ReadOutput(sessionID string) (*OutputChunk, error) {
	sess, ok := m.lookup(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	stdout, stdoutTrunc := sess.stdout.drain()
	stderr, stderrTrunc := sess.stderr.drain()
	return &OutputChunk{
		SessionID:       sessionID,
		Stdout:          stdout,
		Stderr:          stderr,
		StdoutTruncated: stdoutTrunc,
		StderrTruncated: stderrTrunc,
		State:           sess.state,
	}, nil
}

// Get returns a snapshot of one session.
func (m *Manager) Get(sessionID string) (Snapshot, bool) {
	sess, ok := m.lookup(sessionID)
	if !ok {
		return Snapshot{}, false
	}
	return sess.snapshot(), true
}

// List returns snapshots of every registered session.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.RUnlock()

	snapshots := make([]Snapshot, 0, len(sessions))
	for _, sess := range sessions {
		snapshots = append(snapshots, sess.snapshot())
	}
	return snapshots
}

// CleanupAll terminates every session at shutdown. It signals TERM, waits
// briefly, force-kills stragglers, and clears the table.
func (m *Manager) CleanupAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.mu.Lock()
		sess.stopRequested = true
		pid := sess.pid
		sess.mu.Unlock()
		_ = signalTree(pid, "TERM")
	}

	deadline := time.After(killGrace)
	for _, sess := range sessions {
		select {
		case <-sess.done:
		case <-deadline:
			terminateTree(sess.pid)
		}
	}
}

func (m *Manager) lookup(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[sessionID]
	return sess, ok
}

func (m *Manager) remove(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
}

// spawn is the shared spawn-and-stream primitive. It starts the child,
// wires reader goroutines for both output streams, and installs the exit
// observer. Registered sessions land in the table and publish events;
// unregistered ones (sync exec) stay private to the caller.
func (m *Manager) spawn(command, cwd string, env map[string]string, captureStderr, register bool) (*Session, error) {
	cmd := shellCommand(command)
	cmd.Dir = cwd
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	setupProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	sess := &Session{
		id:             uuid.NewString(),
		command:        command,
		cwd:            cwd,
		cmd:            cmd,
		stdin:          stdin,
		state:          StateStarting,
		stdout:         &outputBuffer{},
		stderr:         &outputBuffer{},
		maxOutput:      m.outputCap,
		startedAt:      time.Now(),
		lastActivityAt: time.Now(),
		done:           make(chan struct{}),
	}

	if register {
		// The cap check and the table insert share one critical section, so
		// concurrent starts cannot all observe a free slot. The slot is
		// reserved before the child starts and released on spawn failure.
		m.mu.Lock()
		if len(m.sessions) >= m.maxSessions {
			m.mu.Unlock()
			stdin.Close()
			stdout.Close()
			stderr.Close()
			return nil, fmt.Errorf("%w (limit %d)", ErrTooManySessions, m.maxSessions)
		}
		m.sessions[sess.id] = sess
		m.mu.Unlock()
	}

	if err := cmd.Start(); err != nil {
		if register {
			m.remove(sess.id)
		}
		return nil, fmt.Errorf("failed to start command %q: %w", command, err)
	}

	sess.mu.Lock()
	sess.pid = cmd.Process.Pid
	sess.state = StateRunning
	sess.mu.Unlock()

	var readers sync.WaitGroup
	readers.Add(2)
	go m.streamOutput(sess, stdout, false, register, &readers)
	// When stderr capture is off, stderr bytes land in the stdout buffer so
	// nothing is silently dropped.
	go m.streamOutput(sess, stderr, captureStderr, register, &readers)

	go m.observeExit(sess, &readers, register)

	return sess, nil
}

func (m *Manager) streamOutput(sess *Session, r io.Reader, isStderr, publish bool, readers *sync.WaitGroup) {
	defer readers.Done()

	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			sess.appendOutput(chunk, isStderr)

			if publish && m.eventBus != nil {
				stream := "stdout"
				if isStderr {
					stream = "stderr"
				}
				m.eventBus.Publish(events.Event{
					Type:      events.SessionOutput,
					SessionID: sess.id,
					Data: map[string]interface{}{
						"stream": stream,
						"text":   string(chunk),
					},
				})
			}
		}
		if err != nil {
			return
		}
	}
}

func (m *Manager) observeExit(sess *Session, readers *sync.WaitGroup, register bool) {
	// Drain the pipes before Wait closes them.
	readers.Wait()
	err := sess.cmd.Wait()

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	sess.mu.Lock()
	sess.exitCode = &code
	if sess.stopRequested {
		sess.state = StateStopped
	} else {
		sess.state = StateExited
	}
	state := sess.state
	stdoutTail, _ := sess.stdout.snapshot()
	sess.mu.Unlock()

	if register {
		m.remove(sess.id)

		if m.eventBus != nil {
			m.eventBus.Publish(events.Event{
				Type:      events.SessionExited,
				SessionID: sess.id,
				Data: map[string]interface{}{
					"exitCode":   code,
					"state":      string(state),
					"outputTail": tail(stdoutTail, 2048),
				},
			})
		}
	}

	close(sess.done)
}

func tail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
