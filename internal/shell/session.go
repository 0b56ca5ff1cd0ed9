package shell

import (
	"io"
	"os/exec"
	"sync"
	"time"
)

type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopped  State = "stopped"
	StateExited   State = "exited"
)

// Session owns one child process. Every field is guarded by mu; output
// delivery, input writes, stop requests, and the exit observer all
// serialize on it so no caller can see a torn state transition. The process
// handle is never handed out.
type Session struct {
	mu sync.Mutex

	id      string
	command string
	cwd     string

	cmd   *exec.Cmd
	stdin io.WriteCloser
	pid   int

	state         State
	exitCode      *int
	stopRequested bool

	stdout    *outputBuffer
	stderr    *outputBuffer
	maxOutput int

	startedAt      time.Time
	lastActivityAt time.Time

	// closed by the exit observer once Wait returns
	done chan struct{}
}

// Snapshot is the caller-visible view of a session. Buffers are omitted to
// keep list responses small; use ReadOutput for output.
type Snapshot struct {
	ID             string    `json:"sessionId"`
	Command        string    `json:"command"`
	State          State     `json:"state"`
	PID            int       `json:"pid"`
	ExitCode       *int      `json:"exitCode,omitempty"`
	StartedAt      time.Time `json:"startedAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	ElapsedSeconds float64   `json:"elapsedSeconds"`
	OutputBytes    int       `json:"outputBytes"`
}

func (s *Session) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		ID:             s.id,
		Command:        s.command,
		State:          s.state,
		PID:            s.pid,
		ExitCode:       s.exitCode,
		StartedAt:      s.startedAt,
		LastActivityAt: s.lastActivityAt,
		ElapsedSeconds: time.Since(s.startedAt).Seconds(),
		OutputBytes:    s.stdout.len() + s.stderr.len(),
	}
}

// appendOutput is invoked from the per-stream reader goroutines.
func (s *Session) appendOutput(p []byte, isStderr bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, other := s.stdout, s.stderr
	if isStderr {
		target, other = s.stderr, s.stdout
	}
	// Both streams draw on one retention budget; the target keeps whatever
	// the other stream has not already claimed.
	target.append(p, s.maxOutput-other.len())
	s.lastActivityAt = time.Now()
}
