//go:build windows

package shell

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

func shellCommand(command string) *exec.Cmd {
	return exec.Command("cmd", "/C", command)
}

func setupProcessGroup(cmd *exec.Cmd) {
	// Windows has no POSIX process groups; taskkill handles the tree.
}

// signalTree approximates POSIX signals on Windows. TERM and INT request a
// graceful stop via taskkill; KILL and HUP terminate the tree outright.
func signalTree(pid int, signal string) error {
	switch signal {
	case "", "TERM", "INT":
		return exec.Command("taskkill", "/PID", strconv.Itoa(pid), "/T").Run()
	case "KILL", "HUP":
		terminateTree(pid)
		return nil
	default:
		return fmt.Errorf("unsupported signal %q", signal)
	}
}

func terminateTree(pid int) {
	if err := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run(); err != nil {
		if proc, perr := os.FindProcess(pid); perr == nil {
			_ = proc.Kill()
		}
	}
}
