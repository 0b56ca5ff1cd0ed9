//go:build !windows

package shell

import (
	"fmt"
	"os/exec"
	"syscall"
)

func shellCommand(command string) *exec.Cmd {
	return exec.Command("/bin/sh", "-c", command)
}

// setupProcessGroup puts the child in its own process group so signals
// reach the whole tree, not just the shell.
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalTree sends a named signal to the session's process group, falling
// back to the process itself if the group is already gone.
func signalTree(pid int, signal string) error {
	sig, err := parseSignal(signal)
	if err != nil {
		return err
	}
	if err := syscall.Kill(-pid, sig); err != nil {
		return syscall.Kill(pid, sig)
	}
	return nil
}

// terminateTree force-kills the process group.
func terminateTree(pid int) {
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		_ = syscall.Kill(pid, syscall.SIGKILL)
	}
}

func parseSignal(name string) (syscall.Signal, error) {
	switch name {
	case "", "TERM":
		return syscall.SIGTERM, nil
	case "KILL":
		return syscall.SIGKILL, nil
	case "INT":
		return syscall.SIGINT, nil
	case "HUP":
		return syscall.SIGHUP, nil
	default:
		return 0, fmt.Errorf("unsupported signal %q", name)
	}
}
