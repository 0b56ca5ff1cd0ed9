//go:build !windows

package discovery

import "syscall"

// processAlive reports whether a pid refers to a live process we can see.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}
