//go:build !windows

package procctl

import "golang.org/x/sys/unix"

func signalProcess(pid int, force bool) error {
	sig := unix.SIGTERM
	if force {
		sig = unix.SIGKILL
	}
	return unix.Kill(pid, sig)
}
