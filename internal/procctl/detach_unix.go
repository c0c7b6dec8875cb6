//go:build !windows

package procctl

import (
	"errors"
	"os/exec"
	"syscall"
)

func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

func setCommandLine(*exec.Cmd, string) error {
	return errors.New("raw command lines are only supported on Windows")
}
