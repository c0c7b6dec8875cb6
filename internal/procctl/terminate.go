package procctl

import (
	"context"
	"strconv"
)

// TerminateOutcome describes what Terminate observed.
type TerminateOutcome string

const (
	// Killed means the process was still running after the grace period.
	Killed TerminateOutcome = "killed"
	// Exited means the process stopped after SIGTERM.
	Exited TerminateOutcome = "exited"
	// AlreadyGone means the process could not be signalled at all.
	AlreadyGone TerminateOutcome = "already-gone"
)

// Terminate stops pid: SIGTERM, KillGrace, then SIGKILL on POSIX and
// taskkill /F on Windows. Failures to signal mean the process is gone.
func (c *Controller) Terminate(ctx context.Context, pid int) (TerminateOutcome, error) {
	if c.goos == "windows" {
		if _, err := c.runner.Output(ctx, "taskkill", "/PID", strconv.Itoa(pid), "/F"); err != nil {
			c.logger.Debug("taskkill failed", "pid", pid, "error", err)
			return AlreadyGone, nil
		}
		return Killed, nil
	}

	if err := c.signal(pid, false); err != nil {
		c.logger.Debug("SIGTERM failed", "pid", pid, "error", err)
		return AlreadyGone, nil
	}
	if err := c.sleep(ctx, KillGrace); err != nil {
		return "", err
	}
	if err := c.signal(pid, true); err != nil {
		return Exited, nil
	}
	return Killed, nil
}
