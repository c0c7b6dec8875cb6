package procctl

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	pwdxPattern   = regexp.MustCompile(`^\d+:\s*(.+)$`)
	cmdDirPattern = regexp.MustCompile(`(?i)--?(?:cwd|dir|path)[=\s]+"?([^"]+)"?`)
)

// DetectWorkingDir finds the working directory of pid. On POSIX it tries
// /proc, then lsof, then pwdx; on Windows wmic, then PowerShell.
func (c *Controller) DetectWorkingDir(ctx context.Context, pid int) (string, bool) {
	var (
		dir string
		ok  bool
	)
	if c.goos == "windows" {
		dir, ok = c.windowsWorkingDir(ctx, pid)
	} else {
		dir, ok = c.posixWorkingDir(ctx, pid)
	}
	if !ok {
		c.logger.Debug("working directory not found", "pid", pid)
	}
	return dir, ok
}

func (c *Controller) posixWorkingDir(ctx context.Context, pid int) (string, bool) {
	if dir, err := c.readlink(fmt.Sprintf("/proc/%d/cwd", pid)); err == nil && dir != "" {
		return dir, true
	}
	p := strconv.Itoa(pid)
	if out, err := c.runner.Output(ctx, "lsof", "-p", p); err == nil {
		if dir, ok := parseLsof(string(out)); ok {
			return dir, true
		}
	}
	if out, err := c.runner.Output(ctx, "pwdx", p); err == nil {
		if m := pwdxPattern.FindStringSubmatch(strings.TrimSpace(string(out))); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

// parseLsof takes the NAME column of the row whose FD is cwd.
func parseLsof(out string) (string, bool) {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || fields[3] != "cwd" {
			continue
		}
		dir := fields[len(fields)-1]
		if len(fields) > 9 {
			dir = strings.Join(fields[8:], " ")
		}
		if dir != "/" {
			return dir, true
		}
	}
	return "", false
}

func (c *Controller) windowsWorkingDir(ctx context.Context, pid int) (string, bool) {
	out, err := c.runner.Output(ctx, "wmic", "process", "where", fmt.Sprintf("ProcessId=%d", pid),
		"get", "CommandLine,ExecutablePath", "/format:csv")
	if err == nil && strings.TrimSpace(string(out)) != "" {
		return parseWmic(string(out))
	}

	script := fmt.Sprintf(`try { (Get-CimInstance -ClassName Win32_Process -Filter "ProcessId = %d").CommandLine } catch { "NotFound" }`, pid)
	out, err = c.runner.Output(ctx, "powershell", "-NoProfile", "-Command", script)
	if err != nil {
		return "", false
	}
	cmdline := strings.TrimSpace(string(out))
	if cmdline == "" || strings.Contains(cmdline, "NotFound") {
		return "", false
	}
	if m := cmdDirPattern.FindStringSubmatch(cmdline); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

// parseWmic reads "Node,CommandLine,ExecutablePath" CSV output. The command
// line may itself contain commas, so the path is taken from the last column.
// Only session commands qualify, and runtime install directories are ignored.
func parseWmic(out string) (string, bool) {
	var rows []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, ",") {
			rows = append(rows, line)
		}
	}
	if len(rows) < 2 {
		return "", false
	}
	data := rows[1]
	last := strings.LastIndex(data, ",")
	cmdline, exe := data[:last], strings.TrimSpace(data[last+1:])
	if !strings.Contains(cmdline, "claude") && !strings.Contains(cmdline, "llmctl use") {
		return "", false
	}
	if exe == "" {
		return "", false
	}
	dir := filepath.Dir(strings.ReplaceAll(exe, `\`, "/"))
	if strings.Contains(dir, "nodejs") || strings.Contains(dir, "Program Files") {
		return "", false
	}
	return filepath.FromSlash(dir), true
}
