package procctl

import (
	"context"
	"fmt"
)

// Binary is the command relaunched terminals run.
const Binary = "llmctl"

type terminal struct {
	name string
	args func(cwd string) []string
}

var posixTerminals = []terminal{
	{"gnome-terminal", func(cwd string) []string { return []string{"--working-directory", cwd, "--", "bash", "-c"} }},
	{"xterm", func(string) []string { return []string{"-e", "bash", "-c"} }},
	{"Terminal", func(string) []string { return []string{"-e", "bash", "-c"} }},
}

// LaunchResult reports how a session was relaunched.
type LaunchResult struct {
	Launched bool     `json:"launched"`
	Terminal string   `json:"terminal,omitempty"`
	Command  string   `json:"command"`
	Manual   []string `json:"manual,omitempty"`
}

// ShellCommand is what a relaunched POSIX terminal runs.
func ShellCommand(providerID, cwd string) string {
	return fmt.Sprintf(`cd "%s" && %s use %s --cli; exec bash`, cwd, Binary, providerID)
}

// WindowsCommand is the "start" argument that opens a new cmd window.
func WindowsCommand(providerID, cwd string) string {
	return fmt.Sprintf(`start "%s - %s" cmd /k "cd /d "%s" && %s use %s --cli"`, Binary, providerID, cwd, Binary, providerID)
}

// WindowsCommandLine is the full cmd.exe command line that runs
// WindowsCommand.
func WindowsCommandLine(providerID, cwd string) string {
	return "cmd /c " + WindowsCommand(providerID, cwd)
}

// ManualCommands is printed when no terminal can be opened.
func ManualCommands(providerID, cwd string) []string {
	return []string{
		fmt.Sprintf(`cd "%s"`, cwd),
		fmt.Sprintf("%s use %s", Binary, providerID),
	}
}

// RelaunchInTerminal opens a new terminal in cwd running "llmctl use <id> --cli".
// When no terminal can be started the result carries the manual commands.
func (c *Controller) RelaunchInTerminal(ctx context.Context, providerID, cwd string) LaunchResult {
	if c.goos == "windows" {
		cmd := WindowsCommand(providerID, cwd)
		if err := c.runner.StartCommandLine(ctx, "cmd", WindowsCommandLine(providerID, cwd)); err != nil {
			c.logger.Debug("failed to open cmd window", "error", err)
			return LaunchResult{Command: cmd, Manual: ManualCommands(providerID, cwd)}
		}
		return LaunchResult{Launched: true, Terminal: "cmd", Command: cmd}
	}

	cmd := ShellCommand(providerID, cwd)
	for _, t := range posixTerminals {
		if _, err := c.runner.LookPath(t.name); err != nil {
			continue
		}
		args := append(t.args(cwd), cmd)
		if err := c.runner.Start(ctx, t.name, args...); err != nil {
			c.logger.Debug("failed to open terminal", "terminal", t.name, "error", err)
			continue
		}
		return LaunchResult{Launched: true, Terminal: t.name, Command: cmd}
	}
	return LaunchResult{Command: cmd, Manual: ManualCommands(providerID, cwd)}
}
