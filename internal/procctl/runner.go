// Package procctl inspects, stops and relaunches the processes behind
// llmctl sessions.
package procctl

import (
	"context"
	"io"
	"os"
	"os/exec"

	"github.com/salmonumbrella/llmctl/internal/debug"
	"github.com/salmonumbrella/llmctl/internal/iocontext"
)

// Runner runs external commands.
type Runner interface {
	// Output runs name and returns its stdout.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	// Start launches name detached from the current process.
	Start(ctx context.Context, name string, args ...string) error
	// StartCommandLine launches name detached with line as its command line,
	// passed to the OS without argument quoting. Windows only.
	StartCommandLine(ctx context.Context, name, line string) error
	LookPath(name string) (string, error)
}

// ExecRunner runs commands with os/exec, tracing them in debug mode.
type ExecRunner struct{}

func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	done := debug.TraceCommand(ctx, iocontext.StderrOrDefault(ctx, os.Stderr), name, args...)
	out, err := exec.CommandContext(ctx, name, args...).Output()
	done(err)
	return out, err
}

func (ExecRunner) Start(ctx context.Context, name string, args ...string) error {
	done := debug.TraceCommand(ctx, iocontext.StderrOrDefault(ctx, os.Stderr), name, args...)
	cmd := exec.Command(name, args...)
	detach(cmd)
	err := cmd.Start()
	if err == nil {
		err = cmd.Process.Release()
	}
	done(err)
	return err
}

func (ExecRunner) StartCommandLine(ctx context.Context, name, line string) error {
	done := debug.TraceCommand(ctx, iocontext.StderrOrDefault(ctx, os.Stderr), line)
	cmd := exec.Command(name)
	detach(cmd)
	if err := setCommandLine(cmd, line); err != nil {
		done(err)
		return err
	}
	err := cmd.Start()
	if err == nil {
		err = cmd.Process.Release()
	}
	done(err)
	return err
}

func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Child describes a downstream CLI run in the foreground.
type Child struct {
	Name   string
	Args   []string
	Env    []string
	Dir    string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// RunChild runs c attached to the given streams and waits for it. A nil
// stream inherits the current process's.
func RunChild(ctx context.Context, c Child) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Env = c.Env
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	done := debug.TraceCommand(ctx, cmd.Stderr, c.Name, c.Args...)
	err := cmd.Run()
	done(err)
	return err
}
