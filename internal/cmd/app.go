package cmd

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/llmctl/internal/iocontext"
	"github.com/salmonumbrella/llmctl/internal/prompt"
)

// App owns CLI wiring and execution configuration.
type App struct {
	Stdout    io.Writer
	Stderr    io.Writer
	Stdin     io.Reader
	Version   string
	Commit    string
	BuildTime string

	// Prompter replaces the terminal prompter, for tests and embedding.
	Prompter prompt.Prompter
}

// NewApp constructs an App with default settings.
func NewApp() *App {
	return &App{
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Stdin:     os.Stdin,
		Version:   "dev",
		Commit:    "unknown",
		BuildTime: "unknown",
	}
}

func (a *App) stdin() io.Reader {
	if a.Stdin == nil {
		return os.Stdin
	}
	return a.Stdin
}

// Execute runs the CLI with the provided args.
func (a *App) Execute(ctx context.Context, args []string) error {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(a.Stdout)
	root.SetErr(a.Stderr)

	ctx = iocontext.WithIO(ctx, a.Stdout, a.Stderr)
	cmd, err := root.ExecuteContextC(ctx)
	if cmd != nil {
		closeRuntime(cmd.Context())
	}
	if err != nil {
		if _, child := childExitStatus(err); !child {
			errCtx := ctx
			if cmd != nil && cmd.Context() != nil {
				errCtx = cmd.Context()
			}
			printCommandError(errCtx, err)
		}
		return err
	}
	return nil
}

// RootCommand exposes the root Cobra command for embedding/tests.
func (a *App) RootCommand() *cobra.Command {
	return newRootCmd(a)
}
