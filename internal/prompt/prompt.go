// Package prompt asks the user questions, with a terminal UI when attached
// to a TTY and plain line input otherwise.
package prompt

import (
	"context"
	"io"
	"os"

	"golang.org/x/term"

	clierrors "github.com/salmonumbrella/llmctl/internal/errors"
	"github.com/salmonumbrella/llmctl/internal/iocontext"
)

// Choice is one entry of a Select prompt.
type Choice struct {
	Label string
	Hint  string
}

// Prompter asks interactive questions. Backing out returns a
// *errors.CanceledError.
type Prompter interface {
	Confirm(ctx context.Context, message string, def bool) (bool, error)
	Select(ctx context.Context, message string, choices []Choice) (int, error)
	Input(ctx context.Context, message, def string) (string, error)
	Secret(ctx context.Context, message string) (string, error)
}

type ctxKey struct{}

// WithPrompter injects p into ctx.
func WithPrompter(ctx context.Context, p Prompter) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the injected Prompter, or one built for the context's
// streams.
func FromContext(ctx context.Context) Prompter {
	if p, ok := ctx.Value(ctxKey{}).(Prompter); ok {
		return p
	}
	return New(
		iocontext.StdinOrDefault(ctx, os.Stdin),
		iocontext.StderrOrDefault(ctx, os.Stderr),
	)
}

// New picks the terminal UI when in and out are both terminals.
func New(in io.Reader, out io.Writer) Prompter {
	if isTerminal(in) && isTerminal(out) {
		return &TUI{in: in, out: out}
	}
	return NewLine(in, out)
}

func isTerminal(v any) bool {
	f, ok := v.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

func canceled(step string) error {
	return &clierrors.CanceledError{Step: step}
}
