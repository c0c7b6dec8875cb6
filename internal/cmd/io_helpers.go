package cmd

import (
	"context"
	"io"
	"os"

	"github.com/salmonumbrella/llmctl/internal/iocontext"
	"github.com/salmonumbrella/llmctl/internal/output"
)

func stdoutFromContext(ctx context.Context) io.Writer {
	return iocontext.StdoutOrDefault(ctx, os.Stdout)
}

func stderrFromContext(ctx context.Context) io.Writer {
	return iocontext.StderrOrDefault(ctx, os.Stderr)
}

func stdinFromContext(ctx context.Context) io.Reader {
	return iocontext.StdinOrDefault(ctx, os.Stdin)
}

func printerForContext(ctx context.Context) *output.Printer {
	return output.NewPrinter(stdoutFromContext(ctx), output.FormatFromContext(ctx))
}

// structured reports whether results go to a machine-readable format, in
// which case human guidance is kept off stdout.
func structured(ctx context.Context) bool {
	return output.FormatFromContext(ctx).IsStructured() || output.QueryFromContext(ctx) != "" || output.JSONPathFromContext(ctx) != ""
}
