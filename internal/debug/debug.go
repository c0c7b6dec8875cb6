// Package debug carries the --debug flag through command contexts and
// provides a small helper for tracing external commands.
package debug

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

type contextKey struct{}

// WithDebug injects the debug flag into the context
func WithDebug(ctx context.Context, debug bool) context.Context {
	return context.WithValue(ctx, contextKey{}, debug)
}

// IsDebug returns true if debug mode is enabled in the context
func IsDebug(ctx context.Context) bool {
	if v, ok := ctx.Value(contextKey{}).(bool); ok {
		return v
	}
	return false
}

// TraceCommand writes "--> name args" and returns a func that writes the
// elapsed time and outcome. It is a no-op unless debug mode is enabled.
func TraceCommand(ctx context.Context, w io.Writer, name string, args ...string) func(err error) {
	if !IsDebug(ctx) {
		return func(error) {}
	}
	if w == nil {
		w = os.Stderr
	}
	start := time.Now()
	_, _ = fmt.Fprintf(w, "--> %s %s\n", name, strings.Join(args, " "))
	return func(err error) {
		elapsed := time.Since(start).Round(time.Millisecond)
		if err != nil {
			_, _ = fmt.Fprintf(w, "<-- %s failed (%s): %v\n", name, elapsed, err)
			return
		}
		_, _ = fmt.Fprintf(w, "<-- %s ok (%s)\n", name, elapsed)
	}
}
