package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/llmctl/internal/config"
	"github.com/salmonumbrella/llmctl/internal/debug"
	"github.com/salmonumbrella/llmctl/internal/iocontext"
	"github.com/salmonumbrella/llmctl/internal/output"
	"github.com/salmonumbrella/llmctl/internal/prompt"
	"github.com/salmonumbrella/llmctl/internal/ui"
)

type globalFlagInput struct {
	queryFlag    string
	jsonPathFlag string
	quietFlag    bool
	compactJSON  bool
	yesFlag      bool
	errorFormat  string
	colorFlag    string
}

type globalOptions struct {
	format          output.Format
	query           string
	queryNormalized bool
	jsonPath        string
	quiet           bool
	compactJSON     bool
	yes             bool
	errorFormat     string
	color           ui.ColorMode
	explicit        bool
}

func parseGlobalOptions(cmd *cobra.Command, cfg *config.Config, stdout io.Writer, flags globalFlagInput) (globalOptions, error) {
	opts := globalOptions{
		quiet:       flags.quietFlag,
		compactJSON: flags.compactJSON,
		yes:         flags.yesFlag,
		errorFormat: flags.errorFormat,
	}

	outputFlagSet := persistentFlagChanged(cmd, "output") || persistentFlagChanged(cmd, "format")
	formatStr, _ := cmd.Flags().GetString("output")
	jsonFlag, _ := cmd.Flags().GetBool("json")
	switch {
	case jsonFlag:
		formatStr = "json"
	case outputFlagSet:
	case strings.TrimSpace(os.Getenv("LLMCTL_OUTPUT")) != "":
		formatStr = os.Getenv("LLMCTL_OUTPUT")
	case cfg.GetOutput() != "":
		formatStr = cfg.GetOutput()
	case !isTerminal(stdout):
		formatStr = string(output.FormatJSON)
	}

	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return globalOptions{}, err
	}
	opts.format = format

	colorStr := flags.colorFlag
	if colorStr == "" {
		colorStr = cfg.GetColor()
	}
	opts.color, err = ui.ParseColorMode(colorStr)
	if err != nil {
		return globalOptions{}, err
	}

	opts.query, opts.queryNormalized = output.NormalizeQuery(flags.queryFlag)
	opts.jsonPath = strings.TrimSpace(flags.jsonPathFlag)
	opts.explicit = jsonFlag || outputFlagSet || opts.query != "" || opts.jsonPath != ""
	return opts, nil
}

func validateGlobalOptions(opts *globalOptions) error {
	if opts.query != "" && opts.jsonPath != "" {
		return errOnlyOne("--query", "--jsonpath")
	}
	if opts.query != "" {
		if err := output.ValidateQuery(opts.query); err != nil {
			return err
		}
	}
	return validateErrorFormat(opts.errorFormat)
}

func buildRootContext(ctx context.Context, app *App, cfg *config.Config, debugMode bool, opts globalOptions) context.Context {
	ctx = iocontext.WithIO(ctx, app.Stdout, app.Stderr)
	ctx = iocontext.WithStdin(ctx, app.stdin())
	ctx = output.WithFormat(ctx, opts.format)
	ctx = output.WithQuery(ctx, opts.query)
	ctx = output.WithJSONPath(ctx, opts.jsonPath)
	ctx = output.WithYes(ctx, opts.yes)
	ctx = output.WithQuiet(ctx, opts.quiet)
	ctx = output.WithCompactJSON(ctx, opts.compactJSON)
	ctx = debug.WithDebug(ctx, debugMode)
	ctx = WithConfig(ctx, cfg)
	ctx = WithErrorFormat(ctx, opts.errorFormat)
	ctx = withExplicitOutput(ctx, opts.explicit)

	u := ui.NewWithWriter(app.Stderr, opts.color)
	if opts.quiet {
		u = ui.NewWithWriter(io.Discard, opts.color)
	}
	ctx = ui.WithUI(ctx, u)

	p := app.Prompter
	if p == nil {
		p = prompt.New(app.stdin(), app.Stderr)
	}
	return prompt.WithPrompter(ctx, p)
}

func errOnlyOne(left, right string) error {
	return fmt.Errorf("use only one of %s or %s", left, right)
}

// persistentFlagChanged ignores local flags of the same name, such as the
// script --format of export and use.
func persistentFlagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil {
		return false
	}
	for current := cmd; current != nil; current = current.Parent() {
		if flag := current.PersistentFlags().Lookup(name); flag != nil && flag.Changed {
			return true
		}
	}
	return false
}
