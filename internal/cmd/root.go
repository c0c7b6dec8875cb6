package cmd

import (
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/salmonumbrella/llmctl/internal/config"
	"github.com/salmonumbrella/llmctl/internal/logging"
)

//go:embed help.txt
var rootHelpText string

func newRootCmd(app *App) *cobra.Command {
	var (
		debugMode    bool
		queryFlag    string
		jsonPathFlag string
		errorFormat  string
		colorFlag    string
		quietFlag    bool
		compactJSON  bool
		yesFlag      bool
	)

	rootCmd := &cobra.Command{
		Use:   "llmctl",
		Short: "Manage LLM providers and rotate their API tokens",
		Long: `llmctl keeps a list of Anthropic-compatible providers, rotates between
several API tokens per provider, and tells running sessions when the token
they use has been switched.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			logging.Setup(debugMode, app.Stderr)

			cfg, err := config.Load()
			if err != nil {
				// config subcommands tolerate an unreadable file.
				if !isConfigCommand(cmd) {
					return fmt.Errorf("failed to load config: %w", err)
				}
				cfg = &config.Config{}
			}

			opts, err := parseGlobalOptions(cmd, cfg, app.Stdout, globalFlagInput{
				queryFlag:    queryFlag,
				jsonPathFlag: jsonPathFlag,
				quietFlag:    quietFlag,
				compactJSON:  compactJSON,
				yesFlag:      yesFlag,
				errorFormat:  errorFormat,
				colorFlag:    colorFlag,
			})
			if err != nil {
				return err
			}
			if err := validateGlobalOptions(&opts); err != nil {
				return err
			}
			if opts.queryNormalized {
				slog.Debug("removed shell escapes from --query", "query", opts.query)
			}

			ctx := buildRootContext(cmd.Context(), app, cfg, debugMode, opts)
			ctx = withRuntime(ctx, newRuntime(cfg, slog.Default()))
			cmd.SetContext(ctx)
			return nil
		},
	}

	rootCmd.Version = app.Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("llmctl %s (commit: %s, built: %s)\n", app.Version, app.Commit, app.BuildTime))

	rootCmd.PersistentFlags().StringP("output", "o", "text", "Output format: text|json|ndjson|jsonl|table|yaml")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Shorthand for --output json")
	rootCmd.PersistentFlags().StringVarP(&queryFlag, "query", "q", "", "JQ expression to filter JSON output")
	rootCmd.PersistentFlags().StringVar(&jsonPathFlag, "jsonpath", "", "Extract a value using JSONPath (e.g. $.providers[0].id)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging and trace external commands")
	rootCmd.PersistentFlags().StringVar(&errorFormat, "error-format", "auto", "Error output format (auto|text|json|yaml)")
	rootCmd.PersistentFlags().StringVar(&colorFlag, "color", "", "Color mode (auto|always|never)")
	rootCmd.PersistentFlags().BoolVar(&quietFlag, "quiet", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVar(&compactJSON, "compact-json", false, "Output compact JSON (single-line) instead of pretty JSON")
	rootCmd.PersistentFlags().BoolVarP(&yesFlag, "yes", "y", false, "Skip confirmation prompts and accept defaults")
	rootCmd.PersistentFlags().BoolVar(&yesFlag, "no-input", false, "Disable interactive prompts (alias for --yes)")
	_ = rootCmd.PersistentFlags().MarkHidden("no-input")

	flagAlias(rootCmd.PersistentFlags(), "output", "format")
	flagAlias(rootCmd.PersistentFlags(), "query", "jq")

	rootCmd.AddCommand(newProviderCmd())
	rootCmd.AddCommand(newUseCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newSwitchTokenCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newMCPCmd(app))
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newCompletionCmd())

	// Top-level shortcuts for the provider verbs used most.
	rootCmd.AddCommand(withShortcut(newProviderAddCmd(), "provider add"))
	rootCmd.AddCommand(withShortcut(newProviderListCmd(), "provider list"))
	rootCmd.AddCommand(withShortcut(newProviderCurrentCmd(), "provider current"))
	rootCmd.AddCommand(withShortcut(newProviderRemoveCmd(), "provider remove"))

	applyCanonicalVerbAliases(rootCmd)
	installRootHelp(rootCmd)

	return rootCmd
}

func isConfigCommand(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" {
			return true
		}
	}
	return false
}

func withShortcut(cmd *cobra.Command, canonical string) *cobra.Command {
	cmd.Short += fmt.Sprintf(" (alias for '%s')", canonical)
	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func installRootHelp(root *cobra.Command) {
	defaultHelp := root.HelpFunc()

	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != root {
			defaultHelp(cmd, args)
			return
		}
		_, _ = fmt.Fprint(cmd.OutOrStdout(), rootHelpText)
	})
}
