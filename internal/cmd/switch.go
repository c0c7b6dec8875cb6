package cmd

import (
	"github.com/spf13/cobra"

	"github.com/salmonumbrella/llmctl/internal/output"
	"github.com/salmonumbrella/llmctl/internal/prompt"
	"github.com/salmonumbrella/llmctl/internal/switcher"
	"github.com/salmonumbrella/llmctl/internal/ui"
)

func newSwitchTokenCmd() *cobra.Command {
	var opts switcher.Options

	cmd := &cobra.Command{
		Use:   "switch-token [provider]",
		Short: "Move a provider to its next token and restart its sessions",
		Long: `Pick the provider's next token with its rotation strategy, make it the
current token, and tell every running session about it.

Without a provider id, you choose among providers that have live sessions.
Sessions started with 'llmctl use --cli' are stopped and relaunched in a new
terminal in the same directory.`,
		Example: `  llmctl switch-token work
  llmctl switch-token work --disable --yes
  llmctl switch-token --list`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeProviderIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := mustRuntime(ctx)
			if err != nil {
				return err
			}
			store, err := rt.Store()
			if err != nil {
				return err
			}
			engine, err := rt.Engine()
			if err != nil {
				return err
			}
			registry, err := rt.Registry()
			if err != nil {
				return err
			}
			notifier, err := rt.Notifier()
			if err != nil {
				return err
			}

			opts.ProviderID = argOrEmpty(args)
			opts.Yes = output.YesFromContext(ctx)

			var p prompt.Prompter
			if !opts.Yes {
				p = prompt.FromContext(ctx)
			}
			coord := switcher.New(switcher.Deps{
				Store:    store,
				Rotator:  engine,
				Sessions: registry,
				Notifier: notifier,
				Procs:    rt.Procs(),
				Prompter: p,
				UI:       ui.FromContext(ctx),
			})

			report, err := coord.Run(ctx, opts)
			if err != nil {
				return err
			}
			if structured(ctx) || opts.List {
				return printerForContext(ctx).Print(ctx, report)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.List, "list", false, "Show token details before and after the switch")
	cmd.Flags().BoolVar(&opts.Disable, "disable", false, "Disable the current token (e.g. exhausted) before switching")
	return cmd
}
