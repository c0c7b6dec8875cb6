package cmd

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/llmctl/internal/auth"
	"github.com/salmonumbrella/llmctl/internal/envexport"
	clierrors "github.com/salmonumbrella/llmctl/internal/errors"
	"github.com/salmonumbrella/llmctl/internal/ui"
)

type exportResult struct {
	Format       envexport.Format  `json:"format"`
	Variables    map[string]string `json:"variables"`
	Instructions []string          `json:"instructions"`
}

func newExportCmd() *cobra.Command {
	var (
		providerID string
		format     string
		check      bool
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the active provider's environment for your shell",
		Example: `  eval "$(llmctl export)"
  llmctl export --provider glm --format powershell | Invoke-Expression
  llmctl export --validate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, _, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			p, err := resolveProvider(ctx, cfg, providerID)
			if err != nil {
				return err
			}
			vars := p.ExportVars()

			if check {
				probs := envexport.Validate(vars)
				if err := printerForContext(ctx).Print(ctx, probs); err != nil {
					return err
				}
				if !probs.Valid {
					return clierrors.NewUserError(
						fmt.Sprintf("environment for %s is invalid", p.ID),
						fmt.Sprintf("Fix it with: llmctl provider edit %s", p.ID),
					)
				}
				return nil
			}

			if dryRun {
				dp := NewDryRunPrinter(stdoutFromContext(ctx))
				dp.Header("export", "provider", p.ID)
				masked := envexport.Masked(vars)
				for _, k := range slices.Sorted(maps.Keys(masked)) {
					dp.Field(k, masked[k])
				}
				dp.Footer()
				return nil
			}

			if err := auth.ResolveVars(vars); err != nil {
				return err
			}
			if err := printExport(ctx, vars, format, true); err != nil {
				return err
			}
			return nil
		},
	}

	providerFlag(cmd, &providerID, "Provider id (default: active provider)")
	cmd.Flags().StringVar(&format, "format", string(envexport.FormatAuto), "Script format: auto|bash|powershell|cmd|json")
	cmd.Flags().BoolVar(&check, "validate", false, "Check variable names and values instead of exporting")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show masked variables without printing secrets")
	return cmd
}

// printExport writes vars as a sourceable script, or as a masked object when
// structured output was asked for explicitly. With bare set, only the export
// lines are written.
func printExport(ctx context.Context, vars map[string]string, format string, bare bool) error {
	f, err := envexport.ParseFormat(format)
	if err != nil {
		return &clierrors.ValidationError{Field: "format", Message: err.Error()}
	}

	if structured(ctx) && explicitOutputFromContext(ctx) {
		return printerForContext(ctx).Print(ctx, exportResult{
			Format:       f,
			Variables:    envexport.Masked(vars),
			Instructions: envexport.Instructions(f),
		})
	}

	var script string
	if bare || f == envexport.FormatJSON {
		script, err = envexport.Render(vars, f)
	} else {
		script, err = envexport.Script(vars, f)
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdoutFromContext(ctx), script)

	u := ui.FromContext(ctx)
	for _, line := range envexport.Instructions(f) {
		u.Info("Load with: %s", line)
	}
	return nil
}
