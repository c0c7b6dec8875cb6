package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/llmctl/internal/config"
	"github.com/salmonumbrella/llmctl/internal/envexport"
	clierrors "github.com/salmonumbrella/llmctl/internal/errors"
	"github.com/salmonumbrella/llmctl/internal/output"
	"github.com/salmonumbrella/llmctl/internal/provider"
	"github.com/salmonumbrella/llmctl/internal/ui"
)

type providerCheck struct {
	Provider string   `json:"provider"`
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

type checkList []providerCheck

func (l checkList) Table() output.Table {
	t := output.Table{Headers: []string{"PROVIDER", "STATUS", "ERRORS", "WARNINGS"}}
	for _, c := range l {
		status := "ok"
		if !c.Valid {
			status = "invalid"
		}
		t.Rows = append(t.Rows, []string{c.Provider, status, fmt.Sprintf("%d", len(c.Errors)), fmt.Sprintf("%d", len(c.Warnings))})
	}
	return t
}

// checkProvider combines the schema and provider rules with the export
// variable checks.
func checkProvider(p *provider.Provider) providerCheck {
	probs := config.ValidateProvider(p)
	env := envexport.Validate(p.ExportVars())
	c := providerCheck{
		Provider: p.ID,
		Errors:   append(append([]string{}, probs.Errors...), env.Errors...),
		Warnings: append(append([]string{}, probs.Warnings...), env.Warnings...),
	}
	c.Valid = len(c.Errors) == 0
	return c
}

func newValidateCmd() *cobra.Command {
	var (
		providerID string
		all        bool
		whole      bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check providers and the config file",
		Long: `Check provider settings before exporting them.

By default the active provider is checked, or every provider when none is
active. --config also checks config-level rules such as a dangling active
provider or an unknown session backend.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if countTrue(providerID != "", all, whole) > 1 {
				return errOnlyOne("--provider, --all", "--config")
			}
			cfg, _, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			u := ui.FromContext(ctx)

			if whole {
				report := config.Validate(cfg)
				if err := printerForContext(ctx).Print(ctx, report); err != nil {
					return err
				}
				if !report.Valid {
					return clierrors.NewUserError("configuration is invalid", "Run 'llmctl validate --all' for per-provider details")
				}
				u.Success("Configuration is valid")
				return nil
			}

			var targets []*provider.Provider
			switch {
			case providerID != "":
				p, err := cfg.GetProvider(providerID)
				if err != nil {
					return err
				}
				targets = []*provider.Provider{p}
			case all || cfg.ActiveProvider == "":
				targets = cfg.Providers
			default:
				p, err := cfg.GetActiveProvider()
				if err != nil {
					return err
				}
				targets = []*provider.Provider{p}
			}
			if len(targets) == 0 {
				return clierrors.NoProvidersError()
			}

			results := make(checkList, 0, len(targets))
			invalid := 0
			for _, p := range targets {
				c := checkProvider(p)
				if !c.Valid {
					invalid++
				}
				results = append(results, c)
			}
			if err := printerForContext(ctx).Print(ctx, results); err != nil {
				return err
			}
			if !structured(ctx) {
				for _, c := range results {
					for _, e := range c.Errors {
						u.Error("%s: %s", c.Provider, e)
					}
					for _, w := range c.Warnings {
						u.Warning("%s: %s", c.Provider, w)
					}
				}
			}
			if invalid > 0 {
				return clierrors.NewUserError(
					fmt.Sprintf("%d of %d providers failed validation", invalid, len(results)),
					"Fix them with 'llmctl provider edit' or 'llmctl token edit'",
				)
			}
			u.Success("All checked providers are valid")
			return nil
		},
	}

	providerFlag(cmd, &providerID, "Check one provider")
	cmd.Flags().BoolVar(&all, "all", false, "Check every provider")
	cmd.Flags().BoolVar(&whole, "config", false, "Check the whole config file")
	return cmd
}

func countTrue(values ...bool) int {
	n := 0
	for _, v := range values {
		if v {
			n++
		}
	}
	return n
}
