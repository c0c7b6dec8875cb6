package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/llmctl/internal/auth"
	"github.com/salmonumbrella/llmctl/internal/batch"
	clierrors "github.com/salmonumbrella/llmctl/internal/errors"
	"github.com/salmonumbrella/llmctl/internal/output"
	"github.com/salmonumbrella/llmctl/internal/prompt"
	"github.com/salmonumbrella/llmctl/internal/provider"
	"github.com/salmonumbrella/llmctl/internal/rotation"
	"github.com/salmonumbrella/llmctl/internal/ui"
	"github.com/salmonumbrella/llmctl/internal/validate"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "token",
		Aliases: []string{"tokens", "t"},
		Short:   "Manage a provider's rotating API tokens",
		Long: `Manage the token pool of a provider.

Tokens are picked by the provider's strategy (round-robin, weighted, random or
least-used) when switch-token runs. A token value may be a literal secret or a
reference: keyring:<name> (OS keyring) or env:<VAR>.`,
	}
	cmd.AddCommand(newTokenListCmd())
	cmd.AddCommand(newTokenAddCmd())
	cmd.AddCommand(newTokenImportCmd())
	cmd.AddCommand(newTokenEditCmd())
	cmd.AddCommand(newTokenRemoveCmd())
	cmd.AddCommand(newTokenEnableCmd(true))
	cmd.AddCommand(newTokenEnableCmd(false))
	cmd.AddCommand(newTokenStrategyCmd())
	cmd.AddCommand(newTokenNextCmd())
	cmd.AddCommand(newTokenStatsCmd())
	return cmd
}

type tokenView struct {
	Index    int    `json:"index"`
	Alias    string `json:"alias"`
	Preview  string `json:"preview"`
	Weight   int    `json:"weight"`
	Enabled  bool   `json:"enabled"`
	Healthy  bool   `json:"healthy"`
	Current  bool   `json:"current"`
	LastUsed string `json:"last_used,omitempty"`
}

func newTokenView(p *provider.Provider, i int) tokenView {
	t := p.Tokens[i]
	v := tokenView{
		Index:   i + 1,
		Alias:   t.DisplayName(),
		Preview: auth.Describe(t.Value),
		Weight:  t.EffectiveWeight(),
		Enabled: t.IsEnabled(),
		Healthy: t.IsHealthy(),
		Current: t.Value == p.CurrentToken(),
	}
	if t.LastUsed > 0 {
		v.LastUsed = time.UnixMilli(t.LastUsed).Format(time.RFC3339)
	}
	return v
}

type tokenList []tokenView

func (l tokenList) Table() output.Table {
	t := output.Table{Headers: []string{"", "#", "ALIAS", "TOKEN", "WEIGHT", "ENABLED", "HEALTHY", "LAST USED"}}
	for _, v := range l {
		marker := ""
		if v.Current {
			marker = "*"
		}
		lastUsed := v.LastUsed
		if lastUsed == "" {
			lastUsed = "never"
		}
		t.Rows = append(t.Rows, []string{
			marker,
			fmt.Sprintf("%d", v.Index),
			v.Alias,
			v.Preview,
			fmt.Sprintf("%d", v.Weight),
			yesNo(v.Enabled),
			yesNo(v.Healthy),
			lastUsed,
		})
	}
	return t
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// tokenProvider loads the provider named by the first argument.
func tokenProvider(ctx context.Context, args []string) (*provider.Provider, error) {
	cfg, _, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return resolveProvider(ctx, cfg, argOrEmpty(args))
}

// updateProvider applies fn to the stored provider under the store lock.
func updateProvider(ctx context.Context, id string, fn func(*provider.Provider) error) (*provider.Provider, error) {
	rt, err := mustRuntime(ctx)
	if err != nil {
		return nil, err
	}
	store, err := rt.Store()
	if err != nil {
		return nil, err
	}
	return store.UpdateProvider(id, fn)
}

func findToken(p *provider.Provider, ref string) (int, error) {
	i, ok := p.FindToken(ref)
	if !ok {
		return -1, clierrors.TokenNotFound(p.ID, ref)
	}
	return i, nil
}

func newTokenListCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "list [provider]",
		Short:             "List a provider's tokens",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeProviderIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := tokenProvider(ctx, args)
			if err != nil {
				return err
			}
			if len(p.Tokens) == 0 && !structured(ctx) {
				u := ui.FromContext(ctx)
				if cur := p.CurrentToken(); cur != "" {
					u.Info("%s uses a single token: %s", p.ID, auth.Describe(cur))
				} else {
					u.Info("%s has no tokens", p.ID)
				}
				u.Info("Add one for rotation with: llmctl token add %s", p.ID)
				return nil
			}
			list := make(tokenList, 0, len(p.Tokens))
			for i := range p.Tokens {
				list = append(list, newTokenView(p, i))
			}
			return printerForContext(ctx).Print(ctx, list)
		},
	}
}

// storeTokenSecret moves a literal secret into the keyring and returns its reference.
func storeTokenSecret(providerID, alias, value string, count int) (string, error) {
	if auth.IsRef(value) {
		return value, nil
	}
	if alias == "" {
		alias = fmt.Sprintf("token%d", count+1)
	}
	return auth.StoreSecret(auth.SecretName(providerID, alias), value)
}

func newTokenAddCmd() *cobra.Command {
	var (
		value      string
		alias      string
		weight     int
		disabled   bool
		useKeyring bool
	)

	cmd := &cobra.Command{
		Use:   "add <provider>",
		Short: "Add a token to a provider's rotation pool",
		Long: `Add a token to a provider's rotation pool.

The first time a token is added, the provider's existing credential is kept
as the first pool entry under the alias "original token".`,
		Example: `  llmctl token add work --token @~/.backup-token --alias backup
  llmctl token add work --token env:WORK_TOKEN_2 --weight 3
  pbpaste | llmctl token add work --token - --keyring`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeProviderIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]
			if err := validate.Weight(weight); err != nil {
				return &clierrors.ValidationError{Field: "weight", Message: err.Error()}
			}
			p, err := tokenProvider(ctx, args)
			if err != nil {
				return err
			}
			secret, err := readTokenInput(ctx, value, fmt.Sprintf("New token for %s", id))
			if err != nil {
				return err
			}
			if err := validate.TokenValue(secret); err != nil {
				return &clierrors.ValidationError{Field: "token", Message: err.Error()}
			}
			if useKeyring {
				secret, err = storeTokenSecret(id, alias, secret, len(p.Tokens))
				if err != nil {
					return err
				}
			}

			migrated := false
			updated, err := updateProvider(ctx, p.ID, func(sp *provider.Provider) error {
				before := len(sp.Tokens)
				t := provider.Token{Value: secret, Alias: alias, Weight: weight}
				if disabled {
					t.Enabled = provider.Bool(false)
				}
				if err := sp.AddToken(t); err != nil {
					return err
				}
				migrated = len(sp.Tokens) == before+2
				return nil
			})
			if err != nil {
				return clierrors.WrapUserError(err, "cannot add token", fmt.Sprintf("Run 'llmctl token list %s' to see existing tokens", id))
			}

			u := ui.FromContext(ctx)
			if migrated {
				u.Info("Kept the existing credential as %q", provider.LegacyAlias)
			}
			last := len(updated.Tokens) - 1
			u.Success("Added token %s to %s", updated.Tokens[last].DisplayName(), id)
			return printerForContext(ctx).Print(ctx, newTokenView(updated, last))
		},
	}

	cmd.Flags().StringVar(&value, "token", "", "Token value, keyring:/env: reference, @file, or - for stdin (prompted when omitted)")
	cmd.Flags().StringVar(&alias, "alias", "", "Display name for the token")
	cmd.Flags().IntVar(&weight, "weight", 1, "Weight for the weighted strategy (1-10)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Add the token disabled")
	cmd.Flags().BoolVar(&useKeyring, "keyring", false, "Store the secret in the OS keyring")
	flagAlias(cmd.Flags(), "token", "value")
	return cmd
}

type importReport struct {
	Provider  string         `json:"provider"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Results   []batch.Result `json:"results"`
}

func (r importReport) Table() output.Table {
	t := output.Table{Headers: []string{"#", "ALIAS", "STATUS"}}
	for _, res := range r.Results {
		status := "added"
		if !res.Success {
			status = "failed: " + res.Error
		}
		t.Rows = append(t.Rows, []string{fmt.Sprintf("%d", res.Index+1), res.Alias, status})
	}
	return t
}

func newTokenImportCmd() *cobra.Command {
	var useKeyring bool

	cmd := &cobra.Command{
		Use:   "import <provider> <file|->",
		Short: "Add many tokens from a file",
		Long: `Add many tokens at once.

The input is a JSON array of {"value","alias","weight","disabled"} objects,
NDJSON with one such object per line, or plain text with one token per line.
Lines starting with # are ignored.`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeProviderIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, path := args[0], args[1]

			var (
				items []batch.Item
				err   error
			)
			if path == "-" {
				items, err = batch.Parse(stdinFromContext(ctx))
			} else {
				items, err = batch.ReadItems(path)
			}
			if err != nil {
				return clierrors.WrapUserError(err, "cannot read tokens", "")
			}
			if len(items) == 0 {
				return clierrors.NewUserError("no tokens found in input", "")
			}

			p, err := tokenProvider(ctx, args[:1])
			if err != nil {
				return err
			}

			results := make([]batch.Result, len(items))
			for i, item := range items {
				results[i] = batch.Result{Index: i, Alias: item.Alias}
				if item.Weight == 0 {
					item.Weight = 1
				}
				if err := validate.TokenValue(item.Value); err != nil {
					results[i].Error = err.Error()
					continue
				}
				if err := validate.Weight(item.Weight); err != nil {
					results[i].Error = err.Error()
					continue
				}
				if useKeyring {
					ref, err := storeTokenSecret(id, item.Alias, item.Value, len(p.Tokens)+i)
					if err != nil {
						results[i].Error = err.Error()
						continue
					}
					items[i].Value = ref
				}
				items[i].Weight = item.Weight
				results[i].Success = true
			}

			updated, err := updateProvider(ctx, p.ID, func(sp *provider.Provider) error {
				for i, item := range items {
					if !results[i].Success {
						continue
					}
					t := provider.Token{Value: item.Value, Alias: item.Alias, Weight: item.Weight}
					if item.Disabled {
						t.Enabled = provider.Bool(false)
					}
					if err := sp.AddToken(t); err != nil {
						results[i].Success = false
						results[i].Error = err.Error()
						continue
					}
					results[i].Alias = sp.Tokens[len(sp.Tokens)-1].DisplayName()
				}
				return nil
			})
			if err != nil {
				return err
			}

			report := importReport{Provider: updated.ID, Results: results}
			report.Succeeded, report.Failed = batch.Summary(results)
			if err := printerForContext(ctx).Print(ctx, report); err != nil {
				return err
			}
			u := ui.FromContext(ctx)
			if report.Failed > 0 {
				return clierrors.NewUserError(
					fmt.Sprintf("%d of %d tokens were not imported", report.Failed, len(items)),
					"Fix the failed entries and import them again",
				)
			}
			u.Success("Imported %d tokens into %s", report.Succeeded, updated.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&useKeyring, "keyring", false, "Store each secret in the OS keyring")
	return cmd
}

func newTokenEditCmd() *cobra.Command {
	var (
		alias   string
		weight  int
		healthy bool
	)

	cmd := &cobra.Command{
		Use:               "edit <provider> <token>",
		Short:             "Change a token's alias, weight or health flag",
		Long:              `Change a token. <token> is an alias, a value prefix, or a position such as #2.`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeProviderIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			flags := cmd.Flags()
			if !flags.Changed("alias") && !flags.Changed("weight") && !flags.Changed("healthy") {
				return clierrors.NewUserError("nothing to change", "Pass --alias, --weight or --healthy")
			}
			if flags.Changed("weight") {
				if err := validate.Weight(weight); err != nil {
					return &clierrors.ValidationError{Field: "weight", Message: err.Error()}
				}
			}

			var idx int
			updated, err := updateProvider(ctx, args[0], func(p *provider.Provider) error {
				i, err := findToken(p, args[1])
				if err != nil {
					return err
				}
				idx = i
				t := &p.Tokens[i]
				if flags.Changed("alias") {
					t.Alias = alias
				}
				if flags.Changed("weight") {
					t.Weight = weight
				}
				if flags.Changed("healthy") {
					t.Healthy = provider.Bool(healthy)
				}
				return nil
			})
			if err != nil {
				return err
			}
			ui.FromContext(ctx).Success("Updated token %s", updated.Tokens[idx].DisplayName())
			return printerForContext(ctx).Print(ctx, newTokenView(updated, idx))
		},
	}
	cmd.Flags().StringVar(&alias, "alias", "", "New alias")
	cmd.Flags().IntVar(&weight, "weight", 1, "New weight (1-10)")
	cmd.Flags().BoolVar(&healthy, "healthy", true, "Mark the token healthy or not (--healthy=false)")
	return cmd
}

func newTokenRemoveCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:               "remove <provider> <token>",
		Short:             "Remove a token from the pool",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeProviderIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := tokenProvider(ctx, args[:1])
			if err != nil {
				return err
			}
			i, err := findToken(p, args[1])
			if err != nil {
				return err
			}
			t := p.Tokens[i]
			current := t.Value == p.CurrentToken()

			if dryRun {
				dp := NewDryRunPrinter(stdoutFromContext(ctx))
				dp.Header("remove", "token", t.DisplayName())
				dp.Field("provider", p.ID)
				dp.Field("token", auth.Describe(t.Value))
				if current {
					dp.Field("note", "this is the provider's current token")
				}
				dp.Footer()
				return nil
			}

			if !output.YesFromContext(ctx) {
				msg := fmt.Sprintf("Remove token %s from %s?", t.DisplayName(), p.ID)
				if current {
					msg = fmt.Sprintf("Token %s is in use by %s. Remove it anyway?", t.DisplayName(), p.ID)
				}
				ok, err := prompt.FromContext(ctx).Confirm(ctx, msg, false)
				if err != nil {
					return err
				}
				if !ok {
					return &clierrors.CanceledError{Step: "remove token"}
				}
			}

			_, err = updateProvider(ctx, p.ID, func(sp *provider.Provider) error {
				j := sp.TokenIndex(t.Value)
				if j < 0 {
					return clierrors.TokenNotFound(sp.ID, args[1])
				}
				sp.RemoveToken(j)
				return nil
			})
			if err != nil {
				return err
			}

			u := ui.FromContext(ctx)
			if strings.HasPrefix(t.Value, auth.RefKeyring) {
				if err := auth.DeleteSecret(strings.TrimPrefix(t.Value, auth.RefKeyring)); err != nil {
					u.Warning("Could not delete keyring entry: %v", err)
				}
			}
			u.Success("Removed token %s from %s", t.DisplayName(), p.ID)
			if current {
				u.Warning("The provider still exports the removed token; run: llmctl switch-token %s", p.ID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be removed")
	return cmd
}

func newTokenEnableCmd(enable bool) *cobra.Command {
	verb, short := "enable", "Put tokens back into rotation"
	if !enable {
		verb, short = "disable", "Take tokens out of rotation"
	}

	return &cobra.Command{
		Use:               verb + " <provider> <token>...",
		Short:             short,
		Args:              cobra.MinimumNArgs(2),
		ValidArgsFunction: completeProviderIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var names []string
			updated, err := updateProvider(ctx, args[0], func(p *provider.Provider) error {
				idx := make([]int, 0, len(args)-1)
				for _, ref := range args[1:] {
					i, err := findToken(p, ref)
					if err != nil {
						return err
					}
					idx = append(idx, i)
					names = append(names, p.Tokens[i].DisplayName())
				}
				p.SetEnabled(enable, idx...)
				if _, enabled, _ := p.Counts(); enabled == 0 {
					return clierrors.NewUserError(
						"cannot disable every token",
						fmt.Sprintf("Keep at least one enabled, or remove the provider: llmctl provider remove %s", p.ID),
					)
				}
				return nil
			})
			if err != nil {
				return err
			}

			ui.FromContext(ctx).Success("%sd %s", strings.ToUpper(verb[:1])+verb[1:], strings.Join(names, ", "))
			list := make(tokenList, 0, len(updated.Tokens))
			for i := range updated.Tokens {
				list = append(list, newTokenView(updated, i))
			}
			return printerForContext(ctx).Print(ctx, list)
		},
	}
}

func newTokenStrategyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategy <provider> [round-robin|weighted|random|least-used]",
		Short: "Show or set the rotation strategy",
		Long: `Show or set how switch-token picks the next token.

  round-robin  cycle through enabled tokens in order
  weighted     smooth weighted round robin by token weight
  random       uniform random choice
  least-used   the token with the oldest last use`,
		Args:              cobra.RangeArgs(1, 2),
		ValidArgsFunction: completeStrategies,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 1 {
				p, err := tokenProvider(ctx, args)
				if err != nil {
					return err
				}
				return printerForContext(ctx).Print(ctx, map[string]any{
					"provider": p.ID,
					"strategy": string(p.Strategy()),
					"label":    p.Strategy().Label(),
				})
			}

			st, err := provider.ParseStrategy(args[1])
			if err != nil {
				return &clierrors.ValidationError{Field: "strategy", Message: err.Error()}
			}
			updated, err := updateProvider(ctx, args[0], func(p *provider.Provider) error {
				if p.TokenStrategy == nil {
					p.TokenStrategy = &provider.TokenStrategy{}
				}
				p.TokenStrategy.Type = st
				return nil
			})
			if err != nil {
				return err
			}

			rt, err := mustRuntime(ctx)
			if err != nil {
				return err
			}
			engine, err := rt.Engine()
			if err != nil {
				return err
			}
			engine.Reset(updated.ID)

			u := ui.FromContext(ctx)
			u.Success("%s now rotates by %s", updated.ID, st.Label())
			if st == provider.Weighted && len(updated.Tokens) < 2 {
				u.Warning("weighted strategy has no effect with fewer than 2 tokens")
			}
			return nil
		},
	}
}

type nextTokenView struct {
	Provider string `json:"provider"`
	Alias    string `json:"alias"`
	Preview  string `json:"preview"`
	Value    string `json:"value,omitempty"`
	Strategy string `json:"strategy"`
}

func newTokenNextCmd() *cobra.Command {
	var (
		exclude string
		reveal  bool
		retries int
	)

	cmd := &cobra.Command{
		Use:   "next [provider]",
		Short: "Show which token the strategy picks next",
		Long: `Pick the next token with the provider's strategy and record it as used.

The current token is not changed; use switch-token for that.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeProviderIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := tokenProvider(ctx, args)
			if err != nil {
				return err
			}
			if exclude != "" {
				i, err := findToken(p, exclude)
				if err != nil {
					return err
				}
				exclude = p.Tokens[i].Value
			}

			rt, err := mustRuntime(ctx)
			if err != nil {
				return err
			}
			engine, err := rt.Engine()
			if err != nil {
				return err
			}

			var (
				value string
				ok    bool
			)
			if exclude != "" {
				value, ok = engine.GetNextToken(p, exclude)
			} else {
				value, ok = engine.GetTokenWithRetry(p, retries)
			}
			if !ok {
				return clierrors.NoTokensError(p.ID)
			}

			view := nextTokenView{
				Provider: p.ID,
				Alias:    provider.LegacyAlias,
				Preview:  auth.Describe(value),
				Strategy: string(p.Strategy()),
			}
			if i := p.TokenIndex(value); i >= 0 {
				view.Alias = p.Tokens[i].DisplayName()
			}
			if reveal {
				secret, err := auth.Resolve(value)
				if err != nil {
					return err
				}
				view.Value = secret
			}
			return printerForContext(ctx).Print(ctx, view)
		},
	}
	cmd.Flags().StringVar(&exclude, "exclude", "", "Skip this token (alias, prefix or #n)")
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Include the full token value")
	cmd.Flags().IntVar(&retries, "retries", rotation.DefaultRetries, "Attempts before giving up")
	return cmd
}

func newTokenStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "stats [provider]",
		Short:             "Show token pool statistics",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeProviderIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := tokenProvider(ctx, args)
			if err != nil {
				return err
			}
			stats := rotation.GetTokenStats(p)
			if stats == nil {
				return clierrors.NewUserError(
					fmt.Sprintf("provider %q has no token pool", p.ID),
					fmt.Sprintf("Add tokens with: llmctl token add %s", p.ID),
				)
			}
			return printerForContext(ctx).Print(ctx, stats)
		},
	}
}
