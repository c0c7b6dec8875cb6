package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/llmctl/internal/auth"
	"github.com/salmonumbrella/llmctl/internal/cmdutil"
	"github.com/salmonumbrella/llmctl/internal/config"
	clierrors "github.com/salmonumbrella/llmctl/internal/errors"
	"github.com/salmonumbrella/llmctl/internal/output"
	"github.com/salmonumbrella/llmctl/internal/prompt"
	"github.com/salmonumbrella/llmctl/internal/provider"
	"github.com/salmonumbrella/llmctl/internal/ui"
	"github.com/salmonumbrella/llmctl/internal/validate"
)

func newProviderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "provider",
		Aliases: []string{"providers", "p"},
		Short:   "Manage LLM providers",
	}
	cmd.AddCommand(newProviderAddCmd())
	cmd.AddCommand(newProviderListCmd())
	cmd.AddCommand(newProviderShowCmd())
	cmd.AddCommand(newProviderEditCmd())
	cmd.AddCommand(newProviderRemoveCmd())
	cmd.AddCommand(newProviderUseCmd())
	cmd.AddCommand(newProviderCurrentCmd())
	cmd.AddCommand(newProviderTemplatesCmd())
	return cmd
}

// providerView is a provider as shown to users, credentials masked.
type providerView struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Type        string            `json:"type,omitempty"`
	Description string            `json:"description,omitempty"`
	BaseURL     string            `json:"base_url,omitempty"`
	Model       string            `json:"model,omitempty"`
	Active      bool              `json:"active"`
	Token       string            `json:"token,omitempty"`
	Strategy    string            `json:"strategy"`
	Tokens      int               `json:"tokens"`
	Enabled     int               `json:"enabled_tokens"`
	EnvVars     map[string]string `json:"env_vars,omitempty"`
}

func newProviderView(p *provider.Provider, activeID string) providerView {
	total, enabled, _ := p.Counts()
	env := make(map[string]string, len(p.EnvVars))
	for _, k := range p.SortedEnvKeys() {
		if k == provider.EnvAuthToken {
			continue
		}
		env[k] = p.EnvVars[k]
	}
	token := ""
	if cur := p.CurrentToken(); cur != "" {
		token = auth.Describe(cur)
	}
	return providerView{
		ID:          p.ID,
		Name:        p.DisplayName(),
		Type:        p.Type,
		Description: p.Description,
		BaseURL:     p.BaseURL,
		Model:       p.ModelName,
		Active:      p.ID == activeID,
		Token:       token,
		Strategy:    string(p.Strategy()),
		Tokens:      total,
		Enabled:     enabled,
		EnvVars:     env,
	}
}

type providerList []providerView

func (l providerList) Table() output.Table {
	t := output.Table{Headers: []string{"", "ID", "NAME", "BASE URL", "TOKENS", "STRATEGY"}}
	for _, v := range l {
		marker := ""
		if v.Active {
			marker = "*"
		}
		tokens := "-"
		if v.Tokens > 0 {
			tokens = fmt.Sprintf("%d/%d", v.Enabled, v.Tokens)
		}
		t.Rows = append(t.Rows, []string{marker, v.ID, v.Name, v.BaseURL, tokens, v.Strategy})
	}
	return t
}

// loadConfig reads the config through the runtime's store.
func loadConfig(ctx context.Context) (*config.Config, *config.FileStore, error) {
	rt, err := mustRuntime(ctx)
	if err != nil {
		return nil, nil, err
	}
	store, err := rt.Store()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := store.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

// resolveProvider returns the provider named by id, the active provider when
// id is empty, or asks the user to pick one.
func resolveProvider(ctx context.Context, cfg *config.Config, id string) (*provider.Provider, error) {
	if id != "" {
		return cfg.GetProvider(id)
	}
	if cfg.ActiveProvider != "" {
		return cfg.GetActiveProvider()
	}
	if len(cfg.Providers) == 0 {
		return nil, clierrors.NoProvidersError()
	}
	if output.YesFromContext(ctx) {
		return nil, clierrors.NoActiveProviderError()
	}
	return selectProvider(ctx, cfg, "Select a provider")
}

func selectProvider(ctx context.Context, cfg *config.Config, message string) (*provider.Provider, error) {
	choices := make([]prompt.Choice, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		hint := p.BaseURL
		if p.ID == cfg.ActiveProvider {
			hint = "active"
		}
		choices = append(choices, prompt.Choice{Label: fmt.Sprintf("%s (%s)", p.DisplayName(), p.ID), Hint: hint})
	}
	i, err := prompt.FromContext(ctx).Select(ctx, message, choices)
	if err != nil {
		return nil, err
	}
	return cfg.Providers[i], nil
}

func argOrEmpty(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// parseEnvPairs turns KEY=VALUE flags into a map.
func parseEnvPairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, &clierrors.ValidationError{Field: "env", Message: fmt.Sprintf("expected KEY=VALUE, got %q", pair)}
		}
		out[k] = v
	}
	return out, nil
}

// readTokenInput resolves --token, prompting for it when interactive.
func readTokenInput(ctx context.Context, raw, label string) (string, error) {
	if raw != "" {
		return cmdutil.ResolveSecretInput(raw)
	}
	if output.YesFromContext(ctx) {
		return "", nil
	}
	return prompt.FromContext(ctx).Secret(ctx, label)
}

func problemsError(kind, id string, probs provider.Problems) error {
	if probs.OK() {
		return nil
	}
	return clierrors.NewUserError(
		fmt.Sprintf("%s %q is invalid:\n%s", kind, id, clierrors.JoinMessages(probs.Errors)),
		"Fix the values above and try again",
	)
}

func newProviderAddCmd() *cobra.Command {
	var (
		name        string
		typ         string
		description string
		baseURL     string
		model       string
		token       string
		useKeyring  bool
		envPairs    []string
		makeActive  bool
	)

	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Add a provider",
		Example: `  llmctl provider add work --token @~/.work-token
  llmctl provider add glm --base-url https://open.bigmodel.cn/api/anthropic --model glm-4.6 --keyring
  echo "$TOKEN" | llmctl add backup --token - --use`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]
			if err := validate.ProviderID(id); err != nil {
				return &clierrors.ValidationError{Field: "id", Message: err.Error()}
			}
			if baseURL != "" {
				if err := validate.BaseURL(baseURL); err != nil {
					return &clierrors.ValidationError{Field: "base-url", Message: err.Error()}
				}
			}
			env, err := parseEnvPairs(envPairs)
			if err != nil {
				return err
			}
			cfg, store, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if _, err := cfg.GetProvider(id); err == nil {
				return clierrors.NewUserError(
					fmt.Sprintf("provider %q already exists", id),
					fmt.Sprintf("Use 'llmctl provider edit %s' to change it", id),
				)
			}

			secret, err := readTokenInput(ctx, token, fmt.Sprintf("API token for %s", id))
			if err != nil {
				return err
			}
			if err := validate.TokenValue(secret); err != nil {
				return &clierrors.ValidationError{Field: "token", Message: err.Error()}
			}

			credential := secret
			if useKeyring && !auth.IsRef(secret) {
				credential, err = auth.StoreSecret(auth.SecretName(id, ""), secret)
				if err != nil {
					return err
				}
			}

			if name == "" {
				name = id
			}
			p, err := provider.New(id, name, typ, credential)
			if err != nil {
				return &clierrors.ValidationError{Field: "type", Message: err.Error()}
			}
			p.Description = description
			if baseURL != "" {
				p.BaseURL = baseURL
			}
			p.ModelName = model
			for k, v := range env {
				p.EnvVars[k] = v
			}
			if err := problemsError("provider", id, config.ValidateProvider(p)); err != nil {
				return err
			}

			var active string
			err = store.Update(func(c *config.Config) error {
				if err := c.AddProvider(p); err != nil {
					return err
				}
				if makeActive {
					c.ActiveProvider = p.ID
				}
				active = c.ActiveProvider
				return nil
			})
			if err != nil {
				return err
			}

			ui.FromContext(ctx).Success("Added provider %s", p.ID)
			return printerForContext(ctx).Print(ctx, newProviderView(p, active))
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the id)")
	cmd.Flags().StringVar(&typ, "type", provider.DefaultType, "Provider template")
	cmd.Flags().StringVar(&description, "description", "", "Free-form description")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "API base URL (exported as ANTHROPIC_BASE_URL)")
	cmd.Flags().StringVar(&model, "model", "", "Model name (exported as ANTHROPIC_MODEL)")
	cmd.Flags().StringVar(&token, "token", "", "API token, @file, or - for stdin (prompted when omitted)")
	cmd.Flags().BoolVar(&useKeyring, "keyring", false, "Store the token in the OS keyring instead of the config file")
	cmd.Flags().StringArrayVar(&envPairs, "env", nil, "Extra environment variable KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&makeActive, "use", false, "Make this the active provider")
	flagAlias(cmd.Flags(), "base-url", "url")
	_ = cmd.RegisterFlagCompletionFunc("type", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		var ids []string
		for _, t := range provider.Templates() {
			ids = append(ids, t.ID+"\t"+t.Name)
		}
		return ids, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func newProviderListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, _, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if len(cfg.Providers) == 0 && !structured(ctx) {
				ui.FromContext(ctx).Info("No providers configured. Add one with: llmctl provider add <id>")
				return nil
			}
			list := make(providerList, 0, len(cfg.Providers))
			for _, p := range cfg.Providers {
				list = append(list, newProviderView(p, cfg.ActiveProvider))
			}
			return printerForContext(ctx).Print(ctx, list)
		},
	}
}

func newProviderShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "show [id]",
		Short:             "Show a provider with masked credentials",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeProviderIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, _, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			p, err := resolveProvider(ctx, cfg, argOrEmpty(args))
			if err != nil {
				return err
			}
			return printerForContext(ctx).Print(ctx, newProviderView(p, cfg.ActiveProvider))
		},
	}
}

func newProviderEditCmd() *cobra.Command {
	var (
		name        string
		description string
		baseURL     string
		model       string
		envPairs    []string
		unsetEnv    []string
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:               "edit <id>",
		Short:             "Change a provider's name, base URL, model or env vars",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeProviderIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]
			flags := cmd.Flags()
			if flags.Changed("base-url") && baseURL != "" {
				if err := validate.BaseURL(baseURL); err != nil {
					return &clierrors.ValidationError{Field: "base-url", Message: err.Error()}
				}
			}
			env, err := parseEnvPairs(envPairs)
			if err != nil {
				return err
			}
			if _, ok := env[provider.EnvAuthToken]; ok {
				return clierrors.NewUserError(
					"set tokens with the token commands, not --env",
					fmt.Sprintf("Run 'llmctl token add %s'", id),
				)
			}

			apply := func(p *provider.Provider) error {
				if flags.Changed("name") {
					p.Name = name
				}
				if flags.Changed("description") {
					p.Description = description
				}
				if flags.Changed("base-url") {
					p.BaseURL = baseURL
				}
				if flags.Changed("model") {
					p.ModelName = model
				}
				if p.EnvVars == nil && len(env) > 0 {
					p.EnvVars = map[string]string{}
				}
				for k, v := range env {
					p.EnvVars[k] = v
				}
				for _, k := range unsetEnv {
					delete(p.EnvVars, k)
				}
				return problemsError("provider", p.ID, config.ValidateProvider(p))
			}

			cfg, store, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if dryRun {
				current, err := cfg.GetProvider(id)
				if err != nil {
					return err
				}
				next := current.Clone()
				if err := apply(next); err != nil {
					return err
				}
				dp := NewDryRunPrinter(stdoutFromContext(ctx))
				dp.Header("edit", "provider", id)
				dp.Change("name", current.Name, next.Name)
				dp.Change("description", current.Description, next.Description)
				dp.Change("base_url", current.BaseURL, next.BaseURL)
				dp.Change("model", current.ModelName, next.ModelName)
				for _, k := range next.SortedEnvKeys() {
					dp.Change("env "+k, current.EnvVars[k], next.EnvVars[k])
				}
				for _, k := range unsetEnv {
					dp.Change("env "+k, current.EnvVars[k], "")
				}
				dp.Footer()
				return nil
			}

			updated, err := store.UpdateProvider(id, apply)
			if err != nil {
				return err
			}
			ui.FromContext(ctx).Success("Updated provider %s", id)
			return printerForContext(ctx).Print(ctx, newProviderView(updated, cfg.ActiveProvider))
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&description, "description", "", "Description")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "API base URL")
	cmd.Flags().StringVar(&model, "model", "", "Model name (empty clears it)")
	cmd.Flags().StringArrayVar(&envPairs, "env", nil, "Set environment variable KEY=VALUE (repeatable)")
	cmd.Flags().StringArrayVar(&unsetEnv, "unset-env", nil, "Remove an environment variable (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the changes without saving")
	flagAlias(cmd.Flags(), "base-url", "url")
	return cmd
}

func newProviderRemoveCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:               "remove <id>",
		Short:             "Remove a provider",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeProviderIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]
			cfg, store, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			p, err := cfg.GetProvider(id)
			if err != nil {
				return err
			}

			secrets := keyringRefs(p)
			if dryRun {
				dp := NewDryRunPrinter(stdoutFromContext(ctx))
				dp.Header("remove", "provider", id)
				dp.Field("name", p.DisplayName())
				total, _, _ := p.Counts()
				dp.Field("tokens", fmt.Sprintf("%d", total))
				for _, ref := range secrets {
					dp.Field("keyring entry", ref)
				}
				dp.Footer()
				return nil
			}

			if !output.YesFromContext(ctx) {
				ok, err := prompt.FromContext(ctx).Confirm(ctx, fmt.Sprintf("Remove provider %q?", p.DisplayName()), false)
				if err != nil {
					return err
				}
				if !ok {
					return &clierrors.CanceledError{Step: "remove provider"}
				}
			}

			if err := store.Update(func(c *config.Config) error { return c.RemoveProvider(id) }); err != nil {
				return err
			}
			u := ui.FromContext(ctx)
			for _, ref := range secrets {
				if err := auth.DeleteSecret(strings.TrimPrefix(ref, auth.RefKeyring)); err != nil {
					u.Warning("Could not delete keyring entry %s: %v", ref, err)
				}
			}
			u.Success("Removed provider %s", id)
			if cfg.ActiveProvider == id {
				u.Info("No provider is active now; pick one with: llmctl use <id>")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be removed")
	return cmd
}

// keyringRefs lists the keyring: references a provider owns.
func keyringRefs(p *provider.Provider) []string {
	var refs []string
	seen := map[string]bool{}
	add := func(v string) {
		if strings.HasPrefix(v, auth.RefKeyring) && !seen[v] {
			seen[v] = true
			refs = append(refs, v)
		}
	}
	add(p.APIKey)
	add(p.EnvVars[provider.EnvAuthToken])
	for _, t := range p.Tokens {
		add(t.Value)
	}
	return refs
}

func newProviderUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "use [id]",
		Short:             "Set the active provider",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeProviderIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := activateProvider(ctx, argOrEmpty(args))
			if err != nil {
				return err
			}
			ui.FromContext(ctx).Success("Active provider: %s (%s)", p.DisplayName(), p.ID)
			return printerForContext(ctx).Print(ctx, newProviderView(p, p.ID))
		},
	}
}

// activateProvider resolves id (prompting when empty) and stores it as active.
func activateProvider(ctx context.Context, id string) (*provider.Provider, error) {
	cfg, store, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	var p *provider.Provider
	if id == "" {
		if len(cfg.Providers) == 0 {
			return nil, clierrors.NoProvidersError()
		}
		if output.YesFromContext(ctx) {
			return nil, clierrors.NewUserError("provider id required", "Run 'llmctl use <provider-id>'")
		}
		p, err = selectProvider(ctx, cfg, "Use which provider?")
	} else {
		p, err = cfg.GetProvider(id)
	}
	if err != nil {
		return nil, err
	}
	if err := store.Update(func(c *config.Config) error { return c.SetActiveProvider(p.ID) }); err != nil {
		return nil, err
	}
	return p, nil
}

func newProviderCurrentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the active provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, _, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			p, err := cfg.GetActiveProvider()
			if err != nil {
				return err
			}
			return printerForContext(ctx).Print(ctx, newProviderView(p, cfg.ActiveProvider))
		},
	}
}

type templateList []provider.Template

func (l templateList) Table() output.Table {
	t := output.Table{Headers: []string{"ID", "NAME", "BASE URL"}}
	for _, tpl := range l {
		t.Rows = append(t.Rows, []string{tpl.ID, tpl.Name, tpl.BaseURL})
	}
	return t
}

func newProviderTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List provider templates usable with --type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return printerForContext(ctx).Print(ctx, templateList(provider.Templates()))
		},
	}
}
