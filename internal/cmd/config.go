package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/llmctl/internal/config"
	"github.com/salmonumbrella/llmctl/internal/output"
	"github.com/salmonumbrella/llmctl/internal/ui"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Aliases: []string{"cfg"},
		Short:   "Manage CLI configuration",
		Long:    `Manage the llmctl configuration file (default ~/.config/llmctl/config.yaml, override with LLMCTL_CONFIG).`,
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigPathCmd())
	return cmd
}

// configView is the config as shown to users; provider credentials are
// reduced to counts.
type configView struct {
	Path           string   `json:"path"`
	Output         string   `json:"output,omitempty"`
	Color          string   `json:"color,omitempty"`
	ActiveProvider string   `json:"active_provider,omitempty"`
	SessionBackend string   `json:"session_backend"`
	SessionDir     string   `json:"session_dir"`
	NotifyURLs     int      `json:"notify_urls"`
	Providers      []string `json:"providers"`
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path, err := config.DefaultConfigPath()
			if err != nil {
				return fmt.Errorf("failed to determine config path: %w", err)
			}
			cfg, err := config.LoadFromPath(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if _, statErr := os.Stat(path); os.IsNotExist(statErr) && !structured(ctx) {
				u := ui.FromContext(ctx)
				u.Warning("No configuration file found at %s", path)
				u.Info("Create one with: llmctl provider add <id>")
			}

			return printerForContext(ctx).Print(ctx, configView{
				Path:           path,
				Output:         cfg.Output,
				Color:          cfg.Color,
				ActiveProvider: cfg.ActiveProvider,
				SessionBackend: cfg.GetSessionBackend(),
				SessionDir:     cfg.GetSessionDir(),
				NotifyURLs:     len(cfg.NotifyURLs),
				Providers:      cfg.ListProviderIDs(),
			})
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value.

Supported keys:
  output           Default output format (text, json, ndjson/jsonl, table, yaml)
  color            Default color mode (auto, always, never)
  session_backend  Session registry storage (file, sqlite)
  session_dir      Directory for the session registry and token signals
  notify_urls      Append a shoutrrr URL notified on token switches ("" clears)

Examples:
  llmctl config set output json
  llmctl config set session_backend sqlite
  llmctl config set notify_urls "slack://token@channel"`,
		Args: cobra.ExactArgs(2),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return []string{"output", "color", "session_backend", "session_dir", "notify_urls"}, cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			switch key {
			case "output":
				format, err := output.ParseFormat(value)
				if err != nil {
					return err
				}
				value = string(format)
			case "color":
				if _, err := ui.ParseColorMode(value); err != nil {
					return err
				}
			}

			store, err := config.NewFileStore("")
			if err != nil {
				return err
			}
			if err := store.Update(func(cfg *config.Config) error {
				return cfg.Set(key, value)
			}); err != nil {
				return err
			}

			ui.FromContext(cmd.Context()).Success("Set %s = %s in %s", key, value, store.Path())
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path, err := config.DefaultConfigPath()
			if err != nil {
				return fmt.Errorf("failed to determine config path: %w", err)
			}
			_, statErr := os.Stat(path)
			return printerForContext(ctx).Print(ctx, map[string]any{
				"path":   path,
				"exists": statErr == nil,
			})
		},
	}
}
