package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/llmctl/internal/debug"
	"github.com/salmonumbrella/llmctl/internal/logging"
	"github.com/salmonumbrella/llmctl/internal/mcp"
)

func newMCPCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Model Context Protocol server",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve llmctl tools over MCP on stdio",
		Long: `Run an MCP server on stdin/stdout.

Tools: list_providers, next_token, token_stats, list_sessions,
check_token_update. Logs go to stderr as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logging.SetupJSON(debug.IsDebug(ctx), stderrFromContext(ctx))

			rt, err := mustRuntime(ctx)
			if err != nil {
				return err
			}
			rt.logger = slog.Default()
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

			srv := mcp.NewServer(mcp.Config{
				Store:    store,
				Engine:   engine,
				Sessions: registry,
				Signals:  notifier,
				ActiveProvider: func() (string, error) {
					cfg, err := store.Load()
					if err != nil {
						return "", err
					}
					return cfg.ActiveProvider, nil
				},
				Version: app.Version,
			})
			return srv.Serve(ctx, stdinFromContext(ctx), stdoutFromContext(ctx))
		},
	})
	return cmd
}
