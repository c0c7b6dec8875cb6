package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/llmctl/internal/auth"
	"github.com/salmonumbrella/llmctl/internal/envexport"
	clierrors "github.com/salmonumbrella/llmctl/internal/errors"
	"github.com/salmonumbrella/llmctl/internal/notify"
	"github.com/salmonumbrella/llmctl/internal/procctl"
	"github.com/salmonumbrella/llmctl/internal/provider"
	"github.com/salmonumbrella/llmctl/internal/ui"
)

// DefaultCLI is launched by "use --cli" without a value.
const DefaultCLI = "claude"

func newUseCmd() *cobra.Command {
	var (
		cliName string
		list    bool
		format  string
	)

	cmd := &cobra.Command{
		Use:   "use [id] [-- cli-args...]",
		Short: "Activate a provider and print or launch its environment",
		Long: `Activate a provider.

Without --cli the provider's environment is printed as a shell script, ready
for eval. With --cli the downstream tool is started with that environment,
the session is registered so switch-token can find it, and a notice is
printed when another llmctl switches this provider's token.`,
		Example: `  eval "$(llmctl use work)"
  llmctl use work --cli
  llmctl use glm --cli=claude -- --model glm-4.6`,
		Args:              cobra.ArbitraryArgs,
		ValidArgsFunction: completeProviderIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if list {
				return newProviderListCmd().RunE(cmd, nil)
			}

			positional, childArgs := splitDashArgs(cmd, args)
			if len(positional) > 1 {
				return clierrors.NewUserError("use takes at most one provider id", "Pass tool arguments after --")
			}
			p, err := activateProvider(ctx, argOrEmpty(positional))
			if err != nil {
				return err
			}

			vars := p.ExportVars()
			if err := auth.ResolveVars(vars); err != nil {
				return err
			}

			u := ui.FromContext(ctx)
			u.Success("Using %s (%s)", p.DisplayName(), p.ID)
			if cliName == "" {
				return printExport(ctx, vars, format, false)
			}
			return runWithSession(ctx, p, cliName, childArgs, vars)
		},
	}

	cmd.Flags().StringVar(&cliName, "cli", "", "Launch a CLI with the provider environment (default claude)")
	cmd.Flags().Lookup("cli").NoOptDefVal = DefaultCLI
	cmd.Flags().BoolVar(&list, "list", false, "List providers instead of switching")
	cmd.Flags().StringVar(&format, "format", string(envexport.FormatAuto), "Script format when not launching: auto|bash|powershell|cmd|json")
	return cmd
}

// splitDashArgs separates positional args from those after "--".
func splitDashArgs(cmd *cobra.Command, args []string) (before, after []string) {
	dash := cmd.ArgsLenAtDash()
	if dash < 0 {
		return args, nil
	}
	return args[:dash], args[dash:]
}

// runWithSession runs the child CLI as a registered session of p and
// reports token switches for p while it runs.
func runWithSession(ctx context.Context, p *provider.Provider, name string, args []string, vars map[string]string) error {
	rt, err := mustRuntime(ctx)
	if err != nil {
		return err
	}
	registry, err := rt.Registry()
	if err != nil {
		return err
	}
	if _, err := registry.RegisterProviderUsage(p); err != nil {
		return fmt.Errorf("failed to register session: %w", err)
	}
	cleanup := registry.InstallCleanup()
	defer cleanup()

	u := ui.FromContext(ctx)
	watcher, err := notify.NewWatcher(notify.WatcherConfig{
		Dir:        rt.cfg.GetSessionDir(),
		ProviderID: p.ID,
		Logger:     rt.logger,
		OnSignal: func(sig notify.Signal) {
			u.Warning("llmctl: token for %s switched to %s; restart %s to use it", p.ID, sig.NewToken, name)
		},
	})
	if err == nil {
		err = watcher.Start()
	}
	if err != nil {
		slog.Debug("token update watcher unavailable", "error", err)
	} else {
		defer func() { _ = watcher.Stop() }()
	}

	reload := make(chan os.Signal, 1)
	stopReload := notify.NotifyReload(reload)
	defer stopReload()
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-reload:
				if err := registry.UpdateSessionActivity(registry.PID()); err != nil {
					slog.Debug("failed to update session activity", "error", err)
				}
			}
		}
	}()

	env := os.Environ()
	for k, v := range vars {
		env = append(env, k+"="+v)
	}

	err = procctl.RunChild(ctx, procctl.Child{
		Name:   name,
		Args:   args,
		Env:    env,
		Stdin:  stdinFromContext(ctx),
		Stdout: stdoutFromContext(ctx),
		Stderr: stderrFromContext(ctx),
	})
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &exitErr):
		return &childExitError{Name: name, Code: exitErr.ExitCode()}
	case errors.Is(err, exec.ErrNotFound):
		return clierrors.WrapUserError(err, fmt.Sprintf("cannot start %s", name), fmt.Sprintf("Install %s or pass another tool with --cli=<name>", name))
	default:
		return fmt.Errorf("failed to run %s: %w", name, err)
	}
}
