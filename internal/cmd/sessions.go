package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	clierrors "github.com/salmonumbrella/llmctl/internal/errors"
	"github.com/salmonumbrella/llmctl/internal/notify"
	"github.com/salmonumbrella/llmctl/internal/output"
	"github.com/salmonumbrella/llmctl/internal/prompt"
	"github.com/salmonumbrella/llmctl/internal/session"
	"github.com/salmonumbrella/llmctl/internal/ui"
)

type sessionList []session.Session

func (l sessionList) Table() output.Table {
	t := output.Table{Headers: []string{"PROVIDER", "PID", "TERMINAL", "STARTED", "LAST ACTIVE", "DIRECTORY"}}
	for _, s := range l {
		t.Rows = append(t.Rows, []string{
			s.ProviderID,
			fmt.Sprintf("%d", s.PID),
			s.Terminal,
			formatMillis(s.StartTime),
			formatMillis(s.LastActivity),
			s.WorkingDirectory,
		})
	}
	return t
}

func formatMillis(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04:05")
}

func sessionRegistry(ctx context.Context) (*runtime, *session.Registry, error) {
	rt, err := mustRuntime(ctx)
	if err != nil {
		return nil, nil, err
	}
	registry, err := rt.Registry()
	if err != nil {
		return nil, nil, err
	}
	return rt, registry, nil
}

func newSessionsCmd() *cobra.Command {
	var (
		clear      bool
		providerID string
	)

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List live sessions by provider",
		Long: `List the llmctl sessions (started with 'llmctl use --cli') whose process
is still running. Dead entries are pruned as a side effect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, registry, err := sessionRegistry(ctx)
			if err != nil {
				return err
			}
			u := ui.FromContext(ctx)

			if clear {
				if !output.YesFromContext(ctx) {
					ok, err := prompt.FromContext(ctx).Confirm(ctx, "Forget every registered session?", false)
					if err != nil {
						return err
					}
					if !ok {
						return &clierrors.CanceledError{Step: "clear sessions"}
					}
				}
				if err := registry.ClearAllSessions(); err != nil {
					return err
				}
				u.Success("Cleared all sessions")
				return nil
			}

			active, err := registry.GetActiveSessions()
			if err != nil {
				return err
			}
			if providerID != "" {
				active = session.GroupByProvider(active)[providerID]
			}
			slices.SortStableFunc(active, func(a, b session.Session) int {
				return strings.Compare(a.ProviderID, b.ProviderID)
			})

			if len(active) == 0 && !structured(ctx) {
				u.Info("No active sessions")
				return nil
			}
			if active == nil {
				active = []session.Session{}
			}
			return printerForContext(ctx).Print(ctx, sessionList(active))
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "Remove every registered session")
	providerFlag(cmd, &providerID, "Only sessions of this provider")
	cmd.AddCommand(newSessionsEndCmd())
	cmd.AddCommand(newSessionsWatchCmd())
	return cmd
}

func newSessionsEndCmd() *cobra.Command {
	var terminal string

	cmd := &cobra.Command{
		Use:   "end <provider>",
		Short: "Forget a provider's sessions",
		Long: `Remove a provider's sessions from the registry without touching the
processes. --terminal limits it to the session with that exact terminal id
(e.g. "iTerm.app-4242", as shown by 'llmctl sessions').`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeProviderIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, registry, err := sessionRegistry(ctx)
			if err != nil {
				return err
			}
			removed, err := registry.EndProviderSession(args[0], terminal)
			if err != nil {
				return err
			}
			u := ui.FromContext(ctx)
			if removed == 0 {
				u.Info("No sessions for %s", args[0])
			} else {
				u.Success("Ended %d sessions for %s", removed, args[0])
			}
			if structured(ctx) {
				return printerForContext(ctx).Print(ctx, map[string]any{
					"provider": args[0],
					"removed":  removed,
				})
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&terminal, "terminal", "", "Only sessions from this terminal")
	return cmd
}

// watchEvent is one line of "sessions watch" output.
type watchEvent struct {
	Type      string `json:"type"`
	Provider  string `json:"provider,omitempty"`
	Token     string `json:"token,omitempty"`
	Hash      string `json:"hash,omitempty"`
	Sessions  int    `json:"sessions"`
	Timestamp int64  `json:"timestamp"`
}

func newSessionsWatchCmd() *cobra.Command {
	var schedule string

	cmd := &cobra.Command{
		Use:   "watch [provider]",
		Short: "Stream token switches and prune dead sessions",
		Long: `Print an event whenever a token switch is signalled, and prune dead
sessions on a schedule. Runs until interrupted.

--prune-schedule takes a cron expression or a descriptor such as "@every 30s"
or "@hourly"; an empty value disables pruning.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeProviderIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, registry, err := sessionRegistry(ctx)
			if err != nil {
				return err
			}
			providerID := argOrEmpty(args)

			var mu sync.Mutex
			lineCtx := output.WithCompactJSON(ctx, true)
			emit := func(ev watchEvent) {
				mu.Lock()
				defer mu.Unlock()
				if err := printerForContext(lineCtx).Print(lineCtx, ev); err != nil {
					rt.logger.Warn("failed to print event", "error", err)
				}
			}
			if !structured(ctx) {
				u := ui.FromContext(ctx)
				emit = func(ev watchEvent) {
					mu.Lock()
					defer mu.Unlock()
					switch ev.Type {
					case "token-switch":
						u.Warning("%s switched to %s", ev.Provider, ev.Token)
					case "prune":
						u.Info("%d live sessions", ev.Sessions)
					}
				}
			}

			countFor := func() int {
				active, err := registry.GetActiveSessions()
				if err != nil {
					rt.logger.Warn("failed to read sessions", "error", err)
					return 0
				}
				if providerID == "" {
					return len(active)
				}
				return len(session.GroupByProvider(active)[providerID])
			}

			if schedule != "" {
				c := cron.New()
				_, err := c.AddFunc(schedule, func() {
					emit(watchEvent{Type: "prune", Provider: providerID, Sessions: countFor(), Timestamp: time.Now().UnixMilli()})
				})
				if err != nil {
					return &clierrors.ValidationError{Field: "prune-schedule", Message: err.Error()}
				}
				c.Start()
				defer c.Stop()
			}

			watcher, err := notify.NewWatcher(notify.WatcherConfig{
				Dir:        rt.cfg.GetSessionDir(),
				ProviderID: providerID,
				Logger:     rt.logger,
				OnSignal: func(sig notify.Signal) {
					emit(watchEvent{
						Type:      "token-switch",
						Provider:  sig.ProviderID,
						Token:     sig.NewToken,
						Hash:      sig.FullTokenHash,
						Sessions:  countFor(),
						Timestamp: sig.Timestamp,
					})
				},
			})
			if err != nil {
				return err
			}
			if err := watcher.Start(); err != nil {
				return err
			}
			defer func() { _ = watcher.Stop() }()

			target := providerID
			if target == "" {
				target = "all providers"
			}
			ui.FromContext(ctx).Info("Watching %s in %s (Ctrl+C to stop)", target, rt.cfg.GetSessionDir())
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&schedule, "prune-schedule", "@every 30s", "Cron schedule for pruning dead sessions")
	return cmd
}
