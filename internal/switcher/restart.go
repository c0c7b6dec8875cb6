package switcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	clierrors "github.com/salmonumbrella/llmctl/internal/errors"
	"github.com/salmonumbrella/llmctl/internal/prompt"
	"github.com/salmonumbrella/llmctl/internal/provider"
	"github.com/salmonumbrella/llmctl/internal/session"
)

func (c *Coordinator) restartSessions(ctx context.Context, p *provider.Provider, opts Options, report *Report) error {
	u := c.d.UI
	sessions, err := c.d.Sessions.SessionsFor(p.ID)
	if err != nil {
		return fmt.Errorf("failed to read sessions: %w", err)
	}
	if len(sessions) == 0 {
		u.Info("No active sessions; the new token applies the next time a CLI starts")
		return nil
	}
	u.Info("%d active %s sessions cache the old token and need a restart", len(sessions), p.DisplayName())

	targets, err := c.chooseSessions(ctx, sessions, opts)
	if err != nil {
		if clierrors.IsCanceled(err) {
			report.RestartCanceled = true
			u.Warning("Restart canceled")
			return nil
		}
		return err
	}

	for _, s := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !c.d.Alive(s.PID) {
			report.Skipped = append(report.Skipped, s.PID)
			continue
		}
		r, err := c.restartOne(ctx, p, s, opts)
		if errors.Is(err, errSkip) {
			u.Warning("Skipped session %d", s.PID)
			report.Skipped = append(report.Skipped, s.PID)
			continue
		}
		if err != nil {
			return err
		}
		report.Restarted = append(report.Restarted, r)
	}
	return nil
}

func (c *Coordinator) chooseSessions(ctx context.Context, sessions []session.Session, opts Options) ([]session.Session, error) {
	if len(sessions) == 1 || opts.Yes || c.d.Prompter == nil {
		return sessions, nil
	}

	now := c.d.Now()
	choices := make([]prompt.Choice, 0, len(sessions)+2)
	for i, s := range sessions {
		dir := s.WorkingDirectory
		if dir == "" {
			dir = "unknown directory"
		}
		uptime := now.Sub(time.UnixMilli(s.StartTime)).Round(time.Minute)
		choices = append(choices, prompt.Choice{
			Label: fmt.Sprintf("Session %d: PID %d", i+1, s.PID),
			Hint:  fmt.Sprintf("%s | up %s", dir, uptime),
		})
	}
	choices = append(choices, prompt.Choice{Label: "Restart all sessions"}, prompt.Choice{Label: "Cancel"})

	i, err := c.d.Prompter.Select(ctx, "Which sessions should restart?", choices)
	if err != nil {
		return nil, err
	}
	switch {
	case i < len(sessions):
		return sessions[i : i+1], nil
	case i == len(sessions):
		return sessions, nil
	default:
		return nil, &clierrors.CanceledError{Step: "session selection"}
	}
}

func (c *Coordinator) restartOne(ctx context.Context, p *provider.Provider, s session.Session, opts Options) (Restart, error) {
	u := c.d.UI
	u.Plain("  session %d (%s)", s.PID, s.Terminal)

	dir, err := c.workingDir(ctx, s, opts)
	if err != nil {
		return Restart{}, err
	}
	u.Plain("  working directory: %s", dir)

	outcome, err := c.d.Procs.Terminate(ctx, s.PID)
	if err != nil {
		return Restart{}, err
	}

	launch := c.d.Procs.RelaunchInTerminal(ctx, p.ID, dir)
	if launch.Launched {
		u.Success("Session %d restarted in a new %s window", s.PID, launch.Terminal)
	} else {
		u.Warning("Could not open a terminal; run manually:")
		for _, line := range launch.Manual {
			u.Plain("    %s", line)
		}
	}
	return Restart{
		PID:        s.PID,
		Dir:        dir,
		Terminated: string(outcome),
		Launched:   launch.Launched,
		Terminal:   launch.Terminal,
		Manual:     launch.Manual,
	}, nil
}

// workingDir uses the recorded directory, then OS detection, then asks.
func (c *Coordinator) workingDir(ctx context.Context, s session.Session, opts Options) (string, error) {
	if s.WorkingDirectory != "" {
		return s.WorkingDirectory, nil
	}
	if dir, ok := c.d.Procs.DetectWorkingDir(ctx, s.PID); ok {
		return dir, nil
	}

	cwd, err := c.d.Getwd()
	if err != nil {
		cwd = "."
	}
	if opts.Yes || c.d.Prompter == nil {
		return cwd, nil
	}

	c.d.UI.Warning("Could not detect the working directory of session %d", s.PID)
	choices := []prompt.Choice{
		{Label: "Use the current directory", Hint: cwd},
		{Label: "Enter a directory"},
		{Label: "Skip this session"},
	}
	i, err := c.d.Prompter.Select(ctx, "Where should the new CLI start?", choices)
	if err != nil {
		if clierrors.IsCanceled(err) {
			return "", errSkip
		}
		return "", err
	}
	switch i {
	case 0:
		return cwd, nil
	case 1:
		for {
			dir, err := c.d.Prompter.Input(ctx, "Directory", cwd)
			if err != nil {
				if clierrors.IsCanceled(err) {
					return "", errSkip
				}
				return "", err
			}
			if c.d.IsDir(dir) {
				return dir, nil
			}
			c.d.UI.Error("%s is not an existing directory", dir)
		}
	default:
		return "", errSkip
	}
}
