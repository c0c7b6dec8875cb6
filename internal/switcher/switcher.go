// Package switcher moves a provider to its next token and propagates the
// change to every running session of that provider.
package switcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/salmonumbrella/llmctl/internal/auth"
	"github.com/salmonumbrella/llmctl/internal/envexport"
	clierrors "github.com/salmonumbrella/llmctl/internal/errors"
	"github.com/salmonumbrella/llmctl/internal/notify"
	"github.com/salmonumbrella/llmctl/internal/procctl"
	"github.com/salmonumbrella/llmctl/internal/prompt"
	"github.com/salmonumbrella/llmctl/internal/provider"
	"github.com/salmonumbrella/llmctl/internal/rotation"
	"github.com/salmonumbrella/llmctl/internal/session"
	"github.com/salmonumbrella/llmctl/internal/ui"
)

// Sessions lists live sessions.
type Sessions interface {
	GetActiveSessions() ([]session.Session, error)
	SessionsFor(providerID string) ([]session.Session, error)
}

// Rotator picks the next token.
type Rotator interface {
	GetNextToken(p *provider.Provider, exclude string) (string, bool)
}

// Notifier tells sessions about a switch.
type Notifier interface {
	NotifyTokenSwitch(ctx context.Context, providerID, newToken string) notify.Result
}

// Processes stops and relaunches session processes.
type Processes interface {
	DetectWorkingDir(ctx context.Context, pid int) (string, bool)
	Terminate(ctx context.Context, pid int) (procctl.TerminateOutcome, error)
	RelaunchInTerminal(ctx context.Context, providerID, cwd string) procctl.LaunchResult
}

// Deps are the collaborators of a Coordinator. Zero-valued optional fields
// get production defaults.
type Deps struct {
	Store    provider.Store
	Rotator  Rotator
	Sessions Sessions
	Notifier Notifier
	Procs    Processes
	Prompter prompt.Prompter
	UI       *ui.UI

	Env     envexport.Applier
	Resolve func(vars map[string]string) error
	Alive   func(pid int) bool
	Getwd   func() (string, error)
	IsDir   func(path string) bool
	Now     func() time.Time
}

// Options are the switch-token flags.
type Options struct {
	ProviderID string
	// List adds before/after token details to the report.
	List bool
	// Disable answers yes to disabling the current token.
	Disable bool
	// Yes accepts defaults instead of prompting.
	Yes bool
}

// Coordinator runs the switch-token flow.
type Coordinator struct {
	d Deps
}

// New fills defaults into d.
func New(d Deps) *Coordinator {
	if d.Env == nil {
		d.Env = envexport.ProcessApplier{}
	}
	if d.Resolve == nil {
		d.Resolve = auth.ResolveVars
	}
	if d.Alive == nil {
		d.Alive = session.ProcessAlive
	}
	if d.Getwd == nil {
		d.Getwd = os.Getwd
	}
	if d.IsDir == nil {
		d.IsDir = func(path string) bool {
			fi, err := os.Stat(path)
			return err == nil && fi.IsDir()
		}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.UI == nil {
		d.UI = ui.New(ui.ColorAuto)
	}
	return &Coordinator{d: d}
}

// Run executes the flow. Outcomes that need no action (no sessions, one
// usable token, cancel) come back as a Report without an error.
func (c *Coordinator) Run(ctx context.Context, opts Options) (*Report, error) {
	p, report, err := c.selectProvider(ctx, opts.ProviderID)
	if err != nil || report != nil {
		return report, err
	}
	report = &Report{ProviderID: p.ID, ProviderName: p.DisplayName(), Strategy: p.Strategy().Label()}
	u := c.d.UI
	u.Info("Switching token for %q", p.DisplayName())

	if !rotation.HasAvailableTokens(p) {
		return nil, clierrors.NoTokensError(p.ID)
	}

	current := p.CurrentToken()
	if current == "" {
		return nil, clierrors.NewUserError(
			"cannot determine the current token",
			fmt.Sprintf("Set one with: llmctl token add %s", p.ID),
		)
	}
	report.From = describe(p, current)
	u.Plain("  current token: %s (%s)", report.From.Alias, report.From.Preview)

	disable, err := c.confirmDisable(ctx, opts)
	if err != nil {
		if clierrors.IsCanceled(err) {
			report.Outcome = OutcomeCanceled
			return report, nil
		}
		return nil, err
	}
	if disable {
		updated, err := c.d.Store.UpdateProvider(p.ID, func(sp *provider.Provider) error {
			return sp.DisableToken(current)
		})
		if err != nil {
			u.Error("Failed to disable token %s: %v", report.From.Alias, err)
			_ = p.DisableToken(current)
		} else {
			p = updated
			report.Disabled = true
			u.Warning("Disabled token %s", report.From.Alias)
		}
	}

	next, ok := c.d.Rotator.GetNextToken(p, current)
	if !ok {
		return nil, clierrors.NoAlternateTokenError(p.ID)
	}
	if next == current {
		report.Outcome = OutcomeSingleToken
		u.Warning("Only one usable token; nothing to switch")
		return report, nil
	}

	secret, err := auth.Resolve(next)
	if err != nil {
		return nil, err
	}

	saved, err := c.d.Store.UpdateProvider(p.ID, func(sp *provider.Provider) error {
		sp.SetCurrentToken(next)
		return nil
	})
	if err != nil {
		u.Error("Failed to save provider %s: %v", p.ID, err)
		u.Info("Continuing with the new token for this run only")
		p.SetCurrentToken(next)
		report.SaveFailed = true
	} else {
		p = saved
	}

	vars := p.ExportVars()
	if err := c.d.Resolve(vars); err != nil {
		return nil, err
	}
	applied := c.d.Env.Apply(vars)
	if !applied.Success {
		suggestion := ""
		if applied.ShellCommand != "" {
			suggestion = "Run manually: " + applied.ShellCommand
		}
		return nil, clierrors.NewUserError("token switch failed: "+applied.Message, suggestion)
	}

	report.To = describe(p, next)
	report.Outcome = OutcomeSwitched
	u.Success("Switched to %s (%s)", report.To.Alias, report.To.Preview)

	if c.d.Notifier != nil {
		res := c.d.Notifier.NotifyTokenSwitch(ctx, p.ID, secret)
		report.Notified = &res
	}

	if err := c.restartSessions(ctx, p, opts, report); err != nil {
		return report, err
	}
	if !opts.List {
		report.From.Preview, report.To.Preview = "", ""
	}
	return report, nil
}

func (c *Coordinator) confirmDisable(ctx context.Context, opts Options) (bool, error) {
	if opts.Disable {
		return true, nil
	}
	if opts.Yes || c.d.Prompter == nil {
		return false, nil
	}
	return c.d.Prompter.Confirm(ctx, "Disable the current token? (usually when it is exhausted or failing)", false)
}

// selectProvider returns the provider to switch, or a terminal report when
// there is nothing to do.
func (c *Coordinator) selectProvider(ctx context.Context, id string) (*provider.Provider, *Report, error) {
	if id != "" {
		p, err := c.d.Store.GetProvider(id)
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil
	}

	active, err := c.d.Sessions.GetActiveSessions()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sessions: %w", err)
	}
	if len(active) == 0 {
		c.d.UI.Warning("No active sessions")
		c.d.UI.Info("Start one with 'llmctl use <provider>' and switch again")
		return nil, &Report{Outcome: OutcomeNoSessions}, nil
	}

	byProvider := session.GroupByProvider(active)
	var (
		candidates []*provider.Provider
		choices    []prompt.Choice
	)
	seen := map[string]bool{}
	for _, s := range active {
		if seen[s.ProviderID] {
			continue
		}
		seen[s.ProviderID] = true
		p, err := c.d.Store.GetProvider(s.ProviderID)
		if err != nil {
			if clierrors.IsNotFoundError(err) {
				continue
			}
			return nil, nil, err
		}
		candidates = append(candidates, p)
		choices = append(choices, prompt.Choice{
			Label: fmt.Sprintf("%s (%s)", p.DisplayName(), p.ID),
			Hint:  fmt.Sprintf("%d active sessions", len(byProvider[p.ID])),
		})
	}
	if len(candidates) == 0 {
		c.d.UI.Warning("No configured provider matches the active sessions")
		return nil, &Report{Outcome: OutcomeNoSessions}, nil
	}
	if c.d.Prompter == nil {
		return nil, nil, clierrors.NewUserError("provider id required", "Run 'llmctl switch-token <provider-id>'")
	}

	i, err := c.d.Prompter.Select(ctx, "Switch token for which provider?", choices)
	if err != nil {
		if clierrors.IsCanceled(err) {
			return nil, &Report{Outcome: OutcomeCanceled}, nil
		}
		return nil, nil, err
	}
	return candidates[i], nil, nil
}

var errSkip = errors.New("skip session")
