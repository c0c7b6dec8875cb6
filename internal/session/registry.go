package session

import (
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/salmonumbrella/llmctl/internal/provider"
)

// Registry is the process-facing API over a Backend.
type Registry struct {
	backend Backend
	alive   func(pid int) bool
	now     func() time.Time
	pid     int
	getenv  func(string) string
	getwd   func() (string, error)
	logger  *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLiveness overrides the process liveness probe.
func WithLiveness(alive func(pid int) bool) Option {
	return func(r *Registry) { r.alive = alive }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithPID overrides the pid recorded for the current process.
func WithPID(pid int) Option {
	return func(r *Registry) { r.pid = pid }
}

// WithEnv overrides environment lookup for terminal detection.
func WithEnv(getenv func(string) string) Option {
	return func(r *Registry) { r.getenv = getenv }
}

// WithWorkingDir overrides the working directory lookup.
func WithWorkingDir(getwd func() (string, error)) Option {
	return func(r *Registry) { r.getwd = getwd }
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry wraps backend.
func NewRegistry(backend Backend, opts ...Option) *Registry {
	r := &Registry{
		backend: backend,
		alive:   ProcessAlive,
		now:     time.Now,
		pid:     os.Getpid(),
		getenv:  os.Getenv,
		getwd:   os.Getwd,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// PID is the pid this registry records for the current process.
func (r *Registry) PID() int { return r.pid }

// Backend returns the underlying storage.
func (r *Registry) Backend() Backend { return r.backend }

func (r *Registry) nowMillis() int64 { return r.now().UnixMilli() }

// pruneDead drops sessions whose process is gone and reports whether any were dropped.
func (r *Registry) pruneDead(snap *Snapshot) bool {
	before := len(snap.Sessions)
	snap.Sessions = slices.DeleteFunc(snap.Sessions, func(s Session) bool {
		return !r.alive(s.PID)
	})
	return len(snap.Sessions) != before
}

// RegisterProviderUsage records the current process as using p. Dead
// sessions and any earlier entry for the same pid are removed first.
func (r *Registry) RegisterProviderUsage(p *provider.Provider) (*Session, error) {
	now := r.nowMillis()
	wd, err := r.getwd()
	if err != nil {
		wd = ""
	}
	s := Session{
		ID:               uuid.NewString(),
		PID:              r.pid,
		ProviderID:       p.ID,
		ProviderName:     p.DisplayName(),
		StartTime:        now,
		LastActivity:     now,
		Terminal:         TerminalID(r.getenv, r.pid),
		Command:          Command,
		Persistent:       false,
		WorkingDirectory: wd,
	}

	err = r.backend.Modify(now, func(snap *Snapshot) bool {
		r.pruneDead(snap)
		snap.Sessions = slices.DeleteFunc(snap.Sessions, func(existing Session) bool {
			return existing.PID == s.PID
		})
		snap.Sessions = append(snap.Sessions, s)
		return true
	})
	if err != nil {
		return nil, err
	}
	r.logger.Debug("session registered", "provider", p.ID, "pid", s.PID, "terminal", s.Terminal)
	return &s, nil
}

// GetActiveSessions returns live sessions, persisting the pruned set only
// when something was removed.
func (r *Registry) GetActiveSessions() ([]Session, error) {
	var out []Session
	err := r.backend.Modify(r.nowMillis(), func(snap *Snapshot) bool {
		changed := r.pruneDead(snap)
		out = slices.Clone(snap.Sessions)
		return changed
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Session{}
	}
	return out, nil
}

// GetSessionsByProvider groups live sessions by provider id.
func (r *Registry) GetSessionsByProvider() (map[string][]Session, error) {
	sessions, err := r.GetActiveSessions()
	if err != nil {
		return nil, err
	}
	return GroupByProvider(sessions), nil
}

// SessionsFor returns live sessions of one provider.
func (r *Registry) SessionsFor(providerID string) ([]Session, error) {
	byProvider, err := r.GetSessionsByProvider()
	if err != nil {
		return nil, err
	}
	return byProvider[providerID], nil
}

// UnregisterSession removes the session for pid.
func (r *Registry) UnregisterSession(pid int) error {
	return r.backend.Modify(r.nowMillis(), func(snap *Snapshot) bool {
		before := len(snap.Sessions)
		snap.Sessions = slices.DeleteFunc(snap.Sessions, func(s Session) bool { return s.PID == pid })
		return len(snap.Sessions) != before
	})
}

// EndProviderSession removes a provider's sessions, optionally only those
// in one terminal, and returns how many were removed.
func (r *Registry) EndProviderSession(providerID, terminal string) (int, error) {
	removed := 0
	err := r.backend.Modify(r.nowMillis(), func(snap *Snapshot) bool {
		before := len(snap.Sessions)
		snap.Sessions = slices.DeleteFunc(snap.Sessions, func(s Session) bool {
			return s.ProviderID == providerID && s.MatchesTerminal(terminal)
		})
		removed = before - len(snap.Sessions)
		return removed > 0
	})
	return removed, err
}

// UpdateSessionActivity refreshes lastActivity for pid.
func (r *Registry) UpdateSessionActivity(pid int) error {
	now := r.nowMillis()
	return r.backend.Modify(now, func(snap *Snapshot) bool {
		for i := range snap.Sessions {
			if snap.Sessions[i].PID == pid {
				snap.Sessions[i].LastActivity = now
				return true
			}
		}
		return false
	})
}

// ClearAllSessions empties the registry.
func (r *Registry) ClearAllSessions() error {
	return r.backend.Clear()
}

// LastUpdated returns the stored lastUpdated timestamp without pruning.
func (r *Registry) LastUpdated() (int64, error) {
	snap, err := r.backend.Read()
	if err != nil {
		return 0, err
	}
	return snap.LastUpdated, nil
}

// InstallCleanup unregisters the current process on SIGINT, SIGTERM, or
// SIGHUP and then exits with 130 (SIGINT) or 143. The returned func
// unregisters immediately and stops the handler; call it on normal exit.
// A hard kill cannot run either path; readers prune by liveness.
func (r *Registry) InstallCleanup() func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			signal.Stop(sigs)
			if err := r.UnregisterSession(r.pid); err != nil {
				r.logger.Warn("failed to unregister session", "pid", r.pid, "error", err)
			}
		})
	}

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigs:
			cleanup()
			code := 143
			if sig == os.Interrupt {
				code = 130
			}
			os.Exit(code)
		case <-done:
		}
	}()

	var stopOnce sync.Once
	return func() {
		stopOnce.Do(func() { close(done) })
		cleanup()
	}
}
