// Package rotation selects the next credential for a provider according to
// its token strategy.
package rotation

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/salmonumbrella/llmctl/internal/provider"
)

// DefaultRetries is the attempt count used by GetTokenWithRetry callers that have no preference.
const DefaultRetries = 3

// Engine picks tokens and records their use. Persistence goes through
// provider.Store and never blocks or fails a selection.
type Engine struct {
	store  provider.Store
	states *StateRegistry
	now    func() time.Time
	intn   func(n int) int
	logger *slog.Logger

	saves sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for lastUsed.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRandom overrides the random index source used by the random strategy.
func WithRandom(intn func(n int) int) Option {
	return func(e *Engine) { e.intn = intn }
}

// WithStates shares a state registry between engines.
func WithStates(r *StateRegistry) Option {
	return func(e *Engine) { e.states = r }
}

// WithLogger sets the logger for persistence warnings.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine. A nil store disables persistence of lastUsed.
func NewEngine(store provider.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		states: NewStateRegistry(),
		now:    time.Now,
		intn:   rand.IntN,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// States exposes the engine's state registry.
func (e *Engine) States() *StateRegistry { return e.states }

// candidates returns the indexes of usable tokens in p, skipping exclude.
func candidates(p *provider.Provider, exclude string) []int {
	idx := make([]int, 0, len(p.Tokens))
	for i, t := range p.Tokens {
		if !t.IsEnabled() || !t.IsHealthy() {
			continue
		}
		if exclude != "" && t.Value == exclude {
			continue
		}
		idx = append(idx, i)
	}
	return idx
}

// GetNextToken returns the next token value for p. A provider without a
// token list yields its legacy credential. When nothing is usable the
// result is ("", false); callers treat that as "no further rotation".
//
// The chosen token's LastUsed is set on p and saved in the background.
func (e *Engine) GetNextToken(p *provider.Provider, exclude string) (string, bool) {
	if p == nil {
		return "", false
	}
	if len(p.Tokens) == 0 {
		legacy := p.LegacyCredential()
		return legacy, legacy != ""
	}

	idx := candidates(p, exclude)
	if len(idx) == 0 {
		e.logger.Warn("no usable tokens", "provider", p.ID)
		return "", false
	}

	pool := make([]provider.Token, len(idx))
	for i, j := range idx {
		pool[i] = p.Tokens[j]
	}

	var pick int
	strategy := p.Strategy()
	switch strategy {
	case provider.RoundRobin:
		e.states.with(p.ID, func(s *state) { pick = roundRobin(s, pool) })
	case provider.Weighted:
		e.states.with(p.ID, func(s *state) { pick = weightedRoundRobin(s, pool) })
	case provider.Random:
		pick = e.intn(len(pool))
	case provider.LeastUsed:
		pick = leastUsed(pool)
	default:
		pick = 0
	}

	chosen := &p.Tokens[idx[pick]]
	chosen.LastUsed = e.now().UnixMilli()
	e.recordUsage(p.ID, chosen.Value, chosen.LastUsed)

	e.logger.Debug("token selected", "provider", p.ID, "strategy", string(strategy), "token", chosen.DisplayName())
	return chosen.Value, true
}

// recordUsage persists lastUsed for one token without touching the rest of
// the stored provider, so a concurrent edit of other fields is not lost.
func (e *Engine) recordUsage(providerID, value string, lastUsed int64) {
	if e.store == nil {
		return
	}
	e.saves.Add(1)
	go func() {
		defer e.saves.Done()
		_, err := e.store.UpdateProvider(providerID, func(sp *provider.Provider) error {
			if i := sp.TokenIndex(value); i >= 0 && sp.Tokens[i].LastUsed < lastUsed {
				sp.Tokens[i].LastUsed = lastUsed
			}
			return nil
		})
		if err != nil {
			e.logger.Warn("failed to save token usage", "provider", providerID, "error", err)
		}
	}()
}

// Wait blocks until background usage saves have finished.
func (e *Engine) Wait() {
	e.saves.Wait()
}

// HasAvailableTokens reports whether any token (or the legacy credential) is
// usable, regardless of strategy.
func HasAvailableTokens(p *provider.Provider) bool {
	if p == nil {
		return false
	}
	if len(p.Tokens) == 0 {
		return p.LegacyCredential() != ""
	}
	return len(candidates(p, "")) > 0
}

// GetTokenWithRetry calls GetNextToken up to maxRetries times and returns
// the first hit. A non-positive maxRetries means DefaultRetries.
func (e *Engine) GetTokenWithRetry(p *provider.Provider, maxRetries int) (string, bool) {
	if maxRetries < 1 {
		maxRetries = DefaultRetries
	}
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if tok, ok := e.GetNextToken(p, ""); ok {
			return tok, true
		}
		if attempt < maxRetries {
			e.logger.Warn("no usable token, retrying", "provider", p.ID, "attempt", attempt, "max", maxRetries)
		}
	}
	e.logger.Error("all tokens unavailable", "provider", p.ID, "attempts", maxRetries)
	return "", false
}

// Reset drops the rotation state of one provider.
func (e *Engine) Reset(providerID string) {
	e.states.Reset(providerID)
}
