package rotation

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salmonumbrella/llmctl/internal/provider"
)

// memStore is an in-memory provider.Store.
type memStore struct {
	mu        sync.Mutex
	providers map[string]*provider.Provider
	fail      error
	updates   int
}

func newMemStore(ps ...*provider.Provider) *memStore {
	s := &memStore{providers: map[string]*provider.Provider{}}
	for _, p := range ps {
		s.providers[p.ID] = p.Clone()
	}
	return s
}

func (s *memStore) GetProvider(id string) (*provider.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return p.Clone(), nil
}

func (s *memStore) GetAllProviders() ([]*provider.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*provider.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (s *memStore) SaveProvider(p *provider.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[p.ID] = p.Clone()
	return nil
}

func (s *memStore) UpdateProvider(id string, fn func(*provider.Provider) error) (*provider.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if s.fail != nil {
		return nil, s.fail
	}
	p, ok := s.providers[id]
	if !ok {
		return nil, errors.New("not found")
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

func tokens(values ...string) []provider.Token {
	out := make([]provider.Token, len(values))
	for i, v := range values {
		out[i] = provider.Token{Value: v}
	}
	return out
}

func withStrategy(p *provider.Provider, st provider.StrategyType) *provider.Provider {
	p.TokenStrategy = &provider.TokenStrategy{Type: st}
	return p
}

func next(t *testing.T, e *Engine, p *provider.Provider, exclude string) string {
	t.Helper()
	tok, ok := e.GetNextToken(p, exclude)
	require.True(t, ok, "expected a token")
	return tok
}

func TestRoundRobin(t *testing.T) {
	p := &provider.Provider{ID: "rr", Tokens: tokens("A", "B")}
	e := NewEngine(nil)

	var got []string
	for i := 0; i < 4; i++ {
		got = append(got, next(t, e, p, ""))
	}
	assert.Equal(t, []string{"A", "B", "A", "B"}, got)
}

func TestRoundRobin_ListShrinkResetsIndex(t *testing.T) {
	p := &provider.Provider{ID: "rr", Tokens: tokens("A", "B", "C")}
	e := NewEngine(nil)

	next(t, e, p, "")
	next(t, e, p, "")
	next(t, e, p, "") // cursor wraps to 0
	next(t, e, p, "") // A, cursor 1
	next(t, e, p, "") // B, cursor 2

	p.Tokens = tokens("A", "B")
	assert.Equal(t, "A", next(t, e, p, ""), "cursor past the end restarts at 0")
}

func TestWeighted(t *testing.T) {
	p := withStrategy(&provider.Provider{ID: "w", Tokens: []provider.Token{
		{Value: "A", Weight: 3},
		{Value: "B", Weight: 1},
	}}, provider.Weighted)
	e := NewEngine(nil)

	var seq []string
	for i := 0; i < 12; i++ {
		seq = append(seq, next(t, e, p, ""))
	}

	for start := 0; start+4 <= len(seq); start++ {
		window := seq[start : start+4]
		countA := 0
		for _, v := range window {
			if v == "A" {
				countA++
			}
		}
		assert.Equal(t, 3, countA, "window %v", window)
	}
	for i := 1; i < len(seq); i++ {
		assert.False(t, seq[i] == "B" && seq[i-1] == "B", "adjacent B at %d: %v", i, seq)
	}
	assert.Equal(t, []string{"A", "A", "B", "A"}, seq[:4])
}

func TestWeighted_TieGoesToLowestIndex(t *testing.T) {
	p := withStrategy(&provider.Provider{ID: "w", Tokens: tokens("A", "B")}, provider.Weighted)
	e := NewEngine(nil)

	assert.Equal(t, "A", next(t, e, p, ""))
	assert.Equal(t, "B", next(t, e, p, ""))
	assert.Equal(t, "A", next(t, e, p, ""))
}

func TestWeighted_ZeroWeightCountsAsOne(t *testing.T) {
	p := withStrategy(&provider.Provider{ID: "w", Tokens: []provider.Token{
		{Value: "A", Weight: 0},
		{Value: "B", Weight: 2},
	}}, provider.Weighted)
	e := NewEngine(nil)

	counts := map[string]int{}
	for i := 0; i < 9; i++ {
		counts[next(t, e, p, "")]++
	}
	assert.Equal(t, 3, counts["A"])
	assert.Equal(t, 6, counts["B"])
}

func TestRandom_UsesInjectedSource(t *testing.T) {
	p := withStrategy(&provider.Provider{ID: "r", Tokens: tokens("A", "B", "C")}, provider.Random)
	var gotN int
	e := NewEngine(nil, WithRandom(func(n int) int { gotN = n; return 2 }))

	assert.Equal(t, "C", next(t, e, p, ""))
	assert.Equal(t, 3, gotN)
}

func TestLeastUsed(t *testing.T) {
	p := withStrategy(&provider.Provider{ID: "lu", Tokens: []provider.Token{
		{Value: "A", LastUsed: 100},
		{Value: "B", LastUsed: 50},
	}}, provider.LeastUsed)
	clock := time.UnixMilli(1_000)
	e := NewEngine(nil, WithClock(func() time.Time { return clock }))

	assert.Equal(t, "B", next(t, e, p, ""))
	assert.Equal(t, int64(1_000), p.Tokens[1].LastUsed)
	assert.Equal(t, "A", next(t, e, p, ""), "B is now the most recent")
}

func TestLeastUsed_TieGoesToFirst(t *testing.T) {
	p := withStrategy(&provider.Provider{ID: "lu", Tokens: tokens("A", "B")}, provider.LeastUsed)
	e := NewEngine(nil, WithClock(func() time.Time { return time.UnixMilli(0) }))
	assert.Equal(t, "A", next(t, e, p, ""))
}

func TestUnknownStrategyPicksFirst(t *testing.T) {
	p := withStrategy(&provider.Provider{ID: "u", Tokens: tokens("A", "B")}, "mystery")
	e := NewEngine(nil)
	assert.Equal(t, "A", next(t, e, p, ""))
	assert.Equal(t, "A", next(t, e, p, ""))
}

func TestExclusion(t *testing.T) {
	p := &provider.Provider{ID: "x", Tokens: tokens("A")}
	e := NewEngine(nil)

	tok, ok := e.GetNextToken(p, "A")
	assert.False(t, ok)
	assert.Empty(t, tok)
}

func TestDisabledAndUnhealthyNeverReturned(t *testing.T) {
	for _, st := range provider.Strategies {
		t.Run(string(st), func(t *testing.T) {
			p := withStrategy(&provider.Provider{ID: "d", Tokens: []provider.Token{
				{Value: "A", Enabled: provider.Bool(false)},
				{Value: "B"},
				{Value: "C", Healthy: provider.Bool(false)},
				{Value: "D"},
			}}, st)
			e := NewEngine(nil)
			for i := 0; i < 20; i++ {
				tok := next(t, e, p, "")
				assert.NotEqual(t, "A", tok)
				assert.NotEqual(t, "C", tok)
			}
		})
	}
}

func TestLegacyFallback(t *testing.T) {
	e := NewEngine(nil)

	p := &provider.Provider{ID: "l", APIKey: "sk-legacy-0123456789"}
	assert.Equal(t, "sk-legacy-0123456789", next(t, e, p, ""))

	p = &provider.Provider{ID: "l", EnvVars: map[string]string{provider.EnvAuthToken: "sk-env-0123456789"}}
	assert.Equal(t, "sk-env-0123456789", next(t, e, p, ""))

	_, ok := e.GetNextToken(&provider.Provider{ID: "none"}, "")
	assert.False(t, ok)

	_, ok = e.GetNextToken(nil, "")
	assert.False(t, ok)
}

func TestHasAvailableTokens(t *testing.T) {
	p := &provider.Provider{ID: "h"}
	assert.False(t, HasAvailableTokens(p))
	assert.False(t, HasAvailableTokens(nil))

	p.Tokens = []provider.Token{{Value: "A", Enabled: provider.Bool(false)}}
	assert.False(t, HasAvailableTokens(p))

	p.Tokens = append(p.Tokens, provider.Token{Value: "B"})
	assert.True(t, HasAvailableTokens(p))

	assert.True(t, HasAvailableTokens(&provider.Provider{APIKey: "sk-legacy-0123456789"}))
}

func TestUsageIsPersisted(t *testing.T) {
	p := &provider.Provider{ID: "s", Tokens: tokens("A", "B")}
	store := newMemStore(p)
	e := NewEngine(store, WithClock(func() time.Time { return time.UnixMilli(42_000) }))

	assert.Equal(t, "A", next(t, e, p, ""))
	e.Wait()

	stored, err := store.GetProvider("s")
	require.NoError(t, err)
	assert.Equal(t, int64(42_000), stored.Tokens[0].LastUsed)
	assert.Zero(t, stored.Tokens[1].LastUsed)
}

func TestPersistenceFailureDoesNotFailRotation(t *testing.T) {
	p := &provider.Provider{ID: "s", Tokens: tokens("A", "B")}
	store := newMemStore(p)
	store.fail = errors.New("disk full")
	e := NewEngine(store)

	assert.Equal(t, "A", next(t, e, p, ""))
	assert.Equal(t, "B", next(t, e, p, ""))
	e.Wait()
	assert.Equal(t, 2, store.updates)
}

func TestGetTokenWithRetry(t *testing.T) {
	e := NewEngine(nil)

	tok, ok := e.GetTokenWithRetry(&provider.Provider{ID: "r", Tokens: tokens("A")}, DefaultRetries)
	assert.True(t, ok)
	assert.Equal(t, "A", tok)

	_, ok = e.GetTokenWithRetry(&provider.Provider{ID: "r", Tokens: []provider.Token{{Value: "A", Healthy: provider.Bool(false)}}}, 0)
	assert.False(t, ok)
}

func TestIndependentEngines(t *testing.T) {
	p := &provider.Provider{ID: "i", Tokens: tokens("A", "B")}
	e1 := NewEngine(nil)
	e2 := NewEngine(nil)

	assert.Equal(t, "A", next(t, e1, p, ""))
	assert.Equal(t, "A", next(t, e2, p, ""), "engines do not share state")

	shared := NewStateRegistry()
	e3 := NewEngine(nil, WithStates(shared))
	e4 := NewEngine(nil, WithStates(shared))
	assert.Equal(t, "A", next(t, e3, p, ""))
	assert.Equal(t, "B", next(t, e4, p, ""))
}

func TestReset(t *testing.T) {
	p := &provider.Provider{ID: "rs", Tokens: tokens("A", "B")}
	e := NewEngine(nil)
	next(t, e, p, "")
	e.Reset("rs")
	assert.Equal(t, "A", next(t, e, p, ""))

	next(t, e, p, "")
	e.States().ResetAll()
	assert.Equal(t, "A", next(t, e, p, ""))
}

func TestGetTokenStats(t *testing.T) {
	assert.Nil(t, GetTokenStats(&provider.Provider{ID: "none"}))

	p := withStrategy(&provider.Provider{ID: "st", Tokens: []provider.Token{
		{Value: "sk-ant-api03-abcdef", Weight: 3},
		{Value: "sk-two-0123456789", Alias: "two", Enabled: provider.Bool(false)},
		{Value: "sk-three-012345678", Healthy: provider.Bool(false)},
	}}, provider.Weighted)

	s := GetTokenStats(p)
	require.NotNil(t, s)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Enabled)
	assert.Equal(t, 2, s.Healthy)
	assert.Equal(t, provider.Weighted, s.Strategy)
	assert.Equal(t, "sk-ant-a...", s.Tokens[0].Alias)
	assert.Equal(t, 3, s.Tokens[0].Weight)
	assert.Equal(t, "two", s.Tokens[1].Alias)
	assert.Equal(t, 1, s.Tokens[1].Weight)
	assert.False(t, s.Tokens[1].Enabled)
	assert.False(t, s.Tokens[2].Healthy)
}
