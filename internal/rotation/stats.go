package rotation

import "github.com/salmonumbrella/llmctl/internal/provider"

// TokenStat summarizes one token without exposing its value.
type TokenStat struct {
	Alias    string `json:"alias"`
	Weight   int    `json:"weight"`
	Enabled  bool   `json:"enabled"`
	Healthy  bool   `json:"healthy"`
	LastUsed int64  `json:"lastUsed,omitempty"`
}

// Stats summarizes a provider's token pool.
type Stats struct {
	Provider string                `json:"provider"`
	Total    int                   `json:"total"`
	Enabled  int                   `json:"enabled"`
	Healthy  int                   `json:"healthy"`
	Strategy provider.StrategyType `json:"strategy"`
	Tokens   []TokenStat           `json:"tokens"`
}

// GetTokenStats returns pool statistics, or nil when the provider has no token list.
func GetTokenStats(p *provider.Provider) *Stats {
	if p == nil || p.Tokens == nil {
		return nil
	}
	total, enabled, healthy := p.Counts()
	s := &Stats{
		Provider: p.ID,
		Total:    total,
		Enabled:  enabled,
		Healthy:  healthy,
		Strategy: p.Strategy(),
		Tokens:   make([]TokenStat, 0, len(p.Tokens)),
	}
	for _, t := range p.Tokens {
		s.Tokens = append(s.Tokens, TokenStat{
			Alias:    t.DisplayName(),
			Weight:   t.EffectiveWeight(),
			Enabled:  t.IsEnabled(),
			Healthy:  t.IsHealthy(),
			LastUsed: t.LastUsed,
		})
	}
	return s
}
