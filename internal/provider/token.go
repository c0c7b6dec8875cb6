package provider

import (
	"fmt"
	"slices"
	"strings"
)

// LegacyAlias names the token created from a provider's pre-rotation credential.
const LegacyAlias = "original token"

// StrategyType names a token rotation strategy.
type StrategyType string

const (
	RoundRobin StrategyType = "round-robin"
	Weighted   StrategyType = "weighted"
	Random     StrategyType = "random"
	LeastUsed  StrategyType = "least-used"
)

// Strategies lists the supported strategies in display order.
var Strategies = []StrategyType{RoundRobin, Weighted, Random, LeastUsed}

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (StrategyType, error) {
	st := StrategyType(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Strategies, st) {
		return st, nil
	}
	return "", fmt.Errorf("unknown strategy %q (expected round-robin, weighted, random, or least-used)", s)
}

// Label is the human-readable strategy name.
func (s StrategyType) Label() string {
	switch s {
	case RoundRobin:
		return "round robin"
	case Weighted:
		return "weighted round robin"
	case Random:
		return "random"
	case LeastUsed:
		return "least recently used"
	default:
		return string(s)
	}
}

// TokenStrategy configures how a provider rotates its tokens.
type TokenStrategy struct {
	Type            StrategyType `yaml:"type" json:"type"`
	FallbackOnError bool         `yaml:"fallback_on_error,omitempty" json:"fallbackOnError,omitempty"`
}

// Token is one credential in a provider's rotation list.
// Enabled and Healthy are nil when never set; nil counts as true.
type Token struct {
	Value    string `yaml:"value" json:"value"`
	Alias    string `yaml:"alias,omitempty" json:"alias,omitempty"`
	Weight   int    `yaml:"weight,omitempty" json:"weight,omitempty"`
	Enabled  *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Healthy  *bool  `yaml:"healthy,omitempty" json:"healthy,omitempty"`
	LastUsed int64  `yaml:"last_used,omitempty" json:"lastUsed,omitempty"`
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

func (t Token) IsEnabled() bool { return t.Enabled == nil || *t.Enabled }
func (t Token) IsHealthy() bool { return t.Healthy == nil || *t.Healthy }

// EffectiveWeight treats a missing or zero weight as 1.
func (t Token) EffectiveWeight() int {
	if t.Weight <= 0 {
		return 1
	}
	return t.Weight
}

// DisplayName is the alias, or the first 8 characters of the value followed by "...".
func (t Token) DisplayName() string {
	if t.Alias != "" {
		return t.Alias
	}
	return Mask(t.Value)
}

// Mask shows the first 8 characters of a credential followed by "...".
func Mask(value string) string {
	if len(value) <= 8 {
		return value
	}
	return value[:8] + "..."
}

func (t Token) clone() Token {
	c := t
	if t.Enabled != nil {
		c.Enabled = Bool(*t.Enabled)
	}
	if t.Healthy != nil {
		c.Healthy = Bool(*t.Healthy)
	}
	return c
}

// HasToken reports whether value is already in the token list.
func (p *Provider) HasToken(value string) bool {
	return p.TokenIndex(value) >= 0
}

// TokenIndex returns the index of the token with exactly this value, or -1.
func (p *Provider) TokenIndex(value string) int {
	return slices.IndexFunc(p.Tokens, func(t Token) bool { return t.Value == value })
}

// FindToken resolves a user reference to a token index. The reference may be
// an alias, the full value, a value prefix, or a 1-based position ("#2").
func (p *Provider) FindToken(ref string) (int, bool) {
	if ref == "" {
		return -1, false
	}
	if strings.HasPrefix(ref, "#") {
		var n int
		if _, err := fmt.Sscanf(ref, "#%d", &n); err == nil && n >= 1 && n <= len(p.Tokens) {
			return n - 1, true
		}
		return -1, false
	}
	for i, t := range p.Tokens {
		if t.Alias == ref || t.Value == ref {
			return i, true
		}
	}
	match := -1
	for i, t := range p.Tokens {
		if strings.HasPrefix(t.Value, strings.TrimSuffix(ref, "...")) {
			if match >= 0 {
				return -1, false
			}
			match = i
		}
	}
	return match, match >= 0
}

// MigrateLegacy inserts the provider's legacy credential at the front of the
// token list when it is not already there. It reports whether a token was added.
func MigrateLegacy(p *Provider) bool {
	legacy := p.CurrentToken()
	if legacy == "" || p.HasToken(legacy) {
		return false
	}
	p.Tokens = slices.Insert(p.Tokens, 0, Token{
		Value:   legacy,
		Alias:   LegacyAlias,
		Weight:  1,
		Enabled: Bool(true),
	})
	return true
}

// AddToken appends t after migrating the legacy credential. Duplicate values
// are rejected.
func (p *Provider) AddToken(t Token) error {
	if t.Value == "" {
		return fmt.Errorf("token value is required")
	}
	if p.HasToken(t.Value) {
		return fmt.Errorf("token already exists in provider %q", p.ID)
	}
	if t.Value == p.CurrentToken() {
		return fmt.Errorf("token is already the provider's current credential")
	}
	MigrateLegacy(p)
	if t.Weight == 0 {
		t.Weight = 1
	}
	if t.Enabled == nil {
		t.Enabled = Bool(true)
	}
	p.Tokens = append(p.Tokens, t)
	return nil
}

// RemoveToken deletes the token at index i.
func (p *Provider) RemoveToken(i int) {
	p.Tokens = slices.Delete(p.Tokens, i, i+1)
}

// SetEnabled updates the enabled flag of the tokens at the given indexes.
func (p *Provider) SetEnabled(enabled bool, idx ...int) {
	for _, i := range idx {
		if i >= 0 && i < len(p.Tokens) {
			p.Tokens[i].Enabled = Bool(enabled)
		}
	}
}

// DisableToken disables the token with this value, even when it is the last
// enabled one.
func (p *Provider) DisableToken(value string) error {
	i := p.TokenIndex(value)
	if i < 0 {
		return fmt.Errorf("token not found in provider %q", p.ID)
	}
	p.Tokens[i].Enabled = Bool(false)
	return nil
}

// Counts returns total, enabled, and healthy token counts.
func (p *Provider) Counts() (total, enabled, healthy int) {
	for _, t := range p.Tokens {
		total++
		if t.IsEnabled() {
			enabled++
		}
		if t.IsHealthy() {
			healthy++
		}
	}
	return total, enabled, healthy
}
