// Package provider defines the LLM provider model shared by config storage,
// token rotation, session tracking, and the CLI.
package provider

import (
	"maps"
	"slices"
	"strings"
)

// Environment variable names exported for a provider.
const (
	EnvAuthToken = "ANTHROPIC_AUTH_TOKEN"
	EnvBaseURL   = "ANTHROPIC_BASE_URL"
	EnvModel     = "ANTHROPIC_MODEL"
)

// Provider is one configured LLM endpoint and its credentials.
type Provider struct {
	ID           string            `yaml:"id" json:"id"`
	Name         string            `yaml:"name" json:"name"`
	Description  string            `yaml:"description,omitempty" json:"description,omitempty"`
	Type         string            `yaml:"type,omitempty" json:"type,omitempty"`
	BaseURL      string            `yaml:"base_url,omitempty" json:"baseUrl,omitempty"`
	APIKey       string            `yaml:"api_key,omitempty" json:"apiKey,omitempty"`
	ModelName    string            `yaml:"model_name,omitempty" json:"modelName,omitempty"`
	MaxTokens    int               `yaml:"max_tokens,omitempty" json:"maxTokens,omitempty"`
	Temperature  *float64          `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	ExtraHeaders map[string]string `yaml:"extra_headers,omitempty" json:"extraHeaders,omitempty"`
	EnvVars      map[string]string `yaml:"env_vars,omitempty" json:"envVars,omitempty"`

	Tokens        []Token        `yaml:"tokens,omitempty" json:"tokens,omitempty"`
	TokenStrategy *TokenStrategy `yaml:"token_strategy,omitempty" json:"tokenStrategy,omitempty"`
}

// DisplayName returns the provider name, falling back to its id.
func (p *Provider) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// Strategy returns the configured rotation strategy, round-robin when unset.
func (p *Provider) Strategy() StrategyType {
	if p.TokenStrategy == nil || p.TokenStrategy.Type == "" {
		return RoundRobin
	}
	return p.TokenStrategy.Type
}

// CurrentToken returns the credential the provider exports right now:
// the ANTHROPIC_AUTH_TOKEN env entry, else the legacy api key.
func (p *Provider) CurrentToken() string {
	if v := p.EnvVars[EnvAuthToken]; v != "" {
		return v
	}
	return p.APIKey
}

// LegacyCredential is the credential used when no token list exists.
// It prefers the api key, matching rotation fallback order.
func (p *Provider) LegacyCredential() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	return p.EnvVars[EnvAuthToken]
}

// SetCurrentToken writes value into ANTHROPIC_AUTH_TOKEN when the provider
// carries that env entry, otherwise into the legacy api key.
func (p *Provider) SetCurrentToken(value string) {
	if _, ok := p.EnvVars[EnvAuthToken]; ok {
		p.EnvVars[EnvAuthToken] = value
		return
	}
	p.APIKey = value
}

// ExportVars returns the environment a shell or child CLI should receive.
func (p *Provider) ExportVars() map[string]string {
	vars := make(map[string]string, len(p.EnvVars)+3)
	for k, v := range p.EnvVars {
		if k == EnvAuthToken || k == EnvBaseURL || k == EnvModel {
			continue
		}
		vars[k] = v
	}
	if tok := p.CurrentToken(); tok != "" {
		vars[EnvAuthToken] = tok
	}
	if p.BaseURL != "" {
		vars[EnvBaseURL] = p.BaseURL
	}
	if strings.TrimSpace(p.ModelName) != "" {
		vars[EnvModel] = p.ModelName
	}
	return vars
}

// Clone returns a deep copy safe to mutate and persist from another goroutine.
func (p *Provider) Clone() *Provider {
	if p == nil {
		return nil
	}
	c := *p
	c.ExtraHeaders = maps.Clone(p.ExtraHeaders)
	c.EnvVars = maps.Clone(p.EnvVars)
	if p.Temperature != nil {
		t := *p.Temperature
		c.Temperature = &t
	}
	if p.TokenStrategy != nil {
		s := *p.TokenStrategy
		c.TokenStrategy = &s
	}
	if p.Tokens != nil {
		c.Tokens = make([]Token, len(p.Tokens))
		for i, t := range p.Tokens {
			c.Tokens[i] = t.clone()
		}
	}
	return &c
}

// SortedEnvKeys returns the env var names in stable order.
func (p *Provider) SortedEnvKeys() []string {
	return slices.Sorted(maps.Keys(p.EnvVars))
}
