package provider

import (
	"fmt"
	"slices"
	"strings"
)

// DefaultType is the template id used when a provider does not name one.
const DefaultType = "anthropic"

// Template describes defaults for a family of Anthropic-compatible endpoints.
type Template struct {
	ID          string
	Name        string
	Description string
	BaseURL     string
	MaxTokens   int
	Temperature float64
}

var templates = []Template{
	{
		ID:          DefaultType,
		Name:        "Anthropic-compatible API",
		Description: "Claude, GLM, Qwen and other endpoints speaking the Anthropic API",
		BaseURL:     "https://api.anthropic.com",
		MaxTokens:   4096,
		Temperature: 0.7,
	},
}

// Templates returns the known provider templates.
func Templates() []Template {
	return slices.Clone(templates)
}

// LookupTemplate finds a template by id.
func LookupTemplate(id string) (Template, bool) {
	if id == "" {
		id = DefaultType
	}
	i := slices.IndexFunc(templates, func(t Template) bool { return t.ID == id })
	if i < 0 {
		return Template{}, false
	}
	return templates[i], true
}

// New builds a provider from a template with an initial credential.
// The credential lands in ANTHROPIC_AUTH_TOKEN so token switches rewrite it there.
func New(id, name, templateID, credential string) (*Provider, error) {
	tpl, ok := LookupTemplate(templateID)
	if !ok {
		return nil, fmt.Errorf("unsupported provider type %q", templateID)
	}
	temp := tpl.Temperature
	p := &Provider{
		ID:          id,
		Name:        name,
		Type:        tpl.ID,
		BaseURL:     tpl.BaseURL,
		MaxTokens:   tpl.MaxTokens,
		Temperature: &temp,
		EnvVars:     map[string]string{},
	}
	if credential != "" {
		p.EnvVars[EnvAuthToken] = credential
	}
	return p, nil
}

// Problems holds the outcome of checking a single provider.
type Problems struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// OK reports whether no errors were found.
func (p Problems) OK() bool { return len(p.Errors) == 0 }

// Check applies the template rules and token-list rules to p.
func Check(p *Provider) Problems {
	var out Problems
	if _, ok := LookupTemplate(p.Type); !ok {
		out.Errors = append(out.Errors, fmt.Sprintf("unsupported provider type %q", p.Type))
	}
	if p.CurrentToken() == "" && len(p.Tokens) == 0 {
		out.Errors = append(out.Errors, "missing API token")
	}
	if p.BaseURL != "" && !strings.HasPrefix(p.BaseURL, "http") {
		out.Errors = append(out.Errors, "base url must start with http:// or https://")
	}

	seen := make(map[string]bool, len(p.Tokens))
	for i, t := range p.Tokens {
		label := fmt.Sprintf("token #%d (%s)", i+1, t.DisplayName())
		if t.Value == "" {
			out.Errors = append(out.Errors, label+": empty value")
		}
		if seen[t.Value] {
			out.Errors = append(out.Errors, label+": duplicate value")
		}
		seen[t.Value] = true
		if t.Weight < 0 || t.Weight > 10 {
			out.Errors = append(out.Errors, fmt.Sprintf("%s: weight %d out of range 1-10", label, t.Weight))
		}
	}
	if len(p.Tokens) > 0 {
		_, enabled, healthy := p.Counts()
		if enabled == 0 {
			out.Warnings = append(out.Warnings, "all tokens are disabled")
		} else if healthy == 0 {
			out.Warnings = append(out.Warnings, "no token is marked healthy")
		}
	}
	if p.Strategy() == Weighted && len(p.Tokens) < 2 {
		out.Warnings = append(out.Warnings, "weighted strategy has no effect with fewer than 2 tokens")
	}
	return out
}
