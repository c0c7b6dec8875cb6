package switcher

import (
	"github.com/salmonumbrella/llmctl/internal/notify"
	"github.com/salmonumbrella/llmctl/internal/provider"
)

// Outcome values of a Report.
const (
	OutcomeSwitched    = "switched"
	OutcomeNoSessions  = "no-sessions"
	OutcomeCanceled    = "canceled"
	OutcomeSingleToken = "single-token"
)

// TokenRef identifies a token without exposing it. Preview is only filled
// for --list.
type TokenRef struct {
	Alias   string `json:"alias"`
	Preview string `json:"preview,omitempty"`
}

// Restart is the fate of one session.
type Restart struct {
	PID        int      `json:"pid"`
	Dir        string   `json:"dir"`
	Terminated string   `json:"terminated"`
	Launched   bool     `json:"launched"`
	Terminal   string   `json:"terminal,omitempty"`
	Manual     []string `json:"manual,omitempty"`
}

// Report summarizes a switch-token run.
type Report struct {
	Outcome         string         `json:"outcome"`
	ProviderID      string         `json:"providerId,omitempty"`
	ProviderName    string         `json:"providerName,omitempty"`
	Strategy        string         `json:"strategy,omitempty"`
	From            TokenRef       `json:"from"`
	To              TokenRef       `json:"to"`
	Disabled        bool           `json:"disabled"`
	SaveFailed      bool           `json:"saveFailed,omitempty"`
	Notified        *notify.Result `json:"notified,omitempty"`
	Restarted       []Restart      `json:"restarted,omitempty"`
	Skipped         []int          `json:"skipped,omitempty"`
	RestartCanceled bool           `json:"restartCanceled,omitempty"`
}

func describe(p *provider.Provider, value string) TokenRef {
	alias := provider.LegacyAlias
	if i := p.TokenIndex(value); i >= 0 {
		alias = p.Tokens[i].DisplayName()
	}
	return TokenRef{Alias: alias, Preview: notify.Preview(value)}
}
