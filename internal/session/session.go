// Package session tracks which OS processes are currently using a provider.
//
// The registry is shared by every llmctl process on the machine. Reads
// re-validate process liveness and prune dead entries; writes are serialized
// across processes by the backend (a lock file or a SQLite transaction).
package session

import (
	"fmt"
	"os"
)

// Command is recorded for sessions started by "llmctl use".
const Command = "ctl-use"

// Session is one live process using a provider.
type Session struct {
	ID               string `json:"id,omitempty"`
	PID              int    `json:"pid"`
	ProviderID       string `json:"providerId"`
	ProviderName     string `json:"providerName"`
	StartTime        int64  `json:"startTime"`
	LastActivity     int64  `json:"lastActivity"`
	Terminal         string `json:"terminal"`
	Command          string `json:"command"`
	Persistent       bool   `json:"persistent"`
	WorkingDirectory string `json:"workingDirectory,omitempty"`
}

// Snapshot is the whole registry as stored.
type Snapshot struct {
	Sessions    []Session `json:"sessions"`
	LastUpdated int64     `json:"lastUpdated"`
}

// TerminalID describes the terminal a process runs in:
// TERM_PROGRAM-pid, TERM-(SESSION_NAME|TMUX_PANE)-pid, or TERM-pid.
func TerminalID(getenv func(string) string, pid int) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	if prog := getenv("TERM_PROGRAM"); prog != "" {
		return fmt.Sprintf("%s-%d", prog, pid)
	}
	term := getenv("TERM")
	if term == "" {
		term = "unknown"
	}
	sessionName := getenv("SESSION_NAME")
	if sessionName == "" {
		sessionName = getenv("TMUX_PANE")
	}
	if sessionName != "" {
		return fmt.Sprintf("%s-%s-%d", term, sessionName, pid)
	}
	return fmt.Sprintf("%s-%d", term, pid)
}

// GroupByProvider groups sessions by provider id, preserving order.
func GroupByProvider(sessions []Session) map[string][]Session {
	out := make(map[string][]Session)
	for _, s := range sessions {
		out[s.ProviderID] = append(out[s.ProviderID], s)
	}
	return out
}

// MatchesTerminal reports whether s belongs to the given terminal id. An
// empty filter matches everything.
func (s Session) MatchesTerminal(terminal string) bool {
	return terminal == "" || s.Terminal == terminal
}
