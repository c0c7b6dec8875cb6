// Package notify tells running llmctl sessions that their provider's token
// changed: a signal file in the session directory, SIGUSR2 to each live
// process, and optional webhook messages.
package notify

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/salmonumbrella/llmctl/internal/session"
)

const (
	signalPrefix = "llmctl-token-update-"
	signalSuffix = ".json"
	previewLen   = 8
)

// Notifier delivers a token switch to the sessions of one provider and
// reports how many were reached.
type Notifier interface {
	Notify(ctx context.Context, providerID string, sessions []session.Session, newToken string) (int, error)
}

// Signal is the content of a token update file.
type Signal struct {
	ProviderID    string `json:"providerId"`
	NewToken      string `json:"newToken"`
	Timestamp     int64  `json:"timestamp"`
	FullTokenHash string `json:"fullTokenHash"`
}

// Update is what a session learns when it checks for a pending switch.
type Update struct {
	HasUpdate    bool   `json:"hasUpdate"`
	NewTokenHash string `json:"newTokenHash,omitempty"`
	Timestamp    int64  `json:"timestamp,omitempty"`
}

// SignalPath is the update file for providerID inside dir.
func SignalPath(dir, providerID string) string {
	return filepath.Join(dir, signalPrefix+providerID+signalSuffix)
}

// providerFromPath returns the provider id encoded in a signal file name.
func providerFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, signalPrefix) || !strings.HasSuffix(base, signalSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(base, signalPrefix), signalSuffix)
	return id, id != ""
}

// Preview keeps the first eight characters of a token.
func Preview(token string) string {
	r := []rune(token)
	if len(r) > previewLen {
		r = r[:previewLen]
	}
	return string(r) + "..."
}

// Hash is the 32-bit rolling hash h = h*31 + c over UTF-16 code units,
// rendered in base 36. Sessions compare it against their own token.
func Hash(token string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(token)) {
		h = h*31 + int32(c)
	}
	return strconv.FormatInt(int64(h), 36)
}
