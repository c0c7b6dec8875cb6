package notify

import (
	"context"

	"github.com/salmonumbrella/llmctl/internal/session"
)

// SignalNotifier sends the reload signal to every live session process.
// Send failures are ignored; the signal file remains the fallback.
type SignalNotifier struct {
	alive func(pid int) bool
	send  func(pid int) error
}

// NewSignalNotifier uses session.ProcessAlive and the platform reload signal.
func NewSignalNotifier() *SignalNotifier {
	return &SignalNotifier{alive: session.ProcessAlive, send: sendReloadSignal}
}

func (n *SignalNotifier) Notify(ctx context.Context, _ string, sessions []session.Session, _ string) (int, error) {
	count := 0
	for _, s := range sessions {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if !n.alive(s.PID) {
			continue
		}
		_ = n.send(s.PID)
		count++
	}
	return count, nil
}
