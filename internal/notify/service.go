package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/salmonumbrella/llmctl/internal/session"
)

// SessionSource lists live sessions of a provider.
type SessionSource interface {
	SessionsFor(providerID string) ([]session.Session, error)
}

// Result summarizes a token switch notification.
type Result struct {
	Success          bool   `json:"success"`
	NotifiedSessions int    `json:"notifiedSessions"`
	Message          string `json:"message"`
}

// Service fans a token switch out to the signal file, process signals and
// any extra notifiers.
type Service struct {
	sessions SessionSource
	file     *FileNotifier
	signals  Notifier
	extra    []Notifier
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSignalNotifier replaces the process signal notifier.
func WithSignalNotifier(n Notifier) ServiceOption {
	return func(s *Service) { s.signals = n }
}

// WithNotifiers adds best-effort notifiers such as webhooks.
func WithNotifiers(n ...Notifier) ServiceOption {
	return func(s *Service) { s.extra = append(s.extra, n...) }
}

// WithServiceLogger sets the logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService builds a Service over a session source and a signal directory.
func NewService(sessions SessionSource, file *FileNotifier, opts ...ServiceOption) *Service {
	s := &Service{sessions: sessions, file: file, signals: NewSignalNotifier()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// NotifyTokenSwitch tells every live session of providerID about newToken.
func (s *Service) NotifyTokenSwitch(ctx context.Context, providerID, newToken string) Result {
	sessions, err := s.sessions.SessionsFor(providerID)
	s.notifyExtra(ctx, providerID, sessions, newToken)
	if err != nil {
		return Result{Message: fmt.Sprintf("failed to read sessions: %v", err)}
	}
	if len(sessions) == 0 {
		return Result{Message: fmt.Sprintf("no active sessions for %s", providerID)}
	}

	if _, err := s.file.Notify(ctx, providerID, sessions, newToken); err != nil {
		return Result{Message: fmt.Sprintf("failed to notify sessions: %v", err)}
	}

	notified, err := s.signals.Notify(ctx, providerID, sessions, newToken)
	if err != nil {
		s.logger.Warn("signal delivery interrupted", "provider", providerID, "error", err)
	}

	return Result{
		Success:          true,
		NotifiedSessions: notified,
		Message:          fmt.Sprintf("notified %d active sessions to reload the token", notified),
	}
}

// notifyExtra runs the extra notifiers. They fire even when the provider has
// no live sessions.
func (s *Service) notifyExtra(ctx context.Context, providerID string, sessions []session.Session, newToken string) {
	for _, n := range s.extra {
		if _, err := n.Notify(ctx, providerID, sessions, newToken); err != nil {
			s.logger.Warn("notification failed", "provider", providerID, "error", err)
		}
	}
}

// CheckTokenUpdateSignal reports a pending update for providerID.
func (s *Service) CheckTokenUpdateSignal(providerID string) Update {
	return s.file.Check(providerID)
}

// ClearTokenUpdateSignal removes the update file for providerID.
func (s *Service) ClearTokenUpdateSignal(providerID string) error {
	return s.file.Clear(providerID)
}
