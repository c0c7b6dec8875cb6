package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/nicholas-fedor/shoutrrr"

	"github.com/salmonumbrella/llmctl/internal/logging"
	"github.com/salmonumbrella/llmctl/internal/session"
)

// Sender abstracts message dispatch so webhooks can be tested without
// hitting real services.
type Sender interface {
	Send(url, message string) error
}

// ShoutrrrSender dispatches via shoutrrr service URLs.
type ShoutrrrSender struct{}

func (ShoutrrrSender) Send(url, message string) error {
	return shoutrrr.Send(url, message)
}

// WebhookNotifier posts a one-line message to each configured URL.
type WebhookNotifier struct {
	urls   []string
	sender Sender
	label  func(providerID, newToken string) string
}

// NewWebhookNotifier sends to urls. A nil sender uses shoutrrr. label renders
// the provider part of the message; nil uses the bare provider id.
func NewWebhookNotifier(urls []string, sender Sender, label func(providerID, newToken string) string) *WebhookNotifier {
	if sender == nil {
		sender = ShoutrrrSender{}
	}
	if label == nil {
		label = func(providerID, _ string) string { return providerID }
	}
	return &WebhookNotifier{urls: urls, sender: sender, label: label}
}

// Message is the text sent for a switch.
func (n *WebhookNotifier) Message(providerID, newToken string) string {
	return "llmctl: token switched for " + n.label(providerID, newToken)
}

// Notify returns the number of URLs that accepted the message. Failures are
// joined, with credentials in URLs redacted.
func (n *WebhookNotifier) Notify(ctx context.Context, providerID string, _ []session.Session, newToken string) (int, error) {
	msg := n.Message(providerID, newToken)
	sent := 0
	var errs []error
	for i, url := range n.urls {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := n.sender.Send(url, msg); err != nil {
			errs = append(errs, fmt.Errorf("webhook %d: %s", i+1, logging.Redact(err.Error())))
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}
