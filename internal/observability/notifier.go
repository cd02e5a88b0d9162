package observability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"agentherd/pkg/models"
)

// Notifier delivers terminal-transition events to an external sink. Each
// task produces exactly one event; retry and backoff are the sink's
// responsibility, not the engine's.
type Notifier interface {
	NotifyTerminal(event models.TerminalEvent) error
}

// webhookNotifier POSTs terminal events as JSON to a webhook URL.
type webhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a Notifier that POSTs to the given URL.
func NewWebhookNotifier(url string) Notifier {
	return &webhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// NotifyTerminal sends one terminal-transition record.
func (n *webhookNotifier) NotifyTerminal(event models.TerminalEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling terminal event: %w", err)
	}

	resp, err := n.client.Post(n.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("posting terminal event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// NopNotifier returns a Notifier that drops events. Used when no webhook is
// configured.
func NopNotifier() Notifier {
	return nopNotifier{}
}

type nopNotifier struct{}

func (nopNotifier) NotifyTerminal(models.TerminalEvent) error { return nil }
