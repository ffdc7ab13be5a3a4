package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JoseManaure/portfolio-server/internal/retry"
)

// Webhook posts events as JSON to an automation endpoint, typically an n8n
// workflow that forwards to Telegram.
type Webhook struct {
	URL    string
	Client *http.Client
	Retry  retry.Policy
}

// NewWebhook applies a short retry budget; webhook delivery is best-effort
// and should fail fast rather than hold goroutines.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
		Retry:  retry.Policy{MaxAttempts: 3, PerAttemptTimeout: 10 * time.Second},
	}
}

// Send implements Notifier. Non-2xx responses are failures with the body
// captured into the error detail.
func (w *Webhook) Send(ctx context.Context, title, message string) error {
	if w.URL == "" {
		return fmt.Errorf("notify: webhook URL not configured")
	}

	body, err := json.Marshal(Event{Title: title, Message: message})
	if err != nil {
		return err
	}

	return retry.Do(ctx, w.Retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
			return fmt.Errorf("notify: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
		}
		return nil
	})
}
