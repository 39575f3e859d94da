package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/cfnotifier/cfnotifier/internal/types"
)

// Webhook posts notifications as embed payloads
type Webhook struct {
	url    string
	client *resty.Client
	logger zerolog.Logger
}

type webhookPayload struct {
	Embeds []types.Embed `json:"embeds"`
}

// NewWebhook creates a webhook channel for url
func NewWebhook(url string, timeout time.Duration, logger zerolog.Logger) *Webhook {
	return &Webhook{
		url: url,
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		logger: logger.With().Str("channel", "webhook").Logger(),
	}
}

// Name implements Channel
func (w *Webhook) Name() string {
	return "webhook"
}

// Send implements Channel. Any status >= 400 is a delivery failure.
func (w *Webhook) Send(ctx context.Context, n types.Notification) error {
	embed := n.Embed
	if embed == nil {
		embed = &types.Embed{Title: n.Title, Description: n.Body}
	}

	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(webhookPayload{Embeds: []types.Embed{*embed}}).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}

	w.logger.Debug().
		Int("status", resp.StatusCode()).
		Str("notification_id", n.ID).
		Msg("Webhook delivered")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
