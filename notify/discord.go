// Package notify posts pipeline events to Discord webhooks. Delivery is best
// effort: a failed webhook never fails the action it announces.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/modsieve/modsieve/config"
	"github.com/modsieve/modsieve/errors"
	"github.com/modsieve/modsieve/internal/httpclient"
)

// discord caps message content at 2000 chars
const maxContentLen = 2000

// Notifier posts messages to the configured webhooks.
type Notifier struct {
	cfg    config.NotifyConfig
	client *httpclient.Client
	logger *zap.SugaredLogger
}

// New creates a notifier. With notifications disabled every call is a no-op.
func New(cfg config.NotifyConfig, logger *zap.SugaredLogger) *Notifier {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		cfg:    cfg,
		client: httpclient.NewWithOptions(timeout, httpclient.Options{AllowLocal: true}),
		logger: logger,
	}
}

// Item posts a per-item notification to the item webhook.
func (n *Notifier) Item(ctx context.Context, content string) {
	n.post(ctx, n.cfg.Webhook, content)
}

// Summary posts a periodic summary to the summary webhook, falling back to
// the item webhook when no separate one is configured.
func (n *Notifier) Summary(ctx context.Context, content string) {
	url := n.cfg.SummaryWebhook
	if url == "" {
		url = n.cfg.Webhook
	}
	n.post(ctx, url, content)
}

func (n *Notifier) post(ctx context.Context, url, content string) {
	if !n.cfg.Enabled || url == "" || content == "" {
		return
	}
	if utf8.RuneCountInString(content) > maxContentLen {
		content = string([]rune(content)[:maxContentLen-1]) + "…"
	}

	if err := n.send(ctx, url, content); err != nil {
		n.logger.Warnw("Webhook delivery failed", "error", err)
	}
}

func (n *Notifier) send(ctx context.Context, url, content string) error {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return errors.Wrap(err, "failed to marshal webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "webhook request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Newf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
