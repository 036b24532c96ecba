// Package notify posts best-effort text notifications to a LINE WORKS
// style incoming webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const notifyTimeout = 3 * time.Second

type Notifier struct {
	httpClient *http.Client
	webhookURL string
	logger     *zap.Logger
}

func New(webhookURL string, logger *zap.Logger) *Notifier {
	return &Notifier{
		httpClient: &http.Client{Timeout: notifyTimeout},
		webhookURL: webhookURL,
		logger:     logger,
	}
}

// Configured reports whether a webhook URL was provided.
func (n *Notifier) Configured() bool { return n.webhookURL != "" }

// Notify posts {"text": ...} to the webhook. Delivery is best effort:
// there is no retry, and callers typically log and move on.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	if n.webhookURL == "" {
		return fmt.Errorf("notify webhook url is not configured")
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Warn("notification delivery failed", zap.Error(err))
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.Warn("notification rejected", zap.Int("status", resp.StatusCode))
		return fmt.Errorf("send notification: status %d", resp.StatusCode)
	}
	return nil
}
