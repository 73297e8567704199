package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go-icewatch/types"
)

// WebhookClient posts alert payloads to the chat webhook. Failures are
// classified: rate limits and server errors retry, other client errors
// drop the attempt.
type WebhookClient struct {
	url    string
	client *http.Client
}

// NewWebhookClient builds a client with the per-attempt timeout.
func NewWebhookClient(url string, timeout time.Duration) *WebhookClient {
	return &WebhookClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Send posts one payload. The idempotency token rides in a header so a
// retried dispatch can be deduplicated downstream.
func (w *WebhookClient) Send(ctx context.Context, idempotencyToken string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return types.Permanentf("encoding webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(raw))
	if err != nil {
		return types.Permanentf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", idempotencyToken)

	resp, err := w.client.Do(req)
	if err != nil {
		return types.Transientf("posting webhook: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return types.Transientf("webhook returned %s", resp.Status)
	default:
		return types.Permanentf("webhook returned %s", resp.Status)
	}
}
