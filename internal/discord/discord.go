// Package discord posts the daily brief to a Discord webhook.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	// maxContentLength keeps payloads under Discord's 2000-character
	// message limit, leaving room for the code fence and notice.
	maxContentLength = 1900

	truncationNotice = "\n\n[report truncated to fit the message limit]"
)

// Client posts messages to one webhook URL.
type Client struct {
	webhookURL string
	httpClient *http.Client
}

// New returns a Client for webhookURL.
func New(webhookURL string) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SendReport posts report wrapped in a markdown code fence, truncating
// long reports with a notice. Discord answers a successful webhook
// execution with 204.
func (c *Client) SendReport(ctx context.Context, report string) error {
	if r := []rune(report); len(r) > maxContentLength {
		report = string(r[:maxContentLength]) + truncationNotice
	}

	payload, err := json.Marshal(map[string]string{
		"content": "```markdown\n" + report + "\n```",
	})
	if err != nil {
		return fmt.Errorf("discord: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("discord: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord: webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
