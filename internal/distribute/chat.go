package distribute

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ChatSender posts documents to incoming chat webhooks (Slack-compatible
// payload shape).
type ChatSender struct {
	httpClient *http.Client
}

// NewChatSender creates a ChatSender with the given per-call timeout.
func NewChatSender(timeout time.Duration) *ChatSender {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &ChatSender{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send posts the document to the webhook URL. Any non-2xx response or network
// error is a failure; the response status and a snippet of its body are
// returned in the error so the outcome row can record them.
func (s *ChatSender) Send(ctx context.Context, webhookURL string, summary Summary, document string) error {
	payload := map[string]any{
		"text": fmt.Sprintf("*%s %s released*\n%s\n\n%s",
			summary.RepoFullName, summary.TagName, summary.ReleaseURL, document),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post chat webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("chat webhook responded %s: %s", resp.Status, bytes.TrimSpace(detail))
	}
	return nil
}
