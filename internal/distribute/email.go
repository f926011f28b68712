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

// EmailSender sends documents through a transactional email provider's HTTP
// API (Resend-compatible shape).
type EmailSender struct {
	apiKey     string
	baseURL    string
	from       string
	httpClient *http.Client
}

// NewEmailSender creates an EmailSender.
func NewEmailSender(apiKey, baseURL, from string, timeout time.Duration) *EmailSender {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &EmailSender{
		apiKey:  apiKey,
		baseURL: baseURL,
		from:    from,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send emails the document to the recipient. Provider failures are returned
// as errors with the provider's status captured; the caller records them as
// outcome detail and never propagates them.
func (s *EmailSender) Send(ctx context.Context, to string, summary Summary, document string) error {
	payload := map[string]any{
		"from":    s.from,
		"to":      []string{to},
		"subject": fmt.Sprintf("%s %s release notes", summary.RepoFullName, summary.TagName),
		"text":    document,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("email provider responded %s: %s", resp.Status, bytes.TrimSpace(detail))
	}
	return nil
}
