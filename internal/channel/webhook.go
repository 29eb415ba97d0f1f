package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/relayhub/fanout-gateway/internal/domain"
)

// WebhookSender POSTs the message as raw JSON to a configured URL.
// The base URL is injected from config so tests can point to a local mock.
type WebhookSender struct {
	baseURL    string
	httpClient *http.Client
}

func NewWebhookSender(baseURL string, timeout time.Duration) *WebhookSender {
	return &WebhookSender{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (s *WebhookSender) Name() domain.Channel { return domain.ChannelWebhook }

type webhookRequest struct {
	Recipient string            `json:"recipient"`
	Message   string            `json:"message"`
	Image     string            `json:"image,omitempty"`
	Buttons   [][]domain.Button `json:"buttons,omitempty"`
}

type webhookResponse struct {
	MessageID string `json:"messageId"`
}

func (s *WebhookSender) Send(ctx context.Context, out Outbound) (string, error) {
	body, err := json.Marshal(webhookRequest{
		Recipient: out.Recipient,
		Message:   out.Body,
		Image:     out.ImageURL,
		Buttons:   out.Buttons,
	})
	if err != nil {
		return "", &SendError{Code: CodeBadPayload, Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", &SendError{Code: CodeBadPayload, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &SendError{Code: CodeTransport, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &SendError{Code: CodeBadStatus, Detail: fmt.Sprintf("webhook status %d", resp.StatusCode)}
	}

	var wr webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return "", nil
	}
	return wr.MessageID, nil
}

// compile-time check that WebhookSender implements Sender
var _ Sender = (*WebhookSender)(nil)
