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

// WhatsAppSender delivers through an Evolution-style WhatsApp gateway:
// POST /message/sendText/{instance} (or sendMedia with an image) with
// the gateway key in the apikey header.
type WhatsAppSender struct {
	baseURL    string
	apiKey     string
	instance   string
	httpClient *http.Client
}

func NewWhatsAppSender(baseURL, apiKey, instance string, timeout time.Duration) *WhatsAppSender {
	return &WhatsAppSender{
		baseURL:  baseURL,
		apiKey:   apiKey,
		instance: instance,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (s *WhatsAppSender) Name() domain.Channel { return domain.ChannelWhatsApp }

type whatsAppResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
	Message string `json:"message"`
}

func (s *WhatsAppSender) Send(ctx context.Context, out Outbound) (string, error) {
	endpoint := fmt.Sprintf("%s/message/sendText/%s", s.baseURL, s.instance)
	payload := map[string]any{
		"delay":       500,
		"number":      out.Recipient,
		"text":        out.Body,
		"linkPreview": true,
	}
	if out.ImageURL != "" {
		endpoint = fmt.Sprintf("%s/message/sendMedia/%s", s.baseURL, s.instance)
		payload = map[string]any{
			"delay":     500,
			"number":    out.Recipient,
			"mediatype": "image",
			"media":     out.ImageURL,
			"caption":   out.Body,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", &SendError{Code: CodeBadPayload, Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &SendError{Code: CodeBadPayload, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &SendError{Code: CodeTransport, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &SendError{Code: CodeBadStatus, Detail: fmt.Sprintf("gateway status %d", resp.StatusCode)}
	}

	var wr whatsAppResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		// 2xx with an undecodable body still counts as delivered.
		return "", nil
	}
	return wr.Key.ID, nil
}

// compile-time check that WhatsAppSender implements Sender
var _ Sender = (*WhatsAppSender)(nil)
