package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/relayhub/fanout-gateway/internal/domain"
)

// TelegramSender delivers through the Telegram Bot API: sendMessage for
// text, sendPhoto when an image is attached. Inline keyboards ride
// along as reply_markup in both cases.
type TelegramSender struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewTelegramSender(baseURL, token string, timeout time.Duration) *TelegramSender {
	return &TelegramSender{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (s *TelegramSender) Name() domain.Channel { return domain.ChannelTelegram }

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

func (s *TelegramSender) Send(ctx context.Context, out Outbound) (string, error) {
	method := "sendMessage"
	payload := map[string]any{
		"chat_id": out.Recipient,
		"text":    out.Body,
	}
	if out.ImageURL != "" {
		method = "sendPhoto"
		payload = map[string]any{
			"chat_id": out.Recipient,
			"photo":   out.ImageURL,
			"caption": out.Body,
		}
	}
	if len(out.Buttons) > 0 {
		payload["reply_markup"] = map[string]any{"inline_keyboard": out.Buttons}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", &SendError{Code: CodeBadPayload, Detail: err.Error()}
	}

	url := fmt.Sprintf("%s/bot%s/%s", s.baseURL, s.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &SendError{Code: CodeBadPayload, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &SendError{Code: CodeTransport, Detail: err.Error()}
	}
	defer resp.Body.Close()

	var tr telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", &SendError{Code: CodeBadStatus, Detail: fmt.Sprintf("status %d, undecodable body", resp.StatusCode)}
	}
	if !tr.OK {
		return "", &SendError{
			Code:   CodeAPIError,
			Detail: fmt.Sprintf("telegram error %d: %s", tr.ErrorCode, tr.Description),
		}
	}

	return strconv.FormatInt(tr.Result.MessageID, 10), nil
}

// compile-time check that TelegramSender implements Sender
var _ Sender = (*TelegramSender)(nil)
