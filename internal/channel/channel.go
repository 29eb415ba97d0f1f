package channel

import (
	"context"

	"github.com/relayhub/fanout-gateway/internal/domain"
)

// Outbound is the payload a channel adapter delivers to one recipient.
type Outbound struct {
	Recipient string
	Body      string
	ImageURL  string
	Buttons   [][]domain.Button
}

// SendError is a structured delivery failure: a stable machine code
// plus a human description, distinct from a raw transport error string.
type SendError struct {
	Code   string
	Detail string
}

func (e *SendError) Error() string {
	return e.Code + ": " + e.Detail
}

// Error codes shared by all adapters.
const (
	CodeTransport  = "transport_error"
	CodeBadStatus  = "bad_status"
	CodeAPIError   = "api_error"
	CodeBadPayload = "bad_payload"
)

// Sender abstracts delivery through one messaging gateway.
// Mocking this interface in tests gives full control over gateway
// behaviour without making real HTTP calls.
type Sender interface {
	Name() domain.Channel
	Send(ctx context.Context, out Outbound) (providerMsgID string, err error)
}
