package domain

import "time"

// Channel is the delivery channel for an outbound message.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelWebhook  Channel = "webhook"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelTelegram, ChannelWhatsApp, ChannelWebhook:
		return true
	}
	return false
}

// MessageStatus tracks the outcome of a single delivery attempt.
type MessageStatus string

const (
	MessageSent     MessageStatus = "sent"
	MessageFailed   MessageStatus = "failed"
	MessageReceived MessageStatus = "received"
)

// Button is one inline-keyboard button. Either URL or CallbackData is set.
type Button struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

// Message is the append-only record of one delivery attempt.
// Written by the dispatcher after every attempt, success or failure,
// and never updated afterwards.
type Message struct {
	ID            string        `json:"id"`
	Recipient     string        `json:"recipient"`
	Channel       Channel       `json:"channel"`
	Body          string        `json:"body"`
	ImageURL      *string       `json:"image_url,omitempty"`
	Buttons       [][]Button    `json:"buttons,omitempty"`
	Status        MessageStatus `json:"status"`
	ErrorCode     *string       `json:"error_code,omitempty"`
	ErrorDetail   *string       `json:"error_detail,omitempty"`
	ProviderMsgID *string       `json:"provider_message_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// MessageFilter holds query parameters for paginated message listing.
type MessageFilter struct {
	Status    *MessageStatus
	Channel   *Channel
	Recipient *string
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
}
