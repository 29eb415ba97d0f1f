package domain

import "time"

// EventType names a business event fanned out to subscriber webhooks.
type EventType string

const (
	EventSaleCreated      EventType = "sale.created"
	EventPaymentConfirmed EventType = "payment.confirmed"
	EventPaymentExpired   EventType = "payment.expired"
)

// Endpoint is a subscriber URL registered for one or more event types.
type Endpoint struct {
	ID        string      `json:"id"`
	URL       string      `json:"url"`
	Events    []EventType `json:"events"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`
}

// Subscribed reports whether the endpoint listens for the given event.
func (e *Endpoint) Subscribed(evt EventType) bool {
	for _, s := range e.Events {
		if s == evt {
			return true
		}
	}
	return false
}

// DeliveryLog records one webhook delivery attempt to one endpoint.
type DeliveryLog struct {
	ID         string    `json:"id"`
	EndpointID string    `json:"endpoint_id"`
	Event      EventType `json:"event"`
	HTTPStatus int       `json:"http_status"`
	Response   string    `json:"response,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
