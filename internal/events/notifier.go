package events

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relayhub/fanout-gateway/internal/domain"
	"github.com/relayhub/fanout-gateway/internal/repository"
)

// envelope is the body posted to every subscriber endpoint.
type envelope struct {
	Event     domain.EventType `json:"event"`
	Payload   json.RawMessage  `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
}

// Notifier fans a business event out to every active subscriber
// endpoint registered for it, logging each delivery. A failing endpoint
// never aborts delivery to the others, and deliveries are not retried.
type Notifier struct {
	endpoints  repository.EndpointRepository
	httpClient *http.Client
	logger     *zap.Logger
}

func NewNotifier(endpoints repository.EndpointRepository, timeout time.Duration, logger *zap.Logger) *Notifier {
	return &Notifier{
		endpoints: endpoints,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Publish delivers the event to all subscribed endpoints sequentially.
func (n *Notifier) Publish(ctx context.Context, evt domain.EventType, payload json.RawMessage) {
	subs, err := n.endpoints.FindActive(ctx, evt)
	if err != nil {
		n.logger.Error("failed to load subscriber endpoints",
			zap.String("event", string(evt)), zap.Error(err))
		return
	}

	body, err := json.Marshal(envelope{Event: evt, Payload: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		n.logger.Error("failed to marshal event envelope", zap.Error(err))
		return
	}

	for _, sub := range subs {
		n.deliver(ctx, evt, sub, body)
	}
}

func (n *Notifier) deliver(ctx context.Context, evt domain.EventType, sub *domain.Endpoint, body []byte) {
	l := &domain.DeliveryLog{
		ID:         uuid.New().String(),
		EndpointID: sub.ID,
		Event:      evt,
		CreatedAt:  time.Now().UTC(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		l.Response = err.Error()
	} else {
		req.Header.Set("Content-Type", "application/json")
		resp, err := n.httpClient.Do(req)
		if err != nil {
			l.Response = err.Error()
		} else {
			l.HTTPStatus = resp.StatusCode
			// Subscriber response bodies are kept for debugging, capped
			// so a misbehaving endpoint cannot bloat the log table.
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			l.Response = string(b)
			resp.Body.Close()
		}
	}

	if l.HTTPStatus == 0 || l.HTTPStatus >= 400 {
		n.logger.Warn("event webhook delivery failed",
			zap.String("event", string(evt)),
			zap.String("url", sub.URL),
			zap.Int("status", l.HTTPStatus),
		)
	}

	if err := n.endpoints.LogDelivery(ctx, l); err != nil {
		n.logger.Error("failed to write delivery log", zap.Error(err))
	}
}
