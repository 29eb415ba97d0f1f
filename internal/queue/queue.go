package queue

import (
	"context"
	"encoding/json"

	"github.com/relayhub/fanout-gateway/internal/domain"
)

// Kind tells the worker what an item carries.
type Kind string

const (
	// KindDelivery is a buyer-facing message (redemption codes, payment
	// instructions). Served before event webhooks.
	KindDelivery Kind = "delivery"
	// KindEvent is a business event fanned out to subscriber webhooks.
	KindEvent Kind = "event"
)

// Item is one unit of background work.
type Item struct {
	Kind Kind

	// Delivery fields
	Channel   domain.Channel
	Recipient string
	Body      string

	// Event fields
	Event   domain.EventType
	Payload json.RawMessage
}

// Queue dispatches items to one of two buffered channels by urgency.
//
// Buyer deliveries are time-sensitive (someone just paid and is waiting
// for their code); subscriber webhooks are best-effort bookkeeping.
// Workers dequeue via the double-select pattern, which guarantees that
// urgent items are always served before normal ones while still letting
// the worker sleep instead of spinning when both tiers are empty.
type Queue struct {
	urgent chan Item
	normal chan Item
}

func New() *Queue {
	return &Queue{
		urgent: make(chan Item, 1000),
		normal: make(chan Item, 5000),
	}
}

// Enqueue places an item on its tier. It is non-blocking: if the target
// channel is full, ErrQueueFull is returned immediately rather than
// blocking the caller.
func (q *Queue) Enqueue(item Item) error {
	target := q.normal
	if item.Kind == KindDelivery {
		target = q.urgent
	}
	select {
	case target <- item:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Dequeue blocks until an item is available or ctx is cancelled.
//
// Urgency is guaranteed by a double select:
//  1. A non-blocking select checks the urgent channel first. If an item
//     is waiting there, it is returned immediately.
//  2. Only when urgent is empty does the goroutine enter a fair blocking
//     select across both tiers plus the done signal.
//
// Returns (Item{}, false) when ctx is cancelled (graceful shutdown signal).
func (q *Queue) Dequeue(ctx context.Context) (Item, bool) {
	select {
	case item := <-q.urgent:
		return item, true
	default:
	}

	select {
	case item := <-q.urgent:
		return item, true
	case item := <-q.normal:
		return item, true
	case <-ctx.Done():
		return Item{}, false
	}
}

// Depths returns the current number of items waiting in each tier.
// Used by the metrics handler for the queue-depth snapshot.
func (q *Queue) Depths() (urgent, normal int) {
	return len(q.urgent), len(q.normal)
}
