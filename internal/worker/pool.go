package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/relayhub/fanout-gateway/internal/channel"
	"github.com/relayhub/fanout-gateway/internal/dispatcher"
	"github.com/relayhub/fanout-gateway/internal/events"
	"github.com/relayhub/fanout-gateway/internal/queue"
)

// Pool drains the work queue with a fixed set of goroutines. Each item
// is either a buyer delivery, handed to the dispatcher, or a business
// event, fanned out to subscriber webhooks by the notifier.
type Pool struct {
	q        *queue.Queue
	disp     *dispatcher.Dispatcher
	notifier *events.Notifier
	size     int
	logger   *zap.Logger
	wg       sync.WaitGroup
}

func NewPool(q *queue.Queue, disp *dispatcher.Dispatcher, notifier *events.Notifier, size int, logger *zap.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		q:        q,
		disp:     disp,
		notifier: notifier,
		size:     size,
		logger:   logger,
	}
}

// Start launches the workers. They run until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	p.logger.Info("worker pool started", zap.Int("workers", p.size))
}

// Wait blocks until every worker has observed cancellation and exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		item, ok := p.q.Dequeue(ctx)
		if !ok {
			p.logger.Info("worker stopping", zap.Int("worker_id", id))
			return
		}
		p.process(ctx, item)
	}
}

func (p *Pool) process(ctx context.Context, item queue.Item) {
	switch item.Kind {
	case queue.KindDelivery:
		res := p.disp.Send(ctx, item.Channel, channel.Outbound{
			Recipient: item.Recipient,
			Body:      item.Body,
		})
		if res.Err != nil {
			p.logger.Warn("background delivery failed",
				zap.String("recipient", item.Recipient),
				zap.Error(res.Err),
			)
		}
	case queue.KindEvent:
		p.notifier.Publish(ctx, item.Event, item.Payload)
	default:
		p.logger.Error("unknown queue item kind", zap.String("kind", string(item.Kind)))
	}
}
