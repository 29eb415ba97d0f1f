package fanout

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/relayhub/fanout-gateway/internal/channel"
	"github.com/relayhub/fanout-gateway/internal/dispatcher"
	"github.com/relayhub/fanout-gateway/internal/domain"
	"github.com/relayhub/fanout-gateway/internal/ledger"
)

// Orchestrator fans one message out to a list of recipients: it checks
// the usage ledger per recipient, dispatches the permitted sends with
// bounded concurrency, and aggregates the per-recipient outcomes.
//
// Quota-denied recipients are counted as skipped and never reach the
// dispatcher, so no message record is written for them.
type Orchestrator struct {
	ledger        *ledger.Ledger
	disp          *dispatcher.Dispatcher
	maxRecipients int
	concurrency   int
	logger        *zap.Logger

	// Optional metric hook for quota-denied recipients (nil = no-op).
	OnSkipped func(ch domain.Channel)
}

func New(
	l *ledger.Ledger,
	d *dispatcher.Dispatcher,
	maxRecipients, concurrency int,
	logger *zap.Logger,
) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		ledger:        l,
		disp:          d,
		maxRecipients: maxRecipients,
		concurrency:   concurrency,
		logger:        logger,
	}
}

// Broadcast validates the whole request before any side effect, then
// processes every recipient. Per-recipient failures never abort the
// batch; they surface in the summary instead.
func (o *Orchestrator) Broadcast(ctx context.Context, req domain.BroadcastRequest) (*domain.BroadcastSummary, error) {
	if err := req.Validate(o.maxRecipients); err != nil {
		return nil, err
	}

	ch := req.Platform
	if ch == "" {
		ch = domain.ChannelTelegram
	}

	details := make([]domain.BroadcastDetail, len(req.Recipients))

	// Semaphore channel bounds in-flight sends; the WaitGroup joins them.
	sem := make(chan struct{}, o.concurrency)
	var wg sync.WaitGroup

	for i, recipient := range req.Recipients {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, recipient string) {
			defer wg.Done()
			defer func() { <-sem }()
			details[i] = o.sendOne(ctx, ch, recipient, req)
		}(i, recipient)
	}
	wg.Wait()

	summary := &domain.BroadcastSummary{
		Total:   len(details),
		Details: details,
	}
	for _, d := range details {
		switch d.Outcome {
		case domain.OutcomeSent:
			summary.Successful++
		case domain.OutcomeFailed:
			summary.Failed++
		case domain.OutcomeSkipped:
			summary.Skipped++
		}
	}
	return summary, nil
}

func (o *Orchestrator) sendOne(ctx context.Context, ch domain.Channel, recipient string, req domain.BroadcastRequest) domain.BroadcastDetail {
	decision, err := o.ledger.Reserve(ctx, recipient)
	if err != nil {
		// Ledger failed closed; classify as skipped like any denial.
		if o.OnSkipped != nil {
			o.OnSkipped(ch)
		}
		return domain.BroadcastDetail{
			Recipient: recipient,
			Outcome:   domain.OutcomeSkipped,
			Error:     domain.ErrUpstreamUnavailable.Error(),
		}
	}
	if !decision.Allowed {
		if o.OnSkipped != nil {
			o.OnSkipped(ch)
		}
		return domain.BroadcastDetail{
			Recipient: recipient,
			Outcome:   domain.OutcomeSkipped,
			Error:     domain.ErrQuotaExceeded.Error(),
		}
	}

	res := o.disp.Send(ctx, ch, channel.Outbound{
		Recipient: recipient,
		Body:      req.Message,
		ImageURL:  req.Image,
		Buttons:   req.Buttons,
	})
	if res.Err != nil {
		return domain.BroadcastDetail{
			Recipient: recipient,
			Outcome:   domain.OutcomeFailed,
			MessageID: res.MessageID,
			Error:     res.Err.Error(),
		}
	}

	return domain.BroadcastDetail{
		Recipient: recipient,
		Outcome:   domain.OutcomeSent,
		MessageID: res.MessageID,
	}
}
