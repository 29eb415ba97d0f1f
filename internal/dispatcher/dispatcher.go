package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relayhub/fanout-gateway/internal/channel"
	"github.com/relayhub/fanout-gateway/internal/domain"
	"github.com/relayhub/fanout-gateway/internal/ratelimiter"
	"github.com/relayhub/fanout-gateway/internal/repository"
)

// MetricHooks carries the metric callback functions injected by main.
// Using a struct keeps the dispatcher constructor signature clean.
type MetricHooks struct {
	OnSent   func(ch domain.Channel, latency time.Duration)
	OnFailed func(ch domain.Channel)
}

// Result is the outcome of one delivery attempt.
// MessageID refers to the message record written for the attempt.
type Result struct {
	Success       bool
	MessageID     string
	ProviderMsgID string
	Err           error
}

// Dispatcher sends one message to one recipient through the adapter
// registered for the channel, and writes one message record per
// attempt, success or failure. It never retries; retries, if any, are
// the caller's concern.
type Dispatcher struct {
	senders  map[domain.Channel]channel.Sender
	messages repository.MessageRepository
	limiter  *ratelimiter.ChannelLimiters
	timeout  time.Duration
	logger   *zap.Logger
	hooks    MetricHooks
}

func New(
	messages repository.MessageRepository,
	limiter *ratelimiter.ChannelLimiters,
	timeout time.Duration,
	logger *zap.Logger,
	hooks MetricHooks,
	senders ...channel.Sender,
) *Dispatcher {
	if hooks.OnSent == nil {
		hooks.OnSent = func(domain.Channel, time.Duration) {}
	}
	if hooks.OnFailed == nil {
		hooks.OnFailed = func(domain.Channel) {}
	}
	m := make(map[domain.Channel]channel.Sender, len(senders))
	for _, s := range senders {
		m[s.Name()] = s
	}
	return &Dispatcher{
		senders:  m,
		messages: messages,
		limiter:  limiter,
		timeout:  timeout,
		logger:   logger,
		hooks:    hooks,
	}
}

// Send delivers to one recipient. Every attempt that reaches an adapter
// produces exactly one message record; an unregistered channel is a
// caller error and produces none.
func (d *Dispatcher) Send(ctx context.Context, ch domain.Channel, out channel.Outbound) Result {
	sender, ok := d.senders[ch]
	if !ok {
		return Result{Err: domain.ErrInvalidChannel}
	}

	if err := d.limiter.Wait(ctx, ch); err != nil {
		// ctx cancelled while waiting for a token; nothing was attempted.
		return Result{Err: err}
	}

	start := time.Now()
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	providerMsgID, sendErr := sender.Send(sendCtx, out)
	elapsed := time.Since(start)

	rec := d.record(ctx, ch, out, providerMsgID, sendErr)

	if sendErr != nil {
		d.hooks.OnFailed(ch)
		d.logger.Warn("send failed",
			zap.String("channel", string(ch)),
			zap.String("recipient", out.Recipient),
			zap.Error(sendErr),
		)
		return Result{MessageID: rec.ID, Err: sendErr}
	}

	d.hooks.OnSent(ch, elapsed)
	return Result{Success: true, MessageID: rec.ID, ProviderMsgID: providerMsgID}
}

// record writes the append-only message record for one attempt.
// A record-write failure is logged but does not change the send outcome.
func (d *Dispatcher) record(ctx context.Context, ch domain.Channel, out channel.Outbound, providerMsgID string, sendErr error) *domain.Message {
	m := &domain.Message{
		ID:        uuid.New().String(),
		Recipient: out.Recipient,
		Channel:   ch,
		Body:      out.Body,
		Buttons:   out.Buttons,
		Status:    domain.MessageSent,
		CreatedAt: time.Now().UTC(),
	}
	if out.ImageURL != "" {
		m.ImageURL = &out.ImageURL
	}
	if providerMsgID != "" {
		m.ProviderMsgID = &providerMsgID
	}

	if sendErr != nil {
		m.Status = domain.MessageFailed
		code, detail := classify(sendErr)
		m.ErrorCode = &code
		m.ErrorDetail = &detail
	}

	if err := d.messages.Create(ctx, m); err != nil {
		d.logger.Error("failed to write message record",
			zap.String("recipient", out.Recipient), zap.Error(err))
	}
	return m
}

// classify splits a delivery error into a stable code and a description.
func classify(err error) (code, detail string) {
	var se *channel.SendError
	if errors.As(err, &se) {
		return se.Code, se.Detail
	}
	return channel.CodeTransport, err.Error()
}
