package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/relayhub/fanout-gateway/internal/domain"
)

// ChannelLimiters holds one token bucket limiter per delivery channel.
// This is the process-level outbound throttle toward the gateways; the
// per-recipient quota lives in the usage ledger, not here.
// Burst is set equal to the rate so no extra burst capacity is allowed
// beyond the configured per-second maximum.
type ChannelLimiters struct {
	limiters map[domain.Channel]*rate.Limiter
}

// New creates a ChannelLimiters with ratePerSec tokens per second per channel.
func New(ratePerSec int) *ChannelLimiters {
	r := rate.Limit(ratePerSec)
	burst := ratePerSec // burst == rate: prevents any "saved up" burst above the limit

	return &ChannelLimiters{
		limiters: map[domain.Channel]*rate.Limiter{
			domain.ChannelTelegram: rate.NewLimiter(r, burst),
			domain.ChannelWhatsApp: rate.NewLimiter(r, burst),
			domain.ChannelWebhook:  rate.NewLimiter(r, burst),
		},
	}
}

// Wait blocks until the channel's limiter grants a token.
// Called by the dispatcher immediately before each outbound send.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (cl *ChannelLimiters) Wait(ctx context.Context, ch domain.Channel) error {
	return cl.limiters[ch].Wait(ctx)
}
