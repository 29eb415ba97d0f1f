package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/relayhub/fanout-gateway/internal/purchase"
)

// ExpiryWorker periodically sweeps pending sales whose charge window
// has passed and marks them expired. It is the safety net for the case
// where the payment provider never sends the expiration webhook.
type ExpiryWorker struct {
	svc      *purchase.Service
	interval time.Duration
	logger   *zap.Logger
	done     chan struct{}
}

func NewExpiryWorker(svc *purchase.Service, interval time.Duration, logger *zap.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		svc:      svc,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (w *ExpiryWorker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.logger.Info("expiry worker started", zap.Duration("interval", w.interval))

		for {
			select {
			case <-ctx.Done():
				w.logger.Info("expiry worker stopping")
				return
			case <-ticker.C:
				n, err := w.svc.ExpireOverdue(ctx)
				if err != nil {
					w.logger.Error("expiry sweep failed", zap.Error(err))
					continue
				}
				if n > 0 {
					w.logger.Info("expired overdue sales", zap.Int("count", n))
				}
			}
		}
	}()
}

// Wait blocks until the sweep loop has exited.
func (w *ExpiryWorker) Wait() {
	<-w.done
}
