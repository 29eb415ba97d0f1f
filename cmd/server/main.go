package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/relayhub/fanout-gateway/internal/allocator"
	"github.com/relayhub/fanout-gateway/internal/api"
	"github.com/relayhub/fanout-gateway/internal/channel"
	"github.com/relayhub/fanout-gateway/internal/config"
	"github.com/relayhub/fanout-gateway/internal/db"
	"github.com/relayhub/fanout-gateway/internal/dispatcher"
	"github.com/relayhub/fanout-gateway/internal/domain"
	"github.com/relayhub/fanout-gateway/internal/events"
	"github.com/relayhub/fanout-gateway/internal/fanout"
	"github.com/relayhub/fanout-gateway/internal/ledger"
	"github.com/relayhub/fanout-gateway/internal/metrics"
	"github.com/relayhub/fanout-gateway/internal/payment"
	"github.com/relayhub/fanout-gateway/internal/purchase"
	"github.com/relayhub/fanout-gateway/internal/queue"
	"github.com/relayhub/fanout-gateway/internal/ratelimiter"
	"github.com/relayhub/fanout-gateway/internal/repository"
	"github.com/relayhub/fanout-gateway/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	policy := domain.WindowPolicy(cfg.UsageWindow)
	if !policy.IsValid() {
		logger.Fatal("invalid USAGE_WINDOW", zap.String("value", cfg.UsageWindow))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- repositories ----
	usageRepo := repository.NewPgUsageRepository(pool)
	contactRepo := repository.NewPgContactRepository(pool)
	messageRepo := repository.NewPgMessageRepository(pool)
	catalogRepo := repository.NewPgCatalogRepository(pool)
	saleRepo := repository.NewPgSaleRepository(pool)
	accountRepo := repository.NewPgAccountRepository(pool)
	endpointRepo := repository.NewPgEndpointRepository(pool)

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	q := queue.New()
	limiter := ratelimiter.New(cfg.RateLimit)

	onSent, onFailed := m.DispatcherHooks()
	disp := dispatcher.New(messageRepo, limiter, cfg.SendTimeout, logger,
		dispatcher.MetricHooks{OnSent: onSent, OnFailed: onFailed},
		channel.NewTelegramSender(cfg.TelegramAPIURL, cfg.TelegramBotToken, cfg.SendTimeout),
		channel.NewWhatsAppSender(cfg.WhatsAppAPIURL, cfg.WhatsAppAPIKey, cfg.WhatsAppInstance, cfg.SendTimeout),
		channel.NewWebhookSender(cfg.WebhookURL, cfg.SendTimeout),
	)

	led := ledger.New(usageRepo, contactRepo, policy, cfg.KnownQuota, cfg.UnknownQuota, logger)

	orch := fanout.New(led, disp, cfg.MaxRecipients, cfg.FanoutConcurrency, logger)
	orch.OnSkipped = m.OnSkipped

	alloc := allocator.New(catalogRepo, logger)
	alloc.OnAllocated = m.OnAllocated

	pay := payment.NewOpenPixClient(cfg.PaymentAPIURL, cfg.PaymentAPIKey, cfg.PaymentTimeout)
	notifier := events.NewNotifier(endpointRepo, cfg.SendTimeout, logger)

	purchases := purchase.NewService(saleRepo, accountRepo, catalogRepo, alloc, pay, q,
		cfg.ChargeExpiry, cfg.CheckoutURL, logger)

	// ---- background workers ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	workers := worker.NewPool(q, disp, notifier, cfg.DeliveryWorkers, logger)
	workers.Start(workerCtx)

	expiry := worker.NewExpiryWorker(purchases, cfg.ExpiryInterval, logger)
	expiry.Start(workerCtx)

	// Queue depth gauge sampler.
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				m.SetQueueDepths(q.Depths())
			}
		}
	}()

	// ---- HTTP server ----
	router := api.NewRouter(orch, purchases, led, messageRepo, q, reg, cfg.APIToken, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal all background goroutines to stop.
	cancelWorkers()

	// 3. Wait for in-flight work to finish.
	workers.Wait()
	expiry.Wait()

	logger.Info("server stopped cleanly")
}
