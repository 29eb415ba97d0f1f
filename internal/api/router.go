package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/relayhub/fanout-gateway/internal/api/handler"
	apimw "github.com/relayhub/fanout-gateway/internal/api/middleware"
	"github.com/relayhub/fanout-gateway/internal/fanout"
	"github.com/relayhub/fanout-gateway/internal/ledger"
	"github.com/relayhub/fanout-gateway/internal/purchase"
	"github.com/relayhub/fanout-gateway/internal/queue"
	"github.com/relayhub/fanout-gateway/internal/repository"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	orch *fanout.Orchestrator,
	purchases *purchase.Service,
	usage *ledger.Ledger,
	messages repository.MessageRepository,
	q *queue.Queue,
	reg prometheus.Gatherer,
	apiToken string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1 << 20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	bh := handler.NewBroadcastHandler(orch, logger)
	ch := handler.NewChargeHandler(purchases, logger)
	ph := handler.NewPaymentWebhookHandler(purchases, logger)
	msgh := handler.NewMessageHandler(messages, logger)
	uh := handler.NewUsageHandler(usage, logger)
	mh := handler.NewMetricsHandler(q)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// The payment provider cannot send our bearer token, so its
		// webhook stays outside the authenticated group.
		r.Post("/webhooks/payment", ph.Receive)

		// JSON metrics snapshot
		r.Get("/metrics", mh.GetMetrics)

		r.Group(func(r chi.Router) {
			r.Use(apimw.BearerAuth(apiToken))

			r.Post("/broadcast", bh.Create)
			r.Post("/charges", ch.Create)
			r.Post("/purchases/balance", ch.PurchaseWithBalance)
			r.Get("/messages", msgh.List)
			r.Get("/usage/{recipient}", uh.Get)
		})
	})

	return r
}
