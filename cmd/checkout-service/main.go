package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shoply/checkout-service/internal/cart"
	"github.com/shoply/checkout-service/internal/catalog"
	"github.com/shoply/checkout-service/internal/checkout"
	"github.com/shoply/checkout-service/internal/config"
	"github.com/shoply/checkout-service/internal/currency"
	"github.com/shoply/checkout-service/internal/db"
	"github.com/shoply/checkout-service/internal/events"
	httpapi "github.com/shoply/checkout-service/internal/http"
	"github.com/shoply/checkout-service/internal/metrics"
	"github.com/shoply/checkout-service/internal/order"
	"github.com/shoply/checkout-service/internal/payment"
	"github.com/shoply/checkout-service/internal/pricing"
	"github.com/shoply/checkout-service/internal/webhook"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conv := currency.DefaultConverter()

	var (
		cartStore cart.Reader
		products  catalog.Repository
		orders    order.Repository
		attempts  checkout.AttemptStore
	)
	switch cfg.Store {
	case config.StorePostgres:
		if cfg.RunMigrations {
			if err := db.RunMigrations(cfg.DatabaseURL, log); err != nil {
				log.Error("migrations failed", "error", err)
				os.Exit(1)
			}
		}
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		cartStore = cart.NewPostgresStore(pool)
		products = catalog.NewPostgresRepository(pool)
		orders = order.NewPostgresRepository(pool)
		attempts = checkout.NewPostgresAttemptStore(pool)
	default:
		cartStore = cart.NewMemoryStore()
		products = catalog.NewMemoryRepository()
		orders = order.NewMemoryRepository()
		attempts = checkout.NewMemoryAttemptStore()
		log.Info("running on in-memory stores")
	}

	var notifier order.Notifier = events.NopNotifier{}
	if cfg.AMQPURL != "" {
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			log.Error("connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		publisher, err := events.NewPublisher(conn, log)
		if err != nil {
			log.Error("open publisher channel", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		notifier = publisher
	}

	httpGateway, err := payment.NewHTTPGateway(cfg.GatewayBaseURL, cfg.GatewayAPIKey, nil)
	if err != nil {
		log.Error("invalid gateway config", "error", err)
		os.Exit(1)
	}
	var gateway payment.Gateway = payment.NewBreakerGateway(httpGateway)

	payments := payment.NewOrchestrator(orders, gateway, conv,
		cfg.SettlementCurrency, cfg.GatewayTimeout, notifier, log)
	orderSvc := order.NewService(orders, releaser{products}, notifier, log)
	webhooks := webhook.NewHandler(webhook.NewVerifier(cfg.WebhookSecret), payments, log)

	policy := pricing.ShippingPolicy{
		FlatFee:   currency.NewMoney(cfg.ShippingFlatFee, cfg.SettlementCurrency),
		FreeAbove: currency.NewMoney(cfg.FreeShippingAbove, cfg.SettlementCurrency),
	}
	checkoutSvc := checkout.NewService(
		cart.NewSnapshotter(cartStore, products),
		products, orders, payments, attempts,
		pricing.NewCalculator(conv), conv,
		policy, cfg.TaxRate, notifier, log,
	)

	m := metrics.NewServerMetrics("checkout")
	h := httpapi.NewHandler(checkoutSvc, orderSvc, products, payments, webhooks, conv, m, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpapi.NewRouter(h, m),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("checkout-service listening", "port", cfg.Port, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	cancel()
}

// releaser adapts the catalog repository to the order service's restock
// contract.
type releaser struct {
	products catalog.Repository
}

func (r releaser) ReleaseStock(ctx context.Context, items []order.Item) error {
	lines := make([]catalog.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, catalog.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return r.products.Release(ctx, lines)
}
