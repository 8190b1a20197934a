package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/cart"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/catalog"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/checkout"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/config"
	delivery "github.com/egannguyen/go-kafka-ecommerce/storefront/internal/delivery/http"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/messaging"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/messaging/kafka"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/pricing"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/reconcile"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository/memory"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository/postgres"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/session"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/storeapi"
)

func main() {
	slog.SetLogLoggerLevel(slog.LevelDebug)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Database ---
	var (
		eventStore  repository.EventStore
		submissions repository.SubmissionRepository
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.InitDB(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("Failed to init database", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		eventStore = postgres.NewEventStore(db)
		submissions = postgres.NewSubmissionRepository(db)
	} else {
		slog.Info("DATABASE_URL not set, carts are kept in memory")
		eventStore = memory.NewEventStore()
		submissions = memory.NewSubmissionRepository()
	}

	// --- Kafka ---
	var publisher messaging.Publisher
	var broker kafka.Broker
	if len(cfg.KafkaBrokers) > 0 {
		broker = kafka.NewKafkaBroker(cfg.KafkaBrokers)
		defer broker.Close()
		publisher = broker
	}

	// --- Backend API & catalog ---
	api := storeapi.New(cfg.APIBaseURL, cfg.APITimeout, storeapi.WithRetry(cfg.APIRetries, 0))
	cat := catalog.New()
	reloadCatalog(ctx, api, cat)

	engine, err := pricing.NewEngine(pricing.Config{Installments: cfg.Installments, DiscountPercent: cfg.DiscountPercent})
	if err != nil {
		slog.Error("Failed to init pricing", "err", err)
		os.Exit(1)
	}

	// --- Sessions ---
	var store session.Store
	if cfg.RedisURL != "" {
		client, err := session.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("Failed to init redis", "err", err)
			os.Exit(1)
		}
		defer client.Close()
		store = session.NewRedisStore(client)
	} else {
		slog.Info("REDIS_URL not set, sessions are kept in memory")
		store = session.NewMemoryStore()
	}
	auth := session.AuthFunc(func(ctx context.Context, email, password string) (string, entity.User, error) {
		res, err := api.Login(ctx, email, password)
		if err != nil {
			return "", entity.User{}, err
		}
		return res.Token, res.User, nil
	})
	sessions := session.NewManager(store, auth, cfg.SessionTTL)

	// --- Services ---
	carts := cart.NewService(eventStore, cat, publisher)
	reconciler := reconcile.New(api,
		reconcile.WithTimeout(cfg.ValidationTimeout),
		reconcile.WithConcurrency(cfg.ValidationConcurrency),
	)
	checkoutSvc := checkout.NewService(carts, reconciler, api, submissions, publisher)

	// --- HTTP API ---
	handler := delivery.NewHandler(cat, engine, carts, checkoutSvc, sessions, api)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           otelhttp.NewHandler(delivery.EnableCORS(mux), "storefront"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// --- Start everything ---
	if broker != nil {
		go broker.Consume(ctx, messaging.TopicStockUpdates, cfg.KafkaGroupID, messaging.StockUpdateHandler(cat))
		slog.Info("Kafka stock consumer started", "topic", messaging.TopicStockUpdates)
	}

	if cfg.CatalogReload > 0 {
		go func() {
			ticker := time.NewTicker(cfg.CatalogReload)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					reloadCatalog(ctx, api, cat)
				}
			}
		}()
	}

	if cfg.CartCacheIdle > 0 {
		go func() {
			ticker := time.NewTicker(cfg.CartCacheIdle / 2)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := carts.Sweep(cfg.CartCacheIdle); n > 0 {
						slog.Info("Dropped idle carts from cache", "count", n, "cached", carts.Cached())
					}
				}
			}
		}()
	}

	go func() {
		slog.Info("HTTP server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	httpServer.Shutdown(shutdownCtx)
}

// reloadCatalog replaces the catalog with the backend's current products. A
// failed reload keeps the previous contents.
func reloadCatalog(ctx context.Context, api *storeapi.Client, cat *catalog.Catalog) {
	products, err := api.ListProducts(ctx, "")
	if err != nil {
		slog.Error("Failed to load catalog", "err", err)
		return
	}
	cat.Load(products)
}
