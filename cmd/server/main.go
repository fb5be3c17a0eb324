package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront/internal/auth"
	carthandler "storefront/internal/cart/handler"
	cartservice "storefront/internal/cart/service"
	"storefront/internal/cart/store/snapshot"
	"storefront/internal/checkout"
	"storefront/internal/events"
	"storefront/internal/platform/config"
	"storefront/internal/platform/httpserver"
	"storefront/internal/platform/logger"
	"storefront/internal/platform/metrics"
	platformredis "storefront/internal/platform/redis"
	"storefront/internal/settings"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	log := logger.New()
	cfg := config.FromEnv(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	provider := settings.NewProvider(cfg.SettingsURL, settings.Snapshot{
		VATRatePercent:        cfg.DefaultVATRatePercent,
		ShippingCost:          cfg.DefaultShippingCost,
		FreeShippingThreshold: cfg.DefaultFreeShippingThreshold,
	}, settings.WithLogger(log), settings.WithMetrics(m))
	go provider.StartRefreshing(ctx, cfg.SettingsRefreshInterval)

	store, cleanup, err := buildSnapshotStore(ctx, cfg, log)
	if err != nil {
		log.Error("snapshot store setup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	cart, err := cartservice.New(ctx, store, provider,
		cartservice.WithLogger(log), cartservice.WithMetrics(m))
	if err != nil {
		log.Error("cart setup failed", "error", err)
		os.Exit(1)
	}

	orders := checkout.NewHTTPOrderService(cfg.OrdersURL, checkout.WithClientLogger(log))

	coordinatorOpts := []checkout.Option{
		checkout.WithLogger(log),
		checkout.WithMetrics(m),
	}
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := events.NewPublisher(cfg.KafkaBrokers, cfg.OrderEventTopic, log)
		if err != nil {
			log.Error("order event publisher setup failed", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		coordinatorOpts = append(coordinatorOpts, checkout.WithEventSink(publisher))
	}

	coordinator, err := checkout.NewCoordinator(cart, auth.Vetted(auth.FromRequest()), orders, coordinatorOpts...)
	if err != nil {
		log.Error("checkout setup failed", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	carthandler.New(cart, coordinator, log).Register(r)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, r)

	log.Info("starting storefront cart engine", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// buildSnapshotStore picks the configured persistence backend: Postgres when
// POSTGRES_URL is set, else Redis when REDIS_URL is set, else process
// memory.
func buildSnapshotStore(ctx context.Context, cfg config.Config, log *slog.Logger) (snapshot.Store, func(), error) {
	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		store := snapshot.NewPostgres(pool, cfg.CartKey, log)
		if err := store.InitSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info("cart snapshots in postgres", "key", cfg.CartKey)
		return store, pool.Close, nil
	}

	if cfg.RedisURL != "" {
		client, err := platformredis.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		log.Info("cart snapshots in redis", "key", cfg.CartKey)
		return snapshot.NewRedis(client, cfg.CartKey, log), func() { _ = client.Close() }, nil
	}

	log.Info("cart snapshots in process memory")
	return snapshot.NewMemory(log), func() {}, nil
}
