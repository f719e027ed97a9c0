package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hashforward/trading-engine/internal/chain"
	"github.com/hashforward/trading-engine/internal/config"
	"github.com/hashforward/trading-engine/internal/exposure"
	"github.com/hashforward/trading-engine/internal/logging"
	"github.com/hashforward/trading-engine/internal/metrics"
	"github.com/hashforward/trading-engine/internal/orderbook"
	"github.com/hashforward/trading-engine/internal/store"
	"github.com/hashforward/trading-engine/internal/trade"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Dir)
	slog.SetDefault(logger)

	// --- Indexer read source ---
	var src store.Source
	var cleanup []func()

	if cfg.Indexer.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.Indexer.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		src = store.NewPostgresSource(pool)
		slog.Info("connected to indexer database")

		// Wrap with Redis read-through cache if configured.
		if cfg.Indexer.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.Indexer.RedisURL)
			if err != nil {
				slog.Error("invalid redis url", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			src = store.NewCachedSource(src, rdb, time.Duration(cfg.Indexer.CacheTTLSec)*time.Second)
			slog.Info("redis contract-series cache enabled")
		}
	} else {
		slog.Warn("indexer database_url not set, using in-memory source (dev only)")
		src = store.NewMemorySource()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Collaborators ---
	book := orderbook.NewClient(cfg.Relayer.URL, time.Duration(cfg.Relayer.TimeoutSec)*time.Second)
	pair := orderbook.PairFingerprint{
		MakerAssetData: cfg.Relayer.MakerAssetData,
		TakerAssetData: cfg.Relayer.TakerAssetData,
	}

	var gateway chain.Gateway
	if cfg.Chain.GatewayURL != "" {
		gateway = chain.NewClient(cfg.Chain.GatewayURL, time.Duration(cfg.Chain.TimeoutSec)*time.Second)
	} else {
		slog.Warn("chain gateway_url not set, using fake gateway (dev only)")
		gateway = chain.NewFakeGateway()
	}

	limiter := exposure.NewLimiter(cfg.Limits.MaxPerInstance, cfg.Limits.MaxOverlapping)

	// --- WebSocket hub + service + refresh poller ---
	wsHub := trade.NewWSHub()
	go wsHub.Run()

	svc := trade.NewService(book, pair, gateway, src, limiter, wsHub)

	pollCtx, stopPoller := context.WithCancel(context.Background())
	defer stopPoller()
	poller := trade.NewPoller(svc, wsHub, time.Duration(cfg.Refresh.IntervalSec)*time.Second)
	go poller.Run(pollCtx)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"trading-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for position refresh pushes.
		r.Get("/ws", wsHub.HandleWS)

		// Order book + quoting.
		r.Get("/orderbook", svc.GetOrderbook)
		r.Post("/quotes", svc.CreateQuote)

		// Maker offers.
		r.Post("/offers", svc.CreateOffer)
		r.Post("/orders", svc.SubmitOrder)

		// Position accounting + redemption.
		r.Get("/positions/{address}", svc.GetPositions)
		r.Get("/positions/{address}/redemption-plan", svc.GetRedemptionPlan)
		r.Post("/redeem/{address}", svc.Redeem)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("trading-engine listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopPoller()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down trading-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("trading-engine stopped")
}
