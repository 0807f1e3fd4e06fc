package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mesaqr/api/internal/config"
	"github.com/mesaqr/api/internal/events"
	"github.com/mesaqr/api/internal/logger"
	"github.com/mesaqr/api/internal/ratelimit"
	"github.com/mesaqr/api/internal/router"
	"github.com/mesaqr/api/internal/ws"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "mesaqr-api")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	log.Info("connected to database")

	// The hub outlives the signal: it keeps serving publishes from requests
	// still draining in Shutdown and is stopped afterwards.
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := ws.NewHub()
	go hub.Run(hubCtx)

	var (
		publisher events.Publisher  = events.NewHubPublisher(hub)
		limiter   ratelimit.Limiter = ratelimit.NewMemoryLimiter(cfg.OrderRateLimit, cfg.OrderRateWindow)
	)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	// Without Redis the instance still works on its own: events stay local
	// and order submissions are limited per process.
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, running single-instance", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	} else {
		bus := events.NewRedisBus(rdb, log.Named("events"))
		publisher = bus
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.OrderRateLimit, cfg.OrderRateWindow, log.Named("ratelimit"))
		go func() {
			if err := bus.Relay(hubCtx, hub); err != nil {
				log.Error("event relay stopped", zap.Error(err))
			}
		}()
	}

	if cfg.OrderRateLimit <= 0 {
		log.Info("order rate limiting disabled")
		limiter = ratelimit.Noop{}
	}

	r := router.New(router.Deps{
		Config:    cfg,
		Logger:    log,
		Pool:      pool,
		Hub:       hub,
		Limiter:   limiter,
		Publisher: publisher,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	stopHub()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
