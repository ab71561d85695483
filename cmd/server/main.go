package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/chunkgame/server/internal/bus"
	"github.com/chunkgame/server/internal/chunk"
	"github.com/chunkgame/server/internal/config"
	"github.com/chunkgame/server/internal/mining"
	"github.com/chunkgame/server/internal/noise"
	"github.com/chunkgame/server/internal/player"
	"github.com/chunkgame/server/internal/session"
	"github.com/chunkgame/server/internal/terrain"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.Logging.Level)

	log.Info("starting chunk server",
		"port", cfg.Server.Port,
		"seed", cfg.World.Seed,
		"workers", cfg.World.WorkerPoolSize,
		"debug_reset", cfg.World.DebugReset)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := connectStore(ctx, cfg)
	defer pool.Close()
	store := chunk.NewStore(pool)
	if err := store.Migrate(ctx); err != nil {
		log.Fatal("failed to run store migrations", "error", err)
	}

	rdb := connectRedis(cfg)
	defer rdb.Close()

	if cfg.World.DebugReset {
		log.Warn("debug reset enabled, wiping persisted world state")
		if err := store.Truncate(ctx); err != nil {
			log.Error("failed to truncate chunk store", "error", err)
		}
		if err := chunk.PurgeDebugKeys(ctx, rdb); err != nil {
			log.Error("failed to purge cached state", "error", err)
		}
	}

	gen := terrain.NewGenerator(noise.New(cfg.World.Seed))
	workers := chunk.NewPool(gen, cfg.World.WorkerPoolSize)
	defer workers.Close()

	cache := chunk.NewCache(rdb)
	eventBus := bus.New(rdb)
	orchestrator := chunk.NewOrchestrator(cache, store, workers, eventBus)
	registry := player.NewRegistry(rdb)
	miner := mining.NewService(orchestrator)

	hub := session.NewHub(registry, eventBus, orchestrator, miner, workers)
	go hub.Run(ctx)
	go registry.RefreshLoop(ctx)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := store.Ping(req.Context()); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := cache.Ping(req.Context()); err != nil {
			http.Error(w, "cache unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/ws", hub.ServeWS)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		log.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
	}
	hub.CloseAll()
	log.Info("stopped")
}

// connectStore retries the database connection; an unreachable store after
// all retries is the single fatal boot condition.
func connectStore(ctx context.Context, cfg *config.Config) *pgxpool.Pool {
	var pool *pgxpool.Pool
	var err error
	for attempt := 1; attempt <= cfg.Store.ConnectRetry; attempt++ {
		pool, err = pgxpool.New(ctx, cfg.Store.URL)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool
			}
			pool.Close()
		}
		log.Warn("store connection failed, retrying",
			"attempt", attempt,
			"max_attempts", cfg.Store.ConnectRetry,
			"error", err)
		select {
		case <-ctx.Done():
			log.Fatal("interrupted while connecting to store")
		case <-time.After(cfg.Store.ConnectDelay):
		}
	}
	log.Fatal("failed to connect to store", "error", err)
	return nil
}

func connectRedis(cfg *config.Config) *redis.Client {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatal("invalid redis url", "url", cfg.Redis.URL, "error", err)
	}
	return redis.NewClient(opts)
}

func setupLogging(level string) {
	log.SetReportTimestamp(true)
	log.SetTimeFormat(time.Kitchen)
	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
		log.SetReportCaller(true)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}
