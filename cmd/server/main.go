package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/tickerpulse/internal/broadcast"
	"github.com/pscheid92/tickerpulse/internal/config"
	"github.com/pscheid92/tickerpulse/internal/history"
	"github.com/pscheid92/tickerpulse/internal/logging"
	"github.com/pscheid92/tickerpulse/internal/redis"
	"github.com/pscheid92/tickerpulse/internal/server"
	"github.com/pscheid92/tickerpulse/internal/source"
	"github.com/pscheid92/tickerpulse/internal/subscription"
)

func main() {
	cfg := setupConfig()
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	redisClient := setupRedis(cfg)

	quoteClient := source.NewClient(cfg.QuoteAPIBaseURL, cfg.FetchTimeout)
	state := subscription.NewState(cfg.Symbols(), cfg.DefaultInterval)
	broadcaster := broadcast.NewBroadcaster(state, quoteClient, clockwork.NewRealClock(), cfg.MaxConnections)

	var historyCache goredis.Cmdable
	if redisClient != nil {
		historyCache = redisClient
	}
	historySvc := history.NewService(quoteClient, historyCache, cfg.HistoryCacheTTL)

	srv := server.NewServer(cfg, broadcaster, state, historySvc, redisClient)

	done := runGracefulShutdown(srv, broadcaster, redisClient)

	if err := srv.Start(); err != nil {
		slog.Info("Server stopped", "reason", err)
	}

	<-done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(cfg *config.Config) *goredis.Client {
	if cfg.RedisURL == "" {
		slog.Info("REDIS_URL not set, history cache disabled")
		return nil
	}

	client, err := redis.NewClient(context.Background(), cfg.RedisURL)
	if err != nil {
		if client == nil {
			slog.Error("Failed to create Redis client", "error", err)
			os.Exit(1)
		}
		slog.Warn("Redis unreachable at startup, history cache degraded", "error", err)
	}

	return client
}

func runGracefulShutdown(srv *server.Server, broadcaster *broadcast.Broadcaster, redisClient *goredis.Client) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		broadcaster.Stop()

		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				slog.Error("Redis close error", "error", err)
			}
		}

		close(done)
	}()

	return done
}
