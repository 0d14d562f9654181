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

	"auction-settlement/internal/api/handlers"
	"auction-settlement/internal/config"
	"auction-settlement/internal/infrastructure/redis"
	"auction-settlement/internal/infrastructure/websocket"
	"auction-settlement/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	defer log.Sync()
	log.Info("Starting notification relay", "queue", cfg.Notifications.RedisQueue, "port", cfg.Relay.Port)

	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", "error", err)
	}

	connManager := websocket.NewConnectionManager(log)
	queue := redis.NewNotificationQueue(rdb, cfg.Notifications.RedisQueue, log)
	relay := websocket.NewRelay(queue, connManager, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Relay stopped", "error", err)
		}
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Relay.Port),
		Handler:           handlers.NewWebSocketHandlers(connManager, log).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Relay server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down notification relay...")
	cancel()
	<-relayDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Relay server forced to shutdown", "error", err)
	}
	if err := connManager.CloseAll(); err != nil {
		log.Error("Failed to close connections", "error", err)
	}

	log.Info("Notification relay stopped")
}
