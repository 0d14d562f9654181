package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-settlement/internal/api/handlers"
	"auction-settlement/internal/config"
	"auction-settlement/internal/domain"
	"auction-settlement/internal/infrastructure/leader"
	"auction-settlement/internal/infrastructure/memory"
	"auction-settlement/internal/infrastructure/metrics"
	mongostore "auction-settlement/internal/infrastructure/mongo"
	"auction-settlement/internal/infrastructure/mysql"
	"auction-settlement/internal/infrastructure/notify"
	"auction-settlement/internal/infrastructure/rabbitmq"
	"auction-settlement/internal/infrastructure/redis"
	"auction-settlement/internal/services"
	"auction-settlement/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	defer log.Sync()
	log.Info("Starting auction closer", "config", cfg.GetConfigString())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, closeStore, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open storage", "driver", cfg.Storage.Driver, "error", err)
	}
	defer closeStore()

	var rdb *redisClient.Client
	if cfg.Leader.Enabled || cfg.Notifications.Transport == config.TransportRedis {
		rdb = redisClient.NewClient(&redisClient.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("Failed to connect to Redis", "error", err)
		}
		log.Info("Connected to Redis", "address", cfg.Redis.Address)
	}

	dispatcher, closeDispatcher, err := openDispatcher(cfg, rdb, log)
	if err != nil {
		log.Fatal("Failed to open notification transport", "transport", cfg.Notifications.Transport, "error", err)
	}
	defer closeDispatcher()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	closureMetrics := metrics.NewPrometheus(registry)

	var leaderElection domain.LeaderElection
	if cfg.Leader.Enabled {
		leaderElection = leader.NewRedisLeaderElection(rdb, leader.DefaultKey, cfg.Leader.TTL)
	}

	coordinator := services.NewClosingCoordinator(
		store,
		services.NewWinnerResolver(),
		services.NewOrderSynthesizer(),
		services.NewInventoryAdjuster(store, log),
		dispatcher,
		closureMetrics,
		log,
	)

	var reconciler *services.Reconciler
	reconcileSchedule := ""
	if cfg.Reconcile.Enabled {
		reconciler = services.NewReconciler(store, coordinator, services.ReconcilerOptions{
			Lookback:  cfg.Reconcile.Lookback,
			BatchSize: cfg.Reconcile.BatchSize,
			Grace:     2 * cfg.Closing.AuctionTimeout,
		}, closureMetrics, log)
		reconcileSchedule = cfg.Reconcile.Schedule
	}

	scheduler := services.NewCronAuctionScheduler(
		services.NewAuctionScanner(store, cfg.Closing.BatchSize, closureMetrics, log),
		coordinator,
		reconciler,
		leaderElection,
		services.SchedulerOptions{
			ClosingSchedule:   cfg.Closing.Schedule,
			ReconcileSchedule: reconcileSchedule,
			Workers:           cfg.Closing.Workers,
			AuctionTimeout:    cfg.Closing.AuctionTimeout,
			InstanceID:        cfg.Instance.ID,
		},
		log,
	)

	if err := scheduler.Start(context.Background()); err != nil {
		log.Fatal("Failed to start scheduler", "error", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			log.Debug("Request received", "method", req.Method, "path", req.URL.Path, "remote_addr", c.RealIP())
			return next(c)
		}
	})

	var runner handlers.ReconcileRunner
	if reconciler != nil {
		runner = reconciler
	}
	admin := handlers.NewAdminHandler(scheduler, runner, leaderElection, cfg.Instance.ID, registry, log)
	admin.SetRunTimeout(cfg.Server.RunTimeout)
	admin.Register(e)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting admin server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction closer...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := scheduler.Stop(); err != nil {
		log.Error("Failed to stop scheduler", "error", err)
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Auction closer stopped")
}

func openStorage(ctx context.Context, cfg *config.Config, log logger.Logger) (domain.StorageGateway, func(), error) {
	switch cfg.Storage.Driver {
	case config.StorageMySQL:
		db, err := sql.Open("mysql", cfg.MySQL.DSN)
		if err != nil {
			return nil, nil, err
		}
		db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		if cfg.MySQL.AutoMigrate {
			if err := mysql.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, nil, err
			}
			log.Info("MySQL schema migrated")
		}
		log.Info("Connected to MySQL")

		return mysql.NewGateway(db), func() {
			if err := db.Close(); err != nil {
				log.Error("Failed to close MySQL connection", "error", err)
			}
		}, nil

	case config.StorageMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, nil, err
		}
		if err := client.Ping(ctx, nil); err != nil {
			client.Disconnect(context.Background())
			return nil, nil, err
		}

		gw := mongostore.NewGateway(client.Database(cfg.Mongo.Database))
		if err := gw.EnsureIndexes(ctx); err != nil {
			client.Disconnect(context.Background())
			return nil, nil, err
		}
		log.Info("Connected to MongoDB", "database", cfg.Mongo.Database)

		return gw, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Error("Failed to disconnect MongoDB", "error", err)
			}
		}, nil

	default:
		log.Warn("Using in-memory storage; state is lost on restart")
		return memory.NewStore(), func() {}, nil
	}
}

func openDispatcher(cfg *config.Config, rdb *redisClient.Client, log logger.Logger) (domain.NotificationDispatcher, func(), error) {
	switch cfg.Notifications.Transport {
	case config.TransportRedis:
		return redis.NewNotificationQueue(rdb, cfg.Notifications.RedisQueue, log), func() {}, nil

	case config.TransportAMQP:
		pub, err := rabbitmq.NewPublisher(cfg.Notifications.AMQPURL, cfg.Notifications.AMQPExchange, log)
		if err != nil {
			return nil, nil, err
		}
		return pub, func() {
			if err := pub.Close(); err != nil {
				log.Error("Failed to close RabbitMQ publisher", "error", err)
			}
		}, nil

	default:
		return notify.NewLogDispatcher(log), func() {}, nil
	}
}
