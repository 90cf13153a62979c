package main

import (
	"context"
	"log"
	"time"

	"hrchat/config"
	"hrchat/internal/auth"
	"hrchat/internal/events"
	"hrchat/internal/handler"
	"hrchat/internal/middleware"
	"hrchat/internal/redis"
	"hrchat/internal/repository"
	"hrchat/internal/server"
	"hrchat/internal/services"
	"hrchat/internal/websocket"
	"hrchat/pkg/database"
	"hrchat/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokens := auth.NewTokenService(cfg.JWTSecret, time.Duration(cfg.JWTExpiryMin)*time.Minute)

	var (
		store  repository.Store
		health func(context.Context) error
	)
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := database.Connect(ctx, cfg.DBURL, l)
		if err != nil {
			log.Fatalf("Database connection failed: %v", err)
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		store = repository.NewPostgresStore(pool)
		health = func(ctx context.Context) error { return database.HealthCheck(ctx, pool) }
	default:
		store = repository.NewMemoryStore()
	}

	var (
		bus     events.Bus
		limiter middleware.MessageLimiter
	)
	switch cfg.BusDriver {
	case "redis":
		rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			log.Fatalf("Redis connection failed: %v", err)
		}
		defer rdb.Close()
		bus = events.NewRedisEventBus(redis.NewPublisher(rdb), redis.NewSubscriber(rdb))
		limiter = redis.NewRateLimiter(rdb, redis.DefaultRateLimitConfig())
	default:
		bus = events.NewLocalBus()
	}
	l.Info("gateway starting",
		zap.String("store", cfg.StoreDriver),
		zap.String("bus", cfg.BusDriver))

	hub := websocket.NewHub(l)
	go hub.Run(ctx)
	go func() {
		if err := websocket.NewBridge(bus, hub).Run(ctx); err != nil && ctx.Err() == nil {
			l.Error("event bridge stopped", zap.Error(err))
		}
	}()

	chatService := services.NewChatService(store, bus, l)

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Chat: handler.NewChatHandler(chatService),
		WS:   websocket.NewHandler(tokens, hub, chatService, cfg.WSEventsPerSec, l),
	}, server.Deps{
		Tokens:    tokens,
		Directory: chatService,
		Limiter:   limiter,
		Health:    health,
	})

	if err := srv.Start(); err != nil {
		l.Error("server stopped", zap.Error(err))
	}
}
