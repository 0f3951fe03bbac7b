package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"devpulse/configs"
	v1 "devpulse/internal/api/v1"
	"devpulse/internal/api/v1/handlers"
	"devpulse/internal/cache"
	"devpulse/internal/dashboard"
	"devpulse/internal/github"
	"devpulse/internal/repository"
	myws "devpulse/internal/websocket"
	"devpulse/pkg/database"
	"devpulse/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const realtimeBuffer = 256

func main() {
	cfg := configs.LoadConfig()

	// Initialize loggers
	if err := logger.InitLoggers(cfg.LogDir); err != nil {
		log.Fatalf("init loggers: %v", err)
	}
	defer logger.SyncLoggers()
	logger.SystemLogger.Info("Starting application", zap.String("time", time.Now().Format(time.RFC3339)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectDB(cfg)
	if err != nil {
		logger.ErrorLogger.Error("Database connection failed", zap.Error(err))
		log.Fatalf("connect database: %v", err)
	}
	defer db.Close()
	logger.SystemLogger.Info("Database Connected")

	if err := repository.CreateTableIfNotExists(ctx, db); err != nil {
		logger.ErrorLogger.Error("Schema setup failed", zap.Error(err))
		log.Fatalf("create tables: %v", err)
	}

	// Redis is optional; without it nothing is cached.
	var redisClient *redis.Client
	if rc, err := database.ConnectRedis(ctx, cfg); err != nil {
		logger.SystemLogger.Warn("Redis unavailable, caching disabled", zap.Error(err))
	} else {
		redisClient = rc
		defer redisClient.Close()
		logger.SystemLogger.Info("Redis Connected")
	}
	c := cache.New(redisClient)

	store := repository.NewStore(db)
	dash := dashboard.NewService(store, c)
	gh := github.NewService(store, c, github.Config{
		ClientID:      cfg.GitHubClientID,
		ClientSecret:  cfg.GitHubClientSecret,
		RedirectURL:   cfg.GitHubRedirectURL,
		EncryptionKey: cfg.EncryptionKey,
		EmailFallback: cfg.GitHubEmailFallback,
	})

	hub := myws.NewHub(realtimeBuffer)
	go hub.Run(ctx)

	app := v1.NewApp(handlers.New(cfg, store, dash, gh, hub))

	go func() {
		<-ctx.Done()
		logger.SystemLogger.Info("Shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.ErrorLogger.Error("Shutdown failed", zap.Error(err))
		}
	}()

	logger.SystemLogger.Info("Application ready", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.ErrorLogger.Error("Application failed to start", zap.Error(err))
	}
}
