package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/weerhq/weer/config"
	apprepository "github.com/weerhq/weer/internal/app/repository"
	appservice "github.com/weerhq/weer/internal/app/service"
	"github.com/weerhq/weer/internal/infra/logger"
	infraPostgres "github.com/weerhq/weer/internal/infra/postgres"
	infraRedis "github.com/weerhq/weer/internal/infra/redis"
	"go.uber.org/zap"
)

// The janitor runs as its own process so lease reclamation keeps working
// through API deployments. Redis elects one active instance per interval.
func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	store := apprepository.NewStore(gormDB)

	janitor := appservice.NewJanitor(log, store, redisClient, cfg.Codes.JanitorInterval)
	janitor.Start()
	log.Info("Janitor started", zap.Duration("interval", cfg.Codes.JanitorInterval))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	janitor.Stop()
	log.Info("Janitor stopped")
}
