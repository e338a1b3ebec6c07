package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/weerhq/weer/config"
	appmodel "github.com/weerhq/weer/internal/app/model"
	apprepository "github.com/weerhq/weer/internal/app/repository"
	appserver "github.com/weerhq/weer/internal/app/server"
	appservice "github.com/weerhq/weer/internal/app/service"
	httpUtil "github.com/weerhq/weer/internal/http/util"
	"github.com/weerhq/weer/internal/infra/logger"
	infraNATS "github.com/weerhq/weer/internal/infra/nats"
	infraPostgres "github.com/weerhq/weer/internal/infra/postgres"
	infraPrometheus "github.com/weerhq/weer/internal/infra/prometheus"
	infraRedis "github.com/weerhq/weer/internal/infra/redis"
	"go.uber.org/zap"
)

const (
	sessionTokenTTL = 30 * 24 * time.Hour
	authTokenTTL    = 24 * time.Hour
	resolveCacheTTL = 5 * time.Minute

	// Bloom filter sizing for the literal-code lookup path.
	expectedCodes = 10_000_000
	filterFPRate  = 0.01
)

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

	log.Info("Configuration loaded successfully",
		zap.String("addr", cfg.Server.Addr),
		zap.String("domain", cfg.Server.Domain),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Int("redis_port", cfg.Redis.Port),
		zap.String("nats_host", cfg.NATS.Host),
		zap.Int("nats_port", cfg.NATS.Port),
		zap.Duration("ultra_ttl", cfg.Codes.UltraTTL),
		zap.Duration("digit_ttl", cfg.Codes.DigitTTL),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB,
		&appmodel.Link{},
		&appmodel.UltraSlot{},
		&appmodel.DigitLease{},
		&appmodel.Username{},
		&appmodel.Session{},
	); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	store := apprepository.NewStore(gormDB)

	if err := store.UltraSlots().SeedInventory(ctx); err != nil {
		log.Fatal("Failed to seed ultra slot inventory", zap.Error(err))
	}
	log.Info("Ultra slot inventory ready")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	natsConn, js, err := infraNATS.Connect(cfg.NATS)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Drain()
	log.Info("Connected to NATS successfully", zap.Bool("jetstream_ready", js != nil))

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	filter := appservice.NewCodeFilter(expectedCodes, filterFPRate)
	if err := filter.Seed(ctx, store); err != nil {
		log.Fatal("Failed to seed code filter", zap.Error(err))
	}

	classic := appservice.NewClassicGenerator(store)
	ultra := appservice.NewUltraPool(store, cfg.Codes.UltraTTL)
	digit := appservice.NewDigitGenerator(store, cfg.Codes.DigitTTL)
	usernames := appservice.NewUsernameService(store, cfg.Codes.UsernameRetention)
	cache := appservice.NewResolveCache(redisClient, resolveCacheTTL)
	linkService := appservice.NewLinkService(store, classic, ultra, digit, usernames, filter, cache)

	visitPublisher := appservice.NewVisitPublisher(js)
	visitConsumer := appservice.NewVisitConsumer(js, log, store)
	if err := visitConsumer.Start(); err != nil {
		log.Fatal("Failed to start visit consumer", zap.Error(err))
	}

	secret := []byte(cfg.Server.SessionSecret)
	server := appserver.New(appserver.Dependencies{
		Logger:         log,
		Redis:          redisClient,
		Store:          store,
		LinkService:    linkService,
		Usernames:      usernames,
		VisitPublisher: visitPublisher,
		SessionSigner:  httpUtil.NewTokenSigner(secret, sessionTokenTTL),
		AuthSigner:     httpUtil.NewTokenSigner(secret, authTokenTTL),
		Domain:         cfg.Server.Domain,
		QRRenderer: func(payload string) ([]byte, error) {
			return qrcode.Encode(payload, qrcode.Medium, 256)
		},
	})

	if err := server.Listen(cfg.Server.Addr); err != nil {
		log.Fatal("Fiber server exited", zap.Error(err))
	}
}
