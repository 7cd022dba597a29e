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

	"wager-ledger/config"
	httpHandler "wager-ledger/internal/adapter/http/handler"
	"wager-ledger/internal/adapter/messaging"
	"wager-ledger/internal/adapter/storage/memory"
	pgStorage "wager-ledger/internal/adapter/storage/postgres"
	redisStorage "wager-ledger/internal/adapter/storage/redis"
	"wager-ledger/internal/core/ports"
	"wager-ledger/internal/service"
	"wager-ledger/pkg/logger"

	"github.com/rs/zerolog"
)

// backend bundles the storage ports chosen by storage.driver.
type backend struct {
	accounts    ports.AccountStore
	ledger      ports.LedgerStore
	market      ports.MarketStore
	history     ports.HistoryStore
	blocks      ports.BlockList
	audit       ports.AuditRepository
	cache       ports.IdempotencyCache
	rateLimiter ports.RateLimiter
	health      []ports.HealthChecker
	closers     []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func main() {
	cfg, err := config.Load(os.Getenv("WGL_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Msg("Starting Wager Ledger")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret must be set (WGL_JWT_SECRET)")
	}

	settings, err := service.NewLedgerSettings(cfg.Ledger)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid ledger settings")
	}

	ctx := context.Background()

	store, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer store.close()

	var publisher ports.EventPublisher = messaging.NopPublisher{}
	if cfg.Kafka.Enabled {
		kp, err := messaging.NewKafkaPublisher(cfg.Kafka, logger.Component(log, "kafka"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Kafka publisher")
		}
		publisher = kp
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka publisher enabled")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close event publisher")
		}
	}()

	// Core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Business services
	authSvc := service.NewAuthService(store.accounts, hashSvc, tokenSvc, cfg.Auth)
	bettingSvc := service.NewBettingService(
		store.accounts,
		store.ledger,
		store.blocks,
		store.cache,
		publisher,
		settings,
		logger.Component(log, "betting"),
	)
	settlementSvc, err := service.NewSettlementService(
		store.accounts,
		store.ledger,
		publisher,
		cfg.Ledger.PayoutRateDecimal,
		settings,
		logger.Component(log, "settlement"),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize settlement service")
	}
	defer settlementSvc.Close()

	accountSvc := service.NewAccountService(store.accounts, store.ledger, publisher, settings, logger.Component(log, "account"))
	blockSvc := service.NewBlockListService(store.blocks, settings, logger.Component(log, "blocklist"))
	marketSvc := service.NewMarketService(store.market, store.history, settings, logger.Component(log, "market"))
	auditSvc := service.NewAuditService(store.audit, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		BettingSvc:     bettingSvc,
		SettlementSvc:  settlementSvc,
		AccountSvc:     accountSvc,
		BlockListSvc:   blockSvc,
		MarketSvc:      marketSvc,
		TokenSvc:       tokenSvc,
		RateLimiter:    store.rateLimiter,
		HealthCheckers: store.health,
		AuditSvc:       auditSvc,
		Mode:           cfg.Server.Mode,
		Logger:         log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// openBackend connects the configured storage driver.
func openBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backend, error) {
	switch cfg.Storage.Driver {
	case "memory":
		log.Warn().Msg("Using in-memory storage, state is lost on restart")
		store := memory.NewStore()
		return &backend{
			accounts:    store.Accounts(),
			ledger:      store.Ledger(),
			market:      store.Market(),
			history:     store.History(),
			blocks:      store.Blocks(),
			audit:       store.Audit(),
			cache:       memory.NewIdempotencyCache(),
			rateLimiter: memory.NewRateLimiter(),
		}, nil

	case "postgres":
		b := &backend{}

		if err := pgStorage.RunMigrations(cfg.Database.DSN(), cfg.Database.MigrationsPath); err != nil {
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info().Str("path", cfg.Database.MigrationsPath).Msg("Migrations applied")

		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		log.Info().Msg("PostgreSQL connected")

		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("connecting to Redis: %w", err)
		}
		b.closers = append(b.closers, func() { _ = rdb.Close() })
		log.Info().Msg("Redis connected")

		b.accounts = pgStorage.NewAccountStore(pool)
		b.ledger = pgStorage.NewLedgerStore(pool)
		b.market = pgStorage.NewMarketStore(pool)
		b.history = pgStorage.NewHistoryStore(pool)
		b.audit = pgStorage.NewAuditRepo(pool)
		b.blocks = redisStorage.NewBlockList(rdb)
		b.cache = redisStorage.NewIdempotencyCache(rdb)
		b.rateLimiter = redisStorage.NewRateLimitStore(rdb)
		b.health = []ports.HealthChecker{pgStorage.NewHealthCheck(pool), redisStorage.NewHealthCheck(rdb)}
		return b, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
