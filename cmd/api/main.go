package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/points-ledger/internal/api/http"
	"github.com/spec-kit/points-ledger/internal/api/http/handlers"
	"github.com/spec-kit/points-ledger/internal/auth"
	"github.com/spec-kit/points-ledger/internal/config"
	"github.com/spec-kit/points-ledger/internal/events"
	"github.com/spec-kit/points-ledger/internal/observability"
	"github.com/spec-kit/points-ledger/internal/persistence"
	"github.com/spec-kit/points-ledger/internal/ratelimit"
	"github.com/spec-kit/points-ledger/internal/repository"
	"github.com/spec-kit/points-ledger/internal/repository/memory"
	"github.com/spec-kit/points-ledger/internal/service"
	"github.com/spec-kit/points-ledger/internal/worker"
	"github.com/spec-kit/points-ledger/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool(), migrations.FS, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	readiness := map[string]handlers.Pinger{}

	var (
		ledger    repository.LedgerStore
		userRepo  repository.UserRepository
		resetRepo repository.PasswordResetRepository
	)
	if pool := pg.Pool(); pool != nil {
		ledger = repository.NewPostgresLedger(pool)
		userRepo = repository.NewUserRepository(pool)
		resetRepo = repository.NewPasswordResetRepository(pool)
		readiness["postgres"] = pg
	} else {
		logger.Warn("using in-memory ledger; data is lost on restart")
		store := memory.New()
		ledger, userRepo, resetRepo = store, store.Users(), store.Resets()
	}

	var limiter ratelimit.Limiter
	switch cfg.RateLimit.Backend {
	case config.RateLimitRedis:
		redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redis.Close()
		limiter = ratelimit.NewRedis(redis.Client, cfg.RateLimit.ResetWindow(), "points-ledger:reset:")
		readiness["redis"] = redis
	default:
		limiter = ratelimit.NewMemory(cfg.RateLimit.ResetWindow())
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notifier := worker.NewNotificationWorker(notifications.Handle, cfg.Notification, logger)
	notifier.Subscribe(dispatcher)
	notifier.Start(ctx)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:          userRepo,
		PasswordResetRepo: resetRepo,
		Limiter:           limiter,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	transactionService := service.NewTransactionService(service.TransactionDependencies{
		Store:      ledger,
		Dispatcher: dispatcher,
	})

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness),
		Auth:           handlers.NewAuthHandler(authService),
		Transactions:   handlers.NewTransactionsHandler(transactionService),
		Users:          handlers.NewUsersHandler(transactionService),
		Events:         handlers.NewEventsHandler(transactionService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
	if dropped := notifier.Stop(); dropped > 0 {
		logger.Warn("notifications dropped", zap.Int64("count", dropped))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
