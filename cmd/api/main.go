package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/listing-admin/internal/api/http"
	"github.com/spec-kit/listing-admin/internal/api/http/handlers"
	"github.com/spec-kit/listing-admin/internal/auth"
	"github.com/spec-kit/listing-admin/internal/config"
	"github.com/spec-kit/listing-admin/internal/events"
	"github.com/spec-kit/listing-admin/internal/observability"
	"github.com/spec-kit/listing-admin/internal/persistence"
	"github.com/spec-kit/listing-admin/internal/repository"
	"github.com/spec-kit/listing-admin/internal/service"
	"github.com/spec-kit/listing-admin/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
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
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	repos := repository.NewRepos(pool)
	atomic := repository.NewAtomic(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	activationService := service.NewActivationService(*cfg, service.ActivationDependencies{
		Repos:      repos,
		Atomic:     atomic,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	roleService := service.NewRoleService(service.RoleDependencies{
		Repos:      repos,
		Atomic:     atomic,
		Activation: activationService,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	suspensionService := service.NewSuspensionService(service.SuspensionDependencies{
		Repos:      repos,
		Atomic:     atomic,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	})
	sessionService := service.NewSessionService(*cfg, repos.Accounts)

	notificationService := service.NewNotificationService(
		dispatcher,
		service.NewLogMailer(logger, cfg.Notification),
		service.NewLogMediaCleaner(logger),
		service.NewRedisViewCache(redis.Client, cfg.Notification),
		logger,
		cfg.Notification,
	)
	worker.StartNotificationWorker(notificationService)

	if cfg.Sweep.Enabled {
		worker.StartSweeper(ctx, suspensionService, cfg.Sweep, logger)
	}

	authMiddleware := auth.NewAuthMiddleware(sessionService.TokenManager(), repos.Accounts)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Accounts:       handlers.NewAccountsHandler(sessionService, suspensionService, repos.Notifications),
		Activation:     handlers.NewActivationHandler(activationService, sessionService),
		Admins:         handlers.NewAdminsHandler(roleService, activationService),
		Suspensions:    handlers.NewSuspensionsHandler(suspensionService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
