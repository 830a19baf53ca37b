package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/assignment-engine/internal/api/http"
	"github.com/spec-kit/assignment-engine/internal/api/http/handlers"
	"github.com/spec-kit/assignment-engine/internal/auth"
	"github.com/spec-kit/assignment-engine/internal/bootstrap"
	"github.com/spec-kit/assignment-engine/internal/config"
	"github.com/spec-kit/assignment-engine/internal/observability"
	"github.com/spec-kit/assignment-engine/internal/worker"
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

	container, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to bootstrap engine", zap.Error(err))
	}
	defer container.Close()

	authMiddleware := auth.NewAuthMiddleware(container.Tokens, container.Directory)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, container.Metrics, cfg.App.RequestTimeout())

	checks := map[string]handlers.Pinger{"store": container.Store}
	if container.Redis != nil {
		checks["redis"] = container.Redis
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks),
		WorkUnits:      handlers.NewWorkUnitsHandler(container.Assignments, container.Ownership, container.Queries),
		WorkItems:      handlers.NewWorkItemsHandler(container.Assignments, container.Escalations, container.Transfers, container.Queries),
		Operations:     handlers.NewOperationsHandler(container.Ownership, container.Notifications),
		AuthMiddleware: authMiddleware,
		Metrics:        container.Metrics.Handler(),
	})

	retryWorker := worker.NewRetryWorker(container.Notifications, cfg.Notification.RetryInterval, logger)
	go retryWorker.Run(ctx)

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
