// Package bootstrap assembles the engine from configuration for the API
// server and the operator CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/assignment-engine/internal/auth"
	"github.com/spec-kit/assignment-engine/internal/config"
	"github.com/spec-kit/assignment-engine/internal/directory"
	"github.com/spec-kit/assignment-engine/internal/events"
	"github.com/spec-kit/assignment-engine/internal/observability"
	"github.com/spec-kit/assignment-engine/internal/persistence"
	"github.com/spec-kit/assignment-engine/internal/repository"
	"github.com/spec-kit/assignment-engine/internal/repository/memory"
	"github.com/spec-kit/assignment-engine/internal/service"
)

// Directory is the union of the read-only collaborators.
type Directory interface {
	directory.WorkflowCatalog
	directory.RoleDirectory
	directory.TicketLookup
}

// Container holds every wired component.
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Postgres  *persistence.Postgres
	Redis     *persistence.Redis
	Store     repository.Store
	Directory Directory
	Transport events.Transport
	Tokens    *auth.TokenManager

	Notifications *service.NotificationService
	Assignments   *service.AssignmentService
	Escalations   *service.EscalationService
	Transfers     *service.TransferService
	Ownership     *service.OwnershipService
	Queries       *service.QueryService

	closers []func()
}

// New connects the configured backends and builds the services.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics("assignment_engine"),
		Tokens:  auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
	}

	if err := c.openStore(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.openTransport(ctx); err != nil {
		c.Close()
		return nil, err
	}

	c.Notifications = service.NewNotificationService(service.NotificationDependencies{
		Store:     c.Store,
		Transport: c.Transport,
		Logger:    logger,
		Metrics:   c.Metrics,
		Config:    cfg.Notification,
	})
	deps := service.Dependencies{
		Store:     c.Store,
		Workflows: c.Directory,
		Directory: c.Directory,
		Tickets:   c.Directory,
		Notifier:  c.Notifications,
		Cache:     service.NewStatusCache(cfg.Engine.StatusCacheTTL),
		Logger:    logger,
		Metrics:   c.Metrics,
		Engine:    cfg.Engine,
	}
	c.Assignments = service.NewAssignmentService(deps)
	c.Escalations = service.NewEscalationService(deps)
	c.Transfers = service.NewTransferService(deps)
	c.Ownership = service.NewOwnershipService(deps)
	c.Queries = service.NewQueryService(deps)
	return c, nil
}

func (c *Container) openStore(ctx context.Context) error {
	switch c.Config.App.StoreDriver {
	case config.StoreDriverMemory:
		dir := directory.NewMemory()
		if c.Config.App.DirectoryFixture != "" {
			if err := dir.LoadFixture(c.Config.App.DirectoryFixture); err != nil {
				return err
			}
		}
		c.Store = memory.NewStore()
		c.Directory = dir
		c.Logger.Warn("using in-memory store; state is lost on exit")
		return nil
	default:
		if c.Config.Postgres.DSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres store")
		}
		pg, err := persistence.NewPostgres(ctx, c.Config.Postgres, c.Logger)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		c.Postgres = pg
		c.closers = append(c.closers, pg.Close)
		if c.Config.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), c.Config.Postgres.MigrationsDir, c.Logger); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
		}
		c.Store = repository.NewPostgresStore(pg.PoolHandle())
		c.Directory = directory.NewPostgres(pg.PoolHandle())
		return nil
	}
}

func (c *Container) openTransport(ctx context.Context) error {
	switch c.Config.Notification.Transport {
	case config.TransportRedis:
		rdb, err := persistence.NewRedis(ctx, c.Config.Redis, c.Logger)
		if err != nil {
			return err
		}
		c.Redis = rdb
		c.closers = append(c.closers, rdb.Close)
		c.Transport = events.NewRedisTransport(rdb.Client, rdb.Stream)
	case config.TransportKafka:
		kt, err := events.NewKafkaTransport(c.Config.Kafka.Brokers, c.Config.Kafka.Topic, c.Config.Kafka.WriteTimeout)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, func() {
			if err := kt.Close(); err != nil {
				c.Logger.Warn("close kafka writer", zap.Error(err))
			}
		})
		c.Transport = kt
	default:
		c.Transport = events.NewLogTransport(c.Logger)
	}
	return nil
}

// Close releases connections in reverse order of acquisition.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
