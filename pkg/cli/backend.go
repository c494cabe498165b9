package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"

	"github.com/rsbst23/groundup/pkg/config"
	"github.com/rsbst23/groundup/pkg/inventory"
	"github.com/rsbst23/groundup/pkg/observability"
	"github.com/rsbst23/groundup/pkg/rbac"
	"github.com/rsbst23/groundup/pkg/storage"
)

// Backend is the database surface the admin commands operate on
type Backend struct {
	DB      *sql.DB
	Store   *rbac.Store
	Migrate func(ctx context.Context) error
	Close   func() error
}

// Connector opens a Backend for one command invocation
type Connector func(ctx context.Context) (*Backend, error)

// EnvConnector connects with the same GROUNDUP_* settings the API server
// reads. When Redis is configured, role changes are announced on the
// invalidation channel so running servers drop cached grants.
func EnvConnector() Connector {
	return func(ctx context.Context) (*Backend, error) {
		cfg, err := config.LoadConfig()
		if err != nil {
			return nil, err
		}

		logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stderr)
		conns, err := storage.NewConnectionManager(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		closers := []func() error{conns.Close}

		var opts []rbac.StoreOption
		if cfg.Redis.URL != "" {
			var client *redis.Client
			client, err = storage.NewRedisClient(ctx, cfg.Redis)
			if err != nil {
				conns.Close()
				return nil, fmt.Errorf("connect to redis: %w", err)
			}
			closers = append(closers, client.Close)
			opts = append(opts, rbac.WithPublisher(rbac.NewRedisBus(client, cfg.Authz.InvalidationChannel, nil)))
		}

		db := conns.Primary()
		return &Backend{
			DB:    db,
			Store: rbac.NewStore(db, opts...),
			Migrate: func(ctx context.Context) error {
				if err := rbac.RunMigrations(ctx, db); err != nil {
					return fmt.Errorf("rbac migrations: %w", err)
				}
				if err := inventory.RunMigrations(ctx, db); err != nil {
					return fmt.Errorf("inventory migrations: %w", err)
				}
				return nil
			},
			Close: func() error {
				var errs []error
				for i := len(closers) - 1; i >= 0; i-- {
					errs = append(errs, closers[i]())
				}
				return errors.Join(errs...)
			},
		}, nil
	}
}

// withBackend connects, runs fn and closes the backend
func (a *App) withBackend(ctx context.Context, fn func(*Backend) error) error {
	b, err := a.Connect(ctx)
	if err != nil {
		return err
	}
	if b.Close != nil {
		defer b.Close()
	}
	return fn(b)
}
