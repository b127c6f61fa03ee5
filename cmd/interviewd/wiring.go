package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog/log"

	"github.com/ddokterview/ddokterview/internal/bridge"
	"github.com/ddokterview/ddokterview/internal/config"
	dbgorm "github.com/ddokterview/ddokterview/internal/db/gorm"
	"github.com/ddokterview/ddokterview/internal/interview"
	"github.com/ddokterview/ddokterview/internal/lock"
	"github.com/ddokterview/ddokterview/internal/objstore"
	"github.com/ddokterview/ddokterview/internal/worker"
)

// backends holds the storage and coordination layer shared by every command.
type backends struct {
	store    objstore.Store
	locks    lock.Locker
	db       *dbgorm.Store
	pool     *redis.Pool
	sessions interview.SessionStore
	bindings bridge.BindingStore
}

func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}

	switch cfg.StorageBackend {
	case "filesystem":
		fs, err := objstore.NewFilesystemStore(cfg.StorageDir)
		if err != nil {
			return nil, fmt.Errorf("open storage dir: %w", err)
		}
		b.store = fs
		log.Info().Str("dir", cfg.StorageDir).Msg("Using filesystem object store")
	case "gcs", "":
		gcs, err := objstore.NewGCSStore(ctx, cfg.Bucket)
		if err != nil {
			return nil, err
		}
		b.store = gcs
		log.Info().Str("bucket", cfg.Bucket).Msg("Using GCS object store")
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	if cfg.RedisURL != "" {
		b.pool = lock.NewPool(cfg.RedisURL)
		b.locks = lock.NewRedis(b.pool, lock.RedisConfig{Prefix: "interviewd:lock:"})
		log.Info().Msg("Using Redis session locks")
	} else {
		b.locks = lock.NewLocal()
	}

	if cfg.DatabaseDSN != "" {
		db, err := dbgorm.NewStore(dbgorm.Config{DSN: cfg.DatabaseDSN})
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("open database: %w", err)
		}
		b.db = db
		b.sessions = dbgorm.NewSessionStore(db)
		b.bindings = dbgorm.NewBindingStore(db)
		log.Info().Str("dialect", db.Dialect()).Msg("Using database session registry")
	} else {
		b.sessions = interview.NewObjectSessions(b.store)
		b.bindings = bridge.NewObjectBindings(b.store)
	}
	return b, nil
}

// healthChecks pings every configured backend.
func (b *backends) healthChecks() map[string]worker.HealthChecker {
	checks := map[string]worker.HealthChecker{
		"storage": worker.HealthCheckFunc(func(ctx context.Context) error {
			_, err := b.store.Exists(ctx, objstore.SessionPath("healthcheck"))
			return err
		}),
	}
	if b.db != nil {
		checks["database"] = worker.HealthCheckFunc(func(context.Context) error {
			return b.db.Ping()
		})
	}
	if b.pool != nil {
		checks["redis"] = worker.HealthCheckFunc(func(ctx context.Context) error {
			conn, err := b.pool.GetContext(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()
			_, err = conn.Do("PING")
			return err
		})
	}
	return checks
}

func (b *backends) Close() {
	var errs []error
	if b.store != nil {
		errs = append(errs, b.store.Close())
	}
	if b.db != nil {
		errs = append(errs, b.db.Close())
	}
	if b.pool != nil {
		errs = append(errs, b.pool.Close())
	}
	if err := errors.Join(errs...); err != nil {
		log.Warn().Err(err).Msg("Error closing backends")
	}
}
