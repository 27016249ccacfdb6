// Package repository selects and opens the durable key-value store sessions
// are written to.
package repository

import (
	"context"
	"fmt"

	"github.com/Rrens/smart-chat/internal/config"
	"github.com/Rrens/smart-chat/internal/domain"
	"github.com/Rrens/smart-chat/internal/repository/memory"
	"github.com/Rrens/smart-chat/internal/repository/mongo"
	"github.com/Rrens/smart-chat/internal/repository/mysql"
	"github.com/Rrens/smart-chat/internal/repository/postgres"
	"github.com/Rrens/smart-chat/internal/repository/redis"
	"github.com/Rrens/smart-chat/internal/repository/sqlite"
	"github.com/rs/zerolog/log"
)

// Store is an opened key-value store together with its resources
type Store struct {
	domain.KeyValueStore

	// Redis is set when the redis driver is selected, so the rate
	// limiter can share the connection
	Redis *redis.Client

	closers []func() error
}

// Close releases every connection the store holds
func (s *Store) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Ping checks the backing service. Stores without a connection, such as
// memory, are always ready.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.KeyValueStore.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Open connects to the store named by cfg.Store.Driver
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	if cfg.Store.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Store.Timeout)
		defer cancel()
	}

	s := &Store{}
	switch cfg.Store.Driver {
	case "memory", "":
		s.KeyValueStore = memory.NewStore()

	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		s.KeyValueStore = db
		s.closers = append(s.closers, db.Close)

	case "redis":
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		s.KeyValueStore = redis.NewStore(client)
		s.Redis = client
		s.closers = append(s.closers, client.Close)

	case "postgres":
		if err := postgres.RunMigrations(cfg.Database.DSN(), cfg.Database.MigrationsSource()); err != nil {
			return nil, err
		}
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		s.KeyValueStore = db
		s.closers = append(s.closers, db.Close)

	case "mysql":
		db, err := mysql.Open(ctx, cfg.MySQL)
		if err != nil {
			return nil, err
		}
		s.KeyValueStore = db
		s.closers = append(s.closers, db.Close)

	case "mongo":
		db, err := mongo.Open(ctx, cfg.Mongo, cfg.Store.Timeout)
		if err != nil {
			return nil, err
		}
		s.KeyValueStore = db
		s.closers = append(s.closers, db.Close)

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	log.Info().Str("driver", cfg.Store.Driver).Msg("session store opened")
	return s, nil
}
