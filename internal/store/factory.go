package store

import (
	"context"
	"fmt"

	"github.com/kiranshivaraju/apperrors/internal/config"
	"github.com/kiranshivaraju/apperrors/internal/logger"
)

// Open builds the backend selected by cfg.Store.Type. Called once at startup.
// The returned close function releases connections and is never nil.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...Option) (ErrorStore, func(), error) {
	noClose := func() {}

	switch cfg.Store.Type {
	case config.StorePostgres:
		pool, err := Connect(ctx, cfg.Database)
		if err != nil {
			return nil, noClose, err
		}
		log.Info("database connected", logger.String("store", cfg.Store.Type))
		if cfg.Database.Migrate {
			if err := RunMigrations(cfg.Database.URL); err != nil {
				pool.Close()
				return nil, noClose, fmt.Errorf("run migrations: %w", err)
			}
			log.Info("database migrations applied")
		}
		return NewPostgresStore(pool, opts...), pool.Close, nil

	case config.StoreSQL:
		db, dialect, err := OpenSQL(cfg.Database.URL)
		if err != nil {
			return nil, noClose, err
		}
		closeDB := func() { _ = db.Close() }
		if err := db.PingContext(ctx); err != nil {
			closeDB()
			return nil, noClose, fmt.Errorf("ping database: %w", err)
		}
		s := NewSQLStore(db, dialect, opts...)
		switch {
		case dialect == DialectPostgres && cfg.Database.Migrate:
			err = RunMigrations(cfg.Database.URL)
		case dialect == DialectSQLite:
			err = s.EnsureSchema(ctx)
		}
		if err != nil {
			closeDB()
			return nil, noClose, fmt.Errorf("prepare schema: %w", err)
		}
		log.Info("database connected",
			logger.String("store", cfg.Store.Type), logger.String("dialect", string(dialect)))
		return s, closeDB, nil

	case config.StoreMemory:
		log.Warn("using in-memory error store; records are lost on restart and not shared between instances")
		return NewMemoryStore(opts...), noClose, nil

	case config.StoreNoop:
		log.Info("error tracking disabled; using no-op store")
		return NewNoopStore(), noClose, nil

	default:
		return nil, noClose, fmt.Errorf("unknown store %q: must be one of postgres, sql, memory, noop", cfg.Store.Type)
	}
}
