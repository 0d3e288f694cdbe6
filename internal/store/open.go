package store

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/flourish-retail/gapcore/internal/config"
)

// Open returns the backend named by cfg.Driver. The memory driver loads
// cfg.FixturePath, or starts empty when no path is set.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns}, cfg.MaxCandidates)
	case "sqlite":
		s, err = NewSQLite(cfg.SQLitePath, cfg.MaxCandidates)
	case "memory":
		s, err = openMemory(cfg.FixturePath)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	zap.L().Info("store: opened", zap.String("driver", cfg.Driver))
	return s, nil
}

func openMemory(path string) (*MemoryStore, error) {
	if path == "" {
		return NewMemory(nil), nil
	}
	f, err := LoadFixture(path)
	if err != nil {
		return nil, err
	}
	return NewMemory(f), nil
}

// OpenSeeder returns the backend as a Seeder for the migrate and seed
// commands. The memory driver has nothing to migrate.
func OpenSeeder(ctx context.Context, cfg config.StoreConfig) (Store, Seeder, error) {
	s, err := Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	seeder, ok := s.(Seeder)
	if !ok {
		s.Close() //nolint:errcheck
		return nil, nil, eris.Errorf("store: driver %q cannot be migrated or seeded", cfg.Driver)
	}
	return s, seeder, nil
}
