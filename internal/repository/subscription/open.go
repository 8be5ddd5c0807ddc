package subscription

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/oshokin/doorwatch/internal/config"
)

// Open creates the repository selected by cfg.Driver.
func Open(ctx context.Context, cfg *config.StoreConfig) (Repository, error) {
	var (
		repo Repository
		err  error
	)

	switch cfg.Driver {
	case config.DriverMemory:
		return NewMemoryRepository(), nil
	case config.DriverSQLite:
		repo, err = OpenSQLite(ctx, cfg.Path)
	case config.DriverPostgres:
		repo, err = OpenPostgres(ctx, cfg.DSN)
	case config.DriverRedis:
		repo, err = OpenRedis(ctx, &redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.KeyPrefix)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}

	return repo, nil
}
