// Package backend opens the storage implementation selected by configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/mmynk/dailyexpenses/internal/config"
	"github.com/mmynk/dailyexpenses/internal/storage"
	"github.com/mmynk/dailyexpenses/internal/storage/memory"
	"github.com/mmynk/dailyexpenses/internal/storage/mongo"
	"github.com/mmynk/dailyexpenses/internal/storage/postgres"
	"github.com/mmynk/dailyexpenses/internal/storage/sqlite"
)

// Open connects to the backend named by cfg.DataBackend.
func Open(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.DataBackend {
	case config.BackendSQLite:
		s, err := sqlite.New(cfg.SQLiteDBPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendPostgres:
		s, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendMongo:
		s, err := mongo.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendMemory:
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown data backend %q", cfg.DataBackend)
}
