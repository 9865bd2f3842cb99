package cli

import (
	"context"
	"fmt"

	"github.com/iliyamo/facility-reservation/internal/database"
	"github.com/iliyamo/facility-reservation/internal/service"
)

// openStore connects to the configured backend.  The caller closes the
// store's DB.
func (a *app) openStore(ctx context.Context, migrate bool) (*database.Store, error) {
	var store *database.Store
	switch a.cfg.DBDriver {
	case "sqlite":
		db, err := database.OpenSQLite(a.cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		store = database.NewStore(db, database.SQLite)
	default:
		db, err := database.Open(a.cfg.DBUser, a.cfg.DBPass, a.cfg.DBHost, a.cfg.DBPort, a.cfg.DBName)
		if err != nil {
			return nil, fmt.Errorf("connect mysql: %w", err)
		}
		store = database.NewStore(db, database.MySQL)
	}
	if migrate {
		if err := database.Migrate(ctx, store.DB(), store.Dialect()); err != nil {
			_ = store.DB().Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return store, nil
}

func (a *app) engineOptions() service.Options {
	return service.Options{
		QuotaLimit: a.cfg.QuotaLimit,
		HoldTTL:    a.cfg.HoldTTL,
		Location:   a.cfg.Location,
	}
}
