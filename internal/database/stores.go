package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/lottery-storefront/internal/config"
	"github.com/iliyamo/lottery-storefront/internal/repository"
)

// Stores bundles the hold/purchase store and the pricing store of one
// backend.  DB is nil for the memory backend.
type Stores struct {
	Holds   repository.Store
	Pricing repository.PricingStore
	DB      *sqlx.DB
}

// Close releases the database pool, if any.
func (s *Stores) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// OpenStores connects to the backend selected by cfg.Driver and makes sure
// the schema exists.
func OpenStores(ctx context.Context, cfg config.StorageConfig) (*Stores, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch cfg.Driver {
	case DriverMemory:
		return &Stores{
			Holds:   repository.NewMemoryStore(),
			Pricing: repository.NewMemoryPricingStore(),
		}, nil
	case DriverMySQL:
		db, err = OpenMySQL(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	case DriverPostgres:
		db, err = OpenPostgres(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.SSLMode)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Stores{
		Holds:   repository.NewSQLStore(db),
		Pricing: repository.NewSQLPricingStore(db),
		DB:      db,
	}, nil
}
