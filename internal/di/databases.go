package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/blumarkets/hram/internal/config"
	"github.com/blumarkets/hram/internal/database"
	"github.com/blumarkets/hram/internal/modules/historical"
)

// InitializeDatabases opens the four operational databases plus the
// history store and applies their schemas. On error, everything opened
// so far is closed before returning.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	open := func(name string, profile database.DatabaseProfile) (*database.DB, error) {
		db, err := database.New(database.Config{
			Path:    cfg.DatabasePath(name),
			Profile: profile,
			Name:    name,
		})
		if err != nil {
			return nil, fmt.Errorf("open %s database: %w", name, err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate %s database: %w", name, err)
		}
		return db, nil
	}

	// config.db - engine tuning overrides
	configDB, err := open("config", database.ProfileStandard)
	if err != nil {
		return nil, err
	}
	container.ConfigDB = configDB

	// ledger.db - append-only transaction record
	ledgerDB, err := open("ledger", database.ProfileLedger)
	if err != nil {
		container.Close()
		return nil, err
	}
	container.LedgerDB = ledgerDB

	// portfolio.db - current holdings, loans and protections
	portfolioDB, err := open("portfolio", database.ProfileStandard)
	if err != nil {
		container.Close()
		return nil, err
	}
	container.PortfolioDB = portfolioDB

	// cache.db - snapshots and the cached market view
	cacheDB, err := open("cache", database.ProfileCache)
	if err != nil {
		container.Close()
		return nil, err
	}
	container.CacheDB = cacheDB

	// history.db - daily closes and FX rates, separate driver and schema
	historyRepo, err := historical.NewRepository(cfg.DatabasePath("history"), log)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("open history database: %w", err)
	}
	container.HistoryRepo = historyRepo

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized")
	return container, nil
}
