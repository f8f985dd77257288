// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/blumarkets/hram/internal/backup"
	"github.com/blumarkets/hram/internal/clients/feed"
	"github.com/blumarkets/hram/internal/database"
	"github.com/blumarkets/hram/internal/domain"
	"github.com/blumarkets/hram/internal/modules/engine"
	"github.com/blumarkets/hram/internal/modules/historical"
	"github.com/blumarkets/hram/internal/modules/ledger"
	"github.com/blumarkets/hram/internal/modules/portfolio"
	"github.com/blumarkets/hram/internal/modules/rebalancing"
	"github.com/blumarkets/hram/internal/modules/scoring"
	"github.com/blumarkets/hram/internal/modules/settings"
	"github.com/blumarkets/hram/internal/modules/snapshots"
	"github.com/blumarkets/hram/internal/scheduler"
)

// Container holds all application dependencies.
// It is created by Wire() and handed to the server and entry point.
type Container struct {
	// Databases
	ConfigDB    *database.DB
	LedgerDB    *database.DB
	PortfolioDB *database.DB
	CacheDB     *database.DB
	HistoryRepo *historical.Repository

	// Repositories
	SettingsRepo  *settings.Repository
	LedgerRepo    *ledger.Repository
	PortfolioRepo *portfolio.Repository
	SnapshotStore *snapshots.Store

	// Market data
	FeedClient *feed.Client
	FeedStream *feed.Stream // nil when no streaming endpoint is configured

	// Services
	Valuer           domain.Valuer
	Planner          *rebalancing.Planner
	TriggerChecker   *rebalancing.TriggerChecker
	Engine           *engine.Engine
	PortfolioService *portfolio.Service
	Questionnaire    *scoring.Questionnaire

	// Background work
	Scheduler      *scheduler.Scheduler
	BackupUploader *backup.Uploader // nil when backups are not configured
}

// Close releases all database handles. Safe to call once after shutdown.
func (c *Container) Close() {
	if c.HistoryRepo != nil {
		c.HistoryRepo.Close()
	}
	for _, db := range []*database.DB{c.CacheDB, c.PortfolioDB, c.LedgerDB, c.ConfigDB} {
		if db != nil {
			db.Close()
		}
	}
}
