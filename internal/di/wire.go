package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/blumarkets/hram/internal/backup"
	"github.com/blumarkets/hram/internal/clients/feed"
	"github.com/blumarkets/hram/internal/config"
	"github.com/blumarkets/hram/internal/domain"
	"github.com/blumarkets/hram/internal/modules/engine"
	"github.com/blumarkets/hram/internal/modules/ledger"
	"github.com/blumarkets/hram/internal/modules/portfolio"
	"github.com/blumarkets/hram/internal/modules/protection"
	"github.com/blumarkets/hram/internal/modules/rebalancing"
	"github.com/blumarkets/hram/internal/modules/scoring"
	"github.com/blumarkets/hram/internal/modules/settings"
	"github.com/blumarkets/hram/internal/modules/snapshots"
	"github.com/blumarkets/hram/internal/scheduler"
)

// Wire initializes all dependencies and returns a fully configured container.
// Order of operations:
// 1. Open databases
// 2. Create repositories
// 3. Build the pricing, planning and engine services
// 4. Set up the market data feed
// 5. Register scheduled jobs
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("initialize databases: %w", err)
	}

	if err := initializeServices(ctx, container, cfg, log); err != nil {
		container.Close()
		return nil, err
	}

	if err := registerJobs(container, cfg, log); err != nil {
		container.Close()
		return nil, err
	}

	return container, nil
}

func initializeServices(ctx context.Context, c *Container, cfg *config.Config, log zerolog.Logger) error {
	c.SettingsRepo = settings.NewRepository(c.ConfigDB, log)
	c.LedgerRepo = ledger.NewRepository(c.LedgerDB, log)
	c.PortfolioRepo = portfolio.NewRepository(c.PortfolioDB, log)
	c.SnapshotStore = snapshots.NewStore(c.CacheDB, log)

	c.Valuer = domain.Valuer{
		Universe:              domain.DefaultUniverse(),
		FixedIncomeAnnualRate: cfg.FixedIncomeAnnualRate,
	}

	// Engine tuning comes from defaults overlaid with stored settings.
	engineCfg, err := c.SettingsRepo.EngineConfig()
	if err != nil {
		return fmt.Errorf("load engine config: %w", err)
	}
	plannerCfg, err := c.SettingsRepo.PlannerConfig()
	if err != nil {
		return fmt.Errorf("load planner config: %w", err)
	}
	triggerCfg, err := c.SettingsRepo.TriggerConfig()
	if err != nil {
		return fmt.Errorf("load trigger config: %w", err)
	}

	weights := rebalancing.NewAdaptiveWeights(
		rebalancing.DefaultWeightConfig(),
		c.Valuer.Universe,
		c.HistoryRepo,
		log,
	)
	c.Planner = rebalancing.NewPlanner(plannerCfg, c.Valuer, weights, log)
	c.TriggerChecker = rebalancing.NewTriggerChecker(triggerCfg, log)

	quoter := protection.NewEstimator(protection.DefaultConfig(), c.Valuer)
	c.Engine = engine.New(engineCfg, c.Valuer, c.Planner, quoter, log)

	// Market data feed, seeded from the cached view so previews work
	// before the first refresh completes.
	c.FeedClient = feed.NewClient(feed.Config{
		BaseURL:      cfg.FeedBaseURL,
		WebSocketURL: cfg.FeedWebSocketURL,
	}, log)

	if view, found, err := c.SnapshotStore.LoadView(); err != nil {
		log.Warn().Err(err).Msg("Failed to load cached market view")
	} else if found {
		c.FeedClient.Seed(view)
		log.Info().Time("as_of", view.AsOf).Msg("Seeded market view from cache")
	}
	store := c.SnapshotStore
	c.FeedClient.OnUpdate(func(view domain.MarketView) {
		if err := store.SaveView(view); err != nil {
			log.Warn().Err(err).Msg("Failed to cache market view")
		}
	})
	if cfg.FeedWebSocketURL != "" {
		c.FeedStream = feed.NewStream(c.FeedClient, cfg.FeedWebSocketURL)
	}

	svc, err := portfolio.NewService(c.Engine, c.PortfolioRepo, c.LedgerRepo, c.FeedClient, c.Valuer, log)
	if err != nil {
		return fmt.Errorf("initialize portfolio service: %w", err)
	}
	c.PortfolioService = svc

	if cfg.QuestionnairePath != "" {
		q, err := scoring.LoadQuestionnaire(cfg.QuestionnairePath)
		if err != nil {
			return fmt.Errorf("load questionnaire: %w", err)
		}
		c.Questionnaire = q
	} else {
		c.Questionnaire = scoring.DefaultQuestionnaire()
	}

	if cfg.BackupEnabled() {
		uploader, err := backup.NewUploader(ctx, backup.Config{
			Bucket:    cfg.BackupBucket,
			Region:    cfg.BackupRegion,
			Endpoint:  cfg.BackupEndpoint,
			AccessKey: cfg.BackupAccessKey,
			SecretKey: cfg.BackupSecretKey,
			Prefix:    cfg.BackupPrefix,
		}, log)
		if err != nil {
			return fmt.Errorf("initialize backup uploader: %w", err)
		}
		c.BackupUploader = uploader
	}

	return nil
}

func registerJobs(c *Container, cfg *config.Config, log zerolog.Logger) error {
	c.Scheduler = scheduler.New(log)

	refresh := scheduler.NewPriceRefreshJob(c.FeedClient, c.HistoryRepo, c.SnapshotStore, log)
	if err := c.Scheduler.AddJob(cfg.PriceRefreshSchedule, refresh); err != nil {
		return fmt.Errorf("schedule %s: %w", refresh.Name(), err)
	}

	sweep := scheduler.NewProtectionExpiryJob(c.PortfolioService, log)
	if err := c.Scheduler.AddJob(cfg.ProtectionSweepSchedule, sweep); err != nil {
		return fmt.Errorf("schedule %s: %w", sweep.Name(), err)
	}

	snapshot := scheduler.NewSnapshotJob(c.PortfolioService, c.SnapshotStore, c.FeedClient, c.Valuer, cfg.SnapshotsToKeep, log)
	if err := c.Scheduler.AddJob(cfg.SnapshotSchedule, snapshot); err != nil {
		return fmt.Errorf("schedule %s: %w", snapshot.Name(), err)
	}

	if c.BackupUploader != nil {
		job := scheduler.NewLedgerBackupJob(c.BackupUploader, c.LedgerDB, cfg.DatabasePath("ledger"), log)
		if err := c.Scheduler.AddJob(cfg.BackupSchedule, job); err != nil {
			return fmt.Errorf("schedule %s: %w", job.Name(), err)
		}
	}

	return nil
}
