package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/blumarkets/hram/internal/backup"
	"github.com/blumarkets/hram/internal/clients/feed"
	"github.com/blumarkets/hram/internal/domain"
	"github.com/blumarkets/hram/internal/modules/historical"
	"github.com/blumarkets/hram/internal/modules/portfolio"
	"github.com/blumarkets/hram/internal/modules/snapshots"
)

// PriceRefreshJob pulls a fresh snapshot from the feed and records it in
// the history and view caches. The WebSocket stream keeps the live cache
// hot; this job guarantees a daily close even when the stream is down.
type PriceRefreshJob struct {
	client  *feed.Client
	history *historical.Repository
	store   *snapshots.Store
	log     zerolog.Logger
}

func NewPriceRefreshJob(client *feed.Client, history *historical.Repository, store *snapshots.Store, log zerolog.Logger) *PriceRefreshJob {
	return &PriceRefreshJob{
		client:  client,
		history: history,
		store:   store,
		log:     log.With().Str("job", "price_refresh").Logger(),
	}
}

func (j *PriceRefreshJob) Name() string { return "price_refresh" }

func (j *PriceRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	view, err := j.client.Refresh(ctx)
	if err != nil {
		return err
	}
	if err := j.history.RecordView(view.AsOf, view.USDPrice, view.IrrPerUSD); err != nil {
		return err
	}
	return j.store.SaveView(view)
}

// ProtectionExpiryJob sweeps lapsed protections.
type ProtectionExpiryJob struct {
	svc *portfolio.Service
	log zerolog.Logger
}

func NewProtectionExpiryJob(svc *portfolio.Service, log zerolog.Logger) *ProtectionExpiryJob {
	return &ProtectionExpiryJob{
		svc: svc,
		log: log.With().Str("job", "protection_expiry").Logger(),
	}
}

func (j *ProtectionExpiryJob) Name() string { return "protection_expiry" }

func (j *ProtectionExpiryJob) Run() error {
	expired, err := j.svc.ExpireProtections(time.Now())
	if err != nil {
		return err
	}
	if expired > 0 {
		j.log.Info().Int("expired", expired).Msg("Expired protections")
	}
	return nil
}

// SnapshotJob captures a portfolio snapshot and prunes old ones.
type SnapshotJob struct {
	svc    *portfolio.Service
	store  *snapshots.Store
	prices domain.PriceSource
	valuer domain.Valuer
	keep   int
	log    zerolog.Logger
}

func NewSnapshotJob(svc *portfolio.Service, store *snapshots.Store, prices domain.PriceSource, valuer domain.Valuer, keep int, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		svc:    svc,
		store:  store,
		prices: prices,
		valuer: valuer,
		keep:   keep,
		log:    log.With().Str("job", "snapshot").Logger(),
	}
}

func (j *SnapshotJob) Name() string { return "snapshot" }

func (j *SnapshotJob) Run() error {
	view, err := j.prices.View()
	if err != nil {
		return err
	}

	snap := snapshots.Capture(j.svc.State(), view, j.valuer)
	id, err := j.store.Save(snap)
	if err != nil {
		return err
	}
	j.log.Debug().Int64("id", id).Msg("Saved snapshot")

	_, err = j.store.Prune(j.keep)
	return err
}

// LedgerBackupJob uploads the ledger database to object storage.
type LedgerBackupJob struct {
	uploader *backup.Uploader
	db       backup.Checkpointer
	path     string
	log      zerolog.Logger
}

func NewLedgerBackupJob(uploader *backup.Uploader, db backup.Checkpointer, path string, log zerolog.Logger) *LedgerBackupJob {
	return &LedgerBackupJob{
		uploader: uploader,
		db:       db,
		path:     path,
		log:      log.With().Str("job", "ledger_backup").Logger(),
	}
}

func (j *LedgerBackupJob) Name() string { return "ledger_backup" }

func (j *LedgerBackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	key, err := j.uploader.BackupDatabase(ctx, j.db, j.path, time.Now())
	if err != nil {
		return err
	}
	j.log.Info().Str("key", key).Msg("Ledger backed up")
	return nil
}
