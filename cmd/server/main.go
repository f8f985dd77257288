// Package main is the entry point for the layered portfolio engine.
// It wires configuration, databases, the transaction engine and the
// HTTP API, then runs scheduled background jobs until shutdown.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blumarkets/hram/internal/config"
	"github.com/blumarkets/hram/internal/di"
	historicalhandlers "github.com/blumarkets/hram/internal/modules/historical/handlers"
	ledgerhandlers "github.com/blumarkets/hram/internal/modules/ledger/handlers"
	portfoliohandlers "github.com/blumarkets/hram/internal/modules/portfolio/handlers"
	rebalancinghandlers "github.com/blumarkets/hram/internal/modules/rebalancing/handlers"
	scoringhandlers "github.com/blumarkets/hram/internal/modules/scoring/handlers"
	settingshandlers "github.com/blumarkets/hram/internal/modules/settings/handlers"
	snapshothandlers "github.com/blumarkets/hram/internal/modules/snapshots/handlers"
	"github.com/blumarkets/hram/internal/server"
	"github.com/blumarkets/hram/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting portfolio engine")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("Failed to create data directory")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	srv := server.New(server.Config{
		Log:         log,
		Port:        cfg.Port,
		DevMode:     cfg.DevMode,
		DataDir:     cfg.DataDir,
		Ledger:      ledgerhandlers.NewHandler(container.LedgerRepo, log),
		Settings:    settingshandlers.NewHandler(container.SettingsRepo, log),
		Portfolio:   portfoliohandlers.NewHandler(container.PortfolioService, container.TriggerChecker, log),
		Snapshots:   snapshothandlers.NewHandler(container.SnapshotStore, container.PortfolioService, container.FeedClient, container.Valuer, log),
		Risk:        scoringhandlers.NewHandler(container.Questionnaire, container.PortfolioService, log),
		Rebalancing: rebalancinghandlers.NewHandler(container.Planner, container.PortfolioService, container.FeedClient, log),
		History:     historicalhandlers.NewHandler(container.HistoryRepo, log),
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started")

	// Prime the price cache before the first scheduled refresh.
	refreshCtx, refreshCancel := context.WithTimeout(ctx, 15*time.Second)
	if _, err := container.FeedClient.Refresh(refreshCtx); err != nil {
		log.Warn().Err(err).Msg("Initial price refresh failed, serving from cached view")
	}
	refreshCancel()

	if container.FeedStream != nil {
		if err := container.FeedStream.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start price stream")
		} else {
			log.Info().Msg("Price stream started")
		}
	}

	container.Scheduler.Start()
	log.Info().Msg("Scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	cancel()

	container.Scheduler.Stop()

	if container.FeedStream != nil {
		if err := container.FeedStream.Stop(); err != nil {
			log.Error().Err(err).Msg("Error stopping price stream")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
