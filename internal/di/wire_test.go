package di

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blumarkets/hram/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:                 t.TempDir(),
		Port:                    8001,
		FeedBaseURL:             "http://localhost:9000",
		PriceRefreshSchedule:    "0 */5 * * * *",
		ProtectionSweepSchedule: "0 0 * * * *",
		SnapshotSchedule:        "0 0 */6 * * *",
		BackupSchedule:          "0 30 2 * * *",
		SnapshotsToKeep:         10,
		FixedIncomeAnnualRate:   0.25,
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	c, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.SettingsRepo)
	assert.NotNil(t, c.LedgerRepo)
	assert.NotNil(t, c.PortfolioService)
	assert.NotNil(t, c.Engine)
	assert.NotNil(t, c.Scheduler)
	assert.NotNil(t, c.Questionnaire)

	// No streaming endpoint or bucket configured.
	assert.Nil(t, c.FeedStream)
	assert.Nil(t, c.BackupUploader)

	// A fresh portfolio starts with the default layer targets.
	state := c.PortfolioService.State()
	assert.Equal(t, 50, state.TargetLayerPct["FOUNDATION"])
}

func TestWireSeedsStreamWhenConfigured(t *testing.T) {
	cfg := testConfig(t)
	cfg.FeedWebSocketURL = "ws://localhost:9000/v1/stream"

	c, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.FeedStream)
}

func TestWireBadSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.PriceRefreshSchedule = "not a schedule"

	_, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
}
