package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToStandardProfile(t *testing.T) {
	db, err := New(Config{
		Path: filepath.Join(t.TempDir(), "plain.db"),
		Name: "plain",
	})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, ProfileStandard, db.profile)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "ledger.db"),
		Profile: ProfileLedger,
		Name:    "ledger",
	})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate())

	// Schema tables exist and are writable after repeated migration.
	_, err = db.Exec(`SELECT COUNT(*) FROM ledger_entries`)
	assert.NoError(t, err)
}

func TestMigrateSkipsUnknownDatabaseName(t *testing.T) {
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "scratch.db"),
		Profile: ProfileCache,
		Name:    "scratch",
	})
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Migrate())
}

func TestWALCheckpoint(t *testing.T) {
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "cache.db"),
		Profile: ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate())
	assert.NoError(t, db.WALCheckpoint(""))
	assert.NoError(t, db.WALCheckpoint("FULL"))
}
