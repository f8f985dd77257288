// Package historical stores and serves daily price history.
//
// History lives in its own SQLite database, separate from portfolio state:
// it is bulk time-series data with a different write pattern and can be
// rebuilt from the feed at any time.
package historical

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"
)

// DailyPrice is one asset's USD close for a calendar date.
type DailyPrice struct {
	AssetID  string  `json:"asset_id"`
	Date     string  `json:"date"` // YYYY-MM-DD
	USDClose float64 `json:"usd_close"`
}

// FxRate is the IRR per USD conversion rate for a calendar date.
type FxRate struct {
	Date      string  `json:"date"` // YYYY-MM-DD
	IrrPerUSD float64 `json:"irr_per_usd"`
}

// Repository provides access to the price history database.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository opens (or creates) the history database at the given path.
func NewRepository(path string, log zerolog.Logger) (*Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	repo := &Repository{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}
	if err := repo.ensureSchema(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) ensureSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS daily_prices (
			asset_id  TEXT NOT NULL,
			date      TEXT NOT NULL,
			usd_close REAL NOT NULL,
			PRIMARY KEY (asset_id, date)
		);
		CREATE TABLE IF NOT EXISTS fx_rates (
			date        TEXT NOT NULL PRIMARY KEY,
			irr_per_usd REAL NOT NULL
		);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// RecordDailyPrice upserts one asset's close for a date.
func (r *Repository) RecordDailyPrice(p DailyPrice) error {
	_, err := r.db.Exec(`
		INSERT INTO daily_prices (asset_id, date, usd_close)
		VALUES (?, ?, ?)
		ON CONFLICT(asset_id, date) DO UPDATE SET usd_close = excluded.usd_close
	`, p.AssetID, p.Date, p.USDClose)
	if err != nil {
		return fmt.Errorf("failed to record daily price for %s: %w", p.AssetID, err)
	}
	return nil
}

// RecordFxRate upserts the IRR/USD rate for a date.
func (r *Repository) RecordFxRate(rate FxRate) error {
	_, err := r.db.Exec(`
		INSERT INTO fx_rates (date, irr_per_usd)
		VALUES (?, ?)
		ON CONFLICT(date) DO UPDATE SET irr_per_usd = excluded.irr_per_usd
	`, rate.Date, rate.IrrPerUSD)
	if err != nil {
		return fmt.Errorf("failed to record fx rate: %w", err)
	}
	return nil
}

// RecordView stores every priced asset of a market view under its date.
func (r *Repository) RecordView(asOf time.Time, usdPrices map[string]float64, irrPerUSD float64) error {
	date := asOf.UTC().Format("2006-01-02")
	for assetID, price := range usdPrices {
		if price <= 0 {
			continue
		}
		if err := r.RecordDailyPrice(DailyPrice{AssetID: assetID, Date: date, USDClose: price}); err != nil {
			return err
		}
	}
	if irrPerUSD > 0 {
		if err := r.RecordFxRate(FxRate{Date: date, IrrPerUSD: irrPerUSD}); err != nil {
			return err
		}
	}
	r.log.Debug().Str("date", date).Int("assets", len(usdPrices)).Msg("Recorded market view")
	return nil
}

// GetCloses fetches the most recent daily closes for an asset, oldest first.
// At most limit points are returned.
func (r *Repository) GetCloses(assetID string, limit int) ([]float64, error) {
	rows, err := r.db.Query(`
		SELECT usd_close FROM (
			SELECT date, usd_close
			FROM daily_prices
			WHERE asset_id = ?
			ORDER BY date DESC
			LIMIT ?
		)
		ORDER BY date ASC
	`, assetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query closes for %s: %w", assetID, err)
	}
	defer rows.Close()

	var closes []float64
	for rows.Next() {
		var c float64
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan close: %w", err)
		}
		closes = append(closes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating closes: %w", err)
	}
	return closes, nil
}

// GetDailyPrices fetches the most recent price rows for an asset, newest first.
func (r *Repository) GetDailyPrices(assetID string, limit int) ([]DailyPrice, error) {
	rows, err := r.db.Query(`
		SELECT asset_id, date, usd_close
		FROM daily_prices
		WHERE asset_id = ?
		ORDER BY date DESC
		LIMIT ?
	`, assetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices for %s: %w", assetID, err)
	}
	defer rows.Close()

	var prices []DailyPrice
	for rows.Next() {
		var p DailyPrice
		if err := rows.Scan(&p.AssetID, &p.Date, &p.USDClose); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}
	return prices, nil
}

// LatestFxRate returns the most recent IRR/USD rate, or sql.ErrNoRows.
func (r *Repository) LatestFxRate() (FxRate, error) {
	var rate FxRate
	err := r.db.QueryRow(`
		SELECT date, irr_per_usd FROM fx_rates ORDER BY date DESC LIMIT 1
	`).Scan(&rate.Date, &rate.IrrPerUSD)
	if err != nil {
		return FxRate{}, fmt.Errorf("failed to query latest fx rate: %w", err)
	}
	return rate, nil
}

// CountDays returns how many dates an asset has history for.
func (r *Repository) CountDays(assetID string) (int, error) {
	var n int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM daily_prices WHERE asset_id = ?
	`, assetID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count history for %s: %w", assetID, err)
	}
	return n, nil
}
