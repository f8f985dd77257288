// Package portfolio hosts the committed portfolio state: persistence in
// portfolio.db and the single-writer service that drives the engine.
package portfolio

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/blumarkets/hram/internal/database"
	"github.com/blumarkets/hram/internal/domain"
)

const (
	metaCashIrr       = "cash_irr"
	metaTargetPct     = "target_layer_pct"
	metaLastRebalance = "last_rebalanced_at"
)

// Repository persists the committed portfolio state. The ledger slice is
// not stored here; the ledger module owns its own append-only database.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "portfolio").Logger(),
	}
}

// Save replaces the stored state with the given one, atomically.
// Pending drafts are deliberately not persisted: a restart discards them.
func (r *Repository) Save(state domain.PortfolioState) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if err := saveMeta(tx, metaCashIrr, strconv.FormatInt(state.CashIrr, 10)); err != nil {
		return err
	}
	targets, err := json.Marshal(state.TargetLayerPct)
	if err != nil {
		return fmt.Errorf("marshal targets: %w", err)
	}
	if err := saveMeta(tx, metaTargetPct, string(targets)); err != nil {
		return err
	}
	var lastRebalance string
	if !state.LastRebalancedAt.IsZero() {
		lastRebalance = state.LastRebalancedAt.UTC().Format(time.RFC3339Nano)
	}
	if err := saveMeta(tx, metaLastRebalance, lastRebalance); err != nil {
		return err
	}

	for _, table := range []string{"holdings", "loans", "protections"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, h := range state.Holdings {
		var purchasedAt *string
		if h.PurchasedAt != nil {
			s := h.PurchasedAt.UTC().Format(time.RFC3339Nano)
			purchasedAt = &s
		}
		_, err := tx.Exec(`
			INSERT INTO holdings (asset_id, quantity, frozen, purchased_at)
			VALUES (?, ?, ?, ?)
		`, h.AssetID, h.Quantity, h.Frozen, purchasedAt)
		if err != nil {
			return fmt.Errorf("save holding %s: %w", h.AssetID, err)
		}
	}

	for _, l := range state.Loans {
		installments, err := json.Marshal(l.Installments)
		if err != nil {
			return fmt.Errorf("marshal installments for %s: %w", l.ID, err)
		}
		_, err = tx.Exec(`
			INSERT INTO loans (id, collateral_asset_id, collateral_quantity,
				amount_irr, interest_rate, duration_days, status, created_at, installments)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, l.ID, l.CollateralAssetID, l.CollateralQuantity, l.AmountIrr,
			l.InterestRate, l.DurationDays, string(l.Status),
			l.CreatedAt.UTC().Format(time.RFC3339Nano), string(installments))
		if err != nil {
			return fmt.Errorf("save loan %s: %w", l.ID, err)
		}
	}

	for _, p := range state.Protections {
		_, err := tx.Exec(`
			INSERT INTO protections (id, asset_id, notional_irr, premium_irr,
				duration_days, start, end, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.AssetID, p.NotionalIrr, p.PremiumIrr, p.DurationDays,
			p.Start.UTC().Format(time.RFC3339Nano),
			p.End.UTC().Format(time.RFC3339Nano), string(p.Status))
		if err != nil {
			return fmt.Errorf("save protection %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Load reads the stored state. found is false when the database has never
// been saved to, letting the caller seed an initial state.
func (r *Repository) Load() (state domain.PortfolioState, found bool, err error) {
	var rawCash string
	err = r.db.QueryRow(`SELECT value FROM portfolio_meta WHERE key = ?`, metaCashIrr).Scan(&rawCash)
	if err == sql.ErrNoRows {
		return domain.PortfolioState{}, false, nil
	}
	if err != nil {
		return domain.PortfolioState{}, false, fmt.Errorf("load cash: %w", err)
	}
	if state.CashIrr, err = strconv.ParseInt(rawCash, 10, 64); err != nil {
		return domain.PortfolioState{}, false, fmt.Errorf("parse cash: %w", err)
	}

	var rawTargets string
	err = r.db.QueryRow(`SELECT value FROM portfolio_meta WHERE key = ?`, metaTargetPct).Scan(&rawTargets)
	if err != nil {
		return domain.PortfolioState{}, false, fmt.Errorf("load targets: %w", err)
	}
	if err := json.Unmarshal([]byte(rawTargets), &state.TargetLayerPct); err != nil {
		return domain.PortfolioState{}, false, fmt.Errorf("parse targets: %w", err)
	}

	var rawLastRebalance string
	err = r.db.QueryRow(`SELECT value FROM portfolio_meta WHERE key = ?`, metaLastRebalance).Scan(&rawLastRebalance)
	if err != nil && err != sql.ErrNoRows {
		return domain.PortfolioState{}, false, fmt.Errorf("load last rebalance: %w", err)
	}
	if rawLastRebalance != "" {
		if state.LastRebalancedAt, err = time.Parse(time.RFC3339Nano, rawLastRebalance); err != nil {
			return domain.PortfolioState{}, false, fmt.Errorf("parse last rebalance: %w", err)
		}
	}

	if state.Holdings, err = r.loadHoldings(); err != nil {
		return domain.PortfolioState{}, false, err
	}
	if state.Loans, err = r.loadLoans(); err != nil {
		return domain.PortfolioState{}, false, err
	}
	if state.Protections, err = r.loadProtections(); err != nil {
		return domain.PortfolioState{}, false, err
	}
	return state, true, nil
}

func (r *Repository) loadHoldings() ([]domain.Holding, error) {
	rows, err := r.db.Query(`SELECT asset_id, quantity, frozen, purchased_at FROM holdings ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("load holdings: %w", err)
	}
	defer rows.Close()

	var holdings []domain.Holding
	for rows.Next() {
		var h domain.Holding
		var purchasedAt *string
		if err := rows.Scan(&h.AssetID, &h.Quantity, &h.Frozen, &purchasedAt); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		if purchasedAt != nil {
			at, err := time.Parse(time.RFC3339Nano, *purchasedAt)
			if err != nil {
				return nil, fmt.Errorf("parse purchased_at for %s: %w", h.AssetID, err)
			}
			h.PurchasedAt = &at
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

func (r *Repository) loadLoans() ([]domain.Loan, error) {
	rows, err := r.db.Query(`
		SELECT id, collateral_asset_id, collateral_quantity, amount_irr,
			interest_rate, duration_days, status, created_at, installments
		FROM loans ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("load loans: %w", err)
	}
	defer rows.Close()

	var loans []domain.Loan
	for rows.Next() {
		var l domain.Loan
		var status, createdAt, installments string
		if err := rows.Scan(&l.ID, &l.CollateralAssetID, &l.CollateralQuantity,
			&l.AmountIrr, &l.InterestRate, &l.DurationDays,
			&status, &createdAt, &installments); err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		l.Status = domain.LoanStatus(status)
		if l.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at for %s: %w", l.ID, err)
		}
		if err := json.Unmarshal([]byte(installments), &l.Installments); err != nil {
			return nil, fmt.Errorf("parse installments for %s: %w", l.ID, err)
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

func (r *Repository) loadProtections() ([]domain.Protection, error) {
	rows, err := r.db.Query(`
		SELECT id, asset_id, notional_irr, premium_irr, duration_days, start, end, status
		FROM protections ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("load protections: %w", err)
	}
	defer rows.Close()

	var protections []domain.Protection
	for rows.Next() {
		var p domain.Protection
		var start, end, status string
		if err := rows.Scan(&p.ID, &p.AssetID, &p.NotionalIrr, &p.PremiumIrr,
			&p.DurationDays, &start, &end, &status); err != nil {
			return nil, fmt.Errorf("scan protection: %w", err)
		}
		p.Status = domain.ProtectionStatus(status)
		if p.Start, err = time.Parse(time.RFC3339Nano, start); err != nil {
			return nil, fmt.Errorf("parse start for %s: %w", p.ID, err)
		}
		if p.End, err = time.Parse(time.RFC3339Nano, end); err != nil {
			return nil, fmt.Errorf("parse end for %s: %w", p.ID, err)
		}
		protections = append(protections, p)
	}
	return protections, rows.Err()
}

func saveMeta(tx *sql.Tx, key, value string) error {
	_, err := tx.Exec(`
		INSERT INTO portfolio_meta (key, value, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("save meta %s: %w", key, err)
	}
	return nil
}
