// Package snapshots persists periodic portfolio snapshots in the cache
// database. Snapshots are a rebuildable convenience for charts and
// debugging; the ledger remains the source of truth.
package snapshots

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/blumarkets/hram/internal/database"
	"github.com/blumarkets/hram/internal/domain"
)

// Snapshot is a flattened point-in-time capture. It holds only concrete
// types so the msgpack payload round-trips without custom decoding.
type Snapshot struct {
	TakenAt        time.Time                `msgpack:"taken_at" json:"taken_at"`
	CashIrr        int64                    `msgpack:"cash_irr" json:"cash_irr"`
	Holdings       []domain.Holding         `msgpack:"holdings" json:"holdings"`
	TargetLayerPct map[domain.Layer]int     `msgpack:"target_layer_pct" json:"target_layer_pct"`
	Loans          []domain.Loan            `msgpack:"loans" json:"loans"`
	Protections    []domain.Protection      `msgpack:"protections" json:"protections"`
	TotalIrr       int64                    `msgpack:"total_irr" json:"total_irr"`
	LayerIrr       map[domain.Layer]int64   `msgpack:"layer_irr" json:"layer_irr"`
	LayerPct       map[domain.Layer]float64 `msgpack:"layer_pct" json:"layer_pct"`
}

// Meta identifies a stored snapshot without decoding its payload.
type Meta struct {
	ID      int64     `json:"id"`
	TakenAt time.Time `json:"taken_at"`
}

// Capture builds a snapshot from the committed state and a market view.
func Capture(state domain.PortfolioState, view domain.MarketView, valuer domain.Valuer) Snapshot {
	alloc := valuer.AllocationOf(state.Holdings, view)
	return Snapshot{
		TakenAt:        view.AsOf,
		CashIrr:        state.CashIrr,
		Holdings:       state.Holdings,
		TargetLayerPct: state.TargetLayerPct,
		Loans:          state.Loans,
		Protections:    state.Protections,
		TotalIrr:       alloc.TotalIrr + state.CashIrr,
		LayerIrr:       alloc.LayerIrr,
		LayerPct:       alloc.LayerPct,
	}
}

// Store reads and writes snapshots in cache.db.
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

func NewStore(db *database.DB, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With().Str("repository", "snapshots").Logger(),
	}
}

// Save appends a snapshot and returns its id.
func (s *Store) Save(snap Snapshot) (int64, error) {
	payload, err := msgpack.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("encode snapshot: %w", err)
	}

	res, err := s.db.Exec(`INSERT INTO snapshots (taken_at, payload) VALUES (?, ?)`,
		snap.TakenAt.UTC().Format(time.RFC3339Nano), payload)
	if err != nil {
		return 0, fmt.Errorf("save snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("snapshot id: %w", err)
	}
	return id, nil
}

// Get decodes the snapshot with the given id.
func (s *Store) Get(id int64) (Snapshot, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM snapshots WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return Snapshot{}, fmt.Errorf("snapshot %d not found", id)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot %d: %w", id, err)
	}

	var snap Snapshot
	if err := msgpack.Unmarshal(payload, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %d: %w", id, err)
	}
	return snap, nil
}

// Latest decodes the most recent snapshot. found is false when none exist.
func (s *Store) Latest() (Snapshot, bool, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM snapshots ORDER BY id DESC LIMIT 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("load latest snapshot: %w", err)
	}

	var snap Snapshot
	if err := msgpack.Unmarshal(payload, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode latest snapshot: %w", err)
	}
	return snap, true, nil
}

// List returns snapshot metadata, newest first.
func (s *Store) List(limit int) ([]Meta, error) {
	rows, err := s.db.Query(`SELECT id, taken_at FROM snapshots ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var metas []Meta
	for rows.Next() {
		var m Meta
		var takenAt string
		if err := rows.Scan(&m.ID, &takenAt); err != nil {
			return nil, fmt.Errorf("scan snapshot meta: %w", err)
		}
		if m.TakenAt, err = time.Parse(time.RFC3339Nano, takenAt); err != nil {
			return nil, fmt.Errorf("parse taken_at for %d: %w", m.ID, err)
		}
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// Prune deletes all but the newest keep snapshots.
func (s *Store) Prune(keep int) (int64, error) {
	res, err := s.db.Exec(`
		DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	if deleted > 0 {
		s.log.Debug().Int64("deleted", deleted).Int("keep", keep).Msg("Pruned snapshots")
	}
	return deleted, nil
}

// SaveView caches the latest market view so a restart can render prices
// before the feed reconnects.
func (s *Store) SaveView(view domain.MarketView) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("encode market view: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO market_views (id, as_of, payload) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			as_of = excluded.as_of,
			payload = excluded.payload
	`, view.AsOf.UTC().Format(time.RFC3339Nano), string(payload))
	if err != nil {
		return fmt.Errorf("save market view: %w", err)
	}
	return nil
}

// LoadView returns the cached market view. found is false when no view
// has ever been cached.
func (s *Store) LoadView() (domain.MarketView, bool, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM market_views WHERE id = 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return domain.MarketView{}, false, nil
	}
	if err != nil {
		return domain.MarketView{}, false, fmt.Errorf("load market view: %w", err)
	}

	var view domain.MarketView
	if err := json.Unmarshal([]byte(payload), &view); err != nil {
		return domain.MarketView{}, false, fmt.Errorf("decode market view: %w", err)
	}
	return view, true, nil
}
