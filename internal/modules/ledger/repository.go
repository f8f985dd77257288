// Package ledger persists the append-only transaction ledger.
//
// The ledger database runs with full synchronous writes; an entry that has
// been appended survives power loss. Nothing is ever updated or deleted.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/blumarkets/hram/internal/database"
	"github.com/blumarkets/hram/internal/domain"
)

// Record is the read model of a persisted entry. Details stay raw JSON:
// audits render them as-is and never need the typed payload back.
type Record struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	Details   json.RawMessage `json:"details"`
}

// Repository provides append and query access to the ledger database.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a ledger repository.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "ledger").Logger(),
	}
}

// Append persists a committed entry. The id must be unique; re-appending
// an existing id is an error, never an overwrite.
func (r *Repository) Append(entry domain.LedgerEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger details: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO ledger_entries (id, timestamp, type, details)
		VALUES (?, ?, ?, ?)
	`, entry.ID, entry.Timestamp.UTC().Format(time.RFC3339Nano), entry.Type, string(details))
	if err != nil {
		return fmt.Errorf("failed to append ledger entry %s: %w", entry.ID, err)
	}

	r.log.Info().Str("id", entry.ID).Str("type", entry.Type).Msg("Appended ledger entry")
	return nil
}

// List returns the most recent entries, newest first, optionally filtered
// by entry type.
func (r *Repository) List(limit int, entryType string) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, timestamp, type, details FROM ledger_entries`
	args := []interface{}{}
	if entryType != "" {
		query += ` WHERE type = ?`
		args = append(args, entryType)
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return records, nil
}

// Get fetches one entry by id.
func (r *Repository) Get(id string) (Record, error) {
	row := r.db.QueryRow(`
		SELECT id, timestamp, type, details FROM ledger_entries WHERE id = ?
	`, id)

	var rec Record
	var ts, details string
	if err := row.Scan(&rec.ID, &ts, &rec.Type, &details); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, fmt.Errorf("ledger entry %s not found", id)
		}
		return Record{}, fmt.Errorf("failed to load ledger entry %s: %w", id, err)
	}

	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Record{}, fmt.Errorf("corrupt timestamp on ledger entry %s: %w", id, err)
	}
	rec.Timestamp = parsed
	rec.Details = json.RawMessage(details)
	return rec, nil
}

// Count returns the total number of entries.
func (r *Repository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM ledger_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	return n, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var rec Record
	var ts, details string
	if err := rows.Scan(&rec.ID, &ts, &rec.Type, &details); err != nil {
		return Record{}, fmt.Errorf("failed to scan ledger entry: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Record{}, fmt.Errorf("corrupt timestamp on ledger entry %s: %w", rec.ID, err)
	}
	rec.Timestamp = parsed
	rec.Details = json.RawMessage(details)
	return rec, nil
}
