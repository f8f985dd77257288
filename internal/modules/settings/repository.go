// Package settings persists runtime-tunable configuration in the config
// database as a plain key/value store with typed accessors.
package settings

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/blumarkets/hram/internal/database"
)

// Repository reads and writes settings rows in config.db.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "settings").Logger(),
	}
}

// Get returns the raw value for key, or nil when the key is absent.
func (r *Repository) Get(key string) (*string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get setting %q: %w", key, err)
	}
	return &value, nil
}

// Set upserts a key, refreshing updated_at.
func (r *Repository) Set(key, value string) error {
	_, err := r.db.Exec(`
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// GetAll returns every setting keyed by name.
func (r *Repository) GetAll() (map[string]string, error) {
	rows, err := r.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// GetFloat parses the value as a float64. Missing keys return the fallback.
func (r *Repository) GetFloat(key string, fallback float64) (float64, error) {
	raw, err := r.Get(key)
	if err != nil {
		return 0, err
	}
	if raw == nil {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(*raw), 64)
	if err != nil {
		return 0, fmt.Errorf("setting %q is not a number: %w", key, err)
	}
	return f, nil
}

func (r *Repository) SetFloat(key string, value float64) error {
	return r.Set(key, strconv.FormatFloat(value, 'g', -1, 64))
}

// GetInt parses the value as an integer, accepting float renderings like
// "12.0" as long as they are whole.
func (r *Repository) GetInt(key string, fallback int64) (int64, error) {
	f, err := r.GetFloat(key, float64(fallback))
	if err != nil {
		return 0, err
	}
	n := int64(f)
	if float64(n) != f {
		return 0, fmt.Errorf("setting %q is not an integer: %v", key, f)
	}
	return n, nil
}

func (r *Repository) SetInt(key string, value int64) error {
	return r.Set(key, strconv.FormatInt(value, 10))
}

// GetBool treats "true", "1", "yes" and "on" (case-insensitive) as true.
func (r *Repository) GetBool(key string, fallback bool) (bool, error) {
	raw, err := r.Get(key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return fallback, nil
	}
	switch strings.ToLower(strings.TrimSpace(*raw)) {
	case "true", "1", "yes", "on":
		return true, nil
	default:
		return false, nil
	}
}

func (r *Repository) SetBool(key string, value bool) error {
	return r.Set(key, strconv.FormatBool(value))
}

// Delete removes a key. Deleting a missing key is not an error.
func (r *Repository) Delete(key string) error {
	if _, err := r.db.Exec(`DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete setting %q: %w", key, err)
	}
	return nil
}
