package store

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// SettingStore holds app-level preferences (theme, fonts, window state).
// These live in the app database, separate from system data.
type SettingStore interface {
	Get(key, fallback string) (string, error)
	Set(key, value string) error
	All() (map[string]string, error)
}

type sqliteSettingStore struct {
	db *sqlx.DB
}

// NewSettings creates a new settings store.
func NewSettings(dbconn *sqlx.DB) SettingStore {
	return &sqliteSettingStore{db: dbconn}
}

func (s *sqliteSettingStore) Get(key, fallback string) (string, error) {
	var value string
	err := s.db.Get(&value, `SELECT value FROM app_settings WHERE key = ?;`, key)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *sqliteSettingStore) Set(key, value string) error {
	stmt := `
	INSERT INTO app_settings (key, value, updated_at)
	VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(key)
	DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP;
	`
	_, err := s.db.Exec(stmt, key, value)
	return err
}

func (s *sqliteSettingStore) All() (map[string]string, error) {
	rows, err := s.db.Queryx(`SELECT key, value FROM app_settings;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	settings := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}
