package store

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// SystemInfoStore holds free-form metadata about the plural system itself
// (name, external system ID, import provenance).
type SystemInfoStore interface {
	Get(key, fallback string) (string, error)
	Set(key, value string) error
	All() (map[string]string, error)
}

type sqliteSystemInfoStore struct {
	db *sqlx.DB
}

// NewSystemInfo creates a new system info store.
func NewSystemInfo(dbconn *sqlx.DB) SystemInfoStore {
	return &sqliteSystemInfoStore{db: dbconn}
}

func (s *sqliteSystemInfoStore) Get(key, fallback string) (string, error) {
	var value string
	err := s.db.Get(&value, `SELECT value FROM system_info WHERE key = ?;`, key)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *sqliteSystemInfoStore) Set(key, value string) error {
	stmt := `
	INSERT INTO system_info (key, value, updated_at)
	VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(key)
	DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP;
	`
	_, err := s.db.Exec(stmt, key, value)
	return err
}

func (s *sqliteSystemInfoStore) All() (map[string]string, error) {
	rows, err := s.db.Queryx(`SELECT key, value FROM system_info;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	info := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		info[key] = value
	}
	return info, rows.Err()
}
