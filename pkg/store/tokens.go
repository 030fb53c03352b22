package store

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pluralchat/pluralchat-server/pkg/models"
)

var selectTokens = `
SELECT t.* FROM api_tokens t
`

// TokenStore provides database operations for sealed API tokens.
type TokenStore interface {
	Get(service string) (*models.APIToken, error)
	Save(token *models.APIToken) error
	// TouchSync records that a sync with the service just completed.
	TouchSync(service string) error
	Remove(service string) error
}

type sqliteTokenStore struct {
	db *sqlx.DB
}

// NewTokens creates a new token store.
func NewTokens(dbconn *sqlx.DB) TokenStore {
	return &sqliteTokenStore{db: dbconn}
}

func (s *sqliteTokenStore) Get(service string) (*models.APIToken, error) {
	var token models.APIToken
	err := s.db.Get(&token, selectTokens+" WHERE t.service = ?;", service)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (s *sqliteTokenStore) Save(token *models.APIToken) error {
	stmt := `
	INSERT INTO api_tokens (service, token_data, created_at)
	VALUES (:service, :token_data, CURRENT_TIMESTAMP)
	ON CONFLICT(service)
	DO UPDATE SET token_data = :token_data, created_at = CURRENT_TIMESTAMP;
	`
	_, err := s.db.NamedExec(stmt, token)
	return err
}

func (s *sqliteTokenStore) TouchSync(service string) error {
	stmt := `UPDATE api_tokens SET last_sync = CURRENT_TIMESTAMP WHERE service = ?;`
	_, err := s.db.Exec(stmt, service)
	return err
}

func (s *sqliteTokenStore) Remove(service string) error {
	stmt := `DELETE FROM api_tokens WHERE service = ?;`
	_, err := s.db.Exec(stmt, service)
	return err
}
