package models

import "time"

// APIToken is a sealed credential for an external sync service.
type APIToken struct {
	Service   string     `db:"service" json:"service"`
	TokenData string     `db:"token_data" json:"-"`
	LastSync  *time.Time `db:"last_sync" json:"last_sync,omitempty"`
	Created   time.Time  `db:"created_at" json:"created_at"`
}
