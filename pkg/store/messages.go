package store

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pluralchat/pluralchat-server/pkg/models"
)

// MessageStore provides database operations for logged chat messages.
// Messages are append-only: they are never mutated and are removed only when
// their member is deleted.
type MessageStore interface {
	// Add inserts a message and returns its ID. An empty timestamp is
	// replaced with the current wall-clock HH:MM.
	Add(memberID int, text, timestamp string) (int, error)
	// Recent retrieves up to limit messages joined with member display
	// fields, oldest first, ordered by creation instant.
	Recent(limit int) ([]*models.ChatMessage, error)
	// ForMember retrieves all raw message rows for one member.
	ForMember(memberID int) ([]*models.Message, error)
	// All retrieves every raw message row, oldest first.
	All() ([]*models.Message, error)
}

type sqliteMessageStore struct {
	db *sqlx.DB
}

// NewMessages creates a new message store.
func NewMessages(dbconn *sqlx.DB) MessageStore {
	return &sqliteMessageStore{db: dbconn}
}

func (s *sqliteMessageStore) Add(memberID int, text, timestamp string) (int, error) {
	if timestamp == "" {
		timestamp = time.Now().Format("15:04")
	}
	stmt := `
	INSERT INTO messages (member_id, message, timestamp)
	VALUES (?, ?, ?);
	`
	res, err := s.db.Exec(stmt, memberID, text, timestamp)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return int(id), err
}

func (s *sqliteMessageStore) Recent(limit int) ([]*models.ChatMessage, error) {
	stmt := `
	SELECT m.id, m.message, m.timestamp, m.created_at,
	       mb.name AS member_name, mb.avatar_path, mb.color
	FROM messages m
	JOIN members mb ON m.member_id = mb.id
	ORDER BY m.created_at DESC, m.id DESC
	LIMIT ?;
	`
	var messages []*models.ChatMessage
	err := s.db.Select(&messages, stmt, limit)
	if err == sql.ErrNoRows {
		return []*models.ChatMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	// Reverse into chronological order for display.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *sqliteMessageStore) ForMember(memberID int) ([]*models.Message, error) {
	var messages []*models.Message
	err := s.db.Select(&messages,
		`SELECT * FROM messages WHERE member_id = ? ORDER BY created_at, id;`, memberID)
	if err == sql.ErrNoRows {
		return []*models.Message{}, nil
	}
	return messages, err
}

func (s *sqliteMessageStore) All() ([]*models.Message, error) {
	var messages []*models.Message
	err := s.db.Select(&messages, `SELECT * FROM messages ORDER BY created_at, id;`)
	if err == sql.ErrNoRows {
		return []*models.Message{}, nil
	}
	return messages, err
}
