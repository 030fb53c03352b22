package store

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pluralchat/pluralchat-server/pkg/models"
)

var selectDiary = `
SELECT d.*, m.name AS member_name
FROM diary_entries d
JOIN members m ON d.member_id = m.id
`

// DiaryStore provides database operations for diary entries.
type DiaryStore interface {
	Add(memberID int, title *string, content string) (int, error)
	Get(entryID int) (*models.DiaryEntry, error)
	// List retrieves entries newest first, optionally filtered by member
	// (memberID 0 means all members) and capped at limit (0 means no cap).
	List(memberID, limit int) ([]*models.DiaryEntry, error)
	Update(entryID int, title *string, content *string) error
	Delete(entryID int) error
	// Search finds entries whose title or content contains term.
	Search(term string, memberID int) ([]*models.DiaryEntry, error)
}

type sqliteDiaryStore struct {
	db *sqlx.DB
}

// NewDiary creates a new diary store.
func NewDiary(dbconn *sqlx.DB) DiaryStore {
	return &sqliteDiaryStore{db: dbconn}
}

func (s *sqliteDiaryStore) Add(memberID int, title *string, content string) (int, error) {
	stmt := `
	INSERT INTO diary_entries (member_id, title, content)
	VALUES (?, ?, ?);
	`
	res, err := s.db.Exec(stmt, memberID, title, content)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return int(id), err
}

func (s *sqliteDiaryStore) Get(entryID int) (*models.DiaryEntry, error) {
	var entry models.DiaryEntry
	err := s.db.Get(&entry, selectDiary+" WHERE d.id = ?;", entryID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *sqliteDiaryStore) List(memberID, limit int) ([]*models.DiaryEntry, error) {
	stmt := selectDiary
	args := []any{}
	if memberID != 0 {
		stmt += " WHERE d.member_id = ?"
		args = append(args, memberID)
	}
	stmt += " ORDER BY d.created_at DESC"
	if limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, limit)
	}
	var entries []*models.DiaryEntry
	err := s.db.Select(&entries, stmt+";", args...)
	if err == sql.ErrNoRows {
		return []*models.DiaryEntry{}, nil
	}
	return entries, err
}

func (s *sqliteDiaryStore) Update(entryID int, title *string, content *string) error {
	if title == nil && content == nil {
		return nil
	}
	stmt := "UPDATE diary_entries SET updated_at = CURRENT_TIMESTAMP"
	args := []any{}
	if title != nil {
		stmt += ", title = ?"
		args = append(args, *title)
	}
	if content != nil {
		stmt += ", content = ?"
		args = append(args, *content)
	}
	stmt += " WHERE id = ?;"
	args = append(args, entryID)
	_, err := s.db.Exec(stmt, args...)
	return err
}

func (s *sqliteDiaryStore) Delete(entryID int) error {
	_, err := s.db.Exec(`DELETE FROM diary_entries WHERE id = ?;`, entryID)
	return err
}

func (s *sqliteDiaryStore) Search(term string, memberID int) ([]*models.DiaryEntry, error) {
	pattern := "%" + term + "%"
	stmt := selectDiary + " WHERE (d.title LIKE ? OR d.content LIKE ?)"
	args := []any{pattern, pattern}
	if memberID != 0 {
		stmt += " AND d.member_id = ?"
		args = append(args, memberID)
	}
	stmt += " ORDER BY d.created_at DESC;"
	var entries []*models.DiaryEntry
	err := s.db.Select(&entries, stmt, args...)
	if err == sql.ErrNoRows {
		return []*models.DiaryEntry{}, nil
	}
	return entries, err
}
