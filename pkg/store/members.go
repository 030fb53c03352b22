package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pluralchat/pluralchat-server/pkg/models"
)

var selectMembers = `SELECT m.* FROM members m`

// memberColumns is the set of fields a partial update may touch.
var memberColumns = map[string]struct{}{
	"name":        {},
	"pronouns":    {},
	"avatar_path": {},
	"color":       {},
	"description": {},
	"pk_id":       {},
	"proxy_tags":  {},
}

// MemberStore provides database operations for system members.
type MemberStore interface {
	// GetByID retrieves a member by local ID, or nil if absent.
	GetByID(id int) (*models.Member, error)
	// GetByName retrieves a member by exact display name.
	GetByName(name string) (*models.Member, error)
	// GetByPKID retrieves a member by their external sync ID.
	GetByPKID(pkID string) (*models.Member, error)
	// GetAll retrieves all members ordered by name. The name ordering is a
	// contract: proxy matching iterates the roster in this order.
	GetAll() ([]*models.Member, error)
	// Add inserts a member and returns the assigned ID.
	Add(member *models.Member) (int, error)
	// Update applies a partial field patch to a member.
	Update(id int, fields map[string]any) error
	// SetAvatarPath rebinds a member's avatar reference.
	SetAvatarPath(id int, path string) error
	// Delete removes a member along with their messages and diary entries.
	Delete(id int) error
}

type sqliteMemberStore struct {
	db *sqlx.DB
}

// NewMembers creates a new member store.
func NewMembers(dbconn *sqlx.DB) MemberStore {
	return &sqliteMemberStore{db: dbconn}
}

func (s *sqliteMemberStore) GetByID(id int) (*models.Member, error) {
	var m models.Member
	err := s.db.Get(&m, selectMembers+" WHERE m.id = ?;", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *sqliteMemberStore) GetByName(name string) (*models.Member, error) {
	var m models.Member
	err := s.db.Get(&m, selectMembers+" WHERE m.name = ?;", name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *sqliteMemberStore) GetByPKID(pkID string) (*models.Member, error) {
	var m models.Member
	err := s.db.Get(&m, selectMembers+" WHERE m.pk_id = ?;", pkID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *sqliteMemberStore) GetAll() ([]*models.Member, error) {
	var members []*models.Member
	err := s.db.Select(&members, selectMembers+" ORDER BY m.name;")
	if err == sql.ErrNoRows {
		return []*models.Member{}, nil
	}
	return members, err
}

func (s *sqliteMemberStore) Add(member *models.Member) (int, error) {
	stmt := `
	INSERT INTO members (name, pronouns, avatar_path, color, description, pk_id, proxy_tags)
	VALUES (:name, :pronouns, :avatar_path, :color, :description, :pk_id, :proxy_tags);
	`
	res, err := s.db.NamedExec(stmt, member)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	member.ID = int(id)
	return member.ID, nil
}

func (s *sqliteMemberStore) Update(id int, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	assignments := make([]string, 0, len(fields))
	values := make([]any, 0, len(fields)+1)
	for col, val := range fields {
		if _, ok := memberColumns[col]; !ok {
			return fmt.Errorf("unknown member field %q", col)
		}
		assignments = append(assignments, col+" = ?")
		values = append(values, val)
	}
	values = append(values, id)
	stmt := "UPDATE members SET " + strings.Join(assignments, ", ") +
		", updated_at = CURRENT_TIMESTAMP WHERE id = ?;"
	_, err := s.db.Exec(stmt, values...)
	return err
}

func (s *sqliteMemberStore) SetAvatarPath(id int, path string) error {
	stmt := `
	UPDATE members
	SET avatar_path = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = ?;
	`
	_, err := s.db.Exec(stmt, path, id)
	return err
}

func (s *sqliteMemberStore) Delete(id int) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM messages WHERE member_id = ?;`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM diary_entries WHERE member_id = ?;`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM members WHERE id = ?;`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// IsNameConflict reports whether err is a uniqueness violation on the member
// name column. Import reconciliation recovers from these by renaming.
func IsNameConflict(err error) bool {
	var serr sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.ExtendedCode == sqlite3.ErrConstraintUnique &&
		strings.Contains(serr.Error(), "members.name")
}
