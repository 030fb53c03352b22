package models

import "time"

// DiaryEntry is a private journal entry owned by a member.
type DiaryEntry struct {
	ID         int       `db:"id" json:"id"`
	MemberID   int       `db:"member_id" json:"member_id"`
	Title      *string   `db:"title" json:"title,omitempty"`
	Content    string    `db:"content" json:"content"`
	Created    time.Time `db:"created_at" json:"created_at"`
	Updated    time.Time `db:"updated_at" json:"updated_at"`
	MemberName string    `db:"member_name" json:"member_name,omitempty"`
}
