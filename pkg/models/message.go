package models

import "time"

// Message is a single logged chat message. Timestamp is the cosmetic HH:MM
// display string; ordering always uses Created.
type Message struct {
	ID        int       `db:"id" json:"id"`
	MemberID  int       `db:"member_id" json:"member_id"`
	Message   string    `db:"message" json:"message"`
	Timestamp string    `db:"timestamp" json:"timestamp"`
	Created   time.Time `db:"created_at" json:"created_at"`
}

// ChatMessage is a message joined with the display fields of its member.
// Member attributes are resolved at read time, never denormalized.
type ChatMessage struct {
	ID         int       `db:"id" json:"id"`
	Message    string    `db:"message" json:"message"`
	Timestamp  string    `db:"timestamp" json:"timestamp"`
	Created    time.Time `db:"created_at" json:"created_at"`
	MemberName string    `db:"member_name" json:"member_name"`
	AvatarPath *string   `db:"avatar_path" json:"avatar_path,omitempty"`
	Color      *string   `db:"color" json:"color,omitempty"`
}
