package models

import (
	"encoding/json"
	"time"
)

// Member is one identity within the plural system.
type Member struct {
	ID          int       `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Pronouns    *string   `db:"pronouns" json:"pronouns,omitempty"`
	AvatarPath  *string   `db:"avatar_path" json:"avatar_path,omitempty"`
	Color       *string   `db:"color" json:"color,omitempty"`
	Description *string   `db:"description" json:"description,omitempty"`
	PKID        *string   `db:"pk_id" json:"pk_id,omitempty"`
	ProxyTags   *string   `db:"proxy_tags" json:"proxy_tags,omitempty"`
	Created     time.Time `db:"created_at" json:"created_at"`
	Updated     time.Time `db:"updated_at" json:"updated_at"`
}

// ProxyTag is a single prefix/suffix routing pattern bound to a member.
// Both fields may be null in stored and imported data.
type ProxyTag struct {
	Prefix *string `json:"prefix"`
	Suffix *string `json:"suffix"`
}

// PrefixString returns the prefix, treating null as empty.
func (t ProxyTag) PrefixString() string {
	if t.Prefix == nil {
		return ""
	}
	return *t.Prefix
}

// SuffixString returns the suffix, treating null as empty.
func (t ProxyTag) SuffixString() string {
	if t.Suffix == nil {
		return ""
	}
	return *t.Suffix
}

// ParseProxyTags decodes the member's stored proxy tag JSON. A missing or
// unparseable value means the member has no tags; the error is returned so
// callers can log it, but it is never fatal.
func (m *Member) ParseProxyTags() ([]ProxyTag, error) {
	if m.ProxyTags == nil || *m.ProxyTags == "" {
		return nil, nil
	}
	var tags []ProxyTag
	if err := json.Unmarshal([]byte(*m.ProxyTags), &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// EncodeProxyTags serializes proxy tags for storage. An empty list is stored
// as null, not as "[]".
func EncodeProxyTags(tags []ProxyTag) *string {
	if len(tags) == 0 {
		return nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}
