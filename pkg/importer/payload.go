package importer

// MemberRecord is a member as it appears in an export document. ID is the
// local numeric id from an own-format export; ExternalID carries a
// PluralKit member id when the record came from that format.
type MemberRecord struct {
	ID          int     `json:"id,omitempty" mapstructure:"id"`
	Name        string  `json:"name" mapstructure:"name"`
	Pronouns    *string `json:"pronouns" mapstructure:"pronouns"`
	AvatarPath  *string `json:"avatar_path" mapstructure:"avatar_path"`
	Color       *string `json:"color" mapstructure:"color"`
	Description *string `json:"description" mapstructure:"description"`
	ExternalID  *string `json:"pk_id" mapstructure:"pk_id"`
	ProxyTags   *string `json:"proxy_tags" mapstructure:"proxy_tags"`
}

// MessageRecord is a message as it appears in an export document. Member
// resolution happens at merge time: MemberID refers to an own-format
// member id, MemberRef to an external member id, MemberName to a name in
// the post-import roster. The first of those that resolves wins.
type MessageRecord struct {
	MemberID   int    `json:"member_id,omitempty" mapstructure:"member_id"`
	MemberRef  string `json:"-" mapstructure:"-"`
	MemberName string `json:"member_name,omitempty" mapstructure:"member_name"`
	Message    string `json:"message" mapstructure:"message"`
	Timestamp  string `json:"timestamp" mapstructure:"timestamp"`
}

// Payload is the normalized result of parsing an export document, ready to
// be merged into the stores.
type Payload struct {
	Source        Format
	SystemInfo    map[string]string
	Members       []MemberRecord
	Messages      []MessageRecord
	ThemeSettings map[string]string
}
