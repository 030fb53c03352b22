// Package pluralkit talks to the PluralKit API and maps its member records
// onto the local data model. The HTTP client and token storage live here;
// what happens to the mapped records is the caller's business.
package pluralkit

import (
	"strings"

	"github.com/pluralchat/pluralchat-server/pkg/models"
)

// System is the subset of a PluralKit system record the app consumes.
type System struct {
	ID          string `json:"id" mapstructure:"id"`
	Name        string `json:"name" mapstructure:"name"`
	Description string `json:"description" mapstructure:"description"`
	Tag         string `json:"tag" mapstructure:"tag"`
	Timezone    string `json:"timezone" mapstructure:"tz"`
}

// Member is a PluralKit member record as served by the API and found in
// export files.
type Member struct {
	ID          string            `json:"id" mapstructure:"id"`
	Name        string            `json:"name" mapstructure:"name"`
	DisplayName string            `json:"display_name" mapstructure:"display_name"`
	Pronouns    string            `json:"pronouns" mapstructure:"pronouns"`
	Color       string            `json:"color" mapstructure:"color"`
	Description string            `json:"description" mapstructure:"description"`
	AvatarURL   string            `json:"avatar_url" mapstructure:"avatar_url"`
	Birthday    string            `json:"birthday" mapstructure:"birthday"`
	ProxyTags   []models.ProxyTag `json:"proxy_tags" mapstructure:"proxy_tags"`
}

// Message is a PluralKit message record: the member field carries the
// external member ID, the timestamp is ISO-8601.
type Message struct {
	Member    string `json:"member" mapstructure:"member"`
	Content   string `json:"content" mapstructure:"content"`
	Timestamp string `json:"timestamp" mapstructure:"timestamp"`
	Channel   string `json:"channel" mapstructure:"channel"`
}

// MapMember converts a PluralKit member to the local model. The display name
// wins over the base name when both are present and different; the base name
// is then preserved in the description for traceability. The result always
// has a non-empty name.
func MapMember(pk Member) models.Member {
	displayName := strings.TrimSpace(pk.DisplayName)
	baseName := strings.TrimSpace(pk.Name)
	if baseName == "" {
		baseName = "Unknown"
	}

	name := baseName
	renamed := displayName != "" && displayName != baseName
	if renamed {
		name = displayName
	}
	if name == "" {
		name = "Unknown Member"
	}

	m := models.Member{
		Name:      name,
		ProxyTags: models.EncodeProxyTags(pk.ProxyTags),
	}
	if pk.ID != "" {
		m.PKID = &pk.ID
	}
	if pk.Pronouns != "" {
		m.Pronouns = &pk.Pronouns
	}
	if pk.Color != "" {
		m.Color = &pk.Color
	}
	if pk.AvatarURL != "" {
		m.AvatarPath = &pk.AvatarURL
	}

	description := pk.Description
	if renamed {
		if description != "" {
			description = "Original name: " + baseName + "\n\n" + description
		} else {
			description = "Original name: " + baseName
		}
	}
	if description != "" {
		m.Description = &description
	}

	return m
}
