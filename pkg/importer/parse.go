package importer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/pluralchat/pluralchat-server/pkg/models"
	"github.com/pluralchat/pluralchat-server/pkg/pluralkit"
)

// Parse classifies and decodes an export document. It returns
// ErrUnsupportedFormat when the document matches neither known shape.
func Parse(raw []byte) (*Payload, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding export file: %w", err)
	}

	switch Sniff(doc) {
	case FormatOwn:
		return parseOwn(doc)
	case FormatPluralKit:
		return parsePluralKit(doc)
	default:
		return nil, ErrUnsupportedFormat
	}
}

type ownDocument struct {
	SystemInfo    map[string]any `mapstructure:"system_info"`
	Members       []MemberRecord `mapstructure:"members"`
	Messages      []ownMessage   `mapstructure:"messages"`
	ThemeSettings map[string]any `mapstructure:"theme_settings"`
}

// ownMessage accepts both the current member_name key and the legacy
// member key for the name reference.
type ownMessage struct {
	MemberID   int    `mapstructure:"member_id"`
	MemberName string `mapstructure:"member_name"`
	Member     string `mapstructure:"member"`
	Message    string `mapstructure:"message"`
	Timestamp  string `mapstructure:"timestamp"`
}

func parseOwn(doc map[string]any) (*Payload, error) {
	var decoded ownDocument
	if err := mapstructure.Decode(doc, &decoded); err != nil {
		return nil, fmt.Errorf("decoding own-format export: %w", err)
	}

	payload := &Payload{
		Source:        FormatOwn,
		SystemInfo:    stringMap(decoded.SystemInfo),
		Members:       decoded.Members,
		ThemeSettings: stringMap(decoded.ThemeSettings),
	}

	for _, msg := range decoded.Messages {
		name := msg.MemberName
		if name == "" {
			name = msg.Member
		}
		payload.Messages = append(payload.Messages, MessageRecord{
			MemberID:   msg.MemberID,
			MemberName: name,
			Message:    msg.Message,
			Timestamp:  msg.Timestamp,
		})
	}

	return payload, nil
}

type pkDocument struct {
	ID          string              `mapstructure:"id"`
	Name        string              `mapstructure:"name"`
	Description string              `mapstructure:"description"`
	Tag         string              `mapstructure:"tag"`
	Timezone    string              `mapstructure:"timezone"`
	Members     []pluralkit.Member  `mapstructure:"members"`
	Messages    []pluralkit.Message `mapstructure:"messages"`
}

func parsePluralKit(doc map[string]any) (*Payload, error) {
	var decoded pkDocument
	if err := mapstructure.Decode(doc, &decoded); err != nil {
		return nil, fmt.Errorf("decoding pluralkit export: %w", err)
	}

	systemName := decoded.Name
	if systemName == "" {
		systemName = "Imported System"
	}
	info := map[string]string{
		"name":          systemName,
		"pk_system_id":  decoded.ID,
		"export_date":   time.Now().Format(time.RFC3339),
		"version":       "2.0",
		"imported_from": "pluralkit",
	}
	if decoded.Description != "" {
		info["description"] = decoded.Description
	}
	if decoded.Tag != "" {
		info["tag"] = decoded.Tag
	}
	if decoded.Timezone != "" {
		info["timezone"] = decoded.Timezone
	}

	payload := &Payload{Source: FormatPluralKit, SystemInfo: info}

	for _, pk := range decoded.Members {
		mapped := pluralkit.MapMember(pk)
		payload.Members = append(payload.Members, memberRecordFromModel(mapped))
	}

	for _, msg := range decoded.Messages {
		payload.Messages = append(payload.Messages, MessageRecord{
			MemberRef: msg.Member,
			Message:   msg.Content,
			Timestamp: clockFromISO(msg.Timestamp),
		})
	}

	return payload, nil
}

func memberRecordFromModel(m models.Member) MemberRecord {
	return MemberRecord{
		Name:        m.Name,
		Pronouns:    m.Pronouns,
		AvatarPath:  m.AvatarPath,
		Color:       m.Color,
		Description: m.Description,
		ExternalID:  m.PKID,
		ProxyTags:   m.ProxyTags,
	}
}

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// clockFromISO reduces an ISO-8601 timestamp to the HH:MM display form the
// message store expects. Unparseable input falls back to the current time.
func clockFromISO(value string) string {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("15:04")
		}
	}
	if value != "" {
		slog.Warn("unparseable message timestamp, using current time", "timestamp", value)
	}
	return time.Now().Format("15:04")
}

func stringMap(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprintf("%v", v)
		}
	}
	return out
}
