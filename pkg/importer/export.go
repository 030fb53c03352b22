package importer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pluralchat/pluralchat-server/pkg/store"
)

// ExportVersion is the version stamped into own-format export documents.
const ExportVersion = "2.0"

// ExportDocument is the own-format export shape. Re-importing one of these
// reproduces the member and message set it was built from.
type ExportDocument struct {
	SystemInfo    map[string]string `json:"system_info"`
	Members       []MemberRecord    `json:"members"`
	Messages      []MessageRecord   `json:"messages"`
	ExportDate    string            `json:"export_date"`
	Version       string            `json:"version"`
	ThemeSettings map[string]string `json:"theme_settings,omitempty"`
}

// BuildExport assembles an export document from the stores. The settings
// store may be nil when theme settings should be left out.
func BuildExport(members store.MemberStore, messages store.MessageStore, systemInfo store.SystemInfoStore, settings store.SettingStore) (*ExportDocument, error) {
	info, err := systemInfo.All()
	if err != nil {
		return nil, fmt.Errorf("reading system info: %w", err)
	}
	if info == nil {
		info = map[string]string{}
	}
	// The format sniffer keys on system_info.export_date, so the date is
	// stamped both there and at the top level.
	info["export_date"] = time.Now().Format(time.RFC3339)
	info["version"] = ExportVersion

	allMembers, err := members.GetAll()
	if err != nil {
		return nil, fmt.Errorf("reading members: %w", err)
	}
	nameByID := make(map[int]string, len(allMembers))

	doc := &ExportDocument{
		SystemInfo: info,
		Members:    []MemberRecord{},
		Messages:   []MessageRecord{},
		ExportDate: time.Now().Format(time.RFC3339),
		Version:    ExportVersion,
	}

	for _, m := range allMembers {
		nameByID[m.ID] = m.Name
		doc.Members = append(doc.Members, MemberRecord{
			ID:          m.ID,
			Name:        m.Name,
			Pronouns:    m.Pronouns,
			AvatarPath:  m.AvatarPath,
			Color:       m.Color,
			Description: m.Description,
			ExternalID:  m.PKID,
			ProxyTags:   m.ProxyTags,
		})
	}

	allMessages, err := messages.All()
	if err != nil {
		return nil, fmt.Errorf("reading messages: %w", err)
	}
	for _, msg := range allMessages {
		doc.Messages = append(doc.Messages, MessageRecord{
			MemberID:   msg.MemberID,
			MemberName: nameByID[msg.MemberID],
			Message:    msg.Message,
			Timestamp:  msg.Timestamp,
		})
	}

	if settings != nil {
		theme, err := settings.Get("theme", "")
		if err == nil && theme != "" {
			doc.ThemeSettings = map[string]string{"theme": theme}
		}
	}

	return doc, nil
}

// Marshal renders the document as indented JSON, the way export files are
// written to disk.
func (d *ExportDocument) Marshal() ([]byte, error) {
	return json.MarshalIndent(d, "", "    ")
}
