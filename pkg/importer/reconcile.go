package importer

import (
	"fmt"
	"log/slog"

	"github.com/pluralchat/pluralchat-server/pkg/models"
	"github.com/pluralchat/pluralchat-server/pkg/store"
)

// Stats summarises what a completed merge did.
type Stats struct {
	Source          string `json:"source"`
	MembersAdded    int    `json:"members_added"`
	MembersRenamed  int    `json:"members_renamed"`
	MessagesAdded   int    `json:"messages_added"`
	MessagesDropped int    `json:"messages_dropped"`
}

// Reconciler merges parsed export payloads into the local stores. Existing
// data is kept; imported members that collide on name are renamed with a
// numeric suffix instead of failing or overwriting.
type Reconciler struct {
	members    store.MemberStore
	messages   store.MessageStore
	systemInfo store.SystemInfoStore
	settings   store.SettingStore
}

// NewReconciler returns a reconciler over the given stores. The settings
// store may be nil when theme settings should be ignored.
func NewReconciler(members store.MemberStore, messages store.MessageStore, systemInfo store.SystemInfoStore, settings store.SettingStore) *Reconciler {
	return &Reconciler{members: members, messages: messages, systemInfo: systemInfo, settings: settings}
}

// Merge applies a payload on top of the existing data. Member name
// collisions are resolved by appending " (2)", " (3)" and so on until the
// insert succeeds. Messages are remapped through the id-translation table
// built during member insertion, falling back to a name lookup; messages
// that resolve to no member are dropped and counted, not fatal.
func (r *Reconciler) Merge(payload *Payload) (*Stats, error) {
	stats := &Stats{Source: payload.Source.String()}

	for key, value := range payload.SystemInfo {
		if err := r.systemInfo.Set(key, value); err != nil {
			return stats, fmt.Errorf("storing system info %q: %w", key, err)
		}
	}

	idMap := make(map[int]int)
	refMap := make(map[string]int)

	for _, rec := range payload.Members {
		// A member already known under the same external id is updated
		// in place rather than duplicated.
		if rec.ExternalID != nil && *rec.ExternalID != "" {
			existing, err := r.members.GetByPKID(*rec.ExternalID)
			if err != nil {
				return stats, fmt.Errorf("looking up member %q: %w", *rec.ExternalID, err)
			}
			if existing != nil {
				if err := r.updateMember(existing.ID, rec); err != nil {
					return stats, err
				}
				if rec.ID != 0 {
					idMap[rec.ID] = existing.ID
				}
				refMap[*rec.ExternalID] = existing.ID
				continue
			}
		}

		newID, renamed, err := r.insertMember(rec)
		if err != nil {
			return stats, err
		}
		stats.MembersAdded++
		if renamed {
			stats.MembersRenamed++
		}
		if rec.ID != 0 {
			idMap[rec.ID] = newID
		}
		if rec.ExternalID != nil && *rec.ExternalID != "" {
			refMap[*rec.ExternalID] = newID
		}
	}

	for _, msg := range payload.Messages {
		memberID, ok := r.resolveMember(msg, idMap, refMap)
		if !ok {
			stats.MessagesDropped++
			continue
		}
		if _, err := r.messages.Add(memberID, msg.Message, msg.Timestamp); err != nil {
			return stats, fmt.Errorf("storing imported message: %w", err)
		}
		stats.MessagesAdded++
	}

	if r.settings != nil {
		if theme, ok := payload.ThemeSettings["theme"]; ok {
			if err := r.settings.Set("theme", theme); err != nil {
				slog.Warn("failed to apply imported theme", "err", err)
			}
		}
	}

	slog.Info("import merged",
		"source", stats.Source,
		"members", stats.MembersAdded,
		"renamed", stats.MembersRenamed,
		"messages", stats.MessagesAdded,
		"dropped", stats.MessagesDropped)
	return stats, nil
}

func (r *Reconciler) updateMember(id int, rec MemberRecord) error {
	fields := map[string]any{
		"name":        rec.Name,
		"pronouns":    rec.Pronouns,
		"color":       rec.Color,
		"description": rec.Description,
		"proxy_tags":  rec.ProxyTags,
	}
	if rec.AvatarPath != nil {
		fields["avatar_path"] = rec.AvatarPath
	}
	if err := r.members.Update(id, fields); err != nil {
		if store.IsNameConflict(err) {
			slog.Warn("import skipping rename to conflicting name", "member_id", id)
			return nil
		}
		return fmt.Errorf("updating member %d: %w", id, err)
	}
	return nil
}

func (r *Reconciler) insertMember(rec MemberRecord) (id int, renamed bool, err error) {
	base := rec.Name
	if base == "" {
		base = "Unknown"
	}

	name := base
	counter := 1
	for {
		m := models.Member{
			Name:        name,
			Pronouns:    rec.Pronouns,
			AvatarPath:  rec.AvatarPath,
			Color:       rec.Color,
			Description: rec.Description,
			PKID:        rec.ExternalID,
			ProxyTags:   rec.ProxyTags,
		}
		id, err = r.members.Add(&m)
		if err == nil {
			return id, counter > 1, nil
		}
		if !store.IsNameConflict(err) {
			return 0, false, fmt.Errorf("inserting member %q: %w", name, err)
		}
		counter++
		name = fmt.Sprintf("%s (%d)", base, counter)
	}
}

func (r *Reconciler) resolveMember(msg MessageRecord, idMap map[int]int, refMap map[string]int) (int, bool) {
	if msg.MemberID != 0 {
		if id, ok := idMap[msg.MemberID]; ok {
			return id, true
		}
	}
	if msg.MemberRef != "" {
		if id, ok := refMap[msg.MemberRef]; ok {
			return id, true
		}
	}
	if msg.MemberName != "" {
		m, err := r.members.GetByName(msg.MemberName)
		if err == nil && m != nil {
			return m.ID, true
		}
	}
	return 0, false
}
