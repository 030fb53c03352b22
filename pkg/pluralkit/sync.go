package pluralkit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pluralchat/pluralchat-server/pkg/store"
)

// Progress is a point-in-time snapshot of a running sync, suitable for
// streaming to a client.
type Progress struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Percent int    `json:"percent"`
}

// SyncStats summarises what a completed member sync did.
type SyncStats struct {
	Fetched int `json:"fetched"`
	Added   int `json:"added"`
	Updated int `json:"updated"`
}

// Syncer runs PluralKit member synchronisation against the local stores.
// At most one sync runs at a time; starting a second one while the first
// is active returns an error.
type Syncer struct {
	members store.MemberStore
	tokens  store.TokenStore

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewSyncer returns a syncer over the given stores.
func NewSyncer(members store.MemberStore, tokens store.TokenStore) *Syncer {
	return &Syncer{members: members, tokens: tokens}
}

// Running reports whether a sync is currently active.
func (s *Syncer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Cancel aborts the active sync, if any.
func (s *Syncer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Syncer) begin(ctx context.Context) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil, fmt.Errorf("sync already in progress")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	return ctx, nil
}

func (s *Syncer) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// SyncMembers fetches the system's members from PluralKit and reconciles
// them into the member store, keyed on the external member ID. Existing
// members are updated in place, unknown ones inserted. The progress
// callback may be nil.
func (s *Syncer) SyncMembers(ctx context.Context, client *Client, progress func(Progress)) (*SyncStats, error) {
	ctx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.end()

	report := func(stage, message string, percent int) {
		if progress != nil {
			progress(Progress{Stage: stage, Message: message, Percent: percent})
		}
	}

	report("connecting", "Verifying PluralKit token", 10)
	sys, err := client.TestConnection(ctx)
	if err != nil {
		report("error", err.Error(), 100)
		return nil, fmt.Errorf("verifying token: %w", err)
	}
	slog.Info("pluralkit sync started", "system", sys.ID)

	report("fetching", "Fetching member list", 20)
	pkMembers, err := client.FetchMembers(ctx)
	if err != nil {
		report("error", err.Error(), 100)
		return nil, fmt.Errorf("fetching members: %w", err)
	}

	stats := &SyncStats{Fetched: len(pkMembers)}
	report("merging", fmt.Sprintf("Merging %d members", len(pkMembers)), 30)

	for i, pk := range pkMembers {
		if err := ctx.Err(); err != nil {
			report("error", "Sync cancelled", 100)
			return stats, err
		}

		mapped := MapMember(pk)
		existing, err := s.members.GetByPKID(pk.ID)
		if err != nil {
			return stats, fmt.Errorf("looking up member %q: %w", pk.ID, err)
		}

		if existing == nil {
			if _, err := s.members.Add(&mapped); err != nil {
				if store.IsNameConflict(err) {
					slog.Warn("sync skipping member with conflicting name", "pk_id", pk.ID, "name", mapped.Name)
					continue
				}
				return stats, fmt.Errorf("inserting member %q: %w", mapped.Name, err)
			}
			stats.Added++
		} else {
			fields := map[string]any{
				"name":        mapped.Name,
				"pronouns":    mapped.Pronouns,
				"color":       mapped.Color,
				"description": mapped.Description,
				"proxy_tags":  mapped.ProxyTags,
			}
			if mapped.AvatarPath != nil {
				fields["avatar_path"] = mapped.AvatarPath
			}
			if err := s.members.Update(existing.ID, fields); err != nil {
				if store.IsNameConflict(err) {
					slog.Warn("sync skipping rename to conflicting name", "pk_id", pk.ID, "name", mapped.Name)
					continue
				}
				return stats, fmt.Errorf("updating member %q: %w", mapped.Name, err)
			}
			stats.Updated++
		}

		if len(pkMembers) > 0 {
			pct := 60 + (i+1)*35/len(pkMembers)
			report("merging", fmt.Sprintf("Merged %s", mapped.Name), pct)
		}
	}

	if err := s.tokens.TouchSync("pluralkit"); err != nil {
		slog.Warn("failed to record sync time", "err", err)
	}

	report("done", fmt.Sprintf("Synced %d members (%d added, %d updated)", stats.Fetched, stats.Added, stats.Updated), 100)
	slog.Info("pluralkit sync finished", "fetched", stats.Fetched, "added", stats.Added, "updated", stats.Updated)
	return stats, nil
}
