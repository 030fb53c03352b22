package avatar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pluralchat/pluralchat-server/pkg/models"
	"github.com/pluralchat/pluralchat-server/pkg/store"
)

// Outcome classifies what EnsureLocal did for a member.
type Outcome int

const (
	// OutcomeUnchanged means no download was needed: the reference was
	// empty, already local, or the target file already existed.
	OutcomeUnchanged Outcome = iota
	// OutcomeDownloaded means a new local asset was created.
	OutcomeDownloaded
	// OutcomeBlockedUnsafe means the URL failed the security policy and no
	// network call was made.
	OutcomeBlockedUnsafe
	// OutcomeFailed means fetch, decode or persist failed; the member's
	// reference is left unmodified.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeDownloaded:
		return "downloaded"
	case OutcomeBlockedUnsafe:
		return "blocked_unsafe"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Result reports the outcome of one pipeline run. SavingsPercent is only
// meaningful for OutcomeDownloaded; Err only for OutcomeFailed.
type Result struct {
	Outcome        Outcome
	SavingsPercent float64
	Err            error
}

const (
	lazyFetchTimeout = 10 * time.Second
	bulkFetchTimeout = 30 * time.Second
	maxFetchRetries  = 3
	maxAvatarBytes   = 20 << 20
)

// Pipeline downloads, normalizes and persists member avatars. The resolved
// state is one-way and idempotent: once a member's reference points at an
// existing local file the pipeline never fetches again.
type Pipeline struct {
	dir     string
	members store.MemberStore
	thumbs  *ThumbnailCache
	client  *http.Client
}

// New creates an avatar pipeline storing assets under dir. thumbs may be nil
// when no in-memory cache is wanted (e.g. the bulk CLI).
func New(dir string, members store.MemberStore, thumbs *ThumbnailCache) *Pipeline {
	return &Pipeline{
		dir:     dir,
		members: members,
		thumbs:  thumbs,
		client:  &http.Client{Timeout: lazyFetchTimeout},
	}
}

// LocalPath returns the deterministic asset path for a member. The naming
// contract (sanitized id, fixed extension) is stable across versions.
func (p *Pipeline) LocalPath(m *models.Member) string {
	return filepath.Join(p.dir, "member_"+SanitizeID(memberKey(m))+AvatarExtension)
}

func memberKey(m *models.Member) string {
	if m.ID != 0 {
		return strconv.Itoa(m.ID)
	}
	if m.PKID != nil && *m.PKID != "" {
		return *m.PKID
	}
	return "unknown"
}

// EnsureLocal makes sure the member has a normalized local avatar asset,
// downloading and converting it when the stored reference is still a remote
// URL. It never leaves the member record half-updated: on failure the
// reference is untouched.
func (p *Pipeline) EnsureLocal(ctx context.Context, m *models.Member) Result {
	return p.ensureLocal(ctx, m, p.client)
}

func (p *Pipeline) ensureLocal(ctx context.Context, m *models.Member, client *http.Client) Result {
	ref := ""
	if m.AvatarPath != nil {
		ref = *m.AvatarPath
	}

	if ref == "" {
		return Result{Outcome: OutcomeUnchanged}
	}

	if !IsRemote(ref) {
		// Local file; warm the thumbnail cache on first sight.
		if p.thumbs != nil && !p.thumbs.Has(m.ID) {
			if err := p.thumbs.Load(m.ID, ref); err != nil {
				slog.Warn("failed to load local avatar into cache", "member", m.Name, "error", err)
			}
		}
		return Result{Outcome: OutcomeUnchanged}
	}

	if !ValidateURL(ref) {
		slog.Warn("avatar URL failed security validation", "member", m.Name)
		return Result{Outcome: OutcomeBlockedUnsafe}
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	local := p.LocalPath(m)
	if _, err := os.Stat(local); err == nil {
		// Already downloaded; just rebind the reference.
		if err := p.bind(m, local); err != nil {
			return Result{Outcome: OutcomeFailed, Err: err}
		}
		return Result{Outcome: OutcomeUnchanged}
	}

	original, err := p.fetch(ctx, ref, client)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("downloading avatar: %w", err)}
	}

	normalized, err := Normalize(original)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	if err := writeAtomic(local, normalized); err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	if err := p.bind(m, local); err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	savings := float64(len(original)-len(normalized)) / float64(len(original)) * 100
	slog.Info("downloaded avatar",
		"member", m.Name,
		"original_bytes", len(original),
		"compressed_bytes", len(normalized),
		"savings_percent", fmt.Sprintf("%.1f", savings))
	return Result{Outcome: OutcomeDownloaded, SavingsPercent: savings}
}

// bind points the member record at the local asset and refreshes the
// thumbnail cache entry.
func (p *Pipeline) bind(m *models.Member, local string) error {
	if err := p.members.SetAvatarPath(m.ID, local); err != nil {
		return err
	}
	m.AvatarPath = &local
	if p.thumbs != nil {
		p.thumbs.Invalidate(m.ID)
		if err := p.thumbs.Load(m.ID, local); err != nil {
			slog.Warn("failed to refresh thumbnail cache", "member", m.Name, "error", err)
		}
	}
	return nil
}

func (p *Pipeline) fetch(ctx context.Context, url string, client *http.Client) ([]byte, error) {
	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			// Rate limited; worth backing off and retrying.
			return fmt.Errorf("rate limited by %s", req.Host)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("unexpected status %s", resp.Status))
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxAvatarBytes))
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxFetchRetries-1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return body, nil
}

// writeAtomic persists bytes with temp-name-then-rename semantics so a
// cancelled batch never leaves a truncated asset behind.
func writeAtomic(path string, data []byte) error {
	tmp := filepath.Join(filepath.Dir(path), uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
