package avatar

import (
	"context"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/pluralchat/pluralchat-server/pkg/models"
	"github.com/pluralchat/pluralchat-server/pkg/store"
)

func newTestStores(t *testing.T) store.MemberStore {
	t.Helper()
	db, err := store.OpenSystem(filepath.Join(t.TempDir(), "system.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewMembers(db)
}

func addMember(t *testing.T, members store.MemberStore, name, avatarRef string) *models.Member {
	t.Helper()
	m := &models.Member{Name: name}
	if avatarRef != "" {
		m.AvatarPath = &avatarRef
	}
	if _, err := members.Add(m); err != nil {
		t.Fatalf("adding member: %v", err)
	}
	return m
}

// avatarServer serves a valid PNG and counts requests.
func avatarServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	data := encodePNG(t, 300, 200, color.RGBA{R: 10, G: 120, B: 200, A: 255})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestEnsureLocalUntrustedHostMakesNoNetworkCall(t *testing.T) {
	members := newTestStores(t)
	var calls atomic.Int64

	p := New(t.TempDir(), members, nil)
	p.client = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, nil
	})}

	m := addMember(t, members, "Eve", "https://evil.example.com/x.png")
	res := p.EnsureLocal(context.Background(), m)
	if res.Outcome != OutcomeBlockedUnsafe {
		t.Fatalf("outcome = %s, want blocked_unsafe", res.Outcome)
	}
	if calls.Load() != 0 {
		t.Errorf("expected zero network calls, got %d", calls.Load())
	}

	stored, err := members.GetByID(m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.AvatarPath == nil || *stored.AvatarPath != "https://evil.example.com/x.png" {
		t.Error("blocked member's reference must stay unmodified")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestEnsureLocalDownloadAndIdempotence(t *testing.T) {
	members := newTestStores(t)
	srv, calls := avatarServer(t)
	dir := t.TempDir()
	p := New(dir, members, nil)

	m := addMember(t, members, "Alice", srv.URL+"/avatar.png")

	res := p.EnsureLocal(context.Background(), m)
	if res.Outcome != OutcomeDownloaded {
		t.Fatalf("outcome = %s (%v), want downloaded", res.Outcome, res.Err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 fetch, got %d", calls.Load())
	}

	local := p.LocalPath(m)
	if _, err := os.Stat(local); err != nil {
		t.Fatalf("normalized asset missing: %v", err)
	}
	stored, _ := members.GetByID(m.ID)
	if stored.AvatarPath == nil || *stored.AvatarPath != local {
		t.Errorf("member reference not rebound: %v", stored.AvatarPath)
	}

	// Second run on the resolved member: nothing to do, nothing fetched.
	res = p.EnsureLocal(context.Background(), stored)
	if res.Outcome != OutcomeUnchanged {
		t.Fatalf("second run outcome = %s, want unchanged", res.Outcome)
	}
	if calls.Load() != 1 {
		t.Errorf("second run fetched again: %d calls", calls.Load())
	}

	// A member whose reference is still the URL but whose file exists gets
	// rebound without a download.
	res = p.EnsureLocal(context.Background(), &models.Member{
		ID: m.ID, Name: "Alice", AvatarPath: stringPtr(srv.URL + "/avatar.png"),
	})
	if res.Outcome != OutcomeUnchanged {
		t.Fatalf("existing-file outcome = %s, want unchanged", res.Outcome)
	}
	if calls.Load() != 1 {
		t.Errorf("existing file still fetched: %d calls", calls.Load())
	}
}

func stringPtr(s string) *string { return &s }

func TestEnsureLocalServerError(t *testing.T) {
	members := newTestStores(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	p := New(t.TempDir(), members, nil)
	m := addMember(t, members, "Bob", srv.URL+"/missing.png")

	res := p.EnsureLocal(context.Background(), m)
	if res.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", res.Outcome)
	}
	stored, _ := members.GetByID(m.ID)
	if stored.AvatarPath == nil || *stored.AvatarPath != srv.URL+"/missing.png" {
		t.Error("failed download must leave the reference unmodified")
	}
}

func TestEnsureLocalCorruptImage(t *testing.T) {
	members := newTestStores(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("these are not image bytes"))
	}))
	t.Cleanup(srv.Close)

	p := New(t.TempDir(), members, nil)
	m := addMember(t, members, "Cleo", srv.URL+"/broken.png")

	res := p.EnsureLocal(context.Background(), m)
	if res.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", res.Outcome)
	}
	if res.Err == nil {
		t.Error("decode failure should carry a reason")
	}
}

func TestEnsureLocalEmptyReference(t *testing.T) {
	members := newTestStores(t)
	p := New(t.TempDir(), members, nil)
	m := addMember(t, members, "Dana", "")

	if res := p.EnsureLocal(context.Background(), m); res.Outcome != OutcomeUnchanged {
		t.Fatalf("outcome = %s, want unchanged", res.Outcome)
	}
}

func TestSyncAllCountsIndependently(t *testing.T) {
	members := newTestStores(t)
	srv, calls := avatarServer(t)
	p := New(t.TempDir(), members, nil)

	good := addMember(t, members, "Good", srv.URL+"/a.png")
	bad := addMember(t, members, "Bad", "https://evil.example.com/b.png")
	local := addMember(t, members, "Local", "/tmp/existing.jpg")
	_ = local

	var progressCalls atomic.Int64
	report := p.SyncAll(context.Background(), []*models.Member{good, bad, local},
		func(done, total int) { progressCalls.Add(1) })

	if report.Candidates != 2 {
		t.Errorf("candidates = %d, want 2 (local reference filtered out)", report.Candidates)
	}
	if report.Downloaded != 1 {
		t.Errorf("downloaded = %d, want 1", report.Downloaded)
	}
	if report.Blocked != 1 {
		t.Errorf("blocked = %d, want 1", report.Blocked)
	}
	if report.Failed != 0 {
		t.Errorf("failed = %d, want 0", report.Failed)
	}
	if calls.Load() != 1 {
		t.Errorf("network calls = %d, want 1", calls.Load())
	}
	if progressCalls.Load() != 2 {
		t.Errorf("progress callbacks = %d, want 2", progressCalls.Load())
	}
}
