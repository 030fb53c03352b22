package importer

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/pluralchat/pluralchat-server/pkg/models"
	"github.com/pluralchat/pluralchat-server/pkg/store"
)

func newTestStores(t *testing.T) store.Stores {
	t.Helper()
	dir := t.TempDir()
	systemDB, err := store.OpenSystem(filepath.Join(dir, "system.db"))
	if err != nil {
		t.Fatalf("open system db: %v", err)
	}
	t.Cleanup(func() { systemDB.Close() })
	appDB, err := store.OpenApp(filepath.Join(dir, "app.db"))
	if err != nil {
		t.Fatalf("open app db: %v", err)
	}
	t.Cleanup(func() { appDB.Close() })
	return store.NewStores(systemDB, appDB)
}

func stringPtr(s string) *string { return &s }

func TestMergeNameCollisions(t *testing.T) {
	stores := newTestStores(t)
	if _, err := stores.Members.Add(&models.Member{Name: "Eve"}); err != nil {
		t.Fatalf("seed member: %v", err)
	}

	r := NewReconciler(stores.Members, stores.Messages, stores.SystemInfo, stores.Settings)
	payload := &Payload{
		Source: FormatOwn,
		Members: []MemberRecord{
			{ID: 1, Name: "Eve"},
			{ID: 2, Name: "Eve"},
		},
	}

	stats, err := r.Merge(payload)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if stats.MembersAdded != 2 || stats.MembersRenamed != 2 {
		t.Errorf("stats = %+v, want 2 added, 2 renamed", stats)
	}

	all, err := stores.Members.GetAll()
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	var names []string
	for _, m := range all {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	want := []string{"Eve", "Eve (2)", "Eve (3)"}
	if len(names) != 3 || names[0] != want[0] || names[1] != want[1] || names[2] != want[2] {
		t.Errorf("names = %v, want %v", names, want)
	}
}

func TestMergeResolvesAndDropsMessages(t *testing.T) {
	stores := newTestStores(t)
	r := NewReconciler(stores.Members, stores.Messages, stores.SystemInfo, nil)

	payload := &Payload{
		Source: FormatOwn,
		Members: []MemberRecord{
			{ID: 42, Name: "Alice"},
		},
		Messages: []MessageRecord{
			{MemberID: 42, Message: "by id", Timestamp: "10:00"},
			{MemberName: "Alice", Message: "by name", Timestamp: "10:01"},
			{MemberName: "Nobody", Message: "orphan", Timestamp: "10:02"},
		},
	}

	stats, err := r.Merge(payload)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if stats.MessagesAdded != 2 {
		t.Errorf("MessagesAdded = %d, want 2", stats.MessagesAdded)
	}
	if stats.MessagesDropped != 1 {
		t.Errorf("MessagesDropped = %d, want 1", stats.MessagesDropped)
	}

	alice, err := stores.Members.GetByName("Alice")
	if err != nil || alice == nil {
		t.Fatalf("alice missing: %v", err)
	}
	msgs, err := stores.Messages.ForMember(alice.ID)
	if err != nil {
		t.Fatalf("ForMember: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("stored messages = %d, want 2", len(msgs))
	}
}

func TestMergeUpdatesExistingExternalMember(t *testing.T) {
	stores := newTestStores(t)
	r := NewReconciler(stores.Members, stores.Messages, stores.SystemInfo, nil)

	seed := &Payload{
		Source: FormatPluralKit,
		Members: []MemberRecord{
			{Name: "Alice", ExternalID: stringPtr("membr"), Pronouns: stringPtr("she/her")},
		},
	}
	if _, err := r.Merge(seed); err != nil {
		t.Fatalf("first merge: %v", err)
	}

	again := &Payload{
		Source: FormatPluralKit,
		Members: []MemberRecord{
			{Name: "Alice", ExternalID: stringPtr("membr"), Pronouns: stringPtr("they/them")},
		},
		Messages: []MessageRecord{
			{MemberRef: "membr", Message: "still me", Timestamp: "11:00"},
		},
	}
	stats, err := r.Merge(again)
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if stats.MembersAdded != 0 {
		t.Errorf("MembersAdded = %d, want 0 (update in place)", stats.MembersAdded)
	}
	if stats.MessagesAdded != 1 {
		t.Errorf("MessagesAdded = %d, want 1", stats.MessagesAdded)
	}

	all, _ := stores.Members.GetAll()
	if len(all) != 1 {
		t.Fatalf("members = %d, want 1", len(all))
	}
	if all[0].Pronouns == nil || *all[0].Pronouns != "they/them" {
		t.Errorf("pronouns not updated: %v", all[0].Pronouns)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	source := newTestStores(t)

	aliceID, err := source.Members.Add(&models.Member{Name: "Alice", Pronouns: stringPtr("she/her")})
	if err != nil {
		t.Fatalf("add alice: %v", err)
	}
	bobID, err := source.Members.Add(&models.Member{Name: "Bob"})
	if err != nil {
		t.Fatalf("add bob: %v", err)
	}
	if _, err := source.Messages.Add(aliceID, "first", "09:00"); err != nil {
		t.Fatalf("add message: %v", err)
	}
	if _, err := source.Messages.Add(bobID, "second", "09:01"); err != nil {
		t.Fatalf("add message: %v", err)
	}
	if err := source.SystemInfo.Set("name", "Round Trip System"); err != nil {
		t.Fatalf("set system info: %v", err)
	}

	doc, err := BuildExport(source.Members, source.Messages, source.SystemInfo, source.Settings)
	if err != nil {
		t.Fatalf("BuildExport: %v", err)
	}
	raw, err := doc.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	dest := newTestStores(t)
	payload, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if payload.Source != FormatOwn {
		t.Fatalf("Source = %v, want own", payload.Source)
	}

	r := NewReconciler(dest.Members, dest.Messages, dest.SystemInfo, dest.Settings)
	stats, err := r.Merge(payload)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if stats.MembersAdded != 2 || stats.MessagesAdded != 2 || stats.MessagesDropped != 0 {
		t.Errorf("stats = %+v", stats)
	}

	alice, err := dest.Members.GetByName("Alice")
	if err != nil || alice == nil {
		t.Fatalf("alice not restored: %v", err)
	}
	if alice.Pronouns == nil || *alice.Pronouns != "she/her" {
		t.Errorf("pronouns not restored: %v", alice.Pronouns)
	}
	if m, _ := dest.Members.GetByName("Bob"); m == nil {
		t.Error("bob not restored")
	}

	msgs, err := dest.Messages.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].Message != "first" || msgs[1].Message != "second" {
		t.Errorf("message order not preserved: %q, %q", msgs[0].Message, msgs[1].Message)
	}

	name, err := dest.SystemInfo.Get("name", "")
	if err != nil || name != "Round Trip System" {
		t.Errorf("system name = %q, err = %v", name, err)
	}
}
