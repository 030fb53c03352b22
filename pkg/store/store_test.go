package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pluralchat/pluralchat-server/pkg/models"
)

func newTestStores(t *testing.T) Stores {
	t.Helper()
	dir := t.TempDir()
	systemDB, err := OpenSystem(filepath.Join(dir, "system.db"))
	if err != nil {
		t.Fatalf("open system db: %v", err)
	}
	t.Cleanup(func() { systemDB.Close() })
	appDB, err := OpenApp(filepath.Join(dir, "app.db"))
	if err != nil {
		t.Fatalf("open app db: %v", err)
	}
	t.Cleanup(func() { appDB.Close() })
	return NewStores(systemDB, appDB)
}

func stringPtr(s string) *string { return &s }

func TestMemberAddGetUpdate(t *testing.T) {
	s := newTestStores(t)

	id, err := s.Members.Add(&models.Member{
		Name:     "Alice",
		Pronouns: stringPtr("she/her"),
		PKID:     stringPtr("aaaaa"),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	m, err := s.Members.GetByID(id)
	if err != nil || m == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if m.Name != "Alice" || m.Pronouns == nil || *m.Pronouns != "she/her" {
		t.Errorf("member = %+v", m)
	}

	if m, _ := s.Members.GetByName("Alice"); m == nil || m.ID != id {
		t.Error("GetByName did not find the member")
	}
	if m, _ := s.Members.GetByPKID("aaaaa"); m == nil || m.ID != id {
		t.Error("GetByPKID did not find the member")
	}
	if m, _ := s.Members.GetByID(9999); m != nil {
		t.Error("GetByID returned a member for an unknown id")
	}

	err = s.Members.Update(id, map[string]any{
		"pronouns": stringPtr("they/them"),
		"color":    stringPtr("aabbcc"),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	m, _ = s.Members.GetByID(id)
	if *m.Pronouns != "they/them" || m.Color == nil || *m.Color != "aabbcc" {
		t.Errorf("update not applied: %+v", m)
	}

	if err := s.Members.Update(id, map[string]any{"id": 42}); err == nil {
		t.Error("Update accepted a non-whitelisted column")
	}
}

func TestMemberNameConflict(t *testing.T) {
	s := newTestStores(t)

	if _, err := s.Members.Add(&models.Member{Name: "Alice"}); err != nil {
		t.Fatal(err)
	}
	_, err := s.Members.Add(&models.Member{Name: "Alice"})
	if err == nil {
		t.Fatal("duplicate name accepted")
	}
	if !IsNameConflict(err) {
		t.Errorf("IsNameConflict(%v) = false, want true", err)
	}

	// A pk_id collision is a constraint error but not a name conflict.
	if _, err := s.Members.Add(&models.Member{Name: "Bob", PKID: stringPtr("xxxxx")}); err != nil {
		t.Fatal(err)
	}
	_, err = s.Members.Add(&models.Member{Name: "Carol", PKID: stringPtr("xxxxx")})
	if err == nil {
		t.Fatal("duplicate pk_id accepted")
	}
	if IsNameConflict(err) {
		t.Error("pk_id conflict misclassified as a name conflict")
	}
}

func TestMemberGetAllOrdersByName(t *testing.T) {
	s := newTestStores(t)

	for _, name := range []string{"Zoe", "alice", "Bob"} {
		if _, err := s.Members.Add(&models.Member{Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	members, err := s.Members.GetAll()
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("members = %d, want 3", len(members))
	}
	for i := 1; i < len(members); i++ {
		if members[i-1].Name > members[i].Name {
			t.Errorf("roster not name-sorted: %q before %q", members[i-1].Name, members[i].Name)
		}
	}
}

func TestMemberDeleteCascades(t *testing.T) {
	s := newTestStores(t)

	id, err := s.Members.Add(&models.Member{Name: "Alice"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Messages.Add(id, "hello", "10:00"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Diary.Add(id, nil, "entry"); err != nil {
		t.Fatal(err)
	}

	if err := s.Members.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if m, _ := s.Members.GetByID(id); m != nil {
		t.Error("member still present after delete")
	}
	msgs, err := s.Messages.ForMember(id)
	if err != nil {
		t.Fatalf("ForMember: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("messages survived member delete: %d", len(msgs))
	}
	entries, err := s.Diary.List(id, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("diary entries survived member delete: %d", len(entries))
	}
}

func TestMessageRecentChronological(t *testing.T) {
	s := newTestStores(t)

	id, err := s.Members.Add(&models.Member{Name: "Alice"})
	if err != nil {
		t.Fatal(err)
	}
	for _, text := range []string{"one", "two", "three"} {
		if _, err := s.Messages.Add(id, text, "10:00"); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := s.Messages.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent = %d, want 2", len(recent))
	}
	// The newest two messages, oldest first.
	if recent[0].Message != "two" || recent[1].Message != "three" {
		t.Errorf("recent order = %q, %q", recent[0].Message, recent[1].Message)
	}
	if recent[0].MemberName != "Alice" {
		t.Errorf("member name not joined: %q", recent[0].MemberName)
	}
}

func TestMessageDefaultTimestamp(t *testing.T) {
	s := newTestStores(t)

	id, err := s.Members.Add(&models.Member{Name: "Alice"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Messages.Add(id, "hi", ""); err != nil {
		t.Fatal(err)
	}
	msgs, err := s.Messages.ForMember(id)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("ForMember: %v", err)
	}
	if len(msgs[0].Timestamp) != 5 || msgs[0].Timestamp[2] != ':' {
		t.Errorf("default timestamp = %q, want HH:MM shape", msgs[0].Timestamp)
	}
}

func TestDiarySearchAndUpdate(t *testing.T) {
	s := newTestStores(t)

	aliceID, _ := s.Members.Add(&models.Member{Name: "Alice"})
	bobID, _ := s.Members.Add(&models.Member{Name: "Bob"})

	id, err := s.Diary.Add(aliceID, stringPtr("morning"), "slept well, feeling rested")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Diary.Add(bobID, nil, "rough morning"); err != nil {
		t.Fatal(err)
	}

	all, err := s.Diary.Search("morning", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("unscoped search = %d, want 2", len(all))
	}

	scoped, err := s.Diary.Search("morning", aliceID)
	if err != nil {
		t.Fatalf("Search scoped: %v", err)
	}
	if len(scoped) != 1 || scoped[0].MemberID != aliceID {
		t.Errorf("scoped search = %+v", scoped)
	}

	if err := s.Diary.Update(id, nil, stringPtr("edited content")); err != nil {
		t.Fatalf("Update: %v", err)
	}
	entry, _ := s.Diary.Get(id)
	if entry.Content != "edited content" {
		t.Errorf("content = %q", entry.Content)
	}
	if entry.Title == nil || *entry.Title != "morning" {
		t.Errorf("title clobbered by content-only update: %v", entry.Title)
	}
}

func TestSettingsUpsert(t *testing.T) {
	s := newTestStores(t)

	got, err := s.Settings.Get("theme", "darkly")
	if err != nil || got != "darkly" {
		t.Errorf("fallback = %q, err %v", got, err)
	}

	if err := s.Settings.Set("theme", "superhero"); err != nil {
		t.Fatal(err)
	}
	if err := s.Settings.Set("theme", "cyborg"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Settings.Get("theme", "darkly")
	if got != "cyborg" {
		t.Errorf("theme = %q, want cyborg", got)
	}

	all, err := s.Settings.All()
	if err != nil {
		t.Fatal(err)
	}
	if all["theme"] != "cyborg" {
		t.Errorf("All() = %v", all)
	}
}

func TestTokenLifecycle(t *testing.T) {
	s := newTestStores(t)

	tok, err := s.Tokens.Get("pluralkit")
	if err != nil {
		t.Fatal(err)
	}
	if tok != nil {
		t.Fatal("token present on fresh store")
	}

	if err := s.Tokens.Save(&models.APIToken{Service: "pluralkit", TokenData: "sealed-1"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Tokens.Save(&models.APIToken{Service: "pluralkit", TokenData: "sealed-2"}); err != nil {
		t.Fatalf("Save upsert: %v", err)
	}

	tok, err = s.Tokens.Get("pluralkit")
	if err != nil || tok == nil {
		t.Fatalf("Get: %v", err)
	}
	if tok.TokenData != "sealed-2" {
		t.Errorf("token data = %q, want sealed-2", tok.TokenData)
	}
	if tok.LastSync != nil {
		t.Error("last sync set before any sync")
	}

	if err := s.Tokens.TouchSync("pluralkit"); err != nil {
		t.Fatalf("TouchSync: %v", err)
	}
	tok, _ = s.Tokens.Get("pluralkit")
	if tok.LastSync == nil {
		t.Error("TouchSync did not record a time")
	} else if time.Since(*tok.LastSync) > time.Hour {
		t.Errorf("last sync looks wrong: %v", tok.LastSync)
	}

	if err := s.Tokens.Remove("pluralkit"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if tok, _ := s.Tokens.Get("pluralkit"); tok != nil {
		t.Error("token present after remove")
	}
}
