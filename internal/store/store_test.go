package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"garage-client/internal/model"
)

var now = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func TestStore_UsersAndAuthenticate(t *testing.T) {
	s := New()

	u, err := s.AddUser(model.UserProfile{Email: "A@x.com", Role: "client"}, "pw")
	if err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if u.ID != 1 || u.Role != model.RoleClient {
		t.Fatalf("unexpected user: %+v", u)
	}
	if _, err := s.AddUser(model.UserProfile{Email: "a@x.com"}, "pw"); err != ErrEmailTaken {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	got, ok := s.Authenticate(" a@X.com ", "pw")
	if !ok || got.ID != u.ID {
		t.Fatalf("expected authenticate ok, got %+v %v", got, ok)
	}
	if _, ok := s.Authenticate("a@x.com", "wrong"); ok {
		t.Fatalf("expected wrong password to fail")
	}
	if _, ok := s.Authenticate("b@x.com", "pw"); ok {
		t.Fatalf("expected unknown email to fail")
	}

	if _, ok := s.GetUser(u.ID); !ok {
		t.Fatalf("expected user %d", u.ID)
	}
}

func TestStore_LockedAccount(t *testing.T) {
	s := New()
	if _, err := s.AddUser(model.UserProfile{Email: "l@x.com", Locked: true}, "pw"); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if _, ok := s.Authenticate("l@x.com", "pw"); ok {
		t.Fatalf("expected locked account to fail")
	}
}

func TestStore_Notifications(t *testing.T) {
	s := New()

	n1 := s.AddNotification(1, model.Notification{Title: "a", Type: "INFO"}, now)
	n2 := s.AddNotification(1, model.Notification{Title: "b", Type: "INFO"}, now)
	other := s.AddNotification(2, model.Notification{Title: "c"}, now)
	if !(n1.ID < n2.ID && n2.ID < other.ID) {
		t.Fatalf("expected increasing ids, got %d %d %d", n1.ID, n2.ID, other.ID)
	}
	if !n1.CreatedAt.Equal(now) {
		t.Fatalf("expected createdAt %s, got %s", now, n1.CreatedAt)
	}

	list := s.ListNotifications(1, false)
	if len(list) != 2 || list[0].ID != n2.ID {
		t.Fatalf("expected most recent first, got %+v", list)
	}

	if !s.MarkNotificationRead(1, n1.ID) {
		t.Fatalf("expected mark read")
	}
	if s.MarkNotificationRead(2, n1.ID) {
		t.Fatalf("expected other user's mark to fail")
	}
	unread := s.ListNotifications(1, true)
	if len(unread) != 1 || unread[0].ID != n2.ID {
		t.Fatalf("unexpected unread: %+v", unread)
	}

	if !s.DeleteNotification(1, n2.ID) {
		t.Fatalf("expected delete")
	}
	if s.DeleteNotification(1, n2.ID) {
		t.Fatalf("expected second delete to fail")
	}
	if len(s.ListNotifications(1, false)) != 1 {
		t.Fatalf("expected 1 notification left")
	}
}

func TestStore_SeedDemo(t *testing.T) {
	s := New()
	s.SeedDemo(now)
	s.SeedDemo(now)

	u, ok := s.Authenticate("mechanic@garage.test", DemoPassword)
	if !ok {
		t.Fatalf("expected seeded mechanic")
	}
	if u.Role != model.RoleMechanic {
		t.Fatalf("expected MECHANIC, got %q", u.Role)
	}
	if got := len(s.ListNotifications(u.ID, true)); got != 1 {
		t.Fatalf("expected 1 welcome notification, got %d", got)
	}
}

func TestStore_Persistence_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	stateFile := filepath.Join(dir, "state.json")

	s1 := NewWithOptions(Options{StateFile: stateFile})
	n := s1.AddNotification(5, model.Notification{Title: "t", Message: "m", Type: "LOW_STOCK_WARNING"}, now)
	s1.MarkNotificationRead(5, n.ID)

	info, err := os.Stat(stateFile)
	if err != nil {
		t.Fatalf("expected state file written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected state file mode 0600, got %o", info.Mode().Perm())
	}

	s2 := NewWithOptions(Options{StateFile: stateFile})
	got := s2.ListNotifications(5, false)
	if len(got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(got))
	}
	if got[0].ID != n.ID || !got[0].Read || got[0].Type != "LOW_STOCK_WARNING" {
		t.Fatalf("unexpected notification loaded: %+v", got[0])
	}

	next := s2.AddNotification(5, model.Notification{Title: "u"}, now)
	if next.ID <= n.ID {
		t.Fatalf("expected id after %d, got %d", n.ID, next.ID)
	}
}
