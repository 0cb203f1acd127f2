package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/driftline/roomcast/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	st, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestCreateAndGetUser(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	created, err := st.CreateUser(ctx, "alice", "hash123")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.ID == 0 || created.Username != "alice" || created.IsGuest {
		t.Fatalf("unexpected user: %+v", created)
	}

	byName, err := st.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if byName.ID != created.ID || byName.PasswordHash != "hash123" {
		t.Fatalf("unexpected user by name: %+v", byName)
	}

	if _, err := st.GetUserByUsername(ctx, "nobody"); err == nil {
		t.Fatal("expected error for unknown user")
	}

	if _, err := st.CreateUser(ctx, "alice", "other"); !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for duplicate username, got %v", err)
	}
}

func TestCreateGuestUser(t *testing.T) {
	st := newTestStore(t)

	guest, err := st.CreateGuestUser(context.Background(), "0123456789abcdef")
	if err != nil {
		t.Fatalf("create guest: %v", err)
	}
	if !guest.IsGuest || guest.SessionID != "0123456789abcdef" {
		t.Fatalf("unexpected guest: %+v", guest)
	}
	if guest.Username != "guest_01234567" {
		t.Fatalf("unexpected guest username: %q", guest.Username)
	}
}

func TestSaveAndListMessages(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, body := range []string{"one", "two", "three", "four"} {
		msg := &store.Message{
			Room:      "general",
			User:      "alice",
			Body:      body,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := st.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("save message %d: %v", i, err)
		}
		if msg.ID == 0 {
			t.Fatal("SaveMessage did not assign an id")
		}
	}
	other := &store.Message{Room: "other", User: "bob", Body: "elsewhere", CreatedAt: base}
	if err := st.SaveMessage(ctx, other); err != nil {
		t.Fatalf("save message: %v", err)
	}

	got, err := st.ListRecent(ctx, "general", 3)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	// Most recent three, oldest first.
	if got[0].Body != "two" || got[1].Body != "three" || got[2].Body != "four" {
		t.Fatalf("unexpected order: %q %q %q", got[0].Body, got[1].Body, got[2].Body)
	}

	empty, err := st.ListRecent(ctx, "ghost", 10)
	if err != nil {
		t.Fatalf("list recent empty room: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no messages, got %d", len(empty))
	}
}
