package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/driftline/roomcast/internal/store"
	"github.com/driftline/roomcast/internal/store/sqlite"
)

func newTestService(t *testing.T, ttl time.Duration) *Service {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      ttl,
	}

	return NewService(st, jwtConfig)
}

func TestRegister_RejectsInvalidUsername(t *testing.T) {
	svc := newTestService(t, 24*time.Hour)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "ab", "password123"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}

	// Should be validated after trimming whitespace.
	if _, err := svc.Register(ctx, " ab ", "password123"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
}

func TestRegister_RejectsInvalidPassword(t *testing.T) {
	svc := newTestService(t, 24*time.Hour)

	if _, err := svc.Register(context.Background(), "alice", "short"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

// blindUserStore hides existing rows from the pre-insert existence check,
// simulating a concurrent registration winning the insert race.
type blindUserStore struct {
	store.UserStore
}

func (b *blindUserStore) GetUserByUsername(context.Context, string) (*store.User, error) {
	return nil, errors.New("user not found")
}

func TestRegister_InsertRaceMapsToUserExists(t *testing.T) {
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if _, err := st.CreateUser(context.Background(), "alice", "hash"); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	svc := NewService(&blindUserStore{UserStore: st}, &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})

	if _, err := svc.Register(context.Background(), "alice", "password123"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists from insert race, got %v", err)
	}
}

func TestRegister_RejectsDuplicateUsername(t *testing.T) {
	svc := newTestService(t, 24*time.Hour)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "password123"); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "password456"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc := newTestService(t, 24*time.Hour)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "password123"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestVerifyToken_RoundTrip(t *testing.T) {
	svc := newTestService(t, 24*time.Hour)
	ctx := context.Background()

	token, err := svc.Register(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	identity, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if identity.Username != "alice" || identity.UserID == 0 || identity.IsGuest {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestVerifyToken_RejectsGarbageAndExpired(t *testing.T) {
	svc := newTestService(t, 24*time.Hour)

	if _, err := svc.VerifyToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}

	// A service issuing already-expired tokens lets us check the expiry path
	// without clock manipulation. The error must be the same sentinel: the
	// caller can't tell malformed from expired.
	expiredSvc := newTestService(t, -time.Minute)
	token, err := expiredSvc.Register(context.Background(), "bob", "password123")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := expiredSvc.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestGuestUser(t *testing.T) {
	svc := newTestService(t, 24*time.Hour)

	token, sessionID, err := svc.CreateGuestUser(context.Background())
	if err != nil {
		t.Fatalf("create guest failed: %v", err)
	}
	if sessionID == "" {
		t.Fatal("empty guest session id")
	}

	identity, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify guest token failed: %v", err)
	}
	if !identity.IsGuest {
		t.Fatalf("expected guest identity, got %+v", identity)
	}
}
