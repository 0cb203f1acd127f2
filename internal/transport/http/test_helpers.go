package http

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftline/roomcast/internal/auth"
	"github.com/driftline/roomcast/internal/bus"
	"github.com/driftline/roomcast/internal/config"
	"github.com/driftline/roomcast/internal/core"
	"github.com/driftline/roomcast/internal/store/sqlite"
)

// loopBus is a single-instance bus: publishes echo straight back into the
// frame stream, the way Redis echoes a publish to a subscribed connection.
// Integration tests therefore also exercise origin-marker dedup.
type loopBus struct {
	mu         sync.Mutex
	frames     chan bus.Frame
	subscribed map[string]struct{}
}

func newLoopBus() *loopBus {
	return &loopBus{
		frames:     make(chan bus.Frame, 64),
		subscribed: make(map[string]struct{}),
	}
}

func (b *loopBus) Publish(_ context.Context, room string, payload []byte) error {
	b.mu.Lock()
	_, ok := b.subscribed[room]
	b.mu.Unlock()
	if ok {
		select {
		case b.frames <- bus.Frame{Room: room, Payload: payload}:
		default:
		}
	}
	return nil
}

func (b *loopBus) Subscribe(_ context.Context, room string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribed[room] = struct{}{}
	return nil
}

func (b *loopBus) Frames() <-chan bus.Frame {
	return b.frames
}

func (b *loopBus) Close() error {
	return nil
}

// createTestAuthService creates an auth service over an in-memory store.
func createTestAuthService(t *testing.T, st *sqlite.SQLiteStore) *auth.Service {
	t.Helper()

	return auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	})
}

// startTestServer wires store, bus, hub, and router into an httptest server.
// The returned auth service is the way to mint valid tokens.
func startTestServer(t *testing.T) (*httptest.Server, *auth.Service) {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	authService := createTestAuthService(t, st)

	disabledLogger := zerolog.Nop()
	hub := core.NewHub(core.HubConfig{Origin: core.NewOriginMarker()}, st, newLoopBus(), &disabledLogger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	cfg := config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}
	server := NewServer(hub, authService, cfg, &disabledLogger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, authService
}
