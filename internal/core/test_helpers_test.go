package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftline/roomcast/internal/bus"
	"github.com/driftline/roomcast/internal/store"
)

// memoryBroker is a process-local stand-in for the broadcast bus. Every
// attached endpoint subscribed to a room receives published payloads,
// including the publisher's own endpoint, mirroring Redis pub/sub echo.
type memoryBroker struct {
	mu        sync.Mutex
	endpoints []*fakeBus
}

func newMemoryBroker() *memoryBroker {
	return &memoryBroker{}
}

func (b *memoryBroker) attach() *fakeBus {
	b.mu.Lock()
	defer b.mu.Unlock()
	fb := &fakeBus{
		broker:     b,
		frames:     make(chan bus.Frame, 64),
		subscribes: make(map[string]int),
	}
	b.endpoints = append(b.endpoints, fb)
	return fb
}

func (b *memoryBroker) publish(room string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ep := range b.endpoints {
		ep.deliver(room, payload)
	}
}

type fakeBus struct {
	broker *memoryBroker
	frames chan bus.Frame

	mu         sync.Mutex
	subscribes map[string]int
	published  int
	publishErr error
}

func (f *fakeBus) Publish(_ context.Context, room string, payload []byte) error {
	f.mu.Lock()
	if f.publishErr != nil {
		err := f.publishErr
		f.mu.Unlock()
		return err
	}
	f.published++
	f.mu.Unlock()

	f.broker.publish(room, payload)
	return nil
}

func (f *fakeBus) Subscribe(_ context.Context, room string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes[room]++
	return nil
}

func (f *fakeBus) Frames() <-chan bus.Frame {
	return f.frames
}

func (f *fakeBus) Close() error {
	return nil
}

func (f *fakeBus) deliver(room string, payload []byte) {
	f.mu.Lock()
	_, subscribed := f.subscribes[room]
	f.mu.Unlock()
	if !subscribed {
		return
	}
	select {
	case f.frames <- bus.Frame{Room: room, Payload: payload}:
	default:
	}
}

func (f *fakeBus) setPublishErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishErr = err
}

func (f *fakeBus) subscribeCount(room string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes[room]
}

func (f *fakeBus) publishCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published
}

// memStore is an in-memory MessageStore.
type memStore struct {
	mu    sync.Mutex
	saved []store.Message
	err   error

	// delay stalls the save of a specific body, simulating store latency.
	delay map[string]time.Duration
}

func (m *memStore) SaveMessage(_ context.Context, msg *store.Message) error {
	m.mu.Lock()
	d := m.delay[msg.Body]
	m.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	msg.ID = int64(len(m.saved) + 1)
	m.saved = append(m.saved, *msg)
	return nil
}

func (m *memStore) ListRecent(_ context.Context, room string, limit int) ([]*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*store.Message
	for i := range m.saved {
		if m.saved[i].Room == room {
			msg := m.saved[i]
			out = append(out, &msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memStore) savedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func startHub(t *testing.T, cfg HubConfig, st store.MessageStore, b bus.Bus) *Hub {
	t.Helper()

	if cfg.Origin == "" {
		cfg.Origin = NewOriginMarker()
	}
	hub := NewHub(cfg, st, b, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	return hub
}

func mustEvent(t *testing.T, ch <-chan Event, kind EventKind) Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event kind %v not received", kind)
		}
	}
}

func mustNoEvent(t *testing.T, ch <-chan Event, kind EventKind, wait time.Duration) {
	t.Helper()

	timeout := time.After(wait)
	for {
		select {
		case ev := <-ch:
			if ev.Kind == kind {
				t.Fatalf("unexpected event of kind %v: %+v", kind, ev)
			}
		case <-timeout:
			return
		}
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}
