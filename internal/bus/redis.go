package bus

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// channelPrefix namespaces room channels. Room names ride verbatim after the
// prefix; Redis treats channel names as opaque bytes, so no escaping is needed.
const channelPrefix = "chat:"

func channelName(room string) string {
	return channelPrefix + room
}

func roomFromChannel(channel string) (string, bool) {
	room, ok := strings.CutPrefix(channel, channelPrefix)
	if !ok || room == "" {
		return "", false
	}
	return room, true
}

// Redis implements Bus over Redis pub/sub. A single PubSub connection carries
// all room channels; go-redis replays the subscribed channel set after a
// reconnect, so a transient outage does not lose subscriptions.
type Redis struct {
	client *redis.Client
	ps     *redis.PubSub
	frames chan Frame
	log    *zerolog.Logger

	mu         sync.Mutex
	subscribed map[string]struct{}
}

// NewRedis builds a Redis bus and starts its receive loop.
func NewRedis(client *redis.Client, logger *zerolog.Logger) *Redis {
	r := &Redis{
		client:     client,
		ps:         client.Subscribe(context.Background()),
		frames:     make(chan Frame, 256),
		log:        logger,
		subscribed: make(map[string]struct{}),
	}
	go r.receive()
	return r
}

// Publish sends a payload to the room's channel.
func (r *Redis) Publish(ctx context.Context, room string, payload []byte) error {
	if err := r.client.Publish(ctx, channelName(room), payload).Err(); err != nil {
		return fmt.Errorf("publish to %q: %w", room, err)
	}
	return nil
}

// Subscribe adds the room's channel to the shared PubSub connection.
func (r *Redis) Subscribe(ctx context.Context, room string) error {
	r.mu.Lock()
	if _, ok := r.subscribed[room]; ok {
		r.mu.Unlock()
		return nil
	}
	r.subscribed[room] = struct{}{}
	r.mu.Unlock()

	if err := r.ps.Subscribe(ctx, channelName(room)); err != nil {
		r.mu.Lock()
		delete(r.subscribed, room)
		r.mu.Unlock()
		return fmt.Errorf("subscribe to %q: %w", room, err)
	}
	return nil
}

// Frames is the inbound delivery stream.
func (r *Redis) Frames() <-chan Frame {
	return r.frames
}

// Rooms returns the rooms this instance is currently subscribed to.
func (r *Redis) Rooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	rooms := make([]string, 0, len(r.subscribed))
	for room := range r.subscribed {
		rooms = append(rooms, room)
	}
	return rooms
}

// Close tears down the PubSub connection, which ends the receive loop and
// closes Frames.
func (r *Redis) Close() error {
	return r.ps.Close()
}

func (r *Redis) receive() {
	defer close(r.frames)

	for msg := range r.ps.Channel(redis.WithChannelSize(256)) {
		room, ok := roomFromChannel(msg.Channel)
		if !ok {
			r.log.Warn().Str("channel", msg.Channel).Msg("dropping message from unexpected channel")
			continue
		}
		select {
		case r.frames <- Frame{Room: room, Payload: []byte(msg.Payload)}:
		default:
			r.log.Warn().Str("room", room).Msg("bus frame dropped, consumer behind")
		}
	}
}
