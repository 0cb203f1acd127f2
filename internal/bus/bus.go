// Package bus provides the cross-instance broadcast channel. Every server
// instance publishes room messages to the bus and receives what the other
// instances (and itself) publish, one channel per room.
package bus

import "context"

// Frame is one raw message received from a bus channel.
type Frame struct {
	Room    string
	Payload []byte
}

// Bus is a publish/subscribe channel keyed by room name.
type Bus interface {
	// Publish sends a payload to everyone subscribed to the room's channel,
	// including the publishing instance itself.
	Publish(ctx context.Context, room string, payload []byte) error

	// Subscribe starts delivery of the room's channel into Frames.
	// Subscribing twice to the same room is a no-op.
	Subscribe(ctx context.Context, room string) error

	// Frames is the inbound delivery stream. It is closed when the bus closes.
	Frames() <-chan Frame

	// Close tears down the bus connection and closes Frames.
	Close() error
}
