package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is the domain model for a chat message.
type Message struct {
	Room      string
	User      string
	Body      string
	CreatedAt time.Time

	// Origin is the marker of the instance that accepted the message.
	// Routing metadata only: it is cleared before anything reaches a client.
	Origin string
}

// NewOriginMarker returns a value unique to one running server instance,
// generated once at startup. It lets the instance recognize its own messages
// when they arrive back via the bus.
func NewOriginMarker() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
}
