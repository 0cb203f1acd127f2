package core

// Session is the server-side state for one live client connection. It is
// created only after the connection passed the auth gate.
type Session struct {
	ID     string
	UserID int64
	Name   string

	Commands chan Command
	Events   chan Event

	// routes queues this session's accepted sends for its route loop, which
	// drains them one at a time so they reach the room in arrival order.
	routes chan Message

	// done is closed by the hub when the session is dropped; no further
	// commands are processed after that.
	done chan struct{}

	// currentRoom is owned by the hub goroutine. Empty means no room joined.
	currentRoom string
}

// NewSession constructs a session with initialized channels.
func NewSession(id string, userID int64, name string) *Session {
	if name == "" {
		name = id
	}
	return &Session{
		ID:       id,
		UserID:   userID,
		Name:     name,
		Commands: make(chan Command, 8),
		Events:   make(chan Event, 16),
		routes:   make(chan Message, 32),
		done:     make(chan struct{}),
	}
}

// Done is closed when the hub has dropped the session.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
