package core

// EventKind is a notification the core emits to sessions.
type EventKind int

const (
	// EventChatMessage delivers a chat message in the session's room.
	EventChatMessage EventKind = iota
	// EventJoined acknowledges that a join completed.
	EventJoined
	// EventHistory delivers recent room messages to a session upon joining.
	EventHistory
	// EventError notifies a session about a domain error on its own request.
	EventError
)

// Event is sent to sessions to describe what happened in the system.
type Event struct {
	Kind     EventKind
	Room     string
	Message  Message
	Messages []Message // For EventHistory
	Error    *CoreError
}
