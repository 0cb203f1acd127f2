package core

// Room groups the local sessions that currently consider it their current
// room. Rooms are created implicitly on first join; only the hub goroutine
// touches them.
type Room struct {
	Name     string
	sessions map[*Session]struct{}
}

// NewRoom constructs a room with no sessions.
func NewRoom(name string) *Room {
	return &Room{
		Name:     name,
		sessions: make(map[*Session]struct{}),
	}
}

// Add inserts a session into the room. Returns true if newly added.
func (r *Room) Add(s *Session) bool {
	if _, exists := r.sessions[s]; exists {
		return false
	}
	r.sessions[s] = struct{}{}
	return true
}

// Remove deletes a session from the room. Returns true if removed.
func (r *Room) Remove(s *Session) bool {
	if _, exists := r.sessions[s]; !exists {
		return false
	}
	delete(r.sessions, s)
	return true
}

// Broadcast sends an event to all sessions in the room.
func (r *Room) Broadcast(event Event) {
	for session := range r.sessions {
		select {
		case session.Events <- event:
		default:
			// Drop if slow consumer.
		}
	}
}

// Empty returns true if no sessions are in the room.
func (r *Room) Empty() bool {
	return len(r.sessions) == 0
}
