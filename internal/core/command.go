package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinRoom moves the session into a room, leaving its current one.
	CommandJoinRoom CommandKind = iota
	// CommandSendMessage routes a chat message to the session's current room.
	CommandSendMessage
)

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind
	Room string
	Body string
}
