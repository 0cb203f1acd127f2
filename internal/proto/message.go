package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoinRoom    = "joinRoom"
	InboundTypeChatMessage = "chatMessage"

	OutboundTypeChatMessage = "chatMessage"
	OutboundTypeJoined      = "joined"
	OutboundTypeHistory     = "history"
	OutboundTypeError       = "error"
)

// JoinRoomData requests to join a specific room.
type JoinRoomData struct {
	Room string `json:"room"`
}

// ChatMessageData is a chat message from the client. The user field is
// accepted for compatibility but ignored; the authenticated identity
// attached to the connection is authoritative.
type ChatMessageData struct {
	Room    string `json:"room"`
	Message string `json:"message"`
	User    string `json:"user,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// ChatEventData is a chat message delivered to clients.
type ChatEventData struct {
	User      string    `json:"user"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// JoinedData acknowledges that a join completed.
type JoinedData struct {
	Room string `json:"room"`
}

// HistoryData delivers recent room messages to a client upon joining.
type HistoryData struct {
	Room     string          `json:"room"`
	Messages []ChatEventData `json:"messages"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
