package proto

import (
	"encoding/json"
	"errors"
	"time"
)

// BusPayload is the wire format for messages travelling over the broadcast
// bus between instances. OriginMarker identifies the publishing instance and
// is stripped before anything reaches a client.
type BusPayload struct {
	Room         string    `json:"room"`
	User         string    `json:"user"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
	OriginMarker string    `json:"originMarker"`
}

var errBadBusPayload = errors.New("malformed bus payload")

// EncodeBusPayload serializes a payload for publishing.
func EncodeBusPayload(p BusPayload) ([]byte, error) {
	return json.Marshal(p)
}

// DecodeBusPayload parses a payload received from the bus. Payloads without
// a user or origin marker are rejected as malformed.
func DecodeBusPayload(data []byte) (BusPayload, error) {
	var p BusPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return BusPayload{}, err
	}
	if p.User == "" || p.OriginMarker == "" {
		return BusPayload{}, errBadBusPayload
	}
	return p, nil
}
