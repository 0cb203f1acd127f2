package bus

import "testing"

func TestChannelNameRoundTrip(t *testing.T) {
	cases := []string{"general", "room with spaces", "café", "a:b:c", "*"}
	for _, room := range cases {
		got, ok := roomFromChannel(channelName(room))
		if !ok || got != room {
			t.Fatalf("room %q did not survive channel mapping: got %q, ok=%v", room, got, ok)
		}
	}
}

func TestRoomFromChannelRejectsForeign(t *testing.T) {
	for _, channel := range []string{"", "chat:", "other:general", "general"} {
		if room, ok := roomFromChannel(channel); ok {
			t.Fatalf("channel %q unexpectedly mapped to room %q", channel, room)
		}
	}
}
