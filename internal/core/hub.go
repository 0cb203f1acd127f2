package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftline/roomcast/internal/bus"
	"github.com/driftline/roomcast/internal/proto"
	"github.com/driftline/roomcast/internal/store"
)

// HubConfig holds the process-scoped state the hub is constructed with.
type HubConfig struct {
	// Origin is this instance's origin marker (see NewOriginMarker).
	Origin string
	// DefaultRoom, when set, has its bus channel subscribed at startup.
	DefaultRoom string
	// HistoryLimit caps the backlog sent to a joining session. Zero disables
	// history delivery.
	HistoryLimit int
}

// Hub coordinates sessions, rooms, and the broadcast bus for one instance.
//
// A single goroutine (Run) owns all registry state: room member sets, the
// set of bus-subscribed rooms, and every session's current room. Connection
// goroutines talk to it through channels, so membership mutation and the
// first-join subscribe check are serialized without locks. Blocking I/O
// (persist, publish, history reads) happens off the hub goroutine so one
// session's slow send never stalls the others.
type Hub struct {
	cfg   HubConfig
	store store.MessageStore
	bus   bus.Bus
	log   *zerolog.Logger

	register   chan *Session
	unregister chan *Session
	commands   chan sessionCommand
	deliver    chan Message
	subFailed  chan string
	stopped    chan struct{}

	sessions   map[*Session]struct{}
	rooms      map[string]*Room
	subscribed map[string]struct{}
}

type sessionCommand struct {
	session *Session
	cmd     Command
}

// NewHub creates a hub for one server instance.
func NewHub(cfg HubConfig, st store.MessageStore, b bus.Bus, logger *zerolog.Logger) *Hub {
	return &Hub{
		cfg:        cfg,
		store:      st,
		bus:        b,
		log:        logger,
		register:   make(chan *Session),
		unregister: make(chan *Session),
		commands:   make(chan sessionCommand),
		deliver:    make(chan Message, 64),
		subFailed:  make(chan string),
		stopped:    make(chan struct{}),
		sessions:   make(map[*Session]struct{}),
		rooms:      make(map[string]*Room),
		subscribed: make(map[string]struct{}),
	}
}

// RegisterSession hands a session to the hub. The hub consumes its Commands
// channel in arrival order until the session is unregistered.
func (h *Hub) RegisterSession(s *Session) {
	select {
	case h.register <- s:
	case <-h.stopped:
	}
}

// UnregisterSession drops a session: it leaves its room and no further
// commands are processed. In-flight persist/publish for an already accepted
// send still completes.
func (h *Hub) UnregisterSession(s *Session) {
	select {
	case h.unregister <- s:
	case <-h.stopped:
	}
}

// Run drives the hub until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	if h.cfg.DefaultRoom != "" {
		h.ensureSubscribed(ctx, h.cfg.DefaultRoom)
	}

	frames := h.bus.Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-h.register:
			h.sessions[s] = struct{}{}
			go h.pump(ctx, s)
			go h.routeLoop(ctx, s)
		case s := <-h.unregister:
			h.dropSession(s)
		case sc := <-h.commands:
			h.dispatch(ctx, sc.session, sc.cmd)
		case msg := <-h.deliver:
			h.fanout(msg)
		case room := <-h.subFailed:
			// Clear the flag so a later join retries the subscribe.
			delete(h.subscribed, room)
		case frame, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			h.handleFrame(frame)
		}
	}
}

// pump forwards one session's commands to the hub, preserving arrival order.
func (h *Hub) pump(ctx context.Context, s *Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case cmd := <-s.Commands:
			select {
			case h.commands <- sessionCommand{session: s, cmd: cmd}:
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, s *Session, cmd Command) {
	if _, ok := h.sessions[s]; !ok {
		return
	}
	switch cmd.Kind {
	case CommandJoinRoom:
		h.join(ctx, s, cmd.Room)
	case CommandSendMessage:
		h.send(ctx, s, cmd)
	}
}

// join implements the room registry contract: a session is in at most one
// room, and joining a new room leaves the previous one.
func (h *Hub) join(ctx context.Context, s *Session, name string) {
	if name == "" {
		h.emit(s, Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "room is required")})
		return
	}
	if s.currentRoom == name {
		return
	}
	if s.currentRoom != "" {
		h.removeFromRoom(s, s.currentRoom)
	}

	room := h.rooms[name]
	if room == nil {
		room = NewRoom(name)
		h.rooms[name] = room
	}
	room.Add(s)
	s.currentRoom = name

	h.ensureSubscribed(ctx, name)
	h.emit(s, Event{Kind: EventJoined, Room: name})
	h.sendHistory(ctx, s, name)

	h.log.Debug().Str("session_id", s.ID).Str("user", s.Name).Str("room", name).Msg("joined room")
}

// ensureSubscribed subscribes the instance to a room's bus channel at most
// once. The flag is set before the network call: all checks run on the hub
// goroutine, so concurrent first joins cannot race into a double subscribe.
// Subscriptions are sticky for the process lifetime.
func (h *Hub) ensureSubscribed(ctx context.Context, room string) {
	if _, ok := h.subscribed[room]; ok {
		return
	}
	h.subscribed[room] = struct{}{}

	go func() {
		if err := h.bus.Subscribe(ctx, room); err != nil {
			h.log.Error().Err(err).Str("room", room).Msg("bus subscribe failed, cross-instance delivery degraded")
			select {
			case h.subFailed <- room:
			case <-ctx.Done():
			}
			return
		}
		h.log.Debug().Str("room", room).Msg("subscribed to bus channel")
	}()
}

// send validates the request on the hub goroutine, then queues the message
// for the session's route loop.
func (h *Hub) send(ctx context.Context, s *Session, cmd Command) {
	room := s.currentRoom
	if room == "" || (cmd.Room != "" && cmd.Room != room) {
		h.emit(s, Event{Kind: EventError, Error: coreError(ErrCodeNotInRoom, "join a room before sending")})
		return
	}

	msg := Message{
		Room:      room,
		User:      s.Name,
		Body:      cmd.Body,
		CreatedAt: time.Now().UTC(),
		Origin:    h.cfg.Origin,
	}
	select {
	case s.routes <- msg:
	default:
		h.emit(s, Event{Kind: EventError, Room: room, Error: coreError(ErrCodeRateLimited, "too many messages in flight")})
	}
}

// routeLoop drains one session's accepted sends in order. A slow save delays
// that session's later messages but never reorders them, and never touches
// any other session's loop.
func (h *Hub) routeLoop(ctx context.Context, s *Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.routes:
			h.route(ctx, s, msg)
		case <-s.done:
			// Finish sends accepted before the disconnect.
			for {
				select {
				case msg := <-s.routes:
					h.route(ctx, s, msg)
				default:
					return
				}
			}
		}
	}
}

// route is the terminal state machine for one accepted send: persist, then
// publish, then hand back for local fanout. Persistence success is a
// precondition for any visibility; a failed publish degrades that message to
// local-only delivery.
func (h *Hub) route(ctx context.Context, sender *Session, msg Message) {
	record := &store.Message{
		Room:      msg.Room,
		User:      msg.User,
		Body:      msg.Body,
		CreatedAt: msg.CreatedAt,
	}
	if err := h.store.SaveMessage(ctx, record); err != nil {
		h.log.Error().Err(err).Str("room", msg.Room).Str("user", msg.User).Msg("persist message failed")
		h.emit(sender, Event{Kind: EventError, Room: msg.Room, Error: coreError(ErrCodePersistenceFailure, "failed to send message")})
		return
	}

	payload, err := proto.EncodeBusPayload(proto.BusPayload{
		Room:         msg.Room,
		User:         msg.User,
		Message:      msg.Body,
		Timestamp:    msg.CreatedAt,
		OriginMarker: msg.Origin,
	})
	if err != nil {
		h.log.Error().Err(err).Str("room", msg.Room).Msg("encode bus payload failed")
	} else if err := h.bus.Publish(ctx, msg.Room, payload); err != nil {
		// Persisted but not published: members on other instances miss this
		// message. Logged as a visibility gap; local delivery proceeds.
		h.log.Warn().Err(err).Str("room", msg.Room).Msg("bus publish failed, delivering local-only")
	}

	select {
	case h.deliver <- msg:
	case <-ctx.Done():
	}
}

// fanout delivers a message to every local session currently in its room.
// The sender is a member like any other, so it sees its own message through
// this path and never through the bus echo.
func (h *Hub) fanout(msg Message) {
	room := h.rooms[msg.Room]
	if room == nil {
		// No local members; bus deliveries for idle subscriptions drop here.
		return
	}
	msg.Origin = ""
	room.Broadcast(Event{Kind: EventChatMessage, Room: msg.Room, Message: msg})
}

// handleFrame processes a bus delivery: drop self-echoes by origin marker,
// fan out everything else.
func (h *Hub) handleFrame(frame bus.Frame) {
	payload, err := proto.DecodeBusPayload(frame.Payload)
	if err != nil {
		h.log.Warn().Err(err).Str("room", frame.Room).Msg("malformed bus payload dropped")
		return
	}
	if payload.Room != "" && payload.Room != frame.Room {
		h.log.Warn().Str("channel_room", frame.Room).Str("payload_room", payload.Room).Msg("bus payload room mismatch, dropped")
		return
	}
	if payload.OriginMarker == h.cfg.Origin {
		// Echo of a message this instance already fanned out locally.
		return
	}
	h.fanout(Message{
		Room:      frame.Room,
		User:      payload.User,
		Body:      payload.Message,
		CreatedAt: payload.Timestamp,
	})
}

// sendHistory asynchronously delivers the recent backlog to a joining session.
func (h *Hub) sendHistory(ctx context.Context, s *Session, room string) {
	if h.cfg.HistoryLimit <= 0 {
		return
	}
	go func() {
		records, err := h.store.ListRecent(ctx, room, h.cfg.HistoryLimit)
		if err != nil {
			h.log.Warn().Err(err).Str("room", room).Msg("load room history failed")
			return
		}
		if len(records) == 0 {
			return
		}
		messages := make([]Message, 0, len(records))
		for _, r := range records {
			messages = append(messages, Message{
				Room:      r.Room,
				User:      r.User,
				Body:      r.Body,
				CreatedAt: r.CreatedAt,
			})
		}
		h.emit(s, Event{Kind: EventHistory, Room: room, Messages: messages})
	}()
}

func (h *Hub) dropSession(s *Session) {
	if _, ok := h.sessions[s]; !ok {
		return
	}
	delete(h.sessions, s)
	close(s.done)
	if s.currentRoom != "" {
		h.removeFromRoom(s, s.currentRoom)
		s.currentRoom = ""
	}
	h.log.Debug().Str("session_id", s.ID).Str("user", s.Name).Msg("session dropped")
}

func (h *Hub) removeFromRoom(s *Session, name string) {
	room := h.rooms[name]
	if room == nil {
		return
	}
	room.Remove(s)
	if room.Empty() {
		// The bus subscription stays; an empty room costs only its map entry.
		delete(h.rooms, name)
	}
}

// emit delivers an event to a single session, dropping it if the session's
// write side is too far behind.
func (h *Hub) emit(s *Session, event Event) {
	select {
	case s.Events <- event:
	default:
		h.log.Warn().Str("session_id", s.ID).Msg("event dropped, slow consumer")
	}
}
