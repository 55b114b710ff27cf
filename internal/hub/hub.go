package hub

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/huddle-dev/huddle/internal/signaling"
)

// inbound pairs an envelope with the connection it arrived on.
type inbound struct {
	client *Client
	env    signaling.Envelope
}

// Hub is the signaling server's single-threaded brain: one goroutine owns
// every room and client, so no state needs locking.
type Hub struct {
	log zerolog.Logger

	// Rooms maps room IDs to Room instances.
	Rooms map[string]*Room

	// Register is the channel for new connections.
	Register chan *Client

	// Unregister is the channel for dropped connections.
	Unregister chan *Client

	// Inbound carries every client envelope into the run loop.
	Inbound chan inbound
}

// New creates a Hub.
func New(log zerolog.Logger) *Hub {
	return &Hub{
		log:        log,
		Rooms:      make(map[string]*Room),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan inbound),
	}
}

// Run starts the hub's processing loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			// not in a room yet; a join_room message comes next
			h.log.Debug().Str("addr", client.Conn.RemoteAddr().String()).Msg("client registered")

		case client := <-h.Unregister:
			h.removeClient(client)

		case in := <-h.Inbound:
			h.dispatch(in.client, in.env)
		}
	}
}

func (h *Hub) dispatch(c *Client, env signaling.Envelope) {
	switch env.Type {
	case signaling.TypeJoinRoom:
		var p signaling.JoinRoom
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.sendError(c, "malformed join payload")
			return
		}
		h.handleJoin(c, p)

	case signaling.TypeSignal:
		var p signaling.Signal
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.sendError(c, "malformed signal payload")
			return
		}
		h.handleSignal(c, p)

	case signaling.TypeChatMessage:
		var p signaling.Chat
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.sendError(c, "malformed chat payload")
			return
		}
		h.handleChat(c, p)

	case signaling.TypeMediaState:
		var p signaling.MediaState
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.sendError(c, "malformed media state payload")
			return
		}
		h.handleMediaState(c, p)

	case signaling.TypeStartRecording:
		h.handleRecording(c, true)

	case signaling.TypeStopRecording:
		h.handleRecording(c, false)

	default:
		h.log.Warn().Str("type", env.Type).Msg("unknown message type")
		h.sendError(c, "unknown message type")
	}
}

func (h *Hub) handleJoin(c *Client, p signaling.JoinRoom) {
	if c.RoomID != "" {
		h.sendError(c, "already in a room")
		return
	}
	if p.RoomID == "" {
		h.sendError(c, "room ID is required")
		return
	}

	room, ok := h.Rooms[p.RoomID]
	if !ok {
		room = newRoom(p.RoomID)
		h.Rooms[p.RoomID] = room
		h.log.Info().Str("room", room.ID).Msg("room created")
	}

	c.ID = uuid.NewString()
	c.UserID = p.UserID
	c.RoomID = room.ID

	existing := room.roster("")
	room.add(c)

	h.log.Info().Str("room", room.ID).Str("participant", c.ID).
		Str("user", c.UserID).Bool("host", room.HostID == c.ID).Msg("participant joined")

	h.reply(c, signaling.TypeJoined, signaling.Joined{
		ParticipantID: c.ID,
		IsHost:        room.HostID == c.ID,
		Participants:  existing,
	})

	h.notify(room, c.ID, signaling.TypeParticipantJoined, signaling.ParticipantJoined{
		ParticipantID: c.ID,
		UserID:        c.UserID,
	})
}

// handleSignal relays one offer, answer or candidate to its target,
// rewriting the addressing so the receiver knows the origin.
func (h *Hub) handleSignal(c *Client, p signaling.Signal) {
	room := h.roomOf(c)
	if room == nil {
		return
	}
	if p.Target == "" {
		h.sendError(c, "signal requires a target participant")
		return
	}

	target := p.Target
	p.From = c.ID
	p.Target = ""

	env, err := signaling.NewEnvelope(signaling.TypeSignal, p)
	if err != nil {
		h.log.Error().Err(err).Msg("encode signal")
		return
	}
	if !room.send(target, env) {
		h.sendError(c, "unknown target participant")
	}
}

// handleChat records the mirrored chat message. Delivery happens
// peer-to-peer over the data channels; the mirror feeds the room recorder.
func (h *Hub) handleChat(c *Client, p signaling.Chat) {
	room := h.roomOf(c)
	if room == nil {
		return
	}
	room.recordChat(p.Message)
	h.log.Debug().Str("room", room.ID).Str("sender", p.Message.Sender).Msg("chat mirrored")
}

// handleMediaState rebroadcasts mute state and derives screen-share
// transitions from the screen flag flipping.
func (h *Hub) handleMediaState(c *Client, p signaling.MediaState) {
	room := h.roomOf(c)
	if room == nil {
		return
	}

	prev := room.media[c.ID]
	room.media[c.ID] = p

	h.notify(room, c.ID, signaling.TypeEvent, signaling.RoomEvent{
		Kind:          signaling.EventMediaChanged,
		ParticipantID: c.ID,
		Media:         &p,
	})

	if p.Screen != prev.Screen {
		kind := signaling.EventScreenShareStopped
		if p.Screen {
			kind = signaling.EventScreenShareStarted
		}
		h.notify(room, c.ID, signaling.TypeEvent, signaling.RoomEvent{
			Kind:          kind,
			ParticipantID: c.ID,
		})
	}
}

func (h *Hub) handleRecording(c *Client, start bool) {
	room := h.roomOf(c)
	if room == nil {
		return
	}
	if c.ID != room.HostID {
		h.sendError(c, "recording is host-only")
		return
	}
	if room.Recording == start {
		return
	}
	room.Recording = start

	kind := signaling.EventRecordingStopped
	if start {
		kind = signaling.EventRecordingStarted
	}
	h.log.Info().Str("room", room.ID).Bool("recording", start).Msg("recording state changed")

	// the whole room, host included, follows the server's recorder state
	h.notify(room, "", signaling.TypeEvent, signaling.RoomEvent{
		Kind:          kind,
		ParticipantID: c.ID,
	})
}

func (h *Hub) removeClient(c *Client) {
	if c.RoomID != "" {
		if room, ok := h.Rooms[c.RoomID]; ok {
			newHost := room.remove(c.ID)

			if room.empty() {
				delete(h.Rooms, room.ID)
				h.log.Info().Str("room", room.ID).Msg("room deleted")
			} else {
				h.notify(room, "", signaling.TypeParticipantLeft, signaling.ParticipantLeft{
					ParticipantID: c.ID,
				})
				if newHost != "" {
					h.notify(room, "", signaling.TypeEvent, signaling.RoomEvent{
						Kind:          signaling.EventHostChanged,
						ParticipantID: newHost,
					})
				}
			}
		}
	}

	close(c.Send)
	h.log.Debug().Str("participant", c.ID).Msg("client unregistered")
}

func (h *Hub) roomOf(c *Client) *Room {
	if c.RoomID == "" {
		h.sendError(c, "you must join a room first")
		return nil
	}
	room, ok := h.Rooms[c.RoomID]
	if !ok {
		h.sendError(c, "room not found")
		return nil
	}
	return room
}

func (h *Hub) reply(c *Client, msgType string, payload any) {
	env, err := signaling.NewEnvelope(msgType, payload)
	if err != nil {
		h.log.Error().Err(err).Str("type", msgType).Msg("encode reply")
		return
	}
	c.Send <- env
}

func (h *Hub) notify(room *Room, except string, msgType string, payload any) {
	env, err := signaling.NewEnvelope(msgType, payload)
	if err != nil {
		h.log.Error().Err(err).Str("type", msgType).Msg("encode broadcast")
		return
	}
	room.broadcast(except, env)
}

func (h *Hub) sendError(c *Client, msg string) {
	h.reply(c, signaling.TypeError, signaling.ErrorPayload{Error: msg})
}
