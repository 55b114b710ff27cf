package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Envelope is the frame for every message in either direction.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client-to-server message types.
const (
	TypeJoinRoom       = "webrtc_join_room"
	TypeSignal         = "webrtc_signal"
	TypeChatMessage    = "webrtc_chat_message"
	TypeMediaState     = "webrtc_media_state"
	TypeStartRecording = "webrtc_start_recording"
	TypeStopRecording  = "webrtc_stop_recording"
)

// Server-to-client message types. TypeSignal flows both ways.
const (
	TypeJoined            = "webrtc_joined"
	TypeParticipantJoined = "webrtc_participant_joined"
	TypeParticipantLeft   = "webrtc_participant_left"
	TypeEvent             = "webrtc_event"
	TypeError             = "webrtc_error"
)

// Event kinds carried inside TypeEvent payloads.
const (
	EventChatMessage        = "chat_message"
	EventRecordingStarted   = "recording_started"
	EventRecordingStopped   = "recording_stopped"
	EventScreenShareStarted = "screen_share_started"
	EventScreenShareStopped = "screen_share_stopped"
	EventMediaChanged       = "participant_media_changed"
	EventHostChanged        = "host_changed"
)

// Signal kinds.
const (
	SignalOffer     = "offer"
	SignalAnswer    = "answer"
	SignalCandidate = "candidate"
)

// JoinRoom asks the server to add this connection to a room,
// creating the room if it does not exist yet.
type JoinRoom struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

// Signal carries one offer, answer or ICE candidate. Outbound messages set
// Target; the server rewrites the addressing and sets From on delivery.
type Signal struct {
	Kind      string                   `json:"type"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	Target    string                   `json:"target_participant,omitempty"`
	From      string                   `json:"from_participant,omitempty"`
}

// ChatMessage is the value object exchanged on chat data channels and
// mirrored over the signaling channel.
type ChatMessage struct {
	Text      string `json:"text"`
	Sender    string `json:"sender"`
	Timestamp int64  `json:"timestamp"`
}

// Chat wraps a chat message for the signaling channel mirror.
type Chat struct {
	Message ChatMessage `json:"message"`
}

// MediaState is the informational mute/share state broadcast to peers.
// It never triggers renegotiation.
type MediaState struct {
	Audio  bool `json:"audio"`
	Video  bool `json:"video"`
	Screen bool `json:"screen"`
}

// Participant identifies one room member.
type Participant struct {
	ID     string `json:"participant_id"`
	UserID string `json:"user_id,omitempty"`
}

// Joined confirms room membership. Participants lists the members that were
// already in the room; connections to them arrive as offers from their side.
type Joined struct {
	ParticipantID string        `json:"participant_id"`
	IsHost        bool          `json:"is_host"`
	Participants  []Participant `json:"participants"`
}

// ParticipantJoined announces a new room member to existing ones.
type ParticipantJoined struct {
	ParticipantID string `json:"participant_id"`
	UserID        string `json:"user_id,omitempty"`
}

// ParticipantLeft announces a departure.
type ParticipantLeft struct {
	ParticipantID string `json:"participant_id"`
}

// RoomEvent is an informational room-wide broadcast.
type RoomEvent struct {
	Kind          string       `json:"type"`
	ParticipantID string       `json:"participant_id,omitempty"`
	Message       *ChatMessage `json:"message,omitempty"`
	Media         *MediaState  `json:"media,omitempty"`
}

// ErrorPayload carries a server-side error description.
type ErrorPayload struct {
	Error string `json:"error"`
}

// Event is a decoded server-to-client message. The concrete type is one of
// *Joined, *ParticipantJoined, *ParticipantLeft, *Signal, *RoomEvent or
// *ErrorPayload.
type Event interface {
	isEvent()
}

func (*Joined) isEvent()            {}
func (*ParticipantJoined) isEvent() {}
func (*ParticipantLeft) isEvent()   {}
func (*Signal) isEvent()            {}
func (*RoomEvent) isEvent()         {}
func (*ErrorPayload) isEvent()      {}

// NewEnvelope creates an Envelope with the given type and payload.
func NewEnvelope(t string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: t}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: t, Payload: b}, nil
}

// DecodeEvent turns a server-to-client envelope into its typed event.
// Unknown message types are an error rather than a silent drop, so the
// dispatch stays exhaustive as the protocol grows.
func DecodeEvent(env Envelope) (Event, error) {
	switch env.Type {
	case TypeJoined:
		var p Joined
		return &p, unmarshal(env, &p)
	case TypeParticipantJoined:
		var p ParticipantJoined
		return &p, unmarshal(env, &p)
	case TypeParticipantLeft:
		var p ParticipantLeft
		return &p, unmarshal(env, &p)
	case TypeSignal:
		var p Signal
		return &p, unmarshal(env, &p)
	case TypeEvent:
		var p RoomEvent
		return &p, unmarshal(env, &p)
	case TypeError:
		var p ErrorPayload
		return &p, unmarshal(env, &p)
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}

func unmarshal(env Envelope, v any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%s: %w", env.Type, err)
	}
	return nil
}
