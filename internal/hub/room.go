package hub

import (
	"github.com/huddle-dev/huddle/internal/signaling"
)

// Room is one signaling room: its participants in join order, the host,
// and the room-scoped recorder state.
type Room struct {
	ID string

	// Participants maps participant ID to connection.
	Participants map[string]*Client

	// Order tracks join order; the head is next in line for host.
	Order []string

	// HostID is the participant controlling recording.
	HostID string

	// Recording is the server-side recorder flag.
	Recording bool

	// media holds the last informational media state per participant, so
	// screen-share transitions can be detected.
	media map[string]signaling.MediaState

	// chat is what a room recorder would persist. Chat itself travels
	// peer-to-peer over data channels.
	chat []signaling.ChatMessage
}

// maxChatLog bounds the per-room chat mirror so a long-lived room cannot
// grow server memory without limit.
const maxChatLog = 512

func newRoom(id string) *Room {
	return &Room{
		ID:           id,
		Participants: make(map[string]*Client),
		media:        make(map[string]signaling.MediaState),
	}
}

func (r *Room) add(c *Client) {
	r.Participants[c.ID] = c
	r.Order = append(r.Order, c.ID)
	if r.HostID == "" {
		r.HostID = c.ID
	}
}

// remove drops a participant and returns the new host ID if the host
// changed, empty otherwise.
func (r *Room) remove(id string) (newHost string) {
	delete(r.Participants, id)
	delete(r.media, id)
	for i, o := range r.Order {
		if o == id {
			r.Order = append(r.Order[:i], r.Order[i+1:]...)
			break
		}
	}

	if r.HostID == id && len(r.Order) > 0 {
		r.HostID = r.Order[0]
		return r.HostID
	}
	return ""
}

// recordChat appends to the room's chat mirror, dropping the oldest
// entries once the log is full.
func (r *Room) recordChat(msg signaling.ChatMessage) {
	r.chat = append(r.chat, msg)
	if len(r.chat) > maxChatLog {
		r.chat = r.chat[len(r.chat)-maxChatLog:]
	}
}

func (r *Room) empty() bool {
	return len(r.Participants) == 0
}

// send delivers to one participant; it reports whether the target exists.
func (r *Room) send(to string, env signaling.Envelope) bool {
	c, ok := r.Participants[to]
	if !ok {
		return false
	}
	c.Send <- env
	return true
}

// broadcast delivers to every participant except the given one. Pass an
// empty string to reach the whole room.
func (r *Room) broadcast(except string, env signaling.Envelope) {
	for id, c := range r.Participants {
		if id == except {
			continue
		}
		c.Send <- env
	}
}

// roster lists current members except the given one.
func (r *Room) roster(except string) []signaling.Participant {
	out := make([]signaling.Participant, 0, len(r.Participants))
	for _, id := range r.Order {
		if id == except {
			continue
		}
		if c, ok := r.Participants[id]; ok {
			out = append(out, signaling.Participant{ID: c.ID, UserID: c.UserID})
		}
	}
	return out
}
