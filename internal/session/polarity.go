package session

// Role is the negotiation polarity of one peer link.
type Role int

const (
	// RoleOfferer creates the peer connection first: it adds its tracks,
	// opens the chat data channel and sends the SDP offer.
	RoleOfferer Role = iota

	// RoleAnswerer waits for the remote offer and replies with an answer.
	RoleAnswerer
)

func (r Role) String() string {
	if r == RoleOfferer {
		return "offerer"
	}
	return "answerer"
}

// RoleForPeer decides polarity for a link to one remote participant. The
// side that was already in the room when the other appeared makes the
// offer; join order is the tie-breaker, so both sides can never offer at
// once and no glare handling is needed.
func RoleForPeer(remoteJoinedAfterUs bool) Role {
	if remoteJoinedAfterUs {
		return RoleOfferer
	}
	return RoleAnswerer
}
