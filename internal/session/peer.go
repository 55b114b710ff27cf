package session

import (
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/huddle-dev/huddle/internal/config"
)

const chatChannelLabel = "chat"

// PeerLink is the connection state for one remote participant: the peer
// connection, its chat data channel and the senders that carry our local
// tracks. At most one link exists per participant ID.
type PeerLink struct {
	id   string
	role Role
	pc   *webrtc.PeerConnection

	mu          sync.Mutex
	chat        *webrtc.DataChannel
	audioSender *webrtc.RTPSender
	videoSender *webrtc.RTPSender
	pending     []webrtc.ICECandidateInit
	remoteSet   bool
	closed      bool
}

func newPeerConnection(cfg *config.Config) (*webrtc.PeerConnection, error) {
	iceServers := []webrtc.ICEServer{{URLs: cfg.GetSTUNServers()}}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if turnServers != nil && cfg.ForceRelay {
		policy = webrtc.ICETransportPolicyRelay
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, newError("create peer connection", err)
	}
	return pc, nil
}

// attachTrack adds a local track to the connection and remembers its sender
// so screen share can swap tracks later without renegotiating.
func (p *PeerLink) attachTrack(track webrtc.TrackLocal) error {
	sender, err := p.pc.AddTrack(track)
	if err != nil {
		return err
	}
	go drainRTCP(sender)

	p.mu.Lock()
	if track.Kind() == webrtc.RTPCodecTypeAudio {
		p.audioSender = sender
	} else {
		p.videoSender = sender
	}
	p.mu.Unlock()
	return nil
}

// drainRTCP keeps the sender's RTCP stream read so interceptors don't stall.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (p *PeerLink) createOffer() (*webrtc.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	if err = p.pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	return p.pc.LocalDescription(), nil
}

// acceptOffer applies a remote offer and produces the local answer.
func (p *PeerLink) acceptOffer(sdp string) (*webrtc.SessionDescription, error) {
	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return nil, err
	}
	p.flushCandidates()

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	if err = p.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	return p.pc.LocalDescription(), nil
}

func (p *PeerLink) acceptAnswer(sdp string) error {
	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return err
	}
	p.flushCandidates()
	return nil
}

// addCandidate applies a remote ICE candidate, buffering it when the remote
// description has not arrived yet. The transport delivers frames in order
// per connection, but candidates can legitimately race the SDP exchange.
func (p *PeerLink) addCandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	if !p.remoteSet {
		p.pending = append(p.pending, c)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.pc.AddICECandidate(c)
}

func (p *PeerLink) flushCandidates() {
	p.mu.Lock()
	p.remoteSet = true
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, c := range pending {
		// a stale candidate is harmless; the rest still apply
		_ = p.pc.AddICECandidate(c)
	}
}

func (p *PeerLink) pendingCandidates() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// replaceVideoTrack substitutes the outgoing video track live, without a
// new offer/answer round trip.
func (p *PeerLink) replaceVideoTrack(track webrtc.TrackLocal) error {
	p.mu.Lock()
	sender := p.videoSender
	p.mu.Unlock()

	if sender == nil {
		return ErrNoVideoSender
	}
	return sender.ReplaceTrack(track)
}

func (p *PeerLink) setChat(dc *webrtc.DataChannel) {
	p.mu.Lock()
	p.chat = dc
	p.mu.Unlock()
}

// sendChat writes to the chat channel if it is open. Chat is best-effort:
// a channel still connecting simply misses the message.
func (p *PeerLink) sendChat(data []byte) error {
	p.mu.Lock()
	dc := p.chat
	p.mu.Unlock()

	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return nil
	}
	return dc.Send(data)
}

// close tears the link down. The peer connection close errors out any
// in-flight negotiation promises on its own.
func (p *PeerLink) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	dc := p.chat
	p.mu.Unlock()

	if dc != nil {
		dc.Close()
	}
	p.pc.Close()
}
