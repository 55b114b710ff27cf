package session

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/huddle-dev/huddle/internal/config"
	"github.com/huddle-dev/huddle/internal/logging"
	"github.com/huddle-dev/huddle/internal/media"
	"github.com/huddle-dev/huddle/internal/signaling"
)

// State is the session lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateJoining
	StateJoined
	StateLeaving
)

func (s State) String() string {
	switch s {
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateLeaving:
		return "leaving"
	default:
		return "idle"
	}
}

// MediaState is the local media snapshot reported to callers and broadcast
// to peers as presentation-only metadata.
type MediaState struct {
	AudioEnabled  bool
	VideoEnabled  bool
	ScreenSharing bool
	Recording     bool
}

// RemoteSink consumes remote media tracks for one participant. Sinks are
// registered by the caller and never owned by the session; tracks arriving
// with no sink registered are silently dropped.
type RemoteSink interface {
	AddTrack(participantID string, track *webrtc.TrackRemote)
}

// LocalSink previews the local tracks. It is told again whenever the video
// track is swapped for screen share.
type LocalSink interface {
	LocalTracks(audio, video *media.LocalTrack)
}

// Callbacks are the caller-facing event surface. All user-visible behavior
// is delegated through these; the session renders nothing itself. Nil
// callbacks are skipped.
type Callbacks struct {
	OnParticipantJoined  func(participantID, userID string)
	OnParticipantLeft    func(participantID string)
	OnChatMessage        func(msg signaling.ChatMessage)
	OnRecordingStarted   func()
	OnRecordingStopped   func()
	OnScreenShareStarted func(participantID string)
	OnScreenShareStopped func(participantID string)
	OnMediaChanged       func(participantID string, state signaling.MediaState)
	OnError              func(err error)
}

// Transport is the signaling channel the session speaks over. Implemented
// by signaling.Client; tests substitute fakes.
type Transport interface {
	Connect() error
	Send(env signaling.Envelope)
	Incoming() <-chan signaling.Envelope
	Close()
}

// Option customizes a Manager.
type Option func(*Manager)

// WithTransport overrides how the session dials the signaling server.
func WithTransport(factory func() Transport) Option {
	return func(m *Manager) { m.newTransport = factory }
}

// WithLogger overrides the session logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// Manager is the peer session manager: the local participant's membership
// in one room, the local media it owns, and one PeerLink per remote
// participant. A Manager holds at most one active session at a time.
type Manager struct {
	cfg    *config.Config
	device media.Device
	cb     Callbacks
	log    zerolog.Logger

	newTransport func() Transport

	mu        sync.Mutex
	state     State
	transport Transport

	roomID        string
	userID        string
	participantID string
	isHost        bool
	isRecording   bool
	isSharing     bool

	audio *media.LocalTrack
	video *media.LocalTrack

	peers       map[string]*PeerLink
	roster      map[string]string // participantID -> userID
	remoteSinks map[string]RemoteSink
	localSink   LocalSink
}

// New creates a session manager. The device supplies local capture tracks;
// callbacks may be zero-valued for headless use.
func New(cfg *config.Config, device media.Device, cb Callbacks, opts ...Option) *Manager {
	m := &Manager{
		cfg:         cfg,
		device:      device,
		cb:          cb,
		log:         logging.New("session"),
		peers:       make(map[string]*PeerLink),
		roster:      make(map[string]string),
		remoteSinks: make(map[string]RemoteSink),
	}
	m.newTransport = func() Transport {
		return signaling.NewClient(cfg.WebSocketURL)
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// JoinRoom connects to the signaling server, optionally acquires local
// media, and announces this client to the room. Membership is confirmed
// asynchronously; the session is Joined once the server replies. Media
// acquisition failure is reported through OnError but does not abort the
// join.
func (m *Manager) JoinRoom(roomID, userID string) error {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return newError("join room", ErrSessionActive)
	}
	m.state = StateJoining
	m.roomID = roomID
	m.userID = userID
	m.mu.Unlock()

	t := m.newTransport()
	if err := t.Connect(); err != nil {
		m.mu.Lock()
		m.state = StateIdle
		m.mu.Unlock()
		err = newError("connect signaling", err)
		m.reportError(err)
		return err
	}

	m.mu.Lock()
	m.transport = t
	m.mu.Unlock()

	if m.cfg.AutoMedia {
		m.acquireLocalMedia()
	}

	go m.eventLoop(t)

	m.send(signaling.TypeJoinRoom, signaling.JoinRoom{RoomID: roomID, UserID: userID})
	return nil
}

func (m *Manager) acquireLocalMedia() {
	audio, err := m.device.Microphone()
	if err != nil {
		m.reportError(newError("acquire microphone", err))
	}
	video, err := m.device.Camera()
	if err != nil {
		m.reportError(newError("acquire camera", err))
	}

	m.mu.Lock()
	m.audio = audio
	m.video = video
	sink := m.localSink
	m.mu.Unlock()

	if sink != nil {
		sink.LocalTracks(audio, video)
	}
}

// LeaveRoom tears the session down completely: every peer link, every data
// channel, every local track, every sink registration, and the transport.
// Calling it without an active session is a no-op.
func (m *Manager) LeaveRoom() {
	m.mu.Lock()
	if m.state == StateIdle || m.state == StateLeaving {
		m.mu.Unlock()
		return
	}
	m.state = StateLeaving

	peers := m.peers
	m.peers = make(map[string]*PeerLink)
	m.roster = make(map[string]string)
	m.remoteSinks = make(map[string]RemoteSink)
	m.localSink = nil

	audio, video := m.audio, m.video
	m.audio, m.video = nil, nil

	t := m.transport
	m.transport = nil

	m.participantID = ""
	m.isHost = false
	m.isRecording = false
	m.isSharing = false
	m.mu.Unlock()

	for _, p := range peers {
		p.close()
	}
	if audio != nil {
		audio.Stop()
	}
	if video != nil {
		video.Stop()
	}
	if t != nil {
		t.Close()
	}

	m.mu.Lock()
	m.state = StateIdle
	m.mu.Unlock()
}

// eventLoop consumes the transport until it closes. Signal handling is
// per-message: one bad payload never tears down other peers.
func (m *Manager) eventLoop(t Transport) {
	for env := range t.Incoming() {
		ev, err := signaling.DecodeEvent(env)
		if err != nil {
			m.reportError(newError("decode signaling message", err))
			continue
		}
		m.handleEvent(ev)
	}

	m.mu.Lock()
	lost := m.transport == t && (m.state == StateJoining || m.state == StateJoined)
	m.mu.Unlock()
	if lost {
		m.reportError(newError("signaling", ErrTransportClosed))
		m.LeaveRoom()
	}
}

func (m *Manager) handleEvent(ev signaling.Event) {
	switch ev := ev.(type) {
	case *signaling.Joined:
		m.handleJoined(ev)
	case *signaling.ParticipantJoined:
		m.handleParticipantJoined(ev)
	case *signaling.ParticipantLeft:
		m.handleParticipantLeft(ev)
	case *signaling.Signal:
		if err := m.handleSignal(ev); err != nil {
			m.reportError(wrapError("handle signal", err, "from "+ev.From))
		}
	case *signaling.RoomEvent:
		m.handleRoomEvent(ev)
	case *signaling.ErrorPayload:
		m.reportError(wrapError("signaling", ErrServer, ev.Error))
	}
}

func (m *Manager) handleJoined(ev *signaling.Joined) {
	m.mu.Lock()
	if m.state != StateJoining {
		m.mu.Unlock()
		return
	}
	m.state = StateJoined
	m.participantID = ev.ParticipantID
	m.isHost = ev.IsHost
	for _, p := range ev.Participants {
		m.roster[p.ID] = p.UserID
	}
	room := m.roomID
	m.mu.Unlock()

	// Existing participants offer to us; peer links are created when their
	// offers arrive.
	m.log.Info().Str("room", room).Str("participant", ev.ParticipantID).
		Bool("host", ev.IsHost).Int("existing", len(ev.Participants)).Msg("joined room")
}

// handleParticipantJoined runs on the already-joined side: it makes this
// client the offerer for the new arrival.
func (m *Manager) handleParticipantJoined(ev *signaling.ParticipantJoined) {
	m.mu.Lock()
	if m.state != StateJoined {
		m.mu.Unlock()
		return
	}
	if _, exists := m.peers[ev.ParticipantID]; exists {
		m.mu.Unlock()
		return
	}
	m.roster[ev.ParticipantID] = ev.UserID
	audio, video := m.audio, m.video
	m.mu.Unlock()

	p, err := m.newPeerLink(ev.ParticipantID, RoleForPeer(true), audio, video)
	if err != nil {
		m.reportError(wrapError("create peer", err, ev.ParticipantID))
		return
	}

	m.mu.Lock()
	m.peers[ev.ParticipantID] = p
	m.mu.Unlock()

	offer, err := p.createOffer()
	if err != nil {
		m.reportError(wrapError("create offer", err, ev.ParticipantID))
		m.removePeer(ev.ParticipantID)
		return
	}
	m.send(signaling.TypeSignal, signaling.Signal{
		Kind:   signaling.SignalOffer,
		SDP:    offer.SDP,
		Target: ev.ParticipantID,
	})

	if cb := m.cb.OnParticipantJoined; cb != nil {
		cb(ev.ParticipantID, ev.UserID)
	}
}

func (m *Manager) handleParticipantLeft(ev *signaling.ParticipantLeft) {
	m.mu.Lock()
	delete(m.roster, ev.ParticipantID)
	m.mu.Unlock()

	m.removePeer(ev.ParticipantID)

	if cb := m.cb.OnParticipantLeft; cb != nil {
		cb(ev.ParticipantID)
	}
}

func (m *Manager) handleSignal(sig *signaling.Signal) error {
	switch sig.Kind {
	case signaling.SignalOffer:
		p, created, err := m.peerForOffer(sig.From)
		if err != nil {
			return err
		}
		answer, err := p.acceptOffer(sig.SDP)
		if err != nil {
			if created {
				m.removePeer(sig.From)
			}
			return err
		}
		m.send(signaling.TypeSignal, signaling.Signal{
			Kind:   signaling.SignalAnswer,
			SDP:    answer.SDP,
			Target: sig.From,
		})
		if created {
			m.mu.Lock()
			userID := m.roster[sig.From]
			m.mu.Unlock()
			if cb := m.cb.OnParticipantJoined; cb != nil {
				cb(sig.From, userID)
			}
		}
		return nil

	case signaling.SignalAnswer:
		p := m.peer(sig.From)
		if p == nil {
			return ErrUnknownPeer
		}
		return p.acceptAnswer(sig.SDP)

	case signaling.SignalCandidate:
		if sig.Candidate == nil {
			return nil
		}
		p := m.peer(sig.From)
		if p == nil {
			return ErrUnknownPeer
		}
		return p.addCandidate(*sig.Candidate)

	default:
		return wrapError("signal", ErrUnexpectedSignal, sig.Kind)
	}
}

// peerForOffer returns the link for an inbound offer, creating it in the
// answerer role on first contact.
func (m *Manager) peerForOffer(from string) (*PeerLink, bool, error) {
	m.mu.Lock()
	if m.state != StateJoined {
		m.mu.Unlock()
		return nil, false, ErrNoSession
	}
	if p, ok := m.peers[from]; ok {
		m.mu.Unlock()
		return p, false, nil
	}
	audio, video := m.audio, m.video
	m.mu.Unlock()

	p, err := m.newPeerLink(from, RoleForPeer(false), audio, video)
	if err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	if existing, ok := m.peers[from]; ok {
		m.mu.Unlock()
		p.close()
		return existing, false, nil
	}
	m.peers[from] = p
	m.mu.Unlock()
	return p, true, nil
}

func (m *Manager) handleRoomEvent(ev *signaling.RoomEvent) {
	switch ev.Kind {
	case signaling.EventChatMessage:
		if ev.Message == nil {
			return
		}
		if cb := m.cb.OnChatMessage; cb != nil {
			cb(*ev.Message)
		}

	case signaling.EventRecordingStarted:
		m.mu.Lock()
		m.isRecording = true
		m.mu.Unlock()
		if cb := m.cb.OnRecordingStarted; cb != nil {
			cb()
		}

	case signaling.EventRecordingStopped:
		m.mu.Lock()
		m.isRecording = false
		m.mu.Unlock()
		if cb := m.cb.OnRecordingStopped; cb != nil {
			cb()
		}

	case signaling.EventScreenShareStarted:
		if cb := m.cb.OnScreenShareStarted; cb != nil {
			cb(ev.ParticipantID)
		}

	case signaling.EventScreenShareStopped:
		if cb := m.cb.OnScreenShareStopped; cb != nil {
			cb(ev.ParticipantID)
		}

	case signaling.EventMediaChanged:
		if ev.Media == nil {
			return
		}
		if cb := m.cb.OnMediaChanged; cb != nil {
			cb(ev.ParticipantID, *ev.Media)
		}

	case signaling.EventHostChanged:
		m.mu.Lock()
		m.isHost = ev.ParticipantID == m.participantID
		m.mu.Unlock()

	default:
		m.log.Warn().Str("kind", ev.Kind).Msg("unknown room event")
	}
}

// newPeerLink builds the connection for one remote participant, attaching
// the shared local tracks. The offerer opens the chat channel; the
// answerer accepts it.
func (m *Manager) newPeerLink(id string, role Role, audio, video *media.LocalTrack) (*PeerLink, error) {
	pc, err := newPeerConnection(m.cfg)
	if err != nil {
		return nil, err
	}
	p := &PeerLink{id: id, role: role, pc: pc}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		m.send(signaling.TypeSignal, signaling.Signal{
			Kind:      signaling.SignalCandidate,
			Candidate: &init,
			Target:    id,
		})
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		m.dispatchRemoteTrack(id, track)
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		m.log.Debug().Str("peer", id).Str("state", s.String()).Msg("peer connection state")
	})

	if audio != nil {
		if err := p.attachTrack(audio.Track()); err != nil {
			pc.Close()
			return nil, err
		}
	}
	if video != nil {
		if err := p.attachTrack(video.Track()); err != nil {
			pc.Close()
			return nil, err
		}
	}

	if role == RoleOfferer {
		dc, err := pc.CreateDataChannel(chatChannelLabel, nil)
		if err != nil {
			pc.Close()
			return nil, err
		}
		m.wireChat(p, dc)
	} else {
		pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			if dc.Label() != chatChannelLabel {
				return
			}
			m.wireChat(p, dc)
		})
	}

	return p, nil
}

func (m *Manager) wireChat(p *PeerLink, dc *webrtc.DataChannel) {
	p.setChat(dc)
	dc.OnOpen(func() {
		m.log.Debug().Str("peer", p.id).Msg("chat channel open")
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		m.handleChatPayload(p.id, msg.Data)
	})
}

// handleChatPayload decodes one chat frame. Malformed payloads are dropped
// without closing the channel.
func (m *Manager) handleChatPayload(peerID string, data []byte) {
	var msg signaling.ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		m.log.Warn().Str("peer", peerID).Err(err).Msg("dropping malformed chat payload")
		return
	}
	if cb := m.cb.OnChatMessage; cb != nil {
		cb(msg)
	}
}

func (m *Manager) dispatchRemoteTrack(id string, track *webrtc.TrackRemote) {
	m.mu.Lock()
	sink := m.remoteSinks[id]
	m.mu.Unlock()

	if sink == nil {
		// no sink registered: drop the media but keep the transport drained
		go drainRemoteTrack(track)
		return
	}
	sink.AddTrack(id, track)
}

func drainRemoteTrack(track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
	}
}

// SendChatMessage delivers a chat message over every open data channel and
// mirrors it to the signaling server for the room recorder.
func (m *Manager) SendChatMessage(text string) error {
	m.mu.Lock()
	if m.state != StateJoined {
		m.mu.Unlock()
		return newError("send chat", ErrNoSession)
	}
	msg := signaling.ChatMessage{
		Text:      text,
		Sender:    m.userID,
		Timestamp: time.Now().UnixMilli(),
	}
	peers := make([]*PeerLink, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	m.mu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		return newError("encode chat", err)
	}
	for _, p := range peers {
		if err := p.sendChat(data); err != nil {
			m.reportError(wrapError("send chat", err, p.id))
		}
	}

	m.send(signaling.TypeChatMessage, signaling.Chat{Message: msg})
	return nil
}

// ToggleAudio flips the local audio mute flag and returns the resulting
// muted state. The device keeps running; peers are informed but never
// renegotiate.
func (m *Manager) ToggleAudio() bool {
	m.mu.Lock()
	track := m.audio
	if track == nil {
		m.mu.Unlock()
		return true
	}
	track.SetEnabled(!track.Enabled())
	muted := !track.Enabled()
	m.mu.Unlock()

	m.broadcastMediaState()
	return muted
}

// ToggleVideo flips the local video mute flag and returns the resulting
// muted state.
func (m *Manager) ToggleVideo() bool {
	m.mu.Lock()
	track := m.video
	if track == nil {
		m.mu.Unlock()
		return true
	}
	track.SetEnabled(!track.Enabled())
	muted := !track.Enabled()
	m.mu.Unlock()

	m.broadcastMediaState()
	return muted
}

// StartScreenShare swaps the outgoing video track for a screen capture on
// every peer link, live, with no renegotiation. The camera track is
// released; StopScreenShare re-acquires one.
func (m *Manager) StartScreenShare() error {
	m.mu.Lock()
	if m.state != StateJoined {
		m.mu.Unlock()
		return newError("start screen share", ErrNoSession)
	}
	if m.isSharing {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	screen, err := m.device.Screen()
	if err != nil {
		err = newError("acquire screen", err)
		m.reportError(err)
		return err
	}

	m.mu.Lock()
	camera := m.video
	m.video = screen
	m.isSharing = true
	audio := m.audio
	sink := m.localSink
	peers := m.peerSnapshot()
	m.mu.Unlock()

	if camera != nil {
		camera.Stop()
	}

	// the native "stop sharing" control ends the track out from under us
	screen.OnEnded(func() {
		m.StopScreenShare()
	})

	m.replaceVideoFanout(peers, screen.Track())

	if sink != nil {
		sink.LocalTracks(audio, screen)
	}
	m.broadcastMediaState()
	return nil
}

// StopScreenShare ends the share, re-acquires a camera track and swaps it
// back into every sender. The audio track is untouched throughout.
func (m *Manager) StopScreenShare() error {
	m.mu.Lock()
	if !m.isSharing {
		m.mu.Unlock()
		return nil
	}
	screen := m.video
	m.isSharing = false
	m.mu.Unlock()

	if screen != nil {
		screen.Stop()
	}

	var camera *media.LocalTrack
	if m.cfg.AutoMedia {
		var err error
		camera, err = m.device.Camera()
		if err != nil {
			camera = nil
			m.reportError(newError("reacquire camera", err))
		}
	}

	m.mu.Lock()
	m.video = camera
	audio := m.audio
	sink := m.localSink
	peers := m.peerSnapshot()
	m.mu.Unlock()

	var track webrtc.TrackLocal
	if camera != nil {
		track = camera.Track()
	}
	m.replaceVideoFanout(peers, track)

	if sink != nil {
		sink.LocalTracks(audio, camera)
	}
	m.broadcastMediaState()
	return nil
}

// replaceVideoFanout swaps the video sender track on every link, reporting
// per-peer failures instead of silently continuing.
func (m *Manager) replaceVideoFanout(peers []*PeerLink, track webrtc.TrackLocal) {
	for _, p := range peers {
		if err := p.replaceVideoTrack(track); err != nil {
			m.reportError(wrapError("replace video track", err, p.id))
		}
	}
}

// StartRecording asks the server-side recorder to start. Host-only: for
// anyone else this fails locally without a signaling round trip.
func (m *Manager) StartRecording() error {
	return m.recordingRequest(signaling.TypeStartRecording)
}

// StopRecording asks the server-side recorder to stop. Host-only.
func (m *Manager) StopRecording() error {
	return m.recordingRequest(signaling.TypeStopRecording)
}

func (m *Manager) recordingRequest(msgType string) error {
	m.mu.Lock()
	if m.state != StateJoined {
		m.mu.Unlock()
		return newError("recording", ErrNoSession)
	}
	if !m.isHost {
		m.mu.Unlock()
		return newError("recording", ErrNotHost)
	}
	m.mu.Unlock()

	m.send(msgType, nil)
	return nil
}

// SetLocalSink registers the local preview sink. It immediately receives
// the current tracks if any exist.
func (m *Manager) SetLocalSink(sink LocalSink) {
	m.mu.Lock()
	m.localSink = sink
	audio, video := m.audio, m.video
	m.mu.Unlock()

	if sink != nil && (audio != nil || video != nil) {
		sink.LocalTracks(audio, video)
	}
}

// AddRemoteSink registers the sink that receives a participant's tracks.
func (m *Manager) AddRemoteSink(participantID string, sink RemoteSink) {
	m.mu.Lock()
	m.remoteSinks[participantID] = sink
	m.mu.Unlock()
}

// RemoveRemoteSink drops a participant's sink registration.
func (m *Manager) RemoveRemoteSink(participantID string) {
	m.mu.Lock()
	delete(m.remoteSinks, participantID)
	m.mu.Unlock()
}

// MediaState returns the current local media snapshot.
func (m *Manager) MediaState() MediaState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := MediaState{
		ScreenSharing: m.isSharing,
		Recording:     m.isRecording,
	}
	if m.audio != nil {
		st.AudioEnabled = m.audio.Enabled()
	}
	if m.video != nil {
		st.VideoEnabled = m.video.Enabled()
	}
	return st
}

// State returns the session lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsHost reports whether this participant controls recording.
func (m *Manager) IsHost() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isHost
}

// ParticipantID returns the server-assigned identity, empty until Joined.
func (m *Manager) ParticipantID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.participantID
}

// RoomID returns the room this session belongs to.
func (m *Manager) RoomID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roomID
}

// PeerCount returns the number of live peer links.
func (m *Manager) PeerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.peers)
}

// Participants lists the known remote participants, sorted by ID.
func (m *Manager) Participants() []signaling.Participant {
	m.mu.Lock()
	out := make([]signaling.Participant, 0, len(m.roster))
	for id, userID := range m.roster {
		out = append(out, signaling.Participant{ID: id, UserID: userID})
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Manager) peerSnapshot() []*PeerLink {
	peers := make([]*PeerLink, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	return peers
}

func (m *Manager) peer(id string) *PeerLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peers[id]
}

func (m *Manager) removePeer(id string) {
	m.mu.Lock()
	p := m.peers[id]
	delete(m.peers, id)
	m.mu.Unlock()

	if p != nil {
		p.close()
	}
}

// broadcastMediaState informs the room of the local mute/share flags. Only
// a confirmed member may speak; before that the server would reject the
// message anyway.
func (m *Manager) broadcastMediaState() {
	m.mu.Lock()
	joined := m.state == StateJoined
	m.mu.Unlock()
	if !joined {
		return
	}

	st := m.MediaState()
	m.send(signaling.TypeMediaState, signaling.MediaState{
		Audio:  st.AudioEnabled,
		Video:  st.VideoEnabled,
		Screen: st.ScreenSharing,
	})
}

// send encodes and queues one envelope; it is a no-op without a transport.
func (m *Manager) send(msgType string, payload any) {
	m.mu.Lock()
	t := m.transport
	m.mu.Unlock()
	if t == nil {
		return
	}

	env, err := signaling.NewEnvelope(msgType, payload)
	if err != nil {
		m.reportError(newError("encode "+msgType, err))
		return
	}
	t.Send(env)
}

func (m *Manager) reportError(err error) {
	m.log.Error().Err(err).Msg("session error")
	if cb := m.cb.OnError; cb != nil {
		cb(err)
	}
}
