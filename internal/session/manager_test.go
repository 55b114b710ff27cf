package session

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddle-dev/huddle/internal/config"
	"github.com/huddle-dev/huddle/internal/media"
	"github.com/huddle-dev/huddle/internal/signaling"
)

const eventually = 5 * time.Second

// fakeTransport records outbound envelopes and lets tests inject inbound
// ones.
type fakeTransport struct {
	mu         sync.Mutex
	sent       []signaling.Envelope
	in         chan signaling.Envelope
	connectErr error
	closed     bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{in: make(chan signaling.Envelope, 32)}
}

func (f *fakeTransport) Connect() error { return f.connectErr }

func (f *fakeTransport) Send(env signaling.Envelope) {
	f.mu.Lock()
	f.sent = append(f.sent, env)
	f.mu.Unlock()
}

func (f *fakeTransport) Incoming() <-chan signaling.Envelope { return f.in }

func (f *fakeTransport) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.in)
	}
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) push(t *testing.T, msgType string, payload any) {
	t.Helper()
	env, err := signaling.NewEnvelope(msgType, payload)
	require.NoError(t, err)
	f.in <- env
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// signalsOfKind decodes every sent webrtc_signal envelope of one kind.
func (f *fakeTransport) signalsOfKind(t *testing.T, kind string) []signaling.Signal {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []signaling.Signal
	for _, env := range f.sent {
		if env.Type != signaling.TypeSignal {
			continue
		}
		var sig signaling.Signal
		require.NoError(t, json.Unmarshal(env.Payload, &sig))
		if sig.Kind == kind {
			out = append(out, sig)
		}
	}
	return out
}

func (f *fakeTransport) countType(msgType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, env := range f.sent {
		if env.Type == msgType {
			n++
		}
	}
	return n
}

func testConfig(autoMedia bool) *config.Config {
	return &config.Config{
		WebSocketURL: "ws://signaling.test/ws",
		STUNServers:  []string{config.DefaultSTUN1},
		AutoMedia:    autoMedia,
	}
}

func newTestManager(t *testing.T, ft *fakeTransport, autoMedia bool, cb Callbacks) *Manager {
	t.Helper()
	m := New(testConfig(autoMedia), media.NewSyntheticDevice(), cb,
		WithTransport(func() Transport { return ft }))
	t.Cleanup(m.LeaveRoom)
	return m
}

func joinAs(t *testing.T, m *Manager, ft *fakeTransport, isHost bool, existing []signaling.Participant) {
	t.Helper()
	require.NoError(t, m.JoinRoom("r1", "alice"))
	ft.push(t, signaling.TypeJoined, signaling.Joined{
		ParticipantID: "self",
		IsHost:        isHost,
		Participants:  existing,
	})
	require.Eventually(t, func() bool { return m.State() == StateJoined }, eventually, 10*time.Millisecond)
}

// makeRemoteOffer builds a real offer the way an existing participant
// would: tracks transceivers plus the chat channel.
func makeRemoteOffer(t *testing.T) (*webrtc.PeerConnection, string) {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)

	_, err = pc.CreateDataChannel(chatChannelLabel, nil)
	require.NoError(t, err)
	_, err = pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio)
	require.NoError(t, err)
	_, err = pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo)
	require.NoError(t, err)

	offer, err := pc.CreateOffer(nil)
	require.NoError(t, err)
	require.NoError(t, pc.SetLocalDescription(offer))
	return pc, offer.SDP
}

func TestRoleForPeer(t *testing.T) {
	assert.Equal(t, RoleOfferer, RoleForPeer(true), "who sees the join event offers")
	assert.Equal(t, RoleAnswerer, RoleForPeer(false), "the newcomer answers")
}

func TestJoinRoomLifecycle(t *testing.T) {
	ft := newFakeTransport()
	m := newTestManager(t, ft, false, Callbacks{})

	require.NoError(t, m.JoinRoom("r1", "alice"))
	assert.Equal(t, StateJoining, m.State())
	require.Eventually(t, func() bool { return ft.countType(signaling.TypeJoinRoom) == 1 }, eventually, 10*time.Millisecond)

	ft.push(t, signaling.TypeJoined, signaling.Joined{ParticipantID: "p1", IsHost: true})
	require.Eventually(t, func() bool { return m.State() == StateJoined }, eventually, 10*time.Millisecond)

	assert.Equal(t, "p1", m.ParticipantID())
	assert.True(t, m.IsHost())
	assert.Equal(t, "r1", m.RoomID())
	assert.Zero(t, m.PeerCount(), "sole member has no peer links")
}

func TestJoinRoomWhileActive(t *testing.T) {
	ft := newFakeTransport()
	m := newTestManager(t, ft, false, Callbacks{})

	require.NoError(t, m.JoinRoom("r1", "alice"))
	err := m.JoinRoom("r2", "alice")
	require.ErrorIs(t, err, ErrSessionActive)
}

func TestJoinRoomConnectFailure(t *testing.T) {
	ft := newFakeTransport()
	ft.connectErr = assert.AnError

	var reported error
	m := newTestManager(t, ft, false, Callbacks{OnError: func(err error) { reported = err }})

	err := m.JoinRoom("r1", "alice")
	require.Error(t, err)
	assert.ErrorIs(t, reported, assert.AnError)
	assert.Equal(t, StateIdle, m.State(), "failed join returns to idle")
}

func TestOffererOnParticipantJoined(t *testing.T) {
	ft := newFakeTransport()
	var joinedID string
	m := newTestManager(t, ft, true, Callbacks{
		OnParticipantJoined: func(id, _ string) { joinedID = id },
	})
	joinAs(t, m, ft, true, nil)

	ft.push(t, signaling.TypeParticipantJoined, signaling.ParticipantJoined{ParticipantID: "p2", UserID: "bob"})

	require.Eventually(t, func() bool {
		return len(ft.signalsOfKind(t, signaling.SignalOffer)) == 1
	}, eventually, 10*time.Millisecond)

	offers := ft.signalsOfKind(t, signaling.SignalOffer)
	assert.Equal(t, "p2", offers[0].Target, "offer must be addressed to the newcomer")
	assert.NotEmpty(t, offers[0].SDP)
	assert.Equal(t, 1, m.PeerCount())
	assert.Equal(t, "p2", joinedID)

	// a duplicate join event must not create a second link
	ft.push(t, signaling.TypeParticipantJoined, signaling.ParticipantJoined{ParticipantID: "p2"})
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, m.PeerCount())
	assert.Len(t, ft.signalsOfKind(t, signaling.SignalOffer), 1)
}

func TestAnswererOnOffer(t *testing.T) {
	ft := newFakeTransport()
	m := newTestManager(t, ft, true, Callbacks{})
	joinAs(t, m, ft, false, []signaling.Participant{{ID: "p0", UserID: "bob"}})

	remote, offerSDP := makeRemoteOffer(t)
	defer remote.Close()

	ft.push(t, signaling.TypeSignal, signaling.Signal{
		Kind: signaling.SignalOffer,
		SDP:  offerSDP,
		From: "p0",
	})

	require.Eventually(t, func() bool {
		return len(ft.signalsOfKind(t, signaling.SignalAnswer)) == 1
	}, eventually, 10*time.Millisecond)

	answers := ft.signalsOfKind(t, signaling.SignalAnswer)
	assert.Equal(t, "p0", answers[0].Target)
	assert.NotEmpty(t, answers[0].SDP)
	assert.Equal(t, 1, m.PeerCount())
	assert.Empty(t, ft.signalsOfKind(t, signaling.SignalOffer),
		"the newcomer never offers to existing participants")
}

func TestSignalFromUnknownPeerIsIsolated(t *testing.T) {
	ft := newFakeTransport()
	var mu sync.Mutex
	var errs []error
	m := newTestManager(t, ft, false, Callbacks{
		OnError: func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		},
	})
	joinAs(t, m, ft, true, nil)

	ft.push(t, signaling.TypeSignal, signaling.Signal{Kind: signaling.SignalAnswer, SDP: "v=0", From: "ghost"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, err := range errs {
			if errors.Is(err, ErrUnknownPeer) {
				return true
			}
		}
		return false
	}, eventually, 10*time.Millisecond)

	assert.Equal(t, StateJoined, m.State(), "bad signal must not end the session")
}

func TestCandidateBufferedBeforeRemoteDescription(t *testing.T) {
	ft := newFakeTransport()
	m := newTestManager(t, ft, true, Callbacks{})
	joinAs(t, m, ft, true, nil)

	ft.push(t, signaling.TypeParticipantJoined, signaling.ParticipantJoined{ParticipantID: "p2"})
	require.Eventually(t, func() bool { return m.PeerCount() == 1 }, eventually, 10*time.Millisecond)

	// candidate arrives before the answer sets the remote description
	ft.push(t, signaling.TypeSignal, signaling.Signal{
		Kind:      signaling.SignalCandidate,
		Candidate: &webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 2130706431 192.0.2.1 54321 typ host"},
		From:      "p2",
	})

	require.Eventually(t, func() bool {
		p := m.peer("p2")
		return p != nil && p.pendingCandidates() == 1
	}, eventually, 10*time.Millisecond)
}

func TestRecordingHostOnly(t *testing.T) {
	ft := newFakeTransport()
	m := newTestManager(t, ft, false, Callbacks{})
	joinAs(t, m, ft, false, nil)

	before := ft.sentCount()
	err := m.StartRecording()
	require.ErrorIs(t, err, ErrNotHost)
	assert.Equal(t, before, ft.sentCount(), "non-host rejection must not reach the transport")

	err = m.StopRecording()
	require.ErrorIs(t, err, ErrNotHost)
}

func TestRecordingAsHost(t *testing.T) {
	ft := newFakeTransport()
	started := make(chan struct{}, 1)
	m := newTestManager(t, ft, false, Callbacks{
		OnRecordingStarted: func() { started <- struct{}{} },
	})
	joinAs(t, m, ft, true, nil)

	require.NoError(t, m.StartRecording())
	assert.Equal(t, 1, ft.countType(signaling.TypeStartRecording))
	assert.False(t, m.MediaState().Recording, "recording flag follows server events")

	ft.push(t, signaling.TypeEvent, signaling.RoomEvent{Kind: signaling.EventRecordingStarted})
	select {
	case <-started:
	case <-time.After(eventually):
		t.Fatal("recording-started callback never fired")
	}
	assert.True(t, m.MediaState().Recording)

	require.NoError(t, m.StopRecording())
	assert.Equal(t, 1, ft.countType(signaling.TypeStopRecording))
}

func TestToggleAudioRoundTrip(t *testing.T) {
	ft := newFakeTransport()
	m := newTestManager(t, ft, true, Callbacks{})
	joinAs(t, m, ft, true, nil)

	require.True(t, m.MediaState().AudioEnabled)

	muted := m.ToggleAudio()
	assert.True(t, muted)
	assert.False(t, m.MediaState().AudioEnabled)

	muted = m.ToggleAudio()
	assert.False(t, muted, "double toggle returns the original state")
	assert.True(t, m.MediaState().AudioEnabled)

	assert.Equal(t, 2, ft.countType(signaling.TypeMediaState), "each toggle broadcasts state")
}

func TestToggleWithoutMedia(t *testing.T) {
	ft := newFakeTransport()
	m := newTestManager(t, ft, false, Callbacks{})
	joinAs(t, m, ft, true, nil)

	assert.True(t, m.ToggleAudio(), "no track reads as muted")
	assert.True(t, m.ToggleVideo())
}

func TestToggleWhileJoiningStaysLocal(t *testing.T) {
	ft := newFakeTransport()
	m := newTestManager(t, ft, true, Callbacks{})

	require.NoError(t, m.JoinRoom("r1", "alice"))
	require.Equal(t, StateJoining, m.State())

	muted := m.ToggleAudio()
	assert.True(t, muted, "the local flag still flips")
	assert.False(t, m.MediaState().AudioEnabled)

	m.ToggleVideo()
	assert.Zero(t, ft.countType(signaling.TypeMediaState),
		"no media-state broadcast before membership is confirmed")
}

func TestScreenShareRestoresStream(t *testing.T) {
	ft := newFakeTransport()
	m := newTestManager(t, ft, true, Callbacks{})
	joinAs(t, m, ft, true, nil)

	m.mu.Lock()
	audioBefore := m.audio
	cameraBefore := m.video
	m.mu.Unlock()
	require.NotNil(t, audioBefore)
	require.NotNil(t, cameraBefore)

	require.NoError(t, m.StartScreenShare())
	assert.True(t, m.MediaState().ScreenSharing)

	m.mu.Lock()
	screen := m.video
	m.mu.Unlock()
	assert.Equal(t, media.KindScreen, screen.Kind())
	assert.True(t, cameraBefore.Stopped(), "camera is released while sharing")

	require.NoError(t, m.StopScreenShare())
	assert.False(t, m.MediaState().ScreenSharing)
	assert.True(t, screen.Stopped())

	m.mu.Lock()
	audioAfter := m.audio
	videoAfter := m.video
	m.mu.Unlock()

	assert.Same(t, audioBefore, audioAfter, "audio track is never re-acquired")
	require.NotNil(t, videoAfter)
	assert.Equal(t, media.KindVideo, videoAfter.Kind())
	assert.NotSame(t, cameraBefore, videoAfter, "camera comes back as a fresh track")

	// start and stop are both idempotent
	require.NoError(t, m.StopScreenShare())
}

// relaySignals forwards webrtc_signal traffic between two fake transports
// the way the hub would: From rewritten to the sender, Target cleared. Call
// the returned stop function before the transports close.
func relaySignals(a, b *fakeTransport, aID, bID string) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		seenA, seenB := 0, 0
		for {
			select {
			case <-done:
				return
			case <-time.After(5 * time.Millisecond):
			}
			seenA = forwardSignals(a, b, aID, seenA)
			seenB = forwardSignals(b, a, bID, seenB)
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}

func forwardSignals(from, to *fakeTransport, fromID string, seen int) int {
	from.mu.Lock()
	pending := from.sent[seen:]
	seen = len(from.sent)
	from.mu.Unlock()

	for _, env := range pending {
		if env.Type != signaling.TypeSignal {
			continue
		}
		var sig signaling.Signal
		if json.Unmarshal(env.Payload, &sig) != nil {
			continue
		}
		sig.From = fromID
		sig.Target = ""
		fwd, err := signaling.NewEnvelope(signaling.TypeSignal, sig)
		if err != nil {
			continue
		}
		to.in <- fwd
	}
	return seen
}

// TestScreenShareFanoutOverLivePeer runs the track swap against a real
// negotiated peer link: two managers wired through relayed transports, so
// the video sender actually carries the camera, then the screen, then the
// fresh camera again.
func TestScreenShareFanoutOverLivePeer(t *testing.T) {
	ftA := newFakeTransport()
	ftB := newFakeTransport()

	var mu sync.Mutex
	var errs []error
	mA := newTestManager(t, ftA, true, Callbacks{
		OnError: func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		},
	})
	mB := newTestManager(t, ftB, true, Callbacks{})

	require.NoError(t, mA.JoinRoom("r1", "alice"))
	ftA.push(t, signaling.TypeJoined, signaling.Joined{ParticipantID: "pA", IsHost: true})
	require.Eventually(t, func() bool { return mA.State() == StateJoined }, eventually, 10*time.Millisecond)

	require.NoError(t, mB.JoinRoom("r1", "bob"))
	ftB.push(t, signaling.TypeJoined, signaling.Joined{
		ParticipantID: "pB",
		Participants:  []signaling.Participant{{ID: "pA", UserID: "alice"}},
	})
	require.Eventually(t, func() bool { return mB.State() == StateJoined }, eventually, 10*time.Millisecond)

	stop := relaySignals(ftA, ftB, "pA", "pB")
	defer stop()

	// mA observes the newcomer and offers; the answer comes back relayed
	ftA.push(t, signaling.TypeParticipantJoined, signaling.ParticipantJoined{ParticipantID: "pB", UserID: "bob"})

	require.Eventually(t, func() bool {
		p := mA.peer("pB")
		if p == nil {
			return false
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.remoteSet && p.videoSender != nil
	}, eventually, 10*time.Millisecond)

	link := mA.peer("pB")
	link.mu.Lock()
	sender := link.videoSender
	link.mu.Unlock()

	mA.mu.Lock()
	camera := mA.video
	mA.mu.Unlock()
	assert.Same(t, camera.Track(), sender.Track(), "the sender starts out carrying the camera")

	require.NoError(t, mA.StartScreenShare())

	mA.mu.Lock()
	screen := mA.video
	mA.mu.Unlock()
	assert.Same(t, screen.Track(), sender.Track(), "the sender carries the screen track while sharing")

	require.NoError(t, mA.StopScreenShare())

	mA.mu.Lock()
	cameraAfter := mA.video
	mA.mu.Unlock()
	require.NotNil(t, cameraAfter)
	assert.Same(t, cameraAfter.Track(), sender.Track(), "the sender carries the fresh camera after the share ends")

	mu.Lock()
	assert.Empty(t, errs, "the swap must not report per-peer failures")
	mu.Unlock()
}

func TestScreenShareEndsWithTrack(t *testing.T) {
	ft := newFakeTransport()
	m := newTestManager(t, ft, true, Callbacks{})
	joinAs(t, m, ft, true, nil)

	require.NoError(t, m.StartScreenShare())
	m.mu.Lock()
	screen := m.video
	m.mu.Unlock()

	// the native "stop sharing" control fires the ended event
	screen.End()

	require.Eventually(t, func() bool { return !m.MediaState().ScreenSharing }, eventually, 10*time.Millisecond)
}

func TestLeaveRoomTeardown(t *testing.T) {
	ft := newFakeTransport()
	m := newTestManager(t, ft, true, Callbacks{})
	joinAs(t, m, ft, true, nil)

	ft.push(t, signaling.TypeParticipantJoined, signaling.ParticipantJoined{ParticipantID: "p2"})
	require.Eventually(t, func() bool { return m.PeerCount() == 1 }, eventually, 10*time.Millisecond)

	m.mu.Lock()
	audio, video := m.audio, m.video
	m.mu.Unlock()

	m.LeaveRoom()

	assert.Equal(t, StateIdle, m.State())
	assert.Zero(t, m.PeerCount(), "peer links return to zero")
	assert.True(t, audio.Stopped())
	assert.True(t, video.Stopped())
	assert.True(t, ft.isClosed())
	assert.Empty(t, m.Participants())

	// idempotent-safe
	m.LeaveRoom()
}

func TestTransportLossTearsDown(t *testing.T) {
	ft := newFakeTransport()
	var mu sync.Mutex
	var errs []error
	m := newTestManager(t, ft, false, Callbacks{
		OnError: func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		},
	})
	joinAs(t, m, ft, true, nil)

	ft.Close() // server dropped us

	require.Eventually(t, func() bool { return m.State() == StateIdle }, eventually, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	found := false
	for _, err := range errs {
		if errors.Is(err, ErrTransportClosed) {
			found = true
		}
	}
	assert.True(t, found, "transport loss is reported")
}

func TestSendChatMessage(t *testing.T) {
	ft := newFakeTransport()
	m := newTestManager(t, ft, false, Callbacks{})

	require.Error(t, m.SendChatMessage("too early"))

	joinAs(t, m, ft, true, nil)
	require.NoError(t, m.SendChatMessage("hello"))

	require.Equal(t, 1, ft.countType(signaling.TypeChatMessage))
	ft.mu.Lock()
	var chat signaling.Chat
	for _, env := range ft.sent {
		if env.Type == signaling.TypeChatMessage {
			require.NoError(t, json.Unmarshal(env.Payload, &chat))
		}
	}
	ft.mu.Unlock()
	assert.Equal(t, "hello", chat.Message.Text)
	assert.Equal(t, "alice", chat.Message.Sender)
	assert.NotZero(t, chat.Message.Timestamp)
}

func TestMalformedChatPayloadDropped(t *testing.T) {
	ft := newFakeTransport()
	var got []signaling.ChatMessage
	m := newTestManager(t, ft, false, Callbacks{
		OnChatMessage: func(msg signaling.ChatMessage) { got = append(got, msg) },
	})

	m.handleChatPayload("p2", []byte(`{not json`))
	assert.Empty(t, got, "malformed payload must not reach the callback")

	m.handleChatPayload("p2", []byte(`{"text":"hi","sender":"bob","timestamp":1}`))
	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Text)
}

func TestHostChangedEvent(t *testing.T) {
	ft := newFakeTransport()
	m := newTestManager(t, ft, false, Callbacks{})
	joinAs(t, m, ft, false, nil)
	require.False(t, m.IsHost())

	ft.push(t, signaling.TypeEvent, signaling.RoomEvent{Kind: signaling.EventHostChanged, ParticipantID: "self"})
	require.Eventually(t, func() bool { return m.IsHost() }, eventually, 10*time.Millisecond)
}
