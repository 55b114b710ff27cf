package media

import (
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
)

// Kind distinguishes what a local track captures.
type Kind string

const (
	KindAudio  Kind = "audio"
	KindVideo  Kind = "video"
	KindScreen Kind = "screen"
)

// LocalTrack is one owned capture track: the pion track that feeds peer
// connections plus the enabled flag that mute toggles flip. Disabling does
// not stop the device; the writer keeps pacing and drops its frames.
type LocalTrack struct {
	kind    Kind
	track   *webrtc.TrackLocalStaticSample
	enabled atomic.Bool
	stop    chan struct{}
	once    sync.Once

	mu      sync.Mutex
	onEnded func()
	ended   bool
}

func newLocalTrack(kind Kind, track *webrtc.TrackLocalStaticSample) *LocalTrack {
	t := &LocalTrack{
		kind:  kind,
		track: track,
		stop:  make(chan struct{}),
	}
	t.enabled.Store(true)
	return t
}

// Kind returns what this track captures.
func (t *LocalTrack) Kind() Kind { return t.kind }

// Track returns the pion track to attach to peer connections.
func (t *LocalTrack) Track() *webrtc.TrackLocalStaticSample { return t.track }

// Enabled reports whether the track is live (unmuted).
func (t *LocalTrack) Enabled() bool { return t.enabled.Load() }

// SetEnabled flips the mute flag without touching the device.
func (t *LocalTrack) SetEnabled(v bool) { t.enabled.Store(v) }

// OnEnded registers a handler for the capture source going away on its own,
// e.g. the user hitting the native "stop sharing" control. A deliberate
// Stop does not fire it.
func (t *LocalTrack) OnEnded(f func()) {
	t.mu.Lock()
	t.onEnded = f
	t.mu.Unlock()
}

// Stop releases the capture source. Idempotent.
func (t *LocalTrack) Stop() {
	t.once.Do(func() {
		close(t.stop)
	})
}

// Stopped reports whether the track has been stopped or has ended.
func (t *LocalTrack) Stopped() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}

// End simulates the capture source disappearing: the track stops and the
// ended handler fires once.
func (t *LocalTrack) End() {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		return
	}
	t.ended = true
	f := t.onEnded
	t.mu.Unlock()

	t.Stop()
	if f != nil {
		f()
	}
}
