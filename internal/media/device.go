package media

import (
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

const (
	audioFrameInterval = 20 * time.Millisecond
	videoFrameInterval = 33 * time.Millisecond
)

// Device acquires local capture tracks. Each call returns a fresh track;
// the caller owns it and must Stop it.
type Device interface {
	Microphone() (*LocalTrack, error)
	Camera() (*LocalTrack, error)
	Screen() (*LocalTrack, error)
}

// SyntheticDevice produces tracks fed by generated frames: silence for
// audio, a static test pattern for video. It stands in for OS capture in
// headless environments and tests; real capture devices implement Device
// the same way.
type SyntheticDevice struct {
	streamID string
}

// NewSyntheticDevice creates a synthetic capture device. All tracks share
// one stream ID so receivers group them as a single source.
func NewSyntheticDevice() *SyntheticDevice {
	return &SyntheticDevice{streamID: "huddle-" + uuid.NewString()}
}

// Microphone returns an opus-capable track writing 20ms silence frames.
func (d *SyntheticDevice) Microphone() (*LocalTrack, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio-"+uuid.NewString(), d.streamID,
	)
	if err != nil {
		return nil, err
	}

	lt := newLocalTrack(KindAudio, track)
	go writeFrames(lt, silenceFrame(), audioFrameInterval)
	return lt, nil
}

// Camera returns a VP8 track writing test-pattern frames.
func (d *SyntheticDevice) Camera() (*LocalTrack, error) {
	return d.videoTrack(KindVideo, "video-")
}

// Screen returns a VP8 track standing in for a screen capture.
func (d *SyntheticDevice) Screen() (*LocalTrack, error) {
	return d.videoTrack(KindScreen, "screen-")
}

func (d *SyntheticDevice) videoTrack(kind Kind, prefix string) (*LocalTrack, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		prefix+uuid.NewString(), d.streamID,
	)
	if err != nil {
		return nil, err
	}

	lt := newLocalTrack(kind, track)
	go writeFrames(lt, patternFrame(), videoFrameInterval)
	return lt, nil
}

// writeFrames paces frames into the track until it is stopped. Disabled
// tracks keep pacing but drop their frames, matching mute semantics.
func writeFrames(t *LocalTrack, frame []byte, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if !t.Enabled() {
				continue
			}
			// write errors mean no attached reader yet; keep pacing
			_ = t.track.WriteSample(media.Sample{Data: frame, Duration: interval})
		}
	}
}

func silenceFrame() []byte {
	// minimal opus silence frame
	return []byte{0xf8, 0xff, 0xfe}
}

func patternFrame() []byte {
	b := make([]byte, 1200)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}
