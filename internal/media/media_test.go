package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyntheticDeviceTracks(t *testing.T) {
	d := NewSyntheticDevice()

	mic, err := d.Microphone()
	require.NoError(t, err)
	defer mic.Stop()

	cam, err := d.Camera()
	require.NoError(t, err)
	defer cam.Stop()

	screen, err := d.Screen()
	require.NoError(t, err)
	defer screen.Stop()

	assert.Equal(t, KindAudio, mic.Kind())
	assert.Equal(t, KindVideo, cam.Kind())
	assert.Equal(t, KindScreen, screen.Kind())

	// tracks from one device share a stream but never a track ID
	assert.Equal(t, cam.Track().StreamID(), mic.Track().StreamID())
	assert.NotEqual(t, cam.Track().ID(), screen.Track().ID())
}

func TestToggleEnabled(t *testing.T) {
	d := NewSyntheticDevice()
	mic, err := d.Microphone()
	require.NoError(t, err)
	defer mic.Stop()

	assert.True(t, mic.Enabled())

	mic.SetEnabled(false)
	assert.False(t, mic.Enabled())
	assert.False(t, mic.Stopped(), "mute must not stop the device")

	mic.SetEnabled(true)
	assert.True(t, mic.Enabled())
}

func TestStopIdempotent(t *testing.T) {
	d := NewSyntheticDevice()
	cam, err := d.Camera()
	require.NoError(t, err)

	cam.Stop()
	cam.Stop()
	assert.True(t, cam.Stopped())
}

func TestEndFiresHandlerOnce(t *testing.T) {
	d := NewSyntheticDevice()
	screen, err := d.Screen()
	require.NoError(t, err)

	calls := 0
	screen.OnEnded(func() { calls++ })

	screen.End()
	screen.End()

	assert.Equal(t, 1, calls)
	assert.True(t, screen.Stopped())
}

func TestStopDoesNotFireEnded(t *testing.T) {
	d := NewSyntheticDevice()
	screen, err := d.Screen()
	require.NoError(t, err)

	fired := false
	screen.OnEnded(func() { fired = true })

	screen.Stop()
	assert.False(t, fired)
}
