package signaling

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// echoServer upgrades and echoes every JSON frame back to the client.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var env Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestClientRoundTrip(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewClient(wsURL(srv))
	require.NoError(t, c.Connect())
	defer c.Close()

	env, err := NewEnvelope(TypeJoinRoom, JoinRoom{RoomID: "r1", UserID: "alice"})
	require.NoError(t, err)
	c.Send(env)

	select {
	case got := <-c.Incoming():
		assert.Equal(t, TypeJoinRoom, got.Type)
		assert.JSONEq(t, string(env.Payload), string(got.Payload))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for echo")
	}
}

func TestClientConnectFailure(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/ws")
	require.Error(t, c.Connect())
}

func TestClientCloseIdempotent(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewClient(wsURL(srv))
	require.NoError(t, c.Connect())

	c.Close()
	c.Close()

	// incoming closes once the server side notices the close frame
	select {
	case _, ok := <-c.Incoming():
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("incoming channel never closed")
	}

	// sends after close must not block
	c.Send(Envelope{Type: TypeStopRecording})
}
