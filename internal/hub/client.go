package hub

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/huddle-dev/huddle/internal/signaling"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. 64 KB covers WebRTC SDP payloads.
	maxMessageSize = 64 * 1024
)

// Client is a wrapper for a single websocket connection (one participant).
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn

	// ID is the participant ID, assigned when the client joins a room.
	ID string

	// UserID is the caller-supplied display identity.
	UserID string

	// RoomID is the room the client is in, empty until it joins.
	RoomID string

	// Send is the buffered channel of outbound envelopes. WritePump is the
	// only writer to the connection.
	Send chan signaling.Envelope
}

// ReadPump pumps envelopes from the websocket connection to the hub. It
// runs in a per-connection goroutine and is the only reader.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env signaling.Envelope
		if err := c.Conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Debug().Err(err).Msg("read error")
			}
			break
		}

		c.Hub.Inbound <- inbound{client: c, env: env}
	}
}

// WritePump pumps envelopes from the hub to the websocket connection and
// keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// the hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
