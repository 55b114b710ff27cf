package signaling

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client manages the WebSocket connection to the signaling server.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	incoming  chan Envelope
	outgoing  chan Envelope
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a new signaling client
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan Envelope, 32),
		outgoing:  make(chan Envelope, 32),
		done:      make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection to the server.
func (c *Client) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.serverURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)

	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return nil
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}

		c.incoming <- env
	}
}

// writePump writes messages to the WebSocket connection and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Send queues an envelope for delivery to the server. Messages queued after
// Close are dropped.
func (c *Client) Send(env Envelope) {
	select {
	case c.outgoing <- env:
	case <-c.done:
	}
}

// Incoming returns the channel for receiving messages. It closes when the
// connection dies.
func (c *Client) Incoming() <-chan Envelope {
	return c.incoming
}

// Close closes the WebSocket connection and cleans up resources. Safe to
// call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
