package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/huddle-dev/huddle/internal/hub"
	"github.com/huddle-dev/huddle/internal/signaling"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Signaling carries no credentials; cross-origin dialing is expected
	// from the web client during development.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewRouter builds the HTTP surface: the websocket endpoint plus health.
func NewRouter(h *hub.Hub, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/ws", ServeWs(h, log))

	return r
}

// ServeWs upgrades the connection and hands it to the hub.
func ServeWs(h *hub.Hub, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("failed to upgrade connection")
			return
		}

		client := &hub.Client{
			Hub:  h,
			Conn: conn,
			Send: make(chan signaling.Envelope, 256),
		}

		client.Hub.Register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}
