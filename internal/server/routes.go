package server

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Bhargav65/Silent-Byte/internal/config"
	"github.com/Bhargav65/Silent-Byte/internal/signaling"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Browsers enforce same-origin on the page that opens the socket;
	// room codes are the actual access control here.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewRouter wires the HTTP surface: health check, websocket signaling,
// and the relay-credential endpoint.
func NewRouter(hub *signaling.Hub, cfg *config.Server) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/ws", serveWs(hub))
	r.HandleFunc("/ice", iceHandler(cfg)).Methods(http.MethodGet)
	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// serveWs upgrades the connection, assigns it an opaque handle, and
// starts its pumps.
func serveWs(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "err", err)
			return
		}

		client := &signaling.Client{
			Hub:    hub,
			Conn:   conn,
			Handle: uuid.NewString(),
			Send:   make(chan *signaling.Message, 256),
		}

		client.Hub.Register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}
