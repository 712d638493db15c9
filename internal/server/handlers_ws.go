package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/tickerpulse/internal/quotes"
	"github.com/pscheid92/tickerpulse/internal/subscription"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // browser clients connect from arbitrary origins
	},
}

// handleWebSocket runs one connection's lifetime: register with the
// broadcaster, then block reading control messages until the client goes
// away. Subscribe messages mutate the shared subscription; any other type is
// ignored. An undecodable message terminates this connection only.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	id := uuid.New()
	if err := s.broadcaster.Register(id, conn); err != nil {
		slog.Warn("Failed to register client", "error", err)
		conn.Close()
		return nil
	}
	defer s.broadcaster.Unregister(id)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil //nolint:nilerr // read failure is a normal disconnect
		}

		var msg quotes.ControlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Dropping client after malformed message",
				"connection_id", id.String(), "error", err)
			return nil
		}

		if msg.Type != quotes.ControlTypeSubscribe {
			continue
		}

		change := subscription.Change{Symbols: msg.Symbols}
		if msg.Interval != nil {
			interval := time.Duration(*msg.Interval) * time.Second
			change.Interval = &interval
		}

		if err := s.state.Apply(change); err != nil {
			slog.Warn("Rejected subscription change",
				"connection_id", id.String(), "error", err)
		}
	}
}
