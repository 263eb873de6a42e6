package handlers

import (
	"net/http"

	"gator-chat/internal/models"
	"gator-chat/internal/utils"
	"gator-chat/internal/websocket"
)

// HandleWebSocket upgrades to a subscription connection. The token travels
// in the query string because browsers cannot set headers on websocket
// requests; without one the connection is anonymous.
func (s *Server) HandleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var identity *models.Identity
		if token := r.URL.Query().Get("token"); token != "" {
			var err error
			identity, err = s.Validator.Validate(token)
			if err != nil {
				s.Logger.Debug("WebSocket connection rejected", "error", err)
				s.respondError(w, r, utils.NewUnauthenticatedError())
				return
			}
		}

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// The upgrader has already written the HTTP error.
			s.Logger.Debug("WebSocket upgrade failed", "error", err)
			return
		}

		client := websocket.NewClient(s.Hub, conn, identity)
		if !s.Hub.Join(client) {
			conn.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump()
	}
}
