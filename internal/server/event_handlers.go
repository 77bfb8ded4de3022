package server

import (
	"log/slog"

	"modqueue/internal/middleware"
	"modqueue/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const sessionIDLocal = "sessionID"

// RequireEventsUpgrade admits only websocket upgrades for an existing session.
func (s *Server) RequireEventsUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return models.RespondWithError(c, fiber.StatusUpgradeRequired,
			models.NewValidationError("Websocket upgrade required"))
	}
	sess, err := s.session(c)
	if err != nil {
		return nil
	}
	c.Locals(sessionIDLocal, sess.ID())
	return c.Next()
}

// SessionEvents streams the session's moderation events as JSON text frames.
func (s *Server) SessionEvents() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		sid, _ := conn.Locals(sessionIDLocal).(string)
		client, err := s.hub.Register(sid, conn)
		if err != nil {
			middleware.Logger.Warn("session event stream rejected",
				slog.String("session_id", sid),
				slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}
