package web

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/aidahome/go-aida/internal/sysinfo"
	"github.com/aidahome/go-aida/pkg/hub"
)

// handleStatus returns the controller snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.controller.Status())
}

// handleToggle flips the capture side of the interaction cycle. The
// cycle runs in the background; progress arrives on the websocket
// streams. Overlapping toggles are absorbed by the controller.
func (s *Server) handleToggle(c *fiber.Ctx) error {
	go func() {
		if err := s.controller.ToggleListening(context.Background()); err != nil {
			s.logger.Warn("toggle cycle failed", "error", err)
		}
	}()
	return c.Status(fiber.StatusAccepted).JSON(s.controller.Status())
}

type messageRequest struct {
	Text string `json:"text"`
}

// handleMessage dispatches a typed message through the controller.
func (s *Server) handleMessage(c *fiber.Ctx) error {
	var req messageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "text is required"})
	}

	go func() {
		if err := s.controller.SendText(context.Background(), req.Text); err != nil {
			s.logger.Warn("text cycle failed", "error", err)
		}
	}()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": true})
}

// handleStopPlayback cancels active response audio.
func (s *Server) handleStopPlayback(c *fiber.Ctx) error {
	s.controller.StopAudioPlayback()
	return c.JSON(s.controller.Status())
}

// handleTranscript returns the full conversation in exchange order.
func (s *Server) handleTranscript(c *fiber.Ctx) error {
	return c.JSON(s.controller.Transcript().Messages())
}

// handleClearTranscript archives and empties the conversation.
func (s *Server) handleClearTranscript(c *fiber.Ctx) error {
	s.controller.ClearConversation(c.UserContext())
	return c.JSON(fiber.Map{"cleared": true})
}

// handleClearError discards the retained controller error.
func (s *Server) handleClearError(c *fiber.Ctx) error {
	s.controller.ClearError()
	return c.JSON(s.controller.Status())
}

// handleSystem returns a host snapshot for the diagnostics panel.
func (s *Server) handleSystem(c *fiber.Ctx) error {
	return c.JSON(sysinfo.Collect())
}

// handleStatusWS streams status snapshots. The current snapshot is
// written before the pumps start so the panel renders immediately.
func (s *Server) handleStatusWS(conn *websocket.Conn) {
	client := hub.NewClient(s.statusHub, conn)
	conn.WriteJSON(s.controller.Status())
	client.Run()
}

// handleEventsWS streams controller events.
func (s *Server) handleEventsWS(conn *websocket.Conn) {
	client := hub.NewClient(s.eventHub, conn)
	client.Run()
}
