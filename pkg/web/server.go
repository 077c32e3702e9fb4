// Package web exposes the local control surface: a JSON HTTP API and
// websocket streams publishing controller status and conversation
// events. This is the boundary a UI panel talks to; the panel itself
// lives elsewhere.
package web

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/aidahome/go-aida/pkg/hub"
	"github.com/aidahome/go-aida/pkg/session"
	"github.com/aidahome/go-aida/pkg/transcript"
)

// statusInterval paces the periodic status push so panels see elapsed
// recording time and playback progress move without state changes.
const statusInterval = time.Second

// Server is the control surface HTTP server.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	controller *session.Controller

	statusHub *hub.Hub
	eventHub  *hub.Hub

	stop     chan struct{}
	stopOnce sync.Once
}

// NewServer builds the control surface around a controller. It claims
// the controller's observer callbacks for the event stream, so wire
// any additional observers before calling this.
func NewServer(controller *session.Controller, addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:       addr,
		logger:     logger.With("component", "web"),
		controller: controller,
		statusHub:  hub.New("status", logger),
		eventHub:   hub.New("events", logger),
		stop:       make(chan struct{}),
	}

	app := fiber.New(fiber.Config{
		AppName:               "aida control",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/toggle", s.handleToggle)
	api.Post("/message", s.handleMessage)
	api.Post("/playback/stop", s.handleStopPlayback)
	api.Get("/transcript", s.handleTranscript)
	api.Post("/transcript/clear", s.handleClearTranscript)
	api.Post("/error/clear", s.handleClearError)
	api.Get("/system", s.handleSystem)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	s.bindController()
	return s
}

// bindController fans controller callbacks out to the event stream.
func (s *Server) bindController() {
	s.controller.OnStateChange(func(state session.State) {
		s.eventHub.BroadcastJSON(Event{Type: EventState, State: state.String()})
		s.pushStatus()
	})
	s.controller.OnConnectionChange(func(status session.ConnectionStatus) {
		s.eventHub.BroadcastJSON(Event{Type: EventConnection, Connection: status.String()})
		s.pushStatus()
	})
	s.controller.OnMessage(func(msg transcript.Message) {
		s.eventHub.BroadcastJSON(Event{Type: EventMessage, Message: &msg})
	})
	s.controller.OnError(func(err error) {
		s.eventHub.BroadcastJSON(Event{Type: EventError, Error: err.Error()})
		s.pushStatus()
	})
}

// Start runs the hubs, the status push loop, and the HTTP listener.
// It blocks until the listener exits.
func (s *Server) Start() error {
	go s.statusHub.Run()
	go s.eventHub.Run()
	go s.statusLoop()

	s.logger.Info("control surface listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("control surface failed", "error", err)
		}
	}()
}

// Shutdown stops the listener, the status loop, and the hubs.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	s.stopOnce.Do(func() { close(s.stop) })
	s.statusHub.Stop()
	s.eventHub.Stop()
	return err
}

// App exposes the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) statusLoop() {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.pushStatus()
		}
	}
}

// pushStatus broadcasts a status snapshot when anyone is listening.
func (s *Server) pushStatus() {
	if s.statusHub.ClientCount() == 0 {
		return
	}
	s.statusHub.BroadcastJSON(s.controller.Status())
}
