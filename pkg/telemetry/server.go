package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"syscall"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gopkg.in/yaml.v3"

	"github.com/movehub-pilot/controller/domain/pilot"
	"github.com/movehub-pilot/controller/pkg/config"
	customlog "github.com/movehub-pilot/controller/pkg/log"
)

// clientBuffer bounds per-peer backlog; a stalled browser tab drops frames
// instead of stalling everyone else.
const clientBuffer = 16

// Server exposes the read-only telemetry surface: REST status endpoints and
// a websocket stream of drive snapshots. It consumes snapshots as a
// pilot.Sink and never feeds anything back into the control loop.
type Server struct {
	app    *fiber.App
	cfg    *config.Config
	logger customlog.Logger

	mu        sync.Mutex
	latest    pilot.Snapshot
	hasLatest bool
	clients   map[*websocket.Conn]chan []byte
}

// NewServer builds the Fiber app with all routes registered.
func NewServer(cfg *config.Config, logger customlog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*websocket.Conn]chan []byte),
	}

	app := fiber.New(fiber.Config{
		AppName:               "MoveHub Pilot",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "online",
			"service": "movehub pilot controller",
		})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/stats", s.handleStats)
	api.Get("/config", s.handleConfig)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/telemetry", websocket.New(s.handleTelemetryWS))

	s.app = app
	return s
}

// Listen serves HTTP on the configured port. Blocks until shutdown.
func (s *Server) Listen() error {
	addr := fmt.Sprintf(":%d", s.cfg.Telemetry.HTTPPort)
	s.logger.Infof("Telemetry server listening on %s", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the HTTP server and closes websocket peers.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	for conn, ch := range s.clients {
		close(ch)
		delete(s.clients, conn)
	}
	s.mu.Unlock()
	return s.app.Shutdown()
}

// Publish records the latest snapshot and fans it out to websocket peers.
// Implements pilot.Sink; called from the broadcaster worker.
func (s *Server) Publish(snap pilot.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		s.logger.Errorf("Failed to marshal snapshot for websocket: %v", err)
		return
	}

	s.mu.Lock()
	s.latest = snap
	s.hasLatest = true
	for conn, ch := range s.clients {
		select {
		case ch <- payload:
		default:
			// peer is not keeping up; skip this frame for it
			s.logger.Debugf("Dropping telemetry frame for slow peer %s", conn.RemoteAddr())
		}
	}
	s.mu.Unlock()
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.mu.Lock()
	snap, ok := s.latest, s.hasLatest
	s.mu.Unlock()

	if !ok {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "no snapshot received yet",
		})
	}
	return c.JSON(snap)
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	s.mu.Lock()
	snap, ok := s.latest, s.hasLatest
	s.mu.Unlock()

	if !ok {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "no snapshot received yet",
		})
	}
	return c.JSON(fiber.Map{
		"avg_power_full": snap.AvgPowerFull,
		"avg_power_2min": snap.AvgPower2Min,
	})
}

func (s *Server) handleConfig(c *fiber.Ctx) error {
	yamlData, err := yaml.Marshal(s.cfg)
	if err != nil {
		s.logger.Errorf("Failed to marshal configuration: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("failed to render configuration: %v", err),
		})
	}
	c.Set(fiber.HeaderContentType, "application/yaml")
	return c.Send(yamlData)
}

// handleTelemetryWS streams snapshots to one peer until it disconnects.
func (s *Server) handleTelemetryWS(conn *websocket.Conn) {
	s.logger.Infof("Telemetry WebSocket connected: %s", conn.RemoteAddr())

	ch := make(chan []byte, clientBuffer)
	s.mu.Lock()
	s.clients[conn] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if _, ok := s.clients[conn]; ok {
			delete(s.clients, conn)
			close(ch)
		}
		s.mu.Unlock()
		s.logger.Infof("Telemetry WebSocket disconnected: %s", conn.RemoteAddr())
	}()

	// writer drains the per-peer channel
	done := make(chan struct{})
	go func() {
		defer close(done)
		for payload := range ch {
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if err != websocket.ErrCloseSent && !errors.Is(err, syscall.EPIPE) && !errors.Is(err, syscall.ECONNRESET) {
					s.logger.Warnf("Telemetry WS write error: %v", err)
				}
				return
			}
		}
	}()

	// the stream is one-way; reads only detect the peer going away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Errorf("Telemetry WS read error: %v", err)
			}
			break
		}
	}

	s.mu.Lock()
	if _, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		close(ch)
	}
	s.mu.Unlock()
	<-done
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
