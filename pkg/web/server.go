// Package web serves the presentation and tracker endpoints of the gaze
// engine over HTTP and WebSocket.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-gaze/pkg/click"
	"github.com/teslashibe/go-gaze/pkg/engine"
	"github.com/teslashibe/go-gaze/pkg/hub"
	"github.com/teslashibe/go-gaze/pkg/input"
	"github.com/teslashibe/go-gaze/pkg/protocol"
	"github.com/teslashibe/go-gaze/pkg/region"
	"github.com/teslashibe/go-gaze/pkg/remote"
	"github.com/teslashibe/go-gaze/pkg/session"
)

// Config holds web server parameters.
type Config struct {
	Port        int           `yaml:"port"`
	StaticDir   string        `yaml:"static_dir"`   // presentation assets, optional
	AccessLog   bool          `yaml:"access_log"`   // fiber request logging
	CallTimeout time.Duration `yaml:"call_timeout"` // per request engine call
}

// DefaultConfig returns the stock web configuration.
func DefaultConfig() Config {
	return Config{
		Port:        8080,
		CallTimeout: 2 * time.Second,
	}
}

// Controller is the engine surface the server drives. *engine.Engine
// satisfies it.
type Controller interface {
	Key(ctx context.Context, code string) (input.Command, bool, error)
	Resize(ctx context.Context, width, height int) error
	SetRegion(ctx context.Context, id string, b region.Bounds) error
	RemoveRegion(ctx context.Context, id string) error
	SetContentExtent(ctx context.Context, ext session.Extent) error
	OpenContent(ctx context.Context) error
	CloseContent(ctx context.Context) error
	Recalibrate(ctx context.Context) error
	ToggleDiagnostics(ctx context.Context) error
	Snapshot(ctx context.Context) (session.Snapshot, error)
	Last() session.Snapshot
	GetStats() engine.Stats
}

// Server is the HTTP front of the engine.
type Server struct {
	cfg     Config
	version string
	app     *fiber.App
	engine  Controller
	tracker *remote.Tracker
	clients *hub.Hub
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewServer builds the fiber app. tracker may be nil when the gaze source is
// not a remote tracker page.
func NewServer(cfg Config, eng Controller, tracker *remote.Tracker, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		version: "dev",
		engine:  eng,
		tracker: tracker,
		logger:  slog.Default().With("component", "web"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.clients = hub.New("session",
		hub.WithLogger(s.logger.With("sub", "hub")),
		hub.WithHandler(s.handleSessionMessage),
		hub.WithOnConnect(s.greet),
	)

	app := fiber.New(fiber.Config{
		AppName:               "gazed",
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))
	if cfg.AccessLog {
		app.Use(logger.New())
	}

	app.Get("/health", s.handleHealth)
	app.Get("/metrics", s.handleMetrics)

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/stats", s.handleStats)
	api.Post("/keys/:code", s.handleKey)
	api.Post("/viewport", s.handleViewport)
	api.Put("/layout/:id", s.handleSetLayout)
	api.Delete("/layout/:id", s.handleRemoveLayout)
	api.Post("/recalibrate", s.action(eng.Recalibrate))
	api.Post("/diagnostics", s.action(eng.ToggleDiagnostics))
	api.Post("/content/open", s.action(eng.OpenContent))
	api.Post("/content/close", s.action(eng.CloseContent))
	api.Put("/content", s.handleContent)

	// WebSocket routes
	app.Use("/ws/session", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/session", websocket.New(s.clients.Serve))
	if tracker != nil {
		tracker.RegisterRoutes(app)
	}

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Clients returns the presentation hub.
func (s *Server) Clients() *hub.Hub {
	return s.clients
}

// Start runs the presentation hub and serves until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	go s.clients.Run(ctx)

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info("listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// PublishState broadcasts a session snapshot to every presentation client.
func (s *Server) PublishState(snap session.Snapshot) {
	s.broadcast(protocol.NewStateMessage(snap))
}

// PublishClick broadcasts a gaze click to every presentation client.
func (s *Server) PublishClick(ev click.Event) {
	s.broadcast(protocol.NewClickMessage(protocol.ClickData{
		ID:       ev.ID.String(),
		RegionID: ev.RegionID,
		X:        ev.X,
		Y:        ev.Y,
	}))
}

func (s *Server) broadcast(msg *protocol.Message, err error) {
	if err != nil {
		s.logger.Error("encode broadcast", "error", err)
		return
	}
	data, err := msg.Bytes()
	if err != nil {
		s.logger.Error("encode broadcast", "type", msg.Type, "error", err)
		return
	}
	s.clients.Broadcast(data)
}

// greet sends the latest snapshot to a newly connected client.
func (s *Server) greet(c *hub.Client) {
	msg, err := protocol.NewStateMessage(s.engine.Last())
	if err != nil {
		return
	}
	if data, err := msg.Bytes(); err == nil {
		s.clients.SendTo(c, data)
	}
}

func (s *Server) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.cfg.CallTimeout)
}
