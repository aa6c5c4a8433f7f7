// Package web is the HTTP boundary: the MJPEG stream, the command
// endpoint, and the dashboard's status API and websockets.
package web

import (
	"net"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	statusws "github.com/gofiber/websocket/v2"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/teslashibe/go-peoplecam/internal/log"
	"github.com/teslashibe/go-peoplecam/pkg/annotate"
	"github.com/teslashibe/go-peoplecam/pkg/bridge"
	"github.com/teslashibe/go-peoplecam/pkg/camera"
	"github.com/teslashibe/go-peoplecam/pkg/detection"
	"github.com/teslashibe/go-peoplecam/pkg/encode"
	"github.com/teslashibe/go-peoplecam/pkg/hub"
	"github.com/teslashibe/go-peoplecam/pkg/stream"
)

// DefaultShutdownTimeout bounds how long Shutdown waits for open streams.
const DefaultShutdownTimeout = 5 * time.Second

// Config configures the server.
type Config struct {
	Addr            string
	StaticDir       string
	ShutdownTimeout time.Duration
}

// Deps are the collaborators the server routes requests to. Every
// streaming connection shares Detector, Annotator and Encoder but gets
// its own capture handle from Camera.
type Deps struct {
	Camera    *camera.Manager
	Detector  detection.Detector
	Annotator *annotate.Annotator
	Encoder   encode.Encoder
	Bridge    *bridge.Bridge
	Logger    *zap.Logger
}

// Server serves the video stream and accepts device commands.
type Server struct {
	cfg    Config
	deps   Deps
	app    *fiber.App
	logger *zap.Logger

	statusHub *hub.Hub

	activeStreams atomic.Int64
	framesServed  atomic.Uint64
	commandsSent  atomic.Uint64
}

// NewServer wires routes for cfg and deps.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Named("web")
	}
	if deps.Bridge == nil {
		deps.Bridge = bridge.New(bridge.WithLogger(logger.Named("bridge")))
	}

	s := &Server{
		cfg:       cfg,
		deps:      deps,
		logger:    logger,
		statusHub: hub.New("status", logger.Named("hub")),
	}

	deps.Camera.OnConfigChange = s.cameraChanged

	app := fiber.New(fiber.Config{
		AppName:               "peoplecam",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/video_feed", s.handleVideoFeed)
	app.Post("/send_command", s.handleSendCommand)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/camera", s.handleGetCamera)
	api.Put("/camera", s.handleUpdateCamera)
	api.Get("/camera/presets", s.handleListPresets)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/video", websocket.New(s.handleVideoWS))
	app.Get("/ws/status", statusws.New(s.handleStatusWS))

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the status hub and listens on the configured address.
// It blocks until the server stops.
func (s *Server) Start() error {
	go s.statusHub.Run()
	s.logger.Info("listening", zap.String("addr", s.cfg.Addr))
	return s.app.Listen(s.cfg.Addr)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	go s.statusHub.Run()
	s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
	return s.app.Listener(ln)
}

// Shutdown stops accepting connections, ends open streams after the
// shutdown timeout, and stops the status hub.
func (s *Server) Shutdown() error {
	return multierr.Combine(
		s.app.ShutdownWithTimeout(s.cfg.ShutdownTimeout),
		s.statusHub.Stop(),
	)
}

// publish stamps and broadcasts a status event.
func (s *Server) publish(ev hub.Event) {
	ev.Time = time.Now()
	if err := s.statusHub.BroadcastJSON(ev); err != nil {
		s.logger.Debug("status event dropped", zap.Error(err))
	}
}

// newPipeline builds a pipeline for one connection. The observer reports
// person-count changes to the status hub.
func (s *Server) newPipeline() *stream.Pipeline {
	last := -1
	return stream.New(
		s.deps.Camera.Opener(),
		s.deps.Detector,
		s.deps.Annotator,
		s.deps.Encoder,
		stream.WithLogger(s.logger.Named("stream")),
		stream.WithObserver(func(st stream.FrameStats) {
			s.framesServed.Inc()
			if st.People == last {
				return
			}
			last = st.People
			s.publish(hub.Event{
				Type:   hub.EventPeople,
				Stream: st.Stream,
				People: st.People,
				FPS:    st.FPS,
			})
		}),
	)
}

// cameraChanged tells dashboards about new capture settings. Open streams
// keep their device; the next stream picks the settings up.
func (s *Server) cameraChanged(cfg camera.Config) error {
	s.publish(hub.Event{Type: hub.EventCameraConfig, Camera: cfg})
	return nil
}

func (s *Server) beginStream(p *stream.Pipeline) {
	n := s.activeStreams.Inc()
	s.logger.Debug("stream started", zap.String("stream", p.ID()), zap.Int64("active", n))
	s.publish(hub.Event{Type: hub.EventStreamOpened, Stream: p.ID()})
}

// endStream closes p and reports why it ended.
func (s *Server) endStream(p *stream.Pipeline) {
	_ = p.Close()
	s.activeStreams.Dec()

	ev := hub.Event{Type: hub.EventStreamClosed, Stream: p.ID()}
	if err := p.Err(); err != nil {
		ev.Error = err.Error()
	}
	s.publish(ev)
}
