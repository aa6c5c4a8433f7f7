package web

import (
	"bufio"
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	statusws "github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/teslashibe/go-peoplecam/pkg/bridge"
	"github.com/teslashibe/go-peoplecam/pkg/camera"
	"github.com/teslashibe/go-peoplecam/pkg/hub"
	"github.com/teslashibe/go-peoplecam/pkg/stream"
)

// Status is the /api/status payload.
type Status struct {
	Serial        bridge.SerialSession `json:"serial"`
	Camera        camera.Config        `json:"camera"`
	ActiveStreams int64                `json:"active_streams"`
	FramesServed  uint64               `json:"frames_served"`
	CommandsSent  uint64               `json:"commands_sent"`
	StatusClients int                  `json:"status_clients"`
}

// handleVideoFeed streams annotated frames as multipart/x-mixed-replace
// until the pipeline ends or the client goes away. A camera that cannot
// be opened yields a 200 with an empty body.
func (s *Server) handleVideoFeed(c *fiber.Ctx) error {
	p := s.newPipeline()

	c.Set(fiber.HeaderContentType, stream.ContentType)
	c.Set(fiber.HeaderCacheControl, "no-cache, no-store, must-revalidate")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		s.beginStream(p)
		defer s.endStream(p)

		for {
			frame, ok := p.Next()
			if !ok {
				return
			}
			if _, err := w.Write(frame.Bytes()); err != nil {
				s.logger.Debug("client gone", zap.String("stream", p.ID()), zap.Error(err))
				return
			}
			if err := w.Flush(); err != nil {
				s.logger.Debug("client gone", zap.String("stream", p.ID()), zap.Error(err))
				return
			}
		}
	})
	return nil
}

// handleSendCommand forwards the form field "command" to the serial
// bridge. The response is 204 whether or not anything was transmitted.
func (s *Server) handleSendCommand(c *fiber.Ctx) error {
	command := c.FormValue("command")

	outcome, err := s.deps.Bridge.Send(command)
	if outcome == bridge.Sent {
		s.commandsSent.Inc()
	}

	ev := hub.Event{Type: hub.EventCommand, Command: command, Outcome: outcome.String()}
	if err != nil {
		ev.Error = err.Error()
	}
	s.publish(ev)

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(Status{
		Serial:        s.deps.Bridge.Session(),
		Camera:        s.deps.Camera.GetConfig(),
		ActiveStreams: s.activeStreams.Load(),
		FramesServed:  s.framesServed.Load(),
		CommandsSent:  s.commandsSent.Load(),
		StatusClients: s.statusHub.ClientCount(),
	})
}

func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	return c.JSON(s.deps.Camera.GetConfig())
}

// handleUpdateCamera applies a partial update ({"preset": "720p"},
// {"width": 640, "height": 480}, ...). Open streams keep their device;
// the change applies to the next stream.
func (s *Server) handleUpdateCamera(c *fiber.Ctx) error {
	var params map[string]interface{}
	if err := json.Unmarshal(c.Body(), &params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}

	if err := s.deps.Camera.UpdateConfig(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	cfg := s.deps.Camera.GetConfig()
	s.logger.Info("camera config updated",
		zap.String("device", cfg.Device),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height))
	return c.JSON(cfg)
}

func (s *Server) handleListPresets(c *fiber.Ctx) error {
	return c.JSON(camera.PresetNames())
}

// handleVideoWS sends each JPEG payload as one binary message on a
// pipeline of its own.
func (s *Server) handleVideoWS(conn *websocket.Conn) {
	p := s.newPipeline()
	s.beginStream(p)
	defer s.endStream(p)

	for {
		frame, ok := p.Next()
		if !ok {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended"))
			return
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, frame.Payload()); err != nil {
			return
		}
	}
}

func (s *Server) handleStatusWS(conn *statusws.Conn) {
	hub.NewClient(s.statusHub, conn).Run()
}
