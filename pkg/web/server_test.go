package web

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-peoplecam/pkg/annotate"
	"github.com/teslashibe/go-peoplecam/pkg/bridge"
	"github.com/teslashibe/go-peoplecam/pkg/camera"
	"github.com/teslashibe/go-peoplecam/pkg/detection"
	"github.com/teslashibe/go-peoplecam/pkg/encode"
	"github.com/teslashibe/go-peoplecam/pkg/hub"
	"github.com/teslashibe/go-peoplecam/pkg/stream"
)

// frameSource yields n gray frames, or frames forever when n is negative.
type frameSource struct {
	mu     sync.Mutex
	n      int
	closed int
}

func (f *frameSource) Read(frame *gocv.Mat) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.n == 0 {
		return false
	}
	if f.n > 0 {
		f.n--
	}
	gray := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 128, 128, 0), 120, 160, gocv.MatTypeCV8UC3)
	defer gray.Close()
	gray.CopyTo(frame)
	return true
}

func (f *frameSource) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *frameSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

type personDetector struct{}

func (personDetector) Detect(gocv.Mat) ([]detection.Detection, error) {
	return []detection.Detection{{
		Class:      detection.Person,
		Confidence: 0.9,
		Box:        image.Rect(20, 40, 80, 110),
	}}, nil
}

func (personDetector) Close() error { return nil }

// memPort is a serial port that records what was written.
type memPort struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (p *memPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.Write(b)
}

func (p *memPort) Close() error { return nil }

func (p *memPort) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.String()
}

type fixture struct {
	srv    *Server
	bridge *bridge.Bridge
	port   *memPort
	src    *frameSource
}

func newFixture(t *testing.T, frames int, openErr error) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	f := &fixture{port: &memPort{}, src: &frameSource{n: frames}}
	f.bridge = bridge.New(
		bridge.WithLogger(logger),
		bridge.WithOpener(func(string, int) (bridge.Port, error) { return f.port, nil }),
	)

	cam := camera.NewManager(camera.DefaultConfig())
	cam.SetOpenFunc(func(camera.Config) (camera.Source, error) {
		if openErr != nil {
			return nil, openErr
		}
		return f.src, nil
	})

	f.srv = NewServer(Config{Addr: "127.0.0.1:0"}, Deps{
		Camera:    cam,
		Detector:  personDetector{},
		Annotator: annotate.New(annotate.DefaultConfig()),
		Encoder:   encode.JPEG{},
		Bridge:    f.bridge,
		Logger:    logger,
	})
	return f
}

func sendCommand(t *testing.T, app *fiber.App, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/send_command", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestSendCommand_AlwaysNoContent(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, f *fixture)
		wire  string
	}{
		{
			name:  "no session",
			setup: func(*testing.T, *fixture) {},
			wire:  "",
		},
		{
			name: "open session",
			setup: func(t *testing.T, f *fixture) {
				require.NoError(t, f.bridge.Open("/dev/ttyUSB0", 9600))
			},
			wire: "PING",
		},
		{
			name: "closed session",
			setup: func(t *testing.T, f *fixture) {
				require.NoError(t, f.bridge.Open("/dev/ttyUSB0", 9600))
				require.NoError(t, f.bridge.Close())
			},
			wire: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0, nil)
			tt.setup(t, f)

			resp := sendCommand(t, f.srv.App(), "command=PING")
			assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
			body, _ := io.ReadAll(resp.Body)
			assert.Empty(t, body)
			assert.Equal(t, tt.wire, f.port.String())
		})
	}
}

func TestSendCommand_ExitThenNoOp(t *testing.T) {
	f := newFixture(t, 0, nil)
	require.NoError(t, f.bridge.Open("COM3", 9600))

	assert.Equal(t, fiber.StatusNoContent, sendCommand(t, f.srv.App(), "command=exit").StatusCode)
	assert.Equal(t, fiber.StatusNoContent, sendCommand(t, f.srv.App(), "command=forward").StatusCode)

	assert.Equal(t, "exit", f.port.String())
	assert.False(t, f.bridge.Session().IsOpen)
}

func TestSendCommand_MissingField(t *testing.T) {
	f := newFixture(t, 0, nil)
	require.NoError(t, f.bridge.Open("COM3", 9600))

	resp := sendCommand(t, f.srv.App(), "")
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Empty(t, f.port.String())
}

func TestVideoFeed_CameraUnavailable(t *testing.T) {
	f := newFixture(t, 0, errors.New("device busy"))

	resp, err := f.srv.App().Test(httptest.NewRequest(http.MethodGet, "/video_feed", nil), -1)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, stream.ContentType, resp.Header.Get(fiber.HeaderContentType))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestVideoFeed_StreamsMultipartJPEGs(t *testing.T) {
	f := newFixture(t, 3, nil)

	resp, err := f.srv.App().Test(httptest.NewRequest(http.MethodGet, "/video_feed", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, stream.ContentType, resp.Header.Get(fiber.HeaderContentType))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body = append(body, []byte("--"+stream.Boundary+"--\r\n")...)

	mr := multipart.NewReader(bytes.NewReader(body), stream.Boundary)
	parts := 0
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", part.Header.Get("Content-Type"))

		payload, err := io.ReadAll(part)
		require.NoError(t, err)
		img, err := imaging.Decode(bytes.NewReader(payload))
		require.NoError(t, err)
		assert.Equal(t, image.Pt(160, 120), img.Bounds().Size())
		parts++
	}

	assert.Equal(t, 3, parts)
	assert.Equal(t, 1, f.src.closeCount(), "device released once")
	assert.EqualValues(t, 3, f.srv.framesServed.Load())
	assert.EqualValues(t, 0, f.srv.activeStreams.Load())
}

func TestStatus(t *testing.T) {
	f := newFixture(t, 0, nil)
	require.NoError(t, f.bridge.Open("COM7", 115200))
	sendCommand(t, f.srv.App(), "command=forward")

	resp, err := f.srv.App().Test(httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var st Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, bridge.SerialSession{PortName: "COM7", BaudRate: 115200, IsOpen: true}, st.Serial)
	assert.EqualValues(t, 1, st.CommandsSent)
	assert.EqualValues(t, 0, st.ActiveStreams)
	assert.Equal(t, "0", st.Camera.Device)
}

func TestUpdateCamera(t *testing.T) {
	f := newFixture(t, 0, nil)
	app := f.srv.App()

	put := func(body string) *http.Response {
		req := httptest.NewRequest(http.MethodPut, "/api/camera", strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	resp := put(`{"preset":"720p"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var cfg camera.Config
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cfg))
	assert.Equal(t, 1280, cfg.Width)
	assert.Equal(t, 720, cfg.Height)
	assert.Equal(t, "0", cfg.Device)

	assert.Equal(t, fiber.StatusBadRequest, put(`{"preset":"8k"}`).StatusCode)
	assert.Equal(t, fiber.StatusBadRequest, put(`not json`).StatusCode)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/camera/presets", nil))
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&names))
	assert.Contains(t, names, "720p")
}

func TestWebSocketRoutes_RequireUpgrade(t *testing.T) {
	f := newFixture(t, 0, nil)

	resp, err := f.srv.App().Test(httptest.NewRequest(http.MethodGet, "/ws/status", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

// serve runs the server on a loopback listener and returns its address.
func serve(t *testing.T, s *Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = s.Serve(ln) }()
	t.Cleanup(func() { _ = s.Shutdown() })
	return ln.Addr().String()
}

func TestWebSocketVideo(t *testing.T) {
	f := newFixture(t, 2, nil)
	addr := serve(t, f.srv)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/video", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	for i := 0; i < 2; i++ {
		mt, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.BinaryMessage, mt)
		assert.Equal(t, []byte{0xFF, 0xD8}, data[:2], "JPEG SOI marker")
		_, err = imaging.Decode(bytes.NewReader(data))
		require.NoError(t, err)
	}

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	require.Eventually(t, func() bool { return f.srv.activeStreams.Load() == 0 }, time.Second, 10*time.Millisecond)
}

func TestWebSocketStatus_CommandEvent(t *testing.T) {
	f := newFixture(t, 0, nil)
	addr := serve(t, f.srv)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/status", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.srv.statusHub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	sendCommand(t, f.srv.App(), "command=PING")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)

	var ev hub.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, hub.EventCommand, ev.Type)
	assert.Equal(t, "PING", ev.Command)
	assert.Equal(t, "noop", ev.Outcome)
	assert.False(t, ev.Time.IsZero())
}

func TestVideoFeed_ClientDisconnectReleasesCamera(t *testing.T) {
	f := newFixture(t, -1, nil)
	addr := serve(t, f.srv)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	req, err := http.NewRequest(http.MethodGet, "http://"+addr+"/video_feed", nil)
	require.NoError(t, err)
	require.NoError(t, req.Write(conn))

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	part, err := multipart.NewReader(resp.Body, stream.Boundary).NextPart()
	require.NoError(t, err)
	payload, err := io.ReadAll(part)
	require.NoError(t, err)
	require.NotEmpty(t, payload)
	assert.EqualValues(t, 1, f.srv.activeStreams.Load())

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return f.src.closeCount() == 1 && f.srv.activeStreams.Load() == 0
	}, 5*time.Second, 20*time.Millisecond, "stream must stop and release the camera")
	assert.Equal(t, 1, f.src.closeCount())
}

func TestUpdateCamera_PublishesEvent(t *testing.T) {
	f := newFixture(t, 0, nil)
	addr := serve(t, f.srv)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/status", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return f.srv.statusHub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	req := httptest.NewRequest(http.MethodPut, "/api/camera", strings.NewReader(`{"preset":"vga"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := f.srv.App().Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev struct {
		Type   hub.EventType `json:"type"`
		Camera camera.Config `json:"camera"`
	}
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, hub.EventCameraConfig, ev.Type)
	assert.Equal(t, camera.Config{Device: "0", Width: 640, Height: 480, FPS: 30}, ev.Camera)
}
