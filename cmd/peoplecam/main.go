// peoplecam streams a camera with people-detection overlays over HTTP and
// relays text commands from the page to a serial device.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/multierr"

	"github.com/teslashibe/go-peoplecam/internal/config"
	"github.com/teslashibe/go-peoplecam/internal/log"
	"github.com/teslashibe/go-peoplecam/pkg/annotate"
	"github.com/teslashibe/go-peoplecam/pkg/bridge"
	"github.com/teslashibe/go-peoplecam/pkg/camera"
	"github.com/teslashibe/go-peoplecam/pkg/detection"
	"github.com/teslashibe/go-peoplecam/pkg/encode"
	"github.com/teslashibe/go-peoplecam/pkg/web"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "peoplecam: %v\n", err)
		os.Exit(2)
	}

	log.Init(cfg.Log.Level, cfg.Log.Format)
	defer log.Sync()

	if err := run(cfg); err != nil {
		log.Error("peoplecam stopped", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

// loadConfig layers flags over env over the config file.
func loadConfig() (config.Config, error) {
	configPath := flag.String("config", "", "Path to a YAML config file")
	port := flag.String("port", "", "Serial port (prompts when empty)")
	addr := flag.String("addr", "", "HTTP listen address (default "+config.DefaultAddr+")")
	cam := flag.String("camera", "", "Camera index or device path")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv()

	if *port != "" {
		cfg.Serial.Port = *port
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *cam != "" {
		cfg.Camera.Device = *cam
	}
	if *debug {
		cfg.Log.Level = "debug"
	}

	return cfg, cfg.Validate()
}

// run opens the serial session and the model, then serves until a signal
// arrives. Any startup failure returns before the server listens.
func run(cfg config.Config) error {
	camCfg, err := cameraConfig(cfg.Camera)
	if err != nil {
		return err
	}

	portName := cfg.Serial.Port
	if portName == "" {
		if portName, err = choosePort(); err != nil {
			return err
		}
	}

	br := bridge.New()
	if err := br.Open(portName, cfg.Serial.BaudRate); err != nil {
		return err
	}

	detCfg := detection.DefaultConfig()
	detCfg.Prototxt = cfg.Model.Prototxt
	detCfg.Weights = cfg.Model.Weights
	detCfg.ConfidenceThresh = float32(cfg.Model.Confidence)

	det, err := detection.NewSSD(detCfg)
	if err != nil {
		return multierr.Append(err, br.Close())
	}
	log.Info("model loaded", "prototxt", detCfg.Prototxt)

	annCfg := annotate.DefaultConfig()
	annCfg.MinConfidence = float32(cfg.Annotate.MinConfidence)

	srv := web.NewServer(web.Config{
		Addr:      cfg.Server.Addr,
		StaticDir: cfg.Server.StaticDir,
	}, web.Deps{
		Camera:    camera.NewManager(camCfg),
		Detector:  det,
		Annotator: annotate.New(annCfg),
		Encoder:   encode.JPEG{Quality: cfg.Encode.Quality},
		Bridge:    br,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case serveErr = <-errCh:
	}

	return multierr.Combine(serveErr, srv.Shutdown(), br.Close(), det.Close())
}

// cameraConfig converts the file settings and checks them against the
// capture limits.
func cameraConfig(c config.CameraConfig) (camera.Config, error) {
	cfg := camera.Config{
		Device: c.Device,
		Width:  c.Width,
		Height: c.Height,
		FPS:    c.FPS,
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		return cfg, fmt.Errorf("camera config: %s", strings.Join(problems, "; "))
	}
	return cfg, nil
}
