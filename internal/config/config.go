// Package config provides configuration loading for peoplecam.
//
// Values come from three layers, later ones winning: built-in defaults,
// an optional YAML file, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultAddr       = "0.0.0.0:5000"
	DefaultStaticDir  = "./web"
	DefaultBaudRate   = 9600
	DefaultConfidence = 0.3
	DefaultPrototxt   = "./MobileNetSSD/MobileNetSSD.prototxt"
	DefaultWeights    = "./MobileNetSSD/MobileNetSSD.caffemodel"
)

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Camera   CameraConfig   `yaml:"camera"`
	Model    ModelConfig    `yaml:"model"`
	Annotate AnnotateConfig `yaml:"annotate"`
	Encode   EncodeConfig   `yaml:"encode"`
	Serial   SerialConfig   `yaml:"serial"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// CameraConfig selects the capture device.
// Device is either a numeric index ("0") or a path/URL.
type CameraConfig struct {
	Device string `yaml:"device"`
	Width  int    `yaml:"width"`  // 0 keeps the device default
	Height int    `yaml:"height"` // 0 keeps the device default
	FPS    int    `yaml:"fps"`    // 0 keeps the device default
}

// ModelConfig locates the MobileNet-SSD Caffe model.
type ModelConfig struct {
	Prototxt   string  `yaml:"prototxt"`
	Weights    string  `yaml:"weights"`
	Confidence float64 `yaml:"confidence"`
}

// AnnotateConfig configures the overlay.
type AnnotateConfig struct {
	MinConfidence float64 `yaml:"min_confidence"`
}

// EncodeConfig configures JPEG output. Quality 0 uses the codec default.
type EncodeConfig struct {
	Quality int `yaml:"quality"`
}

// SerialConfig configures the command bridge.
// An empty Port means the operator is prompted at startup.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the production defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:      DefaultAddr,
			StaticDir: DefaultStaticDir,
		},
		Camera: CameraConfig{
			Device: "0",
		},
		Model: ModelConfig{
			Prototxt:   DefaultPrototxt,
			Weights:    DefaultWeights,
			Confidence: DefaultConfidence,
		},
		Annotate: AnnotateConfig{
			MinConfidence: DefaultConfidence,
		},
		Serial: SerialConfig{
			BaudRate: DefaultBaudRate,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML file on top of the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PEOPLECAM_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("PEOPLECAM_PORT"); v != "" {
		c.Serial.Port = v
	}
	if v := os.Getenv("PEOPLECAM_BAUD"); v != "" {
		if baud, err := strconv.Atoi(v); err == nil {
			c.Serial.BaudRate = baud
		}
	}
	if v := os.Getenv("PEOPLECAM_CAMERA"); v != "" {
		c.Camera.Device = v
	}
	if v := os.Getenv("PEOPLECAM_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if os.Getenv("GO_ENV") == "production" {
		c.Log.Format = "json"
	}
}

// Validate checks the configuration and returns every problem found.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Camera.Device == "" {
		errs = append(errs, errors.New("camera.device is required"))
	}
	if c.Camera.Width < 0 || c.Camera.Height < 0 {
		errs = append(errs, fmt.Errorf("camera size %dx%d must not be negative", c.Camera.Width, c.Camera.Height))
	}
	if c.Camera.FPS < 0 {
		errs = append(errs, fmt.Errorf("camera.fps %d must not be negative", c.Camera.FPS))
	}
	if c.Model.Prototxt == "" || c.Model.Weights == "" {
		errs = append(errs, errors.New("model.prototxt and model.weights are required"))
	}
	if c.Model.Confidence < 0 || c.Model.Confidence >= 1 {
		errs = append(errs, fmt.Errorf("model.confidence %.2f out of range [0,1)", c.Model.Confidence))
	}
	if c.Annotate.MinConfidence < 0 || c.Annotate.MinConfidence >= 1 {
		errs = append(errs, fmt.Errorf("annotate.min_confidence %.2f out of range [0,1)", c.Annotate.MinConfidence))
	}
	if c.Encode.Quality < 0 || c.Encode.Quality > 100 {
		errs = append(errs, fmt.Errorf("encode.quality %d out of range 0-100", c.Encode.Quality))
	}
	if c.Serial.BaudRate <= 0 {
		errs = append(errs, fmt.Errorf("serial.baud_rate %d must be positive", c.Serial.BaudRate))
	}

	return multierr.Combine(errs...)
}
