package camera

import (
	"encoding/json"
	"fmt"
	"sync"
)

// OpenFunc acquires a device for a config snapshot.
type OpenFunc func(Config) (Source, error)

// Manager holds the current camera configuration and handles updates.
type Manager struct {
	config Config
	mu     sync.RWMutex

	open OpenFunc

	// Callback when config changes
	OnConfigChange func(cfg Config) error
}

// NewManager creates a new camera manager starting from cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{
		config: cfg,
		open: func(c Config) (Source, error) {
			return Open(c)
		},
	}
}

// SetOpenFunc replaces how devices are acquired.
func (m *Manager) SetOpenFunc(fn OpenFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = fn
}

// GetConfig returns the current camera configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig updates the camera configuration.
func (m *Manager) SetConfig(cfg Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}

	m.mu.Lock()
	m.config = cfg
	callback := m.OnConfigChange
	m.mu.Unlock()

	if callback != nil {
		if err := callback(cfg); err != nil {
			return fmt.Errorf("failed to apply config: %w", err)
		}
	}

	return nil
}

// UpdateConfig updates specific fields of the configuration.
// Accepts a map of field names to values, plus an optional "preset".
func (m *Manager) UpdateConfig(params map[string]interface{}) error {
	cfg := m.GetConfig()

	if presetName, ok := params["preset"].(string); ok {
		preset := GetPreset(presetName)
		if preset == nil {
			return fmt.Errorf("unknown preset: %s", presetName)
		}
		device := cfg.Device
		cfg = *preset
		cfg.Device = device
	}

	for key, value := range params {
		switch key {
		case "device":
			switch v := value.(type) {
			case string:
				cfg.Device = v
			default:
				if i, ok := toInt(v); ok {
					cfg.Device = fmt.Sprint(i)
				}
			}
		case "width":
			if v, ok := toInt(value); ok {
				cfg.Width = v
			}
		case "height":
			if v, ok := toInt(value); ok {
				cfg.Height = v
			}
		case "fps":
			if v, ok := toInt(value); ok {
				cfg.FPS = v
			}
		}
	}

	return m.SetConfig(cfg)
}

// Opener returns an Opener that acquires a device using the config
// current at the time of each call.
func (m *Manager) Opener() Opener {
	return func() (Source, error) {
		m.mu.RLock()
		open, cfg := m.open, m.config
		m.mu.RUnlock()
		return open(cfg)
	}
}

func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}
