package camera

// Preset names for common capture sizes
const (
	PresetDefault = "default"
	PresetVGA     = "vga"
	Preset720p    = "720p"
	Preset1080p   = "1080p"
)

// Presets returns all available preset configurations.
// Presets only carry size and rate; the device is kept from the current config.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault: DefaultConfig(),
		PresetVGA:     {Width: 640, Height: 480, FPS: 30},
		Preset720p:    {Width: 1280, Height: 720, FPS: 30},
		Preset1080p:   {Width: 1920, Height: 1080, FPS: 15},
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{PresetDefault, PresetVGA, Preset720p, Preset1080p}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}
