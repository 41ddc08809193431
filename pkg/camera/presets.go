package camera

// Preset names accepted by Manager.UpdateConfig.
const (
	PresetDefault = "default"
	Preset720p    = "720p"
	PresetFast    = "fast"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	hd := DefaultConfig()
	hd.Width, hd.Height = 1280, 720

	fast := DefaultConfig()
	fast.Width, fast.Height = 320, 240
	fast.Quality = 70
	fast.Warmup = 2

	return map[string]Config{
		PresetDefault: DefaultConfig(),
		Preset720p:    hd,
		PresetFast:    fast,
	}
}

// GetPreset returns the named preset, or nil if unknown.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}
