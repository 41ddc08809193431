package camera

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrUnknownPreset is returned by UpdateConfig for a preset name that
// Presets does not list.
var ErrUnknownPreset = errors.New("camera: unknown preset")

// Manager owns the live camera settings. The USB capturer reads them on
// every capture, so an update takes effect on the next photo.
type Manager struct {
	mu     sync.RWMutex
	config Config

	// OnConfigChange runs after a validated update. If it fails the
	// previous settings are restored.
	OnConfigChange func(cfg Config) error
}

func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg}
}

func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig replaces the settings.
func (m *Manager) SetConfig(cfg Config) error {
	if problems := cfg.Validate(); len(problems) > 0 {
		return fmt.Errorf("camera: invalid config: %s", strings.Join(problems, "; "))
	}

	m.mu.Lock()
	prev := m.config
	m.config = cfg
	apply := m.OnConfigChange
	m.mu.Unlock()

	if apply == nil {
		return nil
	}
	if err := apply(cfg); err != nil {
		m.mu.Lock()
		m.config = prev
		m.mu.Unlock()
		return fmt.Errorf("camera: apply config: %w", err)
	}
	return nil
}

// settable maps dashboard keys onto Config fields.
var settable = map[string]func(*Config, int){
	"device":  func(c *Config, v int) { c.Device = v },
	"width":   func(c *Config, v int) { c.Width = v },
	"height":  func(c *Config, v int) { c.Height = v },
	"quality": func(c *Config, v int) { c.Quality = v },
	"warmup":  func(c *Config, v int) { c.Warmup = v },
}

// UpdateConfig applies a partial update decoded from JSON. A "preset" key
// swaps in that preset, keeping the current device, before the remaining
// numeric keys are applied. Unknown keys are ignored.
func (m *Manager) UpdateConfig(params map[string]any) error {
	current := m.GetConfig()
	next := current

	if name, ok := params["preset"].(string); ok {
		preset := GetPreset(name)
		if preset == nil {
			return fmt.Errorf("%w: %s", ErrUnknownPreset, name)
		}
		next = *preset
		next.Device = current.Device
	}

	for key, raw := range params {
		set, ok := settable[key]
		if !ok {
			continue
		}
		if v, ok := asInt(raw); ok {
			set(&next, v)
		}
	}
	return m.SetConfig(next)
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}
