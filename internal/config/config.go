package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EngineDefaults holds the option-store defaults applied before a handle
// calls Initialize, plus sizing knobs for the ring/log-buffer. Loaded
// from YAML; after Load returns, every field is usable without further
// nil/zero checks.
type EngineDefaults struct {
	// Idle keeps the engine alive with no file loaded instead of quitting.
	Idle bool `yaml:"idle"`
	// Terminal enables terminal I/O (keyboard input, status line).
	Terminal bool `yaml:"terminal"`
	// OSC enables the on-screen controller overlay.
	OSC bool `yaml:"osc"`
	// EventRingCapacity is the number of Event slots per handle's ring.
	EventRingCapacity int `yaml:"event_ring_capacity"`
	// LogBufferCapacity is loaded and validated, but does not size
	// anything: a handle's log-message subscription holds as many
	// entries as EventRingCapacity.
	LogBufferCapacity int `yaml:"log_buffer_capacity"`
	// Options carries any other option=value string pairs, applied via
	// SetOption the way command-line --options are before mpv_initialize.
	Options map[string]string `yaml:"options"`
}

// DefaultEventRingCapacity mirrors client.c's hardcoded num_events = 1000.
const DefaultEventRingCapacity = 1000

// DefaultLogBufferCapacity mirrors mpv_msg_log_buffer_new's 1000-entry
// call site in mpv_request_log_messages.
const DefaultLogBufferCapacity = 1000

// Default returns the engine defaults matching mpv_create's built-in
// mpv_set_option_string calls: idle on, terminal off, osc off.
func Default() EngineDefaults {
	d := EngineDefaults{
		Idle:     true,
		Terminal: false,
		OSC:      false,
	}
	d.applyDefaults()
	return d
}

func (d *EngineDefaults) applyDefaults() {
	if d.EventRingCapacity == 0 {
		d.EventRingCapacity = DefaultEventRingCapacity
	}
	if d.LogBufferCapacity == 0 {
		d.LogBufferCapacity = DefaultLogBufferCapacity
	}
}

// Validate checks internal consistency. Runs after applyDefaults, so it
// may assume defaults are populated.
func (d *EngineDefaults) Validate() error {
	if d.EventRingCapacity < 1 {
		return fmt.Errorf("event_ring_capacity %d must be >= 1", d.EventRingCapacity)
	}
	if d.LogBufferCapacity < 1 {
		return fmt.Errorf("log_buffer_capacity %d must be >= 1", d.LogBufferCapacity)
	}
	return nil
}

// Load reads engine defaults from a YAML file, expands environment
// variables, applies defaults for unset fields, and validates the
// result.
func Load(path string) (EngineDefaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EngineDefaults{}, err
	}

	expanded := os.ExpandEnv(string(data))

	d := EngineDefaults{}
	if err := yaml.Unmarshal([]byte(expanded), &d); err != nil {
		return EngineDefaults{}, err
	}

	d.applyDefaults()
	if err := d.Validate(); err != nil {
		return EngineDefaults{}, fmt.Errorf("engine defaults validation: %w", err)
	}

	return d, nil
}
