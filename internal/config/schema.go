package config

import (
	"time"

	"codescape/internal/layout"
)

// Config is the root configuration structure
type Config struct {
	Version   int             `yaml:"version" toml:"version"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Analysis  AnalysisConfig  `yaml:"analysis" toml:"analysis"`
	Layout    LayoutConfig    `yaml:"layout" toml:"layout"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Watch     WatchConfig     `yaml:"watch" toml:"watch"`
	Broadcast BroadcastConfig `yaml:"broadcast" toml:"broadcast"`
	Log       LogConfig       `yaml:"log" toml:"log"`

	// Adjustments lists values Clamp moved back into range
	Adjustments []string `yaml:"-" toml:"-"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr            string   `yaml:"addr" toml:"addr"`
	CORSOrigin      string   `yaml:"cors_origin" toml:"cors_origin"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// AnalysisConfig points at the external analysis service
type AnalysisConfig struct {
	URL        string   `yaml:"url" toml:"url"`
	Timeout    Duration `yaml:"timeout" toml:"timeout"`
	ProjectDir string   `yaml:"project_dir,omitempty" toml:"project_dir"`
	Entrypoint string   `yaml:"entrypoint,omitempty" toml:"entrypoint"`
}

// LayoutConfig holds the simulation parameters plus frame loop settings
type LayoutConfig struct {
	layout.Params `yaml:",inline"`

	PrewarmTicks   int      `yaml:"prewarm_ticks" toml:"prewarm_ticks"`
	FrameRate      int      `yaml:"frame_rate" toml:"frame_rate"`
	QueueSize      int      `yaml:"queue_size" toml:"queue_size"`
	FocusDistance  float64  `yaml:"focus_distance" toml:"focus_distance"`
	CameraDuration Duration `yaml:"camera_duration" toml:"camera_duration"`
	EnabledTypes   []string `yaml:"enabled_types,omitempty" toml:"enabled_types"`
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// WatchConfig names a payload file to reload on change. Empty disables it.
type WatchConfig struct {
	Payload  string   `yaml:"payload,omitempty" toml:"payload"`
	Debounce Duration `yaml:"debounce" toml:"debounce"`
}

// BroadcastConfig throttles high-frequency events sent to stream clients
type BroadcastConfig struct {
	PositionsPerSecond float64 `yaml:"positions_per_second" toml:"positions_per_second"`
	Burst              int     `yaml:"burst" toml:"burst"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // text or json
}

// Duration wraps time.Duration for YAML and TOML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, which TOML uses
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
