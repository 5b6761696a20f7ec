// Package config provides configuration management for codescape.
//
// Config file locations (priority order):
//  1. $CODESCAPE_CONFIG
//  2. ./codescape.yaml or ./codescape.toml
//  3. $XDG_CONFIG_HOME/codescape/config.{yaml,toml}
//  4. ~/.config/codescape/config.{yaml,toml}
//  5. /etc/codescape/config.{yaml,toml}
//
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Missing values take defaults and out-of-range values are clamped, never
// rejected.
package config

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"codescape/internal/domain"
	"codescape/internal/layout"
)

const (
	minFrameRate    = 1
	maxFrameRate    = 240
	maxPrewarmTicks = 10000
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		cfg := DefaultConfig()
		cfg.Clamp()
		return cfg, "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, path, fmt.Errorf("parse config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, path, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyDefaults()
	cfg.Clamp()

	return cfg, path, nil
}

// Save writes config to the specified path in the format its extension names
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Addr:            ":3000",
			CORSOrigin:      "*",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Analysis: AnalysisConfig{
			URL:     "http://localhost:5000",
			Timeout: Duration(2 * time.Minute),
		},
		Layout: LayoutConfig{
			Params:         layout.DefaultParams(),
			FrameRate:      60,
			QueueSize:      1024,
			FocusDistance:  10,
			CameraDuration: Duration(1500 * time.Millisecond),
		},
		Database: DatabaseConfig{Path: "./codescape.db"},
		Watch:    WatchConfig{Debounce: Duration(500 * time.Millisecond)},
		Broadcast: BroadcastConfig{
			PositionsPerSecond: 30,
			Burst:              5,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// applyDefaults fills in values that were explicitly emptied
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if c.Analysis.URL == "" {
		c.Analysis.URL = def.Analysis.URL
	}
	if c.Analysis.Timeout <= 0 {
		c.Analysis.Timeout = def.Analysis.Timeout
	}
	if c.Database.Path == "" {
		c.Database.Path = def.Database.Path
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = def.Watch.Debounce
	}
	if c.Layout.CameraDuration <= 0 {
		c.Layout.CameraDuration = def.Layout.CameraDuration
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// Clamp moves out-of-range values to the nearest valid one and records each
// change in Adjustments. It returns the new adjustments.
func (c *Config) Clamp() []string {
	var adj []string
	note := func(field string, from, to any) {
		adj = append(adj, fmt.Sprintf("%s: %v -> %v", field, from, to))
	}

	params, paramAdj := c.Layout.Params.Clamp()
	c.Layout.Params = params
	for _, a := range paramAdj {
		adj = append(adj, "layout."+a.String())
	}

	if c.Layout.FrameRate < minFrameRate || c.Layout.FrameRate > maxFrameRate {
		to := max(minFrameRate, min(c.Layout.FrameRate, maxFrameRate))
		note("layout.frame_rate", c.Layout.FrameRate, to)
		c.Layout.FrameRate = to
	}
	if c.Layout.QueueSize < 1 {
		note("layout.queue_size", c.Layout.QueueSize, 1)
		c.Layout.QueueSize = 1
	}
	if c.Layout.PrewarmTicks < 0 || c.Layout.PrewarmTicks > maxPrewarmTicks {
		to := max(0, min(c.Layout.PrewarmTicks, maxPrewarmTicks))
		note("layout.prewarm_ticks", c.Layout.PrewarmTicks, to)
		c.Layout.PrewarmTicks = to
	}
	if !(c.Layout.FocusDistance > 0) {
		note("layout.focus_distance", c.Layout.FocusDistance, 10)
		c.Layout.FocusDistance = 10
	}

	kept := c.Layout.EnabledTypes[:0]
	for _, t := range c.Layout.EnabledTypes {
		if domain.NodeType(t).Valid() {
			kept = append(kept, t)
			continue
		}
		note("layout.enabled_types", t, "dropped")
	}
	c.Layout.EnabledTypes = kept

	if !(c.Broadcast.PositionsPerSecond > 0) {
		note("broadcast.positions_per_second", c.Broadcast.PositionsPerSecond, 30)
		c.Broadcast.PositionsPerSecond = 30
	}
	if c.Broadcast.Burst < 1 {
		note("broadcast.burst", c.Broadcast.Burst, 1)
		c.Broadcast.Burst = 1
	}

	if _, ok := parseLevel(c.Log.Level); !ok {
		note("log.level", c.Log.Level, "info")
		c.Log.Level = "info"
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		note("log.format", c.Log.Format, "text")
		c.Log.Format = "text"
	}

	c.Adjustments = append(c.Adjustments, adj...)
	return adj
}

// NodeTypes returns the enabled node types
func (l LayoutConfig) NodeTypes() []domain.NodeType {
	out := make([]domain.NodeType, 0, len(l.EnabledTypes))
	for _, t := range l.EnabledTypes {
		out = append(out, domain.NodeType(t))
	}
	return out
}

// NewLogger builds the slog logger the config asks for
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(l.Level)
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, bool) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, false
	}
	return level, true
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Listen: %s, Analysis: %s\n", c.Server.Addr, c.Analysis.URL)
	summary += fmt.Sprintf("Layout: %dD, %d fps, prewarm %d ticks\n",
		c.Layout.Dimensions, c.Layout.FrameRate, c.Layout.PrewarmTicks)
	summary += fmt.Sprintf("Database: %s", c.Database.Path)
	if c.Watch.Payload != "" {
		summary += fmt.Sprintf(", watching %s", c.Watch.Payload)
	}
	return summary
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
