package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configurable replaycap settings.
type Config struct {
	CacheDir            string   `json:"cache_dir" yaml:"cache_dir"`
	OutboxDir           string   `json:"outbox_dir" yaml:"outbox_dir"` // defaults to <cache_dir>/outbox
	SegmentDuration     Duration `json:"segment_duration" yaml:"segment_duration"`
	SessionDuration     Duration `json:"session_duration" yaml:"session_duration"`
	ShutdownGrace       Duration `json:"shutdown_grace" yaml:"shutdown_grace"`
	EventBufferCapacity int      `json:"event_buffer_capacity" yaml:"event_buffer_capacity"`
	BreadcrumbCapacity  int      `json:"breadcrumb_capacity" yaml:"breadcrumb_capacity"`
	CleanupOld          *bool    `json:"cleanup_old,omitempty" yaml:"cleanup_old,omitempty"`
	LogLevel            string   `json:"log_level" yaml:"log_level"` // "debug" | "info" | "warn" | "error"
	Recorder            Recorder `json:"recorder" yaml:"recorder"`
	Redis               Redis    `json:"redis" yaml:"redis"`
}

// Recorder describes the video produced for each segment.
type Recorder struct {
	Width     int     `json:"width" yaml:"width"`
	Height    int     `json:"height" yaml:"height"`
	FrameRate int     `json:"frame_rate" yaml:"frame_rate"`
	BitRate   int     `json:"bit_rate" yaml:"bit_rate"`
	ScaleX    float64 `json:"scale_x" yaml:"scale_x"` // capture surface to video coordinates
	ScaleY    float64 `json:"scale_y" yaml:"scale_y"`
}

// Redis configures the optional stream delivery sink. An empty Addr disables it.
type Redis struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	Stream   string `json:"stream" yaml:"stream"`
	MaxLen   int64  `json:"max_len" yaml:"max_len"`
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	cleanup := true
	return Config{
		CacheDir:            DefaultCacheDir(),
		SegmentDuration:     Duration(5 * time.Second),
		SessionDuration:     Duration(time.Hour),
		ShutdownGrace:       Duration(5 * time.Second),
		EventBufferCapacity: 10_000,
		BreadcrumbCapacity:  100,
		CleanupOld:          &cleanup,
		LogLevel:            "info",
		Recorder: Recorder{
			Width:     432,
			Height:    768,
			FrameRate: 1,
			BitRate:   100_000,
			ScaleX:    1,
			ScaleY:    1,
		},
		Redis: Redis{
			Stream: "replay:segments",
			MaxLen: 10_000,
		},
	}
}

// DefaultCacheDir returns $XDG_CACHE_HOME/replaycap, falling back to
// ~/.cache/replaycap and finally the system temp dir.
func DefaultCacheDir() string {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "replaycap")
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "replaycap")
}

// Outbox returns the directory delivered segments are written to.
func (c Config) Outbox() string {
	if c.OutboxDir != "" {
		return c.OutboxDir
	}
	return filepath.Join(c.CacheDir, "outbox")
}

// ShouldCleanupOld reports whether stale session directories are removed on start.
func (c Config) ShouldCleanupOld() bool {
	return c.CleanupOld == nil || *c.CleanupOld
}

// Validate checks the merged configuration.
func (c Config) Validate() error {
	if c.CacheDir == "" {
		return errors.New("cache_dir must be set")
	}
	if c.SegmentDuration <= 0 {
		return fmt.Errorf("segment_duration must be positive, got %s", c.SegmentDuration)
	}
	if c.SessionDuration < c.SegmentDuration {
		return fmt.Errorf("session_duration %s is shorter than segment_duration %s", c.SessionDuration, c.SegmentDuration)
	}
	if c.EventBufferCapacity < 0 || c.BreadcrumbCapacity < 0 {
		return errors.New("buffer capacities must not be negative")
	}
	return c.Recorder.Validate()
}

// Validate reports whether frames can be recorded with r.
func (r Recorder) Validate() error {
	switch {
	case r.Width <= 0 || r.Height <= 0:
		return fmt.Errorf("recorder size %dx%d is invalid", r.Width, r.Height)
	case r.FrameRate <= 0:
		return fmt.Errorf("recorder frame_rate %d is invalid", r.FrameRate)
	case r.BitRate < 0:
		return fmt.Errorf("recorder bit_rate %d is invalid", r.BitRate)
	case r.ScaleX <= 0 || r.ScaleY <= 0:
		return fmt.Errorf("recorder scale %gx%g is invalid", r.ScaleX, r.ScaleY)
	}
	return nil
}

// Accepted file names, in lookup order.
var (
	globalNames  = []string{"config.yaml", "config.yml", "config.json"}
	projectNames = []string{".replaycap.yaml", ".replaycap.yml", ".replaycap.json"}
)

// LoadGlobal reads ~/.config/replaycap/config.{yaml,yml,json}, whichever is
// found first. Returns defaults if none exists.
func LoadGlobal() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(home, ".config", "replaycap")
	for _, name := range globalNames {
		cfg, err := loadFile(filepath.Join(dir, name))
		if cfg != nil || err != nil {
			return cfg, err
		}
	}
	d := Defaults()
	return &d, nil
}

// LoadProject reads .replaycap.{yaml,yml,json} in the current working
// directory. Returns nil (no error) if none exists.
func LoadProject() (*Config, error) {
	for _, name := range projectNames {
		cfg, err := loadFile(name)
		if cfg != nil || err != nil {
			return cfg, err
		}
	}
	return nil, nil
}

// loadFile reads and parses the config file at path, choosing the decoder
// from its extension. It returns nil, nil when the file is absent.
func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	if global != nil {
		overlay(&result, global)
	}
	if project != nil {
		overlay(&result, project)
	}
	return result
}

// overlay copies every non-zero field of src onto dst.
func overlay(dst, src *Config) {
	setString(&dst.CacheDir, src.CacheDir)
	setString(&dst.OutboxDir, src.OutboxDir)
	setString(&dst.LogLevel, src.LogLevel)
	setNonZero(&dst.SegmentDuration, src.SegmentDuration)
	setNonZero(&dst.SessionDuration, src.SessionDuration)
	setNonZero(&dst.ShutdownGrace, src.ShutdownGrace)
	setNonZero(&dst.EventBufferCapacity, src.EventBufferCapacity)
	setNonZero(&dst.BreadcrumbCapacity, src.BreadcrumbCapacity)
	if src.CleanupOld != nil {
		v := *src.CleanupOld
		dst.CleanupOld = &v
	}

	setNonZero(&dst.Recorder.Width, src.Recorder.Width)
	setNonZero(&dst.Recorder.Height, src.Recorder.Height)
	setNonZero(&dst.Recorder.FrameRate, src.Recorder.FrameRate)
	setNonZero(&dst.Recorder.BitRate, src.Recorder.BitRate)
	setNonZero(&dst.Recorder.ScaleX, src.Recorder.ScaleX)
	setNonZero(&dst.Recorder.ScaleY, src.Recorder.ScaleY)

	setString(&dst.Redis.Addr, src.Redis.Addr)
	setString(&dst.Redis.Password, src.Redis.Password)
	setString(&dst.Redis.Stream, src.Redis.Stream)
	setNonZero(&dst.Redis.DB, src.Redis.DB)
	setNonZero(&dst.Redis.MaxLen, src.Redis.MaxLen)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setNonZero[T int | int64 | float64 | Duration](dst *T, v T) {
	if v != 0 {
		*dst = v
	}
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
