// Package config handles loading, validation and persistence of the
// daemon settings.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Version is the current settings schema version.
const Version = 1

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the settings schema version.
	Version int `toml:"version"`

	Model   ModelConfig   `toml:"model"`
	Capture CaptureConfig `toml:"capture"`
	Input   InputConfig   `toml:"input"`
}

// ModelConfig selects and tunes the classifier.
type ModelConfig struct {
	// Path is the .onnx model file.
	Path string `toml:"path"`

	// LibraryPath overrides the onnxruntime shared library lookup.
	LibraryPath string `toml:"library_path"`

	// UseGPU requests the CUDA execution provider. An unavailable GPU
	// degrades to CPU at startup, it never fails the session.
	UseGPU bool `toml:"use_gpu"`

	// Threads caps intra-op parallelism. 0 lets the runtime decide.
	Threads int `toml:"threads"`
}

// CaptureConfig selects the frame source.
type CaptureConfig struct {
	// Device is the capture device index, /dev/video<N> on Linux.
	Device int `toml:"device"`

	// FrameEdge is the square classifier input size in pixels.
	FrameEdge int `toml:"frame_edge"`
}

// InputConfig tunes the actuation side.
type InputConfig struct {
	// TriggerKey is the key pressed on a positive decision.
	TriggerKey string `toml:"trigger_key"`

	// HitAnteMs shifts the press when the ante class is detected, on
	// top of the fps preset's offset. Negative means act earlier; the
	// sum is only slept when positive.
	HitAnteMs int `toml:"hit_ante_ms"`

	// FpsPreset names the display rate preset: "60", "90" or "120".
	FpsPreset string `toml:"fps_preset"`

	// UseHesitation keeps the occasional humanized double-take delay.
	UseHesitation bool `toml:"use_hesitation"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Model: ModelConfig{
			UseGPU:  true,
			Threads: 0,
		},
		Capture: CaptureConfig{
			Device:    0,
			FrameEdge: 224,
		},
		Input: InputConfig{
			TriggerKey:    "space",
			HitAnteMs:     0,
			FpsPreset:     "120",
			UseHesitation: true,
		},
	}
}

// StateDir returns the directory holding the settings, fingerprint and
// session journal. REFLEXD_STATE_DIR overrides; otherwise XDG state
// conventions apply.
func StateDir() string {
	if dir := os.Getenv("REFLEXD_STATE_DIR"); dir != "" {
		return dir
	}
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "reflexd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "reflexd")
	}
	return filepath.Join(home, ".local", "state", "reflexd")
}

// DefaultPath returns the default settings file path.
func DefaultPath() string {
	return filepath.Join(StateDir(), "config.toml")
}

// Load reads the settings at path, falling back to defaults when the file
// does not exist. Environment overrides apply after decoding.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the settings to path, creating the state directory on first
// use.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides, REFLEXD_
// prefixed, for the paths that commonly differ between hosts.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("REFLEXD_MODEL_PATH"); v != "" {
		c.Model.Path = v
	}
	if v := os.Getenv("REFLEXD_ONNX_LIB"); v != "" {
		c.Model.LibraryPath = v
	}
}

// settableKeys lists the dotted paths Set accepts, in display order.
var settableKeys = []string{
	"model.path",
	"model.library_path",
	"model.use_gpu",
	"model.threads",
	"capture.device",
	"capture.frame_edge",
	"input.trigger_key",
	"input.hit_ante_ms",
	"input.fps_preset",
	"input.use_hesitation",
}

// SettableKeys returns the dotted paths Set accepts.
func SettableKeys() []string {
	keys := make([]string, len(settableKeys))
	copy(keys, settableKeys)
	return keys
}

// Set updates one field addressed by its dotted TOML path.
func (c *Config) Set(key, value string) error {
	switch key {
	case "model.path":
		c.Model.Path = value
	case "model.library_path":
		c.Model.LibraryPath = value
	case "model.use_gpu":
		return setBool(&c.Model.UseGPU, key, value)
	case "model.threads":
		return setInt(&c.Model.Threads, key, value)
	case "capture.device":
		return setInt(&c.Capture.Device, key, value)
	case "capture.frame_edge":
		return setInt(&c.Capture.FrameEdge, key, value)
	case "input.trigger_key":
		c.Input.TriggerKey = value
	case "input.hit_ante_ms":
		return setInt(&c.Input.HitAnteMs, key, value)
	case "input.fps_preset":
		c.Input.FpsPreset = value
	case "input.use_hesitation":
		return setBool(&c.Input.UseHesitation, key, value)
	default:
		return fmt.Errorf("unknown setting %q (valid: %s)", key, strings.Join(settableKeys, ", "))
	}
	return nil
}

func setBool(dst *bool, key, value string) error {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s wants true or false, got %q", key, value)
	}
	*dst = v
	return nil
}

func setInt(dst *int, key, value string) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s wants an integer, got %q", key, value)
	}
	*dst = v
	return nil
}
