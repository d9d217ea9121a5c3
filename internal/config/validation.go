package config

import (
	"fmt"
	"strings"

	"github.com/nullpane/reflexd/internal/domain"
	"github.com/nullpane/reflexd/internal/preset"
)

// ValidationError reports one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid setting, so the user fixes the
// file in one pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration before a session starts. The loop
// never runs against an invalid configuration.
func (c *Config) Validate(fs domain.FileSystem) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	switch {
	case c.Model.Path == "":
		errs = append(errs, ValidationError{
			Field:   "model.path",
			Message: "a model file is required; set it with `reflexd config set model.path <file>`",
		})
	case !strings.HasSuffix(c.Model.Path, ".onnx"):
		errs = append(errs, ValidationError{
			Field:   "model.path",
			Message: fmt.Sprintf("only .onnx models are supported, got %s", c.Model.Path),
		})
	case !fs.Exists(c.Model.Path):
		errs = append(errs, ValidationError{
			Field:   "model.path",
			Message: fmt.Sprintf("model file %s does not exist", c.Model.Path),
		})
	}
	if c.Model.Threads < 0 || c.Model.Threads > 128 {
		errs = append(errs, ValidationError{
			Field:   "model.threads",
			Message: fmt.Sprintf("thread count must be 0 (auto) to 128, got %d", c.Model.Threads),
		})
	}

	if c.Capture.Device < 0 || c.Capture.Device > 9 {
		errs = append(errs, ValidationError{
			Field:   "capture.device",
			Message: fmt.Sprintf("device index must be 0 to 9, got %d", c.Capture.Device),
		})
	}
	if c.Capture.FrameEdge < 32 || c.Capture.FrameEdge > 1024 {
		errs = append(errs, ValidationError{
			Field:   "capture.frame_edge",
			Message: fmt.Sprintf("frame edge must be 32 to 1024 pixels, got %d", c.Capture.FrameEdge),
		})
	}

	if _, err := preset.ParseKey(c.Input.TriggerKey); err != nil {
		errs = append(errs, ValidationError{
			Field:   "input.trigger_key",
			Message: err.Error(),
		})
	}
	if _, err := preset.FpsPresetByID(c.Input.FpsPreset); err != nil {
		errs = append(errs, ValidationError{
			Field:   "input.fps_preset",
			Message: err.Error(),
		})
	}
	if c.Input.HitAnteMs < -1000 || c.Input.HitAnteMs > 1000 {
		errs = append(errs, ValidationError{
			Field:   "input.hit_ante_ms",
			Message: fmt.Sprintf("ante delay must be -1000 to 1000 ms, got %d", c.Input.HitAnteMs),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
