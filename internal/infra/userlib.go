package infra

import (
	"fmt"

	"github.com/go-vgo/robotgo"
	"go.uber.org/zap"

	"github.com/nullpane/reflexd/internal/domain"
	"github.com/nullpane/reflexd/internal/preset"
)

// RobotgoInjector implements domain.KeyInjector through the robotgo
// automation library. It works wherever a display session exists but
// the events carry no hardware identity, so it ranks below the kernel
// and OS tiers.
type RobotgoInjector struct {
	logger *zap.Logger
}

// NewRobotgoInjector creates the user-library tier injector.
func NewRobotgoInjector(logger *zap.Logger) domain.KeyInjector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RobotgoInjector{logger: logger}
}

func (r *RobotgoInjector) Press(key domain.Key) error {
	name, ok := preset.RobotName(key)
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	if err := robotgo.KeyToggle(name, "down"); err != nil {
		return fmt.Errorf("failed to press %s: %w", name, err)
	}
	return nil
}

func (r *RobotgoInjector) Release(key domain.Key) error {
	name, ok := preset.RobotName(key)
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	if err := robotgo.KeyToggle(name, "up"); err != nil {
		return fmt.Errorf("failed to release %s: %w", name, err)
	}
	return nil
}

func (r *RobotgoInjector) Tier() domain.Tier        { return domain.TierUserLibrary }
func (r *RobotgoInjector) Persona() *domain.Persona { return nil }
func (r *RobotgoInjector) Close() error             { return nil }

// Ensure RobotgoInjector implements domain.KeyInjector.
var _ domain.KeyInjector = (*RobotgoInjector)(nil)
