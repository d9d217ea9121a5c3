//go:build !linux && !windows

package infra

import (
	"math/rand"

	"go.uber.org/zap"

	"github.com/nullpane/reflexd/internal/domain"
)

// platformCandidates on other systems only has the robotgo tier, which
// has no persona to draw.
func platformCandidates(_ *rand.Rand, logger *zap.Logger) []injectorCandidate {
	return []injectorCandidate{
		{name: "robotgo", build: func() (domain.KeyInjector, error) {
			return NewRobotgoInjector(logger), nil
		}},
	}
}
