//go:build linux

package infra

import (
	"math/rand"
	"os"

	"go.uber.org/zap"

	"github.com/nullpane/reflexd/internal/domain"
)

// platformCandidates orders the Linux backends: a virtual kernel
// device first, robotgo only when a display session exists to drive.
func platformCandidates(rng *rand.Rand, logger *zap.Logger) []injectorCandidate {
	candidates := []injectorCandidate{
		{name: "uinput", build: func() (domain.KeyInjector, error) {
			return NewUinputInjector(RandomPersona(rng), logger)
		}},
	}
	if os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != "" {
		candidates = append(candidates, injectorCandidate{
			name: "robotgo",
			build: func() (domain.KeyInjector, error) {
				return NewRobotgoInjector(logger), nil
			},
		})
	}
	return candidates
}
