//go:build windows

package infra

import (
	"math/rand"

	"go.uber.org/zap"

	"github.com/nullpane/reflexd/internal/domain"
)

// platformCandidates orders the Windows backends: scan-code SendInput
// first, robotgo as the compatibility fallback. Neither presents a
// persona, so rng goes unused here.
func platformCandidates(_ *rand.Rand, logger *zap.Logger) []injectorCandidate {
	return []injectorCandidate{
		{name: "sendinput", build: func() (domain.KeyInjector, error) {
			return NewSendInputInjector(logger)
		}},
		{name: "robotgo", build: func() (domain.KeyInjector, error) {
			return NewRobotgoInjector(logger), nil
		}},
	}
}
