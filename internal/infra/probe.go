package infra

import (
	"math/rand"

	"go.uber.org/zap"

	"github.com/nullpane/reflexd/internal/domain"
)

// injectorCandidate is one backend the probe can try, ordered from the
// most convincing tier down.
type injectorCandidate struct {
	name  string
	build func() (domain.KeyInjector, error)
}

// SelectInjector probes the platform's input backends in tier order
// and returns the first one that initializes. The rng feeds the device
// persona draw where the backend has one. When everything fails it
// degrades to the noop injector so a session can still observe.
func SelectInjector(rng *rand.Rand, logger *zap.Logger) domain.KeyInjector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return selectInjectorFrom(platformCandidates(rng, logger), logger)
}

func selectInjectorFrom(candidates []injectorCandidate, logger *zap.Logger) domain.KeyInjector {
	for _, c := range candidates {
		inj, err := c.build()
		if err != nil {
			logger.Warn("input backend unavailable",
				zap.String("backend", c.name),
				zap.Error(err))
			continue
		}
		logger.Info("input backend selected",
			zap.String("backend", c.name),
			zap.String("tier", string(inj.Tier())))
		return inj
	}
	logger.Warn("no input backend available, key presses will be suppressed")
	return NewNoopInjector(logger)
}

// ProbeResult describes one backend attempt.
type ProbeResult struct {
	Backend string
	Tier    domain.Tier
	Persona *domain.Persona
	Err     error
}

// ProbeInjectors tries every backend in order and reports each
// outcome, closing whatever opened. Nothing is left running.
func ProbeInjectors(rng *rand.Rand, logger *zap.Logger) []ProbeResult {
	if logger == nil {
		logger = zap.NewNop()
	}
	var out []ProbeResult
	for _, c := range platformCandidates(rng, logger) {
		inj, err := c.build()
		if err != nil {
			out = append(out, ProbeResult{Backend: c.name, Err: err})
			continue
		}
		out = append(out, ProbeResult{Backend: c.name, Tier: inj.Tier(), Persona: inj.Persona()})
		inj.Close()
	}
	return out
}
