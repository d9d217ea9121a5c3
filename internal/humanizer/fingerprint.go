// Package humanizer generates per-install timing fingerprints and turns
// key presses into humanly plausible press/hold/release schedules drawn
// from them.
package humanizer

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nullpane/reflexd/internal/domain"
)

// band is an inclusive parameter range.
type band struct {
	lo, hi float64
}

func (b band) contains(v float64) bool {
	return v >= b.lo && v <= b.hi
}

// fingerprintBands are the ranges every generated fingerprint is drawn
// from. Loaded fingerprints outside these ranges are treated as corrupt
// and regenerated.
var fingerprintBands = struct {
	pressMu, pressSigma, pressExpMean, pressMin, pressMax    band
	preDelayMu, preDelaySigma, preDelayMax                   band
	cooldownMu, cooldownSigma, cooldownExpMean               band
	cooldownMin, cooldownMax                                 band
	hesitationChance, hesitationMin, hesitationMax           band
	antiRepeat                                               band
	fatigueOnset, fatigueRamp                                band
	fatigueMax, fatigueWaveAmp, fatigueWaveFreq              band
	minInterPress                                            band
}{
	pressMu:          band{0.165, 0.195},
	pressSigma:       band{0.014, 0.024},
	pressExpMean:     band{0.008, 0.018},
	pressMin:         band{0.120, 0.140},
	pressMax:         band{0.260, 0.300},
	preDelayMu:       band{0.005, 0.010},
	preDelaySigma:    band{0.003, 0.006},
	preDelayMax:      band{0.025, 0.040},
	cooldownMu:       band{0.460, 0.510},
	cooldownSigma:    band{0.030, 0.055},
	cooldownExpMean:  band{0.010, 0.022},
	cooldownMin:      band{0.360, 0.400},
	cooldownMax:      band{0.620, 0.680},
	hesitationChance: band{0.04, 0.10},
	hesitationMin:    band{0.012, 0.020},
	hesitationMax:    band{0.040, 0.065},
	antiRepeat:       band{0.002, 0.005},
	fatigueOnset:     band{15, 30},
	fatigueRamp:      band{45, 75},
	fatigueMax:       band{1.10, 1.22},
	fatigueWaveAmp:   band{0.015, 0.030},
	fatigueWaveFreq:  band{0.4, 0.8},
	minInterPress:    band{0.320, 0.380},
}

// GenerateFingerprint draws a fresh fingerprint. Each parameter is
// sampled uniformly from its band, so two installs practically never
// share a timing profile. A nil rng gets a time-seeded one.
func GenerateFingerprint(rng *rand.Rand) domain.Fingerprint {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	u := func(b band) float64 { return b.lo + rng.Float64()*(b.hi-b.lo) }
	ui := func(b band) int {
		lo, hi := int(b.lo), int(b.hi)
		return lo + rng.Intn(hi-lo+1)
	}
	return domain.Fingerprint{
		ID:               newFingerprintID(),
		PressMu:          u(fingerprintBands.pressMu),
		PressSigma:       u(fingerprintBands.pressSigma),
		PressExpMean:     u(fingerprintBands.pressExpMean),
		PressMin:         u(fingerprintBands.pressMin),
		PressMax:         u(fingerprintBands.pressMax),
		PreDelayMu:       u(fingerprintBands.preDelayMu),
		PreDelaySigma:    u(fingerprintBands.preDelaySigma),
		PreDelayMax:      u(fingerprintBands.preDelayMax),
		CooldownMu:       u(fingerprintBands.cooldownMu),
		CooldownSigma:    u(fingerprintBands.cooldownSigma),
		CooldownExpMean:  u(fingerprintBands.cooldownExpMean),
		CooldownMin:      u(fingerprintBands.cooldownMin),
		CooldownMax:      u(fingerprintBands.cooldownMax),
		HesitationChance: u(fingerprintBands.hesitationChance),
		HesitationMin:    u(fingerprintBands.hesitationMin),
		HesitationMax:    u(fingerprintBands.hesitationMax),
		AntiRepeat:       u(fingerprintBands.antiRepeat),
		FatigueOnset:     ui(fingerprintBands.fatigueOnset),
		FatigueRamp:      ui(fingerprintBands.fatigueRamp),
		FatigueMax:       u(fingerprintBands.fatigueMax),
		FatigueWaveAmp:   u(fingerprintBands.fatigueWaveAmp),
		FatigueWaveFreq:  u(fingerprintBands.fatigueWaveFreq),
		MinInterPress:    u(fingerprintBands.minInterPress),
	}
}

// Validate checks that fp sits inside the generation bands. Anything
// outside means the stored file was edited or corrupted.
func Validate(fp domain.Fingerprint) error {
	if !validFingerprintID(fp.ID) {
		return fmt.Errorf("fingerprint id %q is not 12 hex chars", fp.ID)
	}
	checks := []struct {
		name string
		val  float64
		b    band
	}{
		{"press_mu", fp.PressMu, fingerprintBands.pressMu},
		{"press_sigma", fp.PressSigma, fingerprintBands.pressSigma},
		{"press_exp_mean", fp.PressExpMean, fingerprintBands.pressExpMean},
		{"press_min", fp.PressMin, fingerprintBands.pressMin},
		{"press_max", fp.PressMax, fingerprintBands.pressMax},
		{"pre_delay_mu", fp.PreDelayMu, fingerprintBands.preDelayMu},
		{"pre_delay_sigma", fp.PreDelaySigma, fingerprintBands.preDelaySigma},
		{"pre_delay_max", fp.PreDelayMax, fingerprintBands.preDelayMax},
		{"cooldown_mu", fp.CooldownMu, fingerprintBands.cooldownMu},
		{"cooldown_sigma", fp.CooldownSigma, fingerprintBands.cooldownSigma},
		{"cooldown_exp_mean", fp.CooldownExpMean, fingerprintBands.cooldownExpMean},
		{"cooldown_min", fp.CooldownMin, fingerprintBands.cooldownMin},
		{"cooldown_max", fp.CooldownMax, fingerprintBands.cooldownMax},
		{"hesitation_chance", fp.HesitationChance, fingerprintBands.hesitationChance},
		{"hesitation_min", fp.HesitationMin, fingerprintBands.hesitationMin},
		{"hesitation_max", fp.HesitationMax, fingerprintBands.hesitationMax},
		{"anti_repeat", fp.AntiRepeat, fingerprintBands.antiRepeat},
		{"fatigue_onset", float64(fp.FatigueOnset), fingerprintBands.fatigueOnset},
		{"fatigue_ramp", float64(fp.FatigueRamp), fingerprintBands.fatigueRamp},
		{"fatigue_max", fp.FatigueMax, fingerprintBands.fatigueMax},
		{"fatigue_wave_amp", fp.FatigueWaveAmp, fingerprintBands.fatigueWaveAmp},
		{"fatigue_wave_freq", fp.FatigueWaveFreq, fingerprintBands.fatigueWaveFreq},
		{"min_inter_press", fp.MinInterPress, fingerprintBands.minInterPress},
	}
	for _, c := range checks {
		if !c.b.contains(c.val) {
			return fmt.Errorf("%s=%v outside [%v, %v]", c.name, c.val, c.b.lo, c.b.hi)
		}
	}
	return nil
}

func newFingerprintID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func validFingerprintID(id string) bool {
	if len(id) != 12 {
		return false
	}
	for _, r := range id {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
