package humanizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nullpane/reflexd/internal/domain"
)

// recentHoldWindow is how many previous hold durations the anti-repeat
// check looks back over.
const recentHoldWindow = 6

// antiRepeatAttempts bounds the jitter search when a fresh hold lands
// too close to a recent one. Each attempt tries both shift directions.
const antiRepeatAttempts = 6

// Options tunes optional press behaviors.
type Options struct {
	// DisableHesitation turns off the occasional extra pause before a
	// press. Timing becomes more regular, which is usually not wanted.
	DisableHesitation bool
}

// Humanizer schedules key presses according to a timing fingerprint.
// All randomness flows through a single rng so seeded runs are
// reproducible. Safe for concurrent use; presses are serialized.
type Humanizer struct {
	fp     domain.Fingerprint
	opt    Options
	logger *zap.Logger

	mu          sync.Mutex
	rng         *rand.Rand
	hits        int
	lastPress   time.Time
	recentHolds []float64
	sleep       func(ctx context.Context, d time.Duration) error
}

// New builds a Humanizer for fp. A nil rng gets a time-seeded one and a
// nil logger is replaced with a no-op.
func New(fp domain.Fingerprint, opt Options, rng *rand.Rand, logger *zap.Logger) *Humanizer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Humanizer{
		fp:          fp,
		opt:         opt,
		logger:      logger,
		rng:         rng,
		recentHolds: make([]float64, 0, recentHoldWindow),
		sleep:       SleepContext,
	}
}

// Fingerprint returns the profile this humanizer draws from.
func (h *Humanizer) Fingerprint() domain.Fingerprint {
	return h.fp
}

// Hits returns how many presses completed since the last reset.
func (h *Humanizer) Hits() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits
}

// ResetSession clears the hit counter, the press history and the
// inter-press clock, as if the operator had just sat down.
func (h *Humanizer) ResetSession() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hits = 0
	h.lastPress = time.Time{}
	h.recentHolds = h.recentHolds[:0]
}

// SessionState is a point-in-time view of the press bookkeeping.
type SessionState struct {
	Hits        int
	LastPressAt time.Time
}

// Snapshot returns the current press bookkeeping.
func (h *Humanizer) Snapshot() SessionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return SessionState{Hits: h.hits, LastPressAt: h.lastPress}
}

// pressPlan is one fully sampled press schedule.
type pressPlan struct {
	fatigue  float64
	guard    time.Duration // remaining inter-press spacing to honor first
	preDelay time.Duration
	hesitate time.Duration
	hold     time.Duration // slept hold, fatigue applied
	rawHold  float64       // seconds, pre-fatigue, recorded for anti-repeat
	cooldown time.Duration
}

// Press performs one humanized press of key through inj and returns the
// cooldown the caller must wait before acting again. The lock is held
// for the whole actuation so overlapping callers queue up naturally.
// Press never leaves the key down: once it went down it is released
// even when the context is canceled mid-hold.
func (h *Humanizer) Press(ctx context.Context, inj domain.KeyInjector, key domain.Key) (time.Duration, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	plan := h.planLocked(time.Now())

	if plan.guard > 0 {
		if err := h.sleep(ctx, plan.guard); err != nil {
			return 0, err
		}
	}
	if d := plan.preDelay + plan.hesitate; d > 0 {
		if err := h.sleep(ctx, d); err != nil {
			return 0, err
		}
	}

	if err := inj.Press(key); err != nil {
		return 0, fmt.Errorf("press %s: %w", key, err)
	}
	sleepErr := h.sleep(ctx, plan.hold)
	releaseErr := inj.Release(key)
	h.commitLocked(plan, time.Now())

	if sleepErr != nil {
		return 0, sleepErr
	}
	if releaseErr != nil {
		return 0, fmt.Errorf("release %s: %w", key, releaseErr)
	}
	return plan.cooldown, nil
}

// planLocked samples one press schedule. It reads session state but
// mutates nothing except the rng; commitLocked records the outcome.
func (h *Humanizer) planLocked(now time.Time) pressPlan {
	f := h.fatigueLocked()

	pre := clamp(h.fp.PreDelayMu+h.fp.PreDelaySigma*h.rng.NormFloat64(), 0, h.fp.PreDelayMax) * f
	rawHold := h.holdLocked()
	hes := h.hesitationLocked()
	cool := clamp(
		h.fp.CooldownMu+h.fp.CooldownSigma*h.rng.NormFloat64()+h.rng.ExpFloat64()*h.fp.CooldownExpMean,
		h.fp.CooldownMin, h.fp.CooldownMax,
	) * f

	var guard time.Duration
	if !h.lastPress.IsZero() {
		if since := now.Sub(h.lastPress); since < secs(h.fp.MinInterPress) {
			guard = secs(h.fp.MinInterPress) - since
		}
	}

	return pressPlan{
		fatigue:  f,
		guard:    guard,
		preDelay: secs(pre),
		hesitate: secs(hes),
		hold:     secs(rawHold * f),
		rawHold:  rawHold,
		cooldown: secs(cool),
	}
}

// commitLocked records a completed press.
func (h *Humanizer) commitLocked(plan pressPlan, now time.Time) {
	h.hits++
	h.lastPress = now
	h.recentHolds = append(h.recentHolds, plan.rawHold)
	if len(h.recentHolds) > recentHoldWindow {
		h.recentHolds = h.recentHolds[1:]
	}
	h.logger.Debug("press committed",
		zap.Int("hits", h.hits),
		zap.Float64("fatigue", plan.fatigue),
		zap.Duration("hold", plan.hold),
		zap.Duration("cooldown", plan.cooldown))
}

// fatigueLocked maps the session hit count to a slowdown multiplier.
// Under the onset it is exactly 1.0. Past it, a linear ramp approaches
// FatigueMax over FatigueRamp further hits, with a slow sinusoidal
// drift on top. Never below 1.0.
func (h *Humanizer) fatigueLocked() float64 {
	if h.hits < h.fp.FatigueOnset {
		return 1.0
	}
	progress := 1.0
	if h.fp.FatigueRamp > 0 {
		progress = float64(h.hits-h.fp.FatigueOnset) / float64(h.fp.FatigueRamp)
		if progress > 1 {
			progress = 1
		}
	}
	base := 1 + (h.fp.FatigueMax-1)*progress
	wave := h.fp.FatigueWaveAmp * math.Sin(float64(h.hits)*h.fp.FatigueWaveFreq)
	f := base + wave
	if f < 1 {
		f = 1
	}
	return f
}

// holdLocked samples the pre-fatigue hold duration: a normal body with
// an exponential right tail, clamped to the fingerprint's hold range,
// then nudged away from recent holds.
func (h *Humanizer) holdLocked() float64 {
	raw := h.fp.PressMu + h.fp.PressSigma*h.rng.NormFloat64() + h.rng.ExpFloat64()*h.fp.PressExpMean
	return h.antiRepeatLocked(clamp(raw, h.fp.PressMin, h.fp.PressMax))
}

// antiRepeatLocked keeps hold durations from clustering. If hold sits
// within AntiRepeat of any recent hold it is shifted by a fresh random
// amount in [AntiRepeat, 2.5*AntiRepeat], random direction first, the
// opposite direction as a fallback, re-clamped to the hold range. The
// search is bounded; if no candidate clears every recent hold the best
// one found wins.
func (h *Humanizer) antiRepeatLocked(hold float64) float64 {
	if h.fp.AntiRepeat <= 0 {
		return hold
	}
	best, bestGap := hold, h.nearestHoldGapLocked(hold)
	if bestGap >= h.fp.AntiRepeat {
		return hold
	}
	for i := 0; i < antiRepeatAttempts; i++ {
		mag := h.fp.AntiRepeat * (1 + 1.5*h.rng.Float64())
		sign := 1.0
		if h.rng.Intn(2) == 0 {
			sign = -1
		}
		for _, s := range [2]float64{sign, -sign} {
			cand := clamp(hold+s*mag, h.fp.PressMin, h.fp.PressMax)
			gap := h.nearestHoldGapLocked(cand)
			if gap >= h.fp.AntiRepeat {
				return cand
			}
			if gap > bestGap {
				best, bestGap = cand, gap
			}
		}
	}
	return best
}

// nearestHoldGapLocked returns the distance from hold to the closest
// recent hold, or +Inf when there is no history yet.
func (h *Humanizer) nearestHoldGapLocked(hold float64) float64 {
	gap := math.Inf(1)
	for _, prev := range h.recentHolds {
		if d := math.Abs(hold - prev); d < gap {
			gap = d
		}
	}
	return gap
}

// hesitationLocked occasionally adds a short extra pause before the
// press, the way a human attention dip would.
func (h *Humanizer) hesitationLocked() float64 {
	if h.opt.DisableHesitation || h.fp.HesitationChance <= 0 {
		return 0
	}
	if h.rng.Float64() >= h.fp.HesitationChance {
		return 0
	}
	return h.fp.HesitationMin + h.rng.Float64()*(h.fp.HesitationMax-h.fp.HesitationMin)
}

// SleepContext blocks for d or until ctx is done, whichever comes
// first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
