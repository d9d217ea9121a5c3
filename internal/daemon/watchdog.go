package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nullpane/reflexd/internal/domain"
)

// WatchdogConfig tunes stall detection.
type WatchdogConfig struct {
	// CheckInterval is how often the last-frame timestamp is polled.
	CheckInterval time.Duration

	// StallAfter is the frame silence that triggers a warning.
	StallAfter time.Duration
}

// DefaultWatchdogConfig returns the production tuning.
func DefaultWatchdogConfig() WatchdogConfig {
	return WatchdogConfig{
		CheckInterval: 2 * time.Second,
		StallAfter:    5 * time.Second,
	}
}

// watchdog warns when the loop stops completing frames, which usually
// means the capture read or the classifier is blocked. It only observes:
// the session is never killed, the operator decides what to do.
type watchdog struct {
	cfg    WatchdogConfig
	stats  *Stats
	emit   func(domain.SessionEvent)
	logger *zap.Logger
}

// Run polls until ctx is cancelled. A warning repeats on every check
// while the stall lasts, with a growing Since.
func (w *watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			since := now.Sub(w.stats.LastFrameAt())
			if since < w.cfg.StallAfter {
				continue
			}
			w.logger.Warn("no frames completed recently",
				zap.Duration("since", since))
			w.emit(domain.StallWarning{Since: since, At: now})
		}
	}
}
