package daemon

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nullpane/reflexd/internal/domain"
	"github.com/nullpane/reflexd/internal/humanizer"
	"github.com/nullpane/reflexd/internal/usecase"
)

// SessionConfig tunes the control loop.
type SessionConfig struct {
	// FpsWindow is the throughput accounting window.
	FpsWindow time.Duration

	// EventBuffer sizes the observer channel. Emits never block the
	// loop; a full buffer drops the event instead.
	EventBuffer int

	// MaxFrameErrors ends the session after this many consecutive
	// failed iterations. A single bad read is skipped.
	MaxFrameErrors int

	Watchdog WatchdogConfig
}

// DefaultSessionConfig returns the production tuning.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		FpsWindow:      time.Second,
		EventBuffer:    16,
		MaxFrameErrors: 3,
		Watchdog:       DefaultWatchdogConfig(),
	}
}

// FrameHandler decides and actuates for one frame. A handler that also
// implements io.Closer is closed when the session ends.
type FrameHandler interface {
	HandleFrame(ctx context.Context, frame domain.Frame) (usecase.Outcome, error)
}

// SessionInfo labels a session for the journal.
type SessionInfo struct {
	FingerprintID string
	Tier          domain.Tier
}

// Session drives the capture, classify, actuate loop. It owns the frame
// source for the duration of a run and releases it on every exit path.
// Run may be called once per Session.
type Session struct {
	cfg     SessionConfig
	source  domain.FrameSource
	handler FrameHandler
	stats   *Stats
	info    SessionInfo
	journal domain.SessionJournal
	logger  *zap.Logger

	id     string
	events chan domain.SessionEvent
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewSession wires a session. journal may be nil; recording is then
// skipped. stats may be shared with a presentation layer.
func NewSession(
	cfg SessionConfig,
	source domain.FrameSource,
	handler FrameHandler,
	stats *Stats,
	info SessionInfo,
	journal domain.SessionJournal,
	logger *zap.Logger,
) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stats == nil {
		stats = NewStats()
	}
	return &Session{
		cfg:     cfg,
		source:  source,
		handler: handler,
		stats:   stats,
		info:    info,
		journal: journal,
		logger:  logger,
		events:  make(chan domain.SessionEvent, cfg.EventBuffer),
		sleep:   humanizer.SleepContext,
	}
}

// Events is the observer stream. Closed when Run returns.
func (s *Session) Events() <-chan domain.SessionEvent {
	return s.events
}

// ID returns the session identifier assigned by Run.
func (s *Session) ID() string {
	return s.id
}

// Stats returns the live counters. Safe to read from other goroutines
// while Run is in flight.
func (s *Session) Stats() *Stats {
	return s.stats
}

// Run executes the loop until ctx is cancelled or the frame source fails
// repeatedly. Cancellation is a normal stop and returns nil.
func (s *Session) Run(ctx context.Context) error {
	start := time.Now()
	s.id = uuid.NewString()

	if err := s.source.Start(); err != nil {
		if cerr := s.source.Close(); cerr != nil {
			s.logger.Warn("failed to close frame source", zap.Error(cerr))
		}
		close(s.events)
		return err
	}
	s.stats.start(start)
	s.logger.Info("session started",
		zap.String("session", s.id),
		zap.String("tier", string(s.info.Tier)),
		zap.String("fingerprint", s.info.FingerprintID))

	wd := &watchdog{cfg: s.cfg.Watchdog, stats: s.stats, emit: s.emit, logger: s.logger}
	wdCtx, stopWatchdog := context.WithCancel(ctx)
	wdDone := make(chan struct{})
	go func() {
		defer close(wdDone)
		wd.Run(wdCtx)
	}()
	defer s.finish(start, stopWatchdog, wdDone)

	var (
		consecutive  int
		windowStart  = start
		windowFrames int
	)
	for {
		if ctx.Err() != nil {
			s.logger.Info("session stopping", zap.String("session", s.id))
			return nil
		}

		frame, err := s.source.Frame()
		if err != nil {
			consecutive++
			s.logger.Warn("frame grab failed",
				zap.Int("consecutive", consecutive),
				zap.Error(err))
			if consecutive >= s.cfg.MaxFrameErrors {
				return fmt.Errorf("frame source failed %d times in a row: %w", consecutive, err)
			}
			continue
		}

		outcome, err := s.handler.HandleFrame(ctx, frame)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("session stopping", zap.String("session", s.id))
				return nil
			}
			consecutive++
			s.logger.Warn("frame handling failed",
				zap.Int("consecutive", consecutive),
				zap.Error(err))
			if consecutive >= s.cfg.MaxFrameErrors {
				return fmt.Errorf("frame handling failed %d times in a row: %w", consecutive, err)
			}
			continue
		}
		consecutive = 0
		now := time.Now()
		s.stats.frameDone(now)

		if outcome.Acted {
			s.stats.hit(outcome.Prediction.Probs)
			s.emit(domain.ActionEvent{
				Frame:    frame,
				Class:    outcome.Prediction.Class,
				Label:    outcome.Prediction.Label,
				Probs:    outcome.Prediction.Probs,
				Cooldown: outcome.Cooldown,
				At:       now,
			})
			if err := s.sleep(ctx, outcome.Cooldown); err != nil {
				s.logger.Info("session stopping", zap.String("session", s.id))
				return nil
			}
			// The cooldown is dead time; start the throughput window
			// fresh so it only measures classification.
			windowStart = time.Now()
			windowFrames = 0
			continue
		}

		windowFrames++
		if elapsed := now.Sub(windowStart); elapsed >= s.cfg.FpsWindow {
			fps := float64(windowFrames) / elapsed.Seconds()
			s.stats.setFPS(fps)
			s.emit(domain.FpsSample{FPS: fps, At: now})
			windowStart = now
			windowFrames = 0
		}
	}
}

func (s *Session) finish(start time.Time, stopWatchdog context.CancelFunc, wdDone <-chan struct{}) {
	stopWatchdog()
	<-wdDone

	if err := s.source.Close(); err != nil {
		s.logger.Warn("failed to close frame source", zap.Error(err))
	}
	if c, ok := s.handler.(io.Closer); ok {
		if err := c.Close(); err != nil {
			s.logger.Warn("failed to close frame handler", zap.Error(err))
		}
	}

	snap := s.stats.Snapshot()
	s.stats.stop()
	ended := time.Now()
	elapsed := ended.Sub(start).Seconds()
	var avg float64
	if elapsed > 0 {
		avg = float64(snap.Frames) / elapsed
	}
	summary := domain.SessionSummary{
		ID:            s.id,
		StartedAt:     start,
		EndedAt:       ended,
		Frames:        snap.Frames,
		Hits:          snap.Hits,
		AvgFPS:        avg,
		FingerprintID: s.info.FingerprintID,
		Tier:          s.info.Tier,
	}
	if s.journal != nil {
		if err := s.journal.Record(summary); err != nil {
			s.logger.Warn("failed to record session summary", zap.Error(err))
		}
	}
	close(s.events)

	s.logger.Info("session finished",
		zap.String("session", s.id),
		zap.Int64("frames", snap.Frames),
		zap.Int64("hits", snap.Hits),
		zap.Float64("avg_fps", avg),
		zap.Duration("duration", ended.Sub(start)))
}

func (s *Session) emit(ev domain.SessionEvent) {
	select {
	case s.events <- ev:
	default:
		s.logger.Debug("session event dropped, slow consumer")
	}
}
