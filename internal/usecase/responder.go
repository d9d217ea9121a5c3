// Package usecase contains the per-frame application logic.
package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nullpane/reflexd/internal/domain"
	"github.com/nullpane/reflexd/internal/humanizer"
)

// Presser issues one humanized key press and reports the cooldown the
// caller must wait before the next one.
type Presser interface {
	Press(ctx context.Context) (time.Duration, error)
}

// ResponderConfig tunes the decision step.
type ResponderConfig struct {
	// PriorityClass is the class whose detection runs ahead of the
	// actionable window.
	PriorityClass int

	// AnteDelay is slept before pressing when the priority class is
	// predicted. Zero or negative means press immediately.
	AnteDelay time.Duration
}

// Outcome reports what one frame produced.
type Outcome struct {
	Prediction domain.Prediction
	Acted      bool
	Cooldown   time.Duration
}

// Responder classifies one frame and actuates on a positive decision.
type Responder struct {
	classifier domain.Classifier
	presser    Presser
	cfg        ResponderConfig
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewResponder wires the classifier to the press path.
func NewResponder(classifier domain.Classifier, presser Presser, cfg ResponderConfig, logger *zap.Logger) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{
		classifier: classifier,
		presser:    presser,
		cfg:        cfg,
		logger:     logger,
		sleep:      humanizer.SleepContext,
	}
}

// HandleFrame runs classify, decide, actuate for one frame. The caller
// owns the returned cooldown: sleeping it between presses keeps the
// timing model honest, so the loop does it where it also resets its
// throughput window.
func (r *Responder) HandleFrame(ctx context.Context, frame domain.Frame) (Outcome, error) {
	pred, err := r.classifier.Predict(ctx, frame)
	if err != nil {
		return Outcome{}, err
	}
	if !pred.ShouldAct {
		return Outcome{Prediction: pred}, nil
	}

	if pred.Class == r.cfg.PriorityClass && r.cfg.AnteDelay > 0 {
		r.logger.Debug("holding for ante window",
			zap.String("label", pred.Label),
			zap.Duration("delay", r.cfg.AnteDelay))
		if err := r.sleep(ctx, r.cfg.AnteDelay); err != nil {
			return Outcome{Prediction: pred}, err
		}
	}

	cooldown, err := r.presser.Press(ctx)
	if err != nil {
		return Outcome{Prediction: pred}, err
	}

	r.logger.Info("press issued",
		zap.Int("class", pred.Class),
		zap.String("label", pred.Label),
		zap.Duration("cooldown", cooldown))
	return Outcome{Prediction: pred, Acted: true, Cooldown: cooldown}, nil
}

// Close releases the classifier. The responder owns it for the duration
// of a session; closing twice is safe.
func (r *Responder) Close() error {
	return r.classifier.Close()
}
