package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nullpane/reflexd/internal/domain"
)

// mockClassifier implements domain.Classifier for testing
type mockClassifier struct {
	pred   domain.Prediction
	err    error
	frames []domain.Frame
	closed bool
}

func (m *mockClassifier) Provider() string { return "MockExecutionProvider" }

func (m *mockClassifier) Predict(ctx context.Context, frame domain.Frame) (domain.Prediction, error) {
	m.frames = append(m.frames, frame)
	if m.err != nil {
		return domain.Prediction{}, m.err
	}
	return m.pred, nil
}

func (m *mockClassifier) Close() error {
	m.closed = true
	return nil
}

// mockPresser implements Presser for testing
type mockPresser struct {
	cooldown time.Duration
	err      error
	calls    int
}

func (m *mockPresser) Press(ctx context.Context) (time.Duration, error) {
	m.calls++
	if m.err != nil {
		return 0, m.err
	}
	return m.cooldown, nil
}

func idlePrediction() domain.Prediction {
	return domain.Prediction{Class: 0, Label: "none", ShouldAct: false}
}

func actPrediction(class int, label string) domain.Prediction {
	return domain.Prediction{
		Class:     class,
		Label:     label,
		Probs:     map[string]float32{label: 0.97},
		ShouldAct: true,
	}
}

// recordSleeps replaces the responder's sleeper and records each request.
func recordSleeps(r *Responder) *[]time.Duration {
	var slept []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return &slept
}

// TestHandleFrame_IdleFrame verifies nothing actuates on a negative decision
func TestHandleFrame_IdleFrame(t *testing.T) {
	classifier := &mockClassifier{pred: idlePrediction()}
	presser := &mockPresser{cooldown: 480 * time.Millisecond}
	r := NewResponder(classifier, presser, ResponderConfig{PriorityClass: 2}, zap.NewNop())

	outcome, err := r.HandleFrame(context.Background(), domain.Frame{Edge: 224})

	require.NoError(t, err)
	assert.False(t, outcome.Acted)
	assert.Zero(t, outcome.Cooldown)
	assert.Equal(t, "none", outcome.Prediction.Label)
	assert.Equal(t, 0, presser.calls)
	require.Len(t, classifier.frames, 1)
	assert.Equal(t, 224, classifier.frames[0].Edge)
}

// TestHandleFrame_ActsOnPositiveDecision verifies the press path
func TestHandleFrame_ActsOnPositiveDecision(t *testing.T) {
	classifier := &mockClassifier{pred: actPrediction(1, "great")}
	presser := &mockPresser{cooldown: 480 * time.Millisecond}
	r := NewResponder(classifier, presser, ResponderConfig{PriorityClass: 2, AnteDelay: 200 * time.Millisecond}, zap.NewNop())
	slept := recordSleeps(r)

	outcome, err := r.HandleFrame(context.Background(), domain.Frame{})

	require.NoError(t, err)
	assert.True(t, outcome.Acted)
	assert.Equal(t, 480*time.Millisecond, outcome.Cooldown)
	assert.Equal(t, 1, presser.calls)
	// The ante delay only applies to the priority class.
	assert.Empty(t, *slept)
}

// TestHandleFrame_AnteDelayOnPriorityClass verifies the extra sleep
func TestHandleFrame_AnteDelayOnPriorityClass(t *testing.T) {
	classifier := &mockClassifier{pred: actPrediction(2, "ante-great")}
	presser := &mockPresser{cooldown: 400 * time.Millisecond}
	r := NewResponder(classifier, presser, ResponderConfig{PriorityClass: 2, AnteDelay: 125 * time.Millisecond}, zap.NewNop())
	slept := recordSleeps(r)

	outcome, err := r.HandleFrame(context.Background(), domain.Frame{})

	require.NoError(t, err)
	assert.True(t, outcome.Acted)
	require.Len(t, *slept, 1)
	assert.Equal(t, 125*time.Millisecond, (*slept)[0])
	assert.Equal(t, 1, presser.calls)
}

// TestHandleFrame_NoAnteWhenNonPositive verifies zero and negative delays
func TestHandleFrame_NoAnteWhenNonPositive(t *testing.T) {
	for _, delay := range []time.Duration{0, -50 * time.Millisecond} {
		classifier := &mockClassifier{pred: actPrediction(2, "ante-great")}
		presser := &mockPresser{}
		r := NewResponder(classifier, presser, ResponderConfig{PriorityClass: 2, AnteDelay: delay}, zap.NewNop())
		slept := recordSleeps(r)

		_, err := r.HandleFrame(context.Background(), domain.Frame{})

		require.NoError(t, err)
		assert.Empty(t, *slept, "delay %v", delay)
		assert.Equal(t, 1, presser.calls)
	}
}

// TestHandleFrame_ClassifierError verifies the error reaches the loop
func TestHandleFrame_ClassifierError(t *testing.T) {
	classifier := &mockClassifier{err: errors.New("inference failed")}
	presser := &mockPresser{}
	r := NewResponder(classifier, presser, ResponderConfig{}, zap.NewNop())

	_, err := r.HandleFrame(context.Background(), domain.Frame{})

	require.Error(t, err)
	assert.Equal(t, 0, presser.calls)
}

// TestHandleFrame_PressError verifies a failed press keeps the prediction
func TestHandleFrame_PressError(t *testing.T) {
	classifier := &mockClassifier{pred: actPrediction(1, "great")}
	presser := &mockPresser{err: errors.New("injector gone")}
	r := NewResponder(classifier, presser, ResponderConfig{}, zap.NewNop())

	outcome, err := r.HandleFrame(context.Background(), domain.Frame{})

	require.Error(t, err)
	assert.False(t, outcome.Acted)
	assert.Equal(t, "great", outcome.Prediction.Label)
}

// TestHandleFrame_CancelledDuringAnte verifies the press is skipped
func TestHandleFrame_CancelledDuringAnte(t *testing.T) {
	classifier := &mockClassifier{pred: actPrediction(2, "ante-great")}
	presser := &mockPresser{}
	r := NewResponder(classifier, presser, ResponderConfig{PriorityClass: 2, AnteDelay: time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }

	_, err := r.HandleFrame(ctx, domain.Frame{})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, presser.calls)
}

// TestClose_ReleasesClassifier verifies the responder forwards Close
func TestClose_ReleasesClassifier(t *testing.T) {
	classifier := &mockClassifier{pred: idlePrediction()}
	r := NewResponder(classifier, &mockPresser{}, ResponderConfig{}, zap.NewNop())

	require.NoError(t, r.Close())
	assert.True(t, classifier.closed)
}
