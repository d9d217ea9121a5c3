// Package fixtures provides test doubles for integration tests.
package fixtures

import (
	"context"
	"sync"
	"time"

	"github.com/nullpane/reflexd/internal/domain"
)

// ScriptedFrameSource implements domain.FrameSource without hardware. It
// yields uniform frames forever, with a small pause so the loop runs at
// a believable rate instead of spinning.
type ScriptedFrameSource struct {
	mu      sync.Mutex
	edge    int
	started bool
	closed  bool
	served  int
}

// NewScriptedFrameSource returns a source producing edge-sized frames.
func NewScriptedFrameSource(edge int) *ScriptedFrameSource {
	return &ScriptedFrameSource{edge: edge}
}

// Start marks the source acquired.
func (s *ScriptedFrameSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

// Frame returns a mid-gray frame after a short pause.
func (s *ScriptedFrameSource) Frame() (domain.Frame, error) {
	time.Sleep(time.Millisecond)
	s.mu.Lock()
	s.served++
	s.mu.Unlock()

	pixels := make([]byte, s.edge*s.edge*3)
	for i := range pixels {
		pixels[i] = 128
	}
	return domain.Frame{Pixels: pixels, Edge: s.edge, At: time.Now()}, nil
}

// Close marks the source released.
func (s *ScriptedFrameSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Served reports how many frames were pulled.
func (s *ScriptedFrameSource) Served() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.served
}

// WasStarted reports whether Start ran.
func (s *ScriptedFrameSource) WasStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// WasClosed reports whether Close ran.
func (s *ScriptedFrameSource) WasClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ScriptedClassifier implements domain.Classifier from a canned verdict
// sequence. Once the script runs out every further frame is idle.
type ScriptedClassifier struct {
	mu     sync.Mutex
	script []domain.Prediction
	calls  int
	closed bool
}

// NewScriptedClassifier returns a classifier playing script in order.
func NewScriptedClassifier(script ...domain.Prediction) *ScriptedClassifier {
	return &ScriptedClassifier{script: script}
}

// Provider names the fake backend.
func (c *ScriptedClassifier) Provider() string {
	return "ScriptedExecutionProvider"
}

// Predict serves the next scripted verdict.
func (c *ScriptedClassifier) Predict(ctx context.Context, _ domain.Frame) (domain.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Prediction{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= len(c.script) {
		return c.script[c.calls-1], nil
	}
	return IdleDecision(), nil
}

// Close marks the classifier released.
func (c *ScriptedClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Calls reports how many frames were classified.
func (c *ScriptedClassifier) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// WasClosed reports whether Close ran.
func (c *ScriptedClassifier) WasClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// PositiveDecision builds a should-act verdict for class with label.
func PositiveDecision(class int, label string) domain.Prediction {
	return domain.Prediction{
		Class:     class,
		Label:     label,
		Probs:     map[string]float32{label: 0.96, "none": 0.04},
		ShouldAct: true,
	}
}

// IdleDecision builds a nothing-to-do verdict.
func IdleDecision() domain.Prediction {
	return domain.Prediction{
		Class: 0,
		Label: "none",
		Probs: map[string]float32{"none": 0.99},
	}
}

// KeyEvent is one recorded injector call.
type KeyEvent struct {
	Key  domain.Key
	Down bool
	At   time.Time
}

// RecordingInjector implements domain.KeyInjector and captures the
// press/release stream with timestamps instead of touching any device.
type RecordingInjector struct {
	mu     sync.Mutex
	events []KeyEvent
	closed bool
}

// NewRecordingInjector returns an empty recorder.
func NewRecordingInjector() *RecordingInjector {
	return &RecordingInjector{}
}

// Press records a key-down.
func (r *RecordingInjector) Press(key domain.Key) error {
	r.record(key, true)
	return nil
}

// Release records a key-up.
func (r *RecordingInjector) Release(key domain.Key) error {
	r.record(key, false)
	return nil
}

func (r *RecordingInjector) record(key domain.Key, down bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, KeyEvent{Key: key, Down: down, At: time.Now()})
}

// Tier reports the recorder as a user-library backend.
func (r *RecordingInjector) Tier() domain.Tier {
	return domain.TierUserLibrary
}

// Persona returns nil; the recorder spoofs no hardware.
func (r *RecordingInjector) Persona() *domain.Persona {
	return nil
}

// Close marks the injector released.
func (r *RecordingInjector) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Events returns a copy of the recorded stream.
func (r *RecordingInjector) Events() []KeyEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]KeyEvent, len(r.events))
	copy(out, r.events)
	return out
}

// HoldDurations pairs each key-down with the following key-up and
// returns the measured hold times.
func (r *RecordingInjector) HoldDurations() []time.Duration {
	events := r.Events()
	var holds []time.Duration
	var down *KeyEvent
	for i := range events {
		ev := events[i]
		if ev.Down {
			down = &events[i]
			continue
		}
		if down != nil && down.Key == ev.Key {
			holds = append(holds, ev.At.Sub(down.At))
			down = nil
		}
	}
	return holds
}

var (
	_ domain.FrameSource = (*ScriptedFrameSource)(nil)
	_ domain.Classifier  = (*ScriptedClassifier)(nil)
	_ domain.KeyInjector = (*RecordingInjector)(nil)
)
