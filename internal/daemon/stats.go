// Package daemon runs the reactive session loop and its observers.
package daemon

import (
	"sync"
	"time"
)

// Stats holds the shared counters a presentation layer may poll while a
// session runs. Guarded by their own mutex, separate from the timing
// engine's lock; callers must never hold a snapshot call across a press.
type Stats struct {
	mu        sync.Mutex
	running   bool
	startedAt time.Time
	lastFrame time.Time
	frames    int64
	hits      int64
	fps       float64
	lastProbs map[string]float32
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Running   bool
	StartedAt time.Time
	Frames    int64
	Hits      int64
	FPS       float64
	LastProbs map[string]float32
}

// NewStats returns zeroed counters.
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) start(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.startedAt = now
	s.lastFrame = now
	s.frames = 0
	s.hits = 0
	s.fps = 0
	s.lastProbs = nil
}

func (s *Stats) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

func (s *Stats) frameDone(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	s.lastFrame = now
}

func (s *Stats) hit(probs map[string]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits++
	s.lastProbs = copyProbs(probs)
}

func (s *Stats) setFPS(fps float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fps = fps
}

// Snapshot copies the counters for display.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Running:   s.running,
		StartedAt: s.startedAt,
		Frames:    s.frames,
		Hits:      s.hits,
		FPS:       s.fps,
		LastProbs: copyProbs(s.lastProbs),
	}
}

// LastFrameAt reports when the loop last completed a frame. The watchdog
// polls this to detect stalls.
func (s *Stats) LastFrameAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFrame
}

func copyProbs(probs map[string]float32) map[string]float32 {
	if probs == nil {
		return nil
	}
	out := make(map[string]float32, len(probs))
	for k, v := range probs {
		out[k] = v
	}
	return out
}
