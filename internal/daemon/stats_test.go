package daemon

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestStats_LifecycleCounters verifies start, accounting and stop keep
// the counters consistent
func TestStats_LifecycleCounters(t *testing.T) {
	stats := NewStats()
	now := time.Now()

	stats.start(now)
	snap := stats.Snapshot()
	assert.True(t, snap.Running)
	assert.Equal(t, now, snap.StartedAt)
	assert.Zero(t, snap.Frames)
	assert.Zero(t, snap.Hits)

	stats.frameDone(now.Add(10 * time.Millisecond))
	stats.frameDone(now.Add(20 * time.Millisecond))
	stats.frameDone(now.Add(30 * time.Millisecond))
	stats.hit(map[string]float32{"great": 0.95})
	stats.setFPS(12.5)

	snap = stats.Snapshot()
	assert.Equal(t, int64(3), snap.Frames)
	assert.Equal(t, int64(1), snap.Hits)
	assert.Equal(t, 12.5, snap.FPS)
	assert.InDelta(t, 0.95, snap.LastProbs["great"], 1e-6)

	stats.stop()
	snap = stats.Snapshot()
	assert.False(t, snap.Running)
	assert.Equal(t, int64(3), snap.Frames, "stop should preserve counters")
}

// TestStats_StartResetsPreviousRun verifies a second session starts from
// zero
func TestStats_StartResetsPreviousRun(t *testing.T) {
	stats := NewStats()
	stats.start(time.Now())
	stats.frameDone(time.Now())
	stats.hit(map[string]float32{"great": 0.9})
	stats.stop()

	stats.start(time.Now())
	snap := stats.Snapshot()
	assert.Zero(t, snap.Frames)
	assert.Zero(t, snap.Hits)
	assert.Nil(t, snap.LastProbs)
}

// TestStats_SnapshotCopiesProbs verifies the snapshot does not alias the
// caller's or the stats' map
func TestStats_SnapshotCopiesProbs(t *testing.T) {
	stats := NewStats()
	stats.start(time.Now())

	probs := map[string]float32{"great": 0.97}
	stats.hit(probs)
	probs["great"] = 0.01

	snap := stats.Snapshot()
	assert.InDelta(t, 0.97, snap.LastProbs["great"], 1e-6)

	snap.LastProbs["great"] = 0.5
	assert.InDelta(t, 0.97, stats.Snapshot().LastProbs["great"], 1e-6)
}

// TestStats_LastFrameAt verifies the watchdog's stall clock follows
// frame completion
func TestStats_LastFrameAt(t *testing.T) {
	stats := NewStats()
	t0 := time.Now()
	stats.start(t0)
	assert.Equal(t, t0, stats.LastFrameAt())

	t1 := t0.Add(40 * time.Millisecond)
	stats.frameDone(t1)
	assert.Equal(t, t1, stats.LastFrameAt())
}

// TestStats_ConcurrentAccess verifies the counters survive the race
// detector under parallel writers and readers
func TestStats_ConcurrentAccess(t *testing.T) {
	stats := NewStats()
	stats.start(time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				stats.frameDone(time.Now())
				stats.hit(map[string]float32{"great": 0.9})
				_ = stats.Snapshot()
				_ = stats.LastFrameAt()
			}
		}()
	}
	wg.Wait()

	snap := stats.Snapshot()
	assert.Equal(t, int64(400), snap.Frames)
	assert.Equal(t, int64(400), snap.Hits)
}
