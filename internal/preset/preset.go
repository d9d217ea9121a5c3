package preset

import (
	"fmt"
	"sort"
	"time"
)

// FpsPreset describes one supported capture rate and the timing
// compensation that goes with it. AnteOffset is added to the configured
// lead time before a press: at lower rates a frame arrives later
// relative to the event it shows, so the lead shrinks.
type FpsPreset struct {
	ID         string
	FPS        int
	AnteOffset time.Duration
}

var fpsPresets = map[string]FpsPreset{
	"60":  {ID: "60", FPS: 60, AnteOffset: -250 * time.Millisecond},
	"90":  {ID: "90", FPS: 90, AnteOffset: -125 * time.Millisecond},
	"120": {ID: "120", FPS: 120, AnteOffset: 0},
}

// FpsPresets returns all presets sorted by rate.
func FpsPresets() []FpsPreset {
	out := make([]FpsPreset, 0, len(fpsPresets))
	for _, p := range fpsPresets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FPS < out[j].FPS })
	return out
}

// FpsPresetByID looks up a preset by its identifier.
func FpsPresetByID(id string) (FpsPreset, error) {
	p, ok := fpsPresets[id]
	if !ok {
		ids := make([]string, 0, len(fpsPresets))
		for k := range fpsPresets {
			ids = append(ids, k)
		}
		sort.Strings(ids)
		return FpsPreset{}, fmt.Errorf("unknown fps preset %q (supported: %v)", id, ids)
	}
	return p, nil
}
