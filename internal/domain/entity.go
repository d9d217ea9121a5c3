// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// Tier identifies the class of injection backend a session resolved to.
// The capability probe picks exactly one tier at startup.
type Tier string

const (
	// TierKernelDevice is a virtual input device registered with the OS
	// input subsystem; injected events are structurally indistinguishable
	// from physical hardware.
	TierKernelDevice Tier = "kernel_device"

	// TierOSAPI synthesizes input through the platform's native
	// input-injection API.
	TierOSAPI Tier = "os_api"

	// TierUserLibrary is the portable fallback via a general
	// input-simulation library.
	TierUserLibrary Tier = "user_library"

	// TierUnavailable means no injection path could be opened; presses are
	// logged and dropped so the control loop keeps running.
	TierUnavailable Tier = "unavailable"
)

// Key names one key from the supported capability set ("space", "enter",
// "a", ...). Backends translate it into their own code space.
type Key string

// DefaultKey is the key pressed when nothing else is configured.
const DefaultKey Key = "space"

// Fingerprint is the per-installation timing identity. Generated once from
// documented bands, persisted as a flat JSON record, and never partially
// repaired: any corruption regenerates the whole thing.
//
// All durations are in seconds; fatigue onset and ramp count hits.
type Fingerprint struct {
	ID string `json:"id"`

	PressMu      float64 `json:"press_mu"`
	PressSigma   float64 `json:"press_sigma"`
	PressExpMean float64 `json:"press_exp_mean"`
	PressMin     float64 `json:"press_min"`
	PressMax     float64 `json:"press_max"`

	PreDelayMu    float64 `json:"pre_delay_mu"`
	PreDelaySigma float64 `json:"pre_delay_sigma"`
	PreDelayMax   float64 `json:"pre_delay_max"`

	CooldownMu      float64 `json:"cooldown_mu"`
	CooldownSigma   float64 `json:"cooldown_sigma"`
	CooldownExpMean float64 `json:"cooldown_exp_mean"`
	CooldownMin     float64 `json:"cooldown_min"`
	CooldownMax     float64 `json:"cooldown_max"`

	HesitationChance float64 `json:"hesitation_chance"`
	HesitationMin    float64 `json:"hesitation_min"`
	HesitationMax    float64 `json:"hesitation_max"`

	AntiRepeat float64 `json:"anti_repeat"`

	FatigueOnset    int     `json:"fatigue_onset"`
	FatigueRamp     int     `json:"fatigue_ramp"`
	FatigueMax      float64 `json:"fatigue_max"`
	FatigueWaveAmp  float64 `json:"fatigue_wave_amp"`
	FatigueWaveFreq float64 `json:"fatigue_wave_freq"`

	MinInterPress float64 `json:"min_inter_press"`
}

// Persona is a spoofed hardware identity for a virtual input device.
// Drawn once per device lifetime; immutable afterwards.
type Persona struct {
	VendorID  uint16
	ProductID uint16
	Name      string
}

// Frame is one square RGB capture produced by a frame source.
type Frame struct {
	Pixels []byte // RGB24, row-major, Edge*Edge*3 bytes
	Edge   int
	At     time.Time
}

// Prediction is a classifier verdict for one frame.
type Prediction struct {
	Class     int
	Label     string
	Probs     map[string]float32
	ShouldAct bool
}

// MonitorInfo labels one selectable capture device.
type MonitorInfo struct {
	Label string
	ID    int
}

// SessionSummary is the record of one completed session, persisted to the
// journal at shutdown.
type SessionSummary struct {
	ID            string
	StartedAt     time.Time
	EndedAt       time.Time
	Frames        int64
	Hits          int64
	AvgFPS        float64
	FingerprintID string
	Tier          Tier
}

// SessionEvent is the typed event stream a running session emits for
// presentation layers. Sealed: the only variants are FpsSample,
// ActionEvent and StallWarning.
type SessionEvent interface {
	sessionEvent()
}

// FpsSample reports capture-classify throughput over the last accounting
// window (roughly one second of idle frames).
type FpsSample struct {
	FPS float64
	At  time.Time
}

// ActionEvent reports one completed humanized press.
type ActionEvent struct {
	Frame    Frame
	Class    int
	Label    string
	Probs    map[string]float32
	Cooldown time.Duration
	At       time.Time
}

// StallWarning is emitted by the watchdog when no frame has completed
// within its window.
type StallWarning struct {
	Since time.Duration
	At    time.Time
}

func (FpsSample) sessionEvent()    {}
func (ActionEvent) sessionEvent()  {}
func (StallWarning) sessionEvent() {}
