package domain

import "context"

// KeyInjector delivers key-down/key-up events through whichever backend the
// capability probe selected. One key travels at a time; implementations do
// not queue or batch.
type KeyInjector interface {
	// Press emits a key-down for key.
	Press(key Key) error

	// Release emits the matching key-up.
	Release(key Key) error

	// Tier reports which backend class this injector is.
	Tier() Tier

	// Persona returns the spoofed device identity, or nil for tiers that
	// have no device of their own.
	Persona() *Persona

	// Close releases the OS handle, if any. Safe to call twice.
	Close() error
}

// FingerprintStore loads and persists the per-installation fingerprint.
// Implementation: flat JSON file, overwritten in place.
type FingerprintStore interface {
	// LoadOrCreate returns the stored fingerprint, or generates, persists
	// and returns a fresh one when the file is absent or corrupted. It
	// never fails: a broken store still yields a usable fingerprint.
	LoadOrCreate() Fingerprint

	// Save overwrites the stored fingerprint.
	Save(fp Fingerprint) error

	// Path returns the backing file path (for status output and tests).
	Path() string
}

// FrameSource produces square RGB frames from one capture device.
// Not safe for concurrent use: exactly one goroutine may pull frames.
type FrameSource interface {
	// Start acquires the device and validates the first grab. The error
	// is descriptive enough to show a user.
	Start() error

	// Frame blocks until the next frame and returns it center-cropped and
	// resized to the configured edge length.
	Frame() (Frame, error)

	// Close releases the device. Safe to call after a failed Start.
	Close() error
}

// Classifier turns frames into decisions. External collaborator; the loop
// only depends on this contract.
type Classifier interface {
	// Provider reports the active execution backend name.
	Provider() string

	// Predict classifies one frame.
	Predict(ctx context.Context, frame Frame) (Prediction, error)

	// Close releases model resources.
	Close() error
}

// SessionJournal records summaries of completed sessions.
// Implementation: encrypted SQLite database in the state directory.
type SessionJournal interface {
	// Record stores one summary.
	Record(summary SessionSummary) error

	// Recent returns up to limit summaries, newest first.
	Recent(limit int) ([]SessionSummary, error)

	// Close releases the database connection.
	Close() error
}

// KeyProvider abstracts the source of the journal encryption key.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// ProcessProbe answers coarse questions about the host.
// Implementation: uses gopsutil for cross-platform support.
type ProcessProbe interface {
	// FindByName returns PIDs of processes matching the pattern.
	FindByName(pattern string) ([]int, error)

	// LogicalCPUs returns the logical CPU count, minimum 1.
	LogicalCPUs() int
}

// FileSystem answers path questions for configuration validation.
type FileSystem interface {
	// Exists checks if a path exists.
	Exists(path string) bool

	// ExpandHome expands ~ to the user's home directory.
	ExpandHome(path string) string
}
