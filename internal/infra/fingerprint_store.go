package infra

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/nullpane/reflexd/internal/domain"
	"github.com/nullpane/reflexd/internal/humanizer"
)

// FileFingerprintStore implements domain.FingerprintStore on a JSON
// file. A missing, unreadable or tampered file is replaced with a fresh
// fingerprint, so loading can never fail.
type FileFingerprintStore struct {
	path   string
	rng    *rand.Rand
	logger *zap.Logger
}

// NewFileFingerprintStore creates a store at path. The rng feeds
// regeneration and may be nil for a time-seeded one.
func NewFileFingerprintStore(path string, rng *rand.Rand, logger *zap.Logger) domain.FingerprintStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileFingerprintStore{path: path, rng: rng, logger: logger}
}

// LoadOrCreate returns the stored fingerprint, or generates and
// persists a new one when the file is absent or fails validation.
func (s *FileFingerprintStore) LoadOrCreate() domain.Fingerprint {
	data, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		var fp domain.Fingerprint
		if jsonErr := json.Unmarshal(data, &fp); jsonErr != nil {
			s.logger.Warn("stored fingerprint unreadable, regenerating", zap.Error(jsonErr))
		} else if valErr := humanizer.Validate(fp); valErr != nil {
			s.logger.Warn("stored fingerprint out of range, regenerating", zap.Error(valErr))
		} else {
			s.logger.Debug("loaded fingerprint", zap.String("id", fp.ID))
			return fp
		}
	case !os.IsNotExist(err):
		s.logger.Warn("cannot read fingerprint file, regenerating", zap.Error(err))
	}

	fp := humanizer.GenerateFingerprint(s.rng)
	if err := s.Save(fp); err != nil {
		// A volatile fingerprint is still a working fingerprint.
		s.logger.Warn("cannot persist fingerprint", zap.Error(err))
	} else {
		s.logger.Info("generated new fingerprint", zap.String("id", fp.ID), zap.String("path", s.path))
	}
	return fp
}

// Save overwrites the file in place. A crash mid-write can corrupt it,
// which LoadOrCreate treats the same as a missing file.
func (s *FileFingerprintStore) Save(fp domain.Fingerprint) error {
	data, err := json.Marshal(fp)
	if err != nil {
		return fmt.Errorf("failed to encode fingerprint: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	return os.WriteFile(s.path, data, 0600)
}

// Path returns where the fingerprint lives on disk.
func (s *FileFingerprintStore) Path() string {
	return s.path
}

// Ensure FileFingerprintStore implements domain.FingerprintStore.
var _ domain.FingerprintStore = (*FileFingerprintStore)(nil)
