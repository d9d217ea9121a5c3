package infra

import (
	"go.uber.org/zap"

	"github.com/nullpane/reflexd/internal/domain"
)

// NoopInjector satisfies domain.KeyInjector without touching the
// machine. It is the last fallback when every real backend failed, so
// capture and classification keep working for observation runs.
type NoopInjector struct {
	logger *zap.Logger
}

// NewNoopInjector creates an injector that only logs.
func NewNoopInjector(logger *zap.Logger) domain.KeyInjector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopInjector{logger: logger}
}

func (n *NoopInjector) Press(key domain.Key) error {
	n.logger.Info("suppressed press", zap.String("key", string(key)))
	return nil
}

func (n *NoopInjector) Release(domain.Key) error { return nil }

func (n *NoopInjector) Tier() domain.Tier        { return domain.TierUnavailable }
func (n *NoopInjector) Persona() *domain.Persona { return nil }
func (n *NoopInjector) Close() error             { return nil }

// Ensure NoopInjector implements domain.KeyInjector.
var _ domain.KeyInjector = (*NoopInjector)(nil)
