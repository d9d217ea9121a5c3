//go:build !linux

package infra

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/nullpane/reflexd/internal/domain"
)

// unsupportedFrameSource reports at Start time that no capture backend
// exists for this platform, so the session aborts with a readable message
// instead of a build failure.
type unsupportedFrameSource struct{}

func (unsupportedFrameSource) Start() error {
	return fmt.Errorf("screen capture needs a v4l2 loopback device, which %s does not provide", runtime.GOOS)
}

func (unsupportedFrameSource) Frame() (domain.Frame, error) {
	return domain.Frame{}, fmt.Errorf("capture is not supported on %s", runtime.GOOS)
}

func (unsupportedFrameSource) Close() error { return nil }

// NewFrameSource returns the platform capture backend. Only Linux has one.
func NewFrameSource(deviceID, edge int, logger *zap.Logger) domain.FrameSource {
	return unsupportedFrameSource{}
}

// ListCaptureDevices reports no devices on platforms without v4l2.
func ListCaptureDevices() []domain.MonitorInfo {
	return nil
}
