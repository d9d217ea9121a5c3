package infra

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DeviceWatcher reports capture device nodes appearing and disappearing
// under /dev. A virtual camera producer creates its node when it starts
// streaming, so watching for arrival tells the user when capture can begin.
type DeviceWatcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	logger    *zap.Logger
	events    chan DeviceEvent
}

// DeviceEvent is one hotplug observation.
type DeviceEvent struct {
	Path    string
	Arrived bool
	At      time.Time
}

// NewDeviceWatcher watches /dev for video device nodes.
func NewDeviceWatcher(logger *zap.Logger) (*DeviceWatcher, error) {
	return newDeviceWatcherAt("/dev", logger)
}

func newDeviceWatcherAt(dir string, logger *zap.Logger) (*DeviceWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create device watcher: %w", err)
	}
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &DeviceWatcher{
		fsWatcher: fsWatcher,
		dir:       dir,
		logger:    logger,
		events:    make(chan DeviceEvent, 16),
	}, nil
}

// Events returns the hotplug event channel.
func (w *DeviceWatcher) Events() <-chan DeviceEvent {
	return w.events
}

// Run forwards capture device events until ctx is done. A slow consumer
// loses events rather than blocking the watch loop.
func (w *DeviceWatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			if !isCaptureDeviceName(filepath.Base(ev.Name)) {
				continue
			}
			var arrived bool
			switch {
			case ev.Op&fsnotify.Create != 0:
				arrived = true
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				arrived = false
			default:
				continue
			}
			select {
			case w.events <- DeviceEvent{Path: ev.Name, Arrived: arrived, At: time.Now()}:
			default:
				w.logger.Debug("device event dropped", zap.String("path", ev.Name))
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("device watcher error", zap.Error(err))
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *DeviceWatcher) Close() error {
	return w.fsWatcher.Close()
}

// isCaptureDeviceName matches the kernel's videoN node naming.
func isCaptureDeviceName(name string) bool {
	rest, ok := strings.CutPrefix(name, "video")
	if !ok || rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
