// Package preset holds the fixed catalogs a session is configured from:
// the supported trigger keys and the capture-rate presets.
package preset

import (
	"fmt"
	"sort"

	"github.com/nullpane/reflexd/internal/domain"
)

// keyEntry carries the per-backend encodings for one supported key.
type keyEntry struct {
	linux uint16 // input-event-codes.h KEY_* value
	scan  uint16 // PC/AT set-1 scan code (SendInput KEYEVENTF_SCANCODE)
	robot string // robotgo key token
}

// keyCatalog is the full capability set. A kernel-tier virtual device
// declares every key here, not just the configured trigger key; a device
// advertising a single key would be a fingerprint of its own.
var keyCatalog = map[domain.Key]keyEntry{
	"space": {linux: 57, scan: 0x39, robot: "space"},
	"enter": {linux: 28, scan: 0x1C, robot: "enter"},
	"esc":   {linux: 1, scan: 0x01, robot: "esc"},
	"a":     {linux: 30, scan: 0x1E, robot: "a"},
	"b":     {linux: 48, scan: 0x30, robot: "b"},
	"c":     {linux: 46, scan: 0x2E, robot: "c"},
	"d":     {linux: 32, scan: 0x20, robot: "d"},
	"e":     {linux: 18, scan: 0x12, robot: "e"},
	"f":     {linux: 33, scan: 0x21, robot: "f"},
	"g":     {linux: 34, scan: 0x22, robot: "g"},
	"shift": {linux: 42, scan: 0x2A, robot: "shift"},
	"ctrl":  {linux: 29, scan: 0x1D, robot: "ctrl"},
	"alt":   {linux: 56, scan: 0x38, robot: "alt"},
	"1":     {linux: 2, scan: 0x02, robot: "1"},
	"2":     {linux: 3, scan: 0x03, robot: "2"},
	"3":     {linux: 4, scan: 0x04, robot: "3"},
	"4":     {linux: 5, scan: 0x05, robot: "4"},
	"5":     {linux: 6, scan: 0x06, robot: "5"},
}

// Keys returns the supported key names, sorted.
func Keys() []domain.Key {
	out := make([]domain.Key, 0, len(keyCatalog))
	for k := range keyCatalog {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ValidKey reports whether k is in the capability set.
func ValidKey(k domain.Key) bool {
	_, ok := keyCatalog[k]
	return ok
}

// LinuxCode returns the evdev key code for k.
func LinuxCode(k domain.Key) (uint16, bool) {
	e, ok := keyCatalog[k]
	return e.linux, ok
}

// LinuxCodes returns every evdev code in the capability set, sorted.
func LinuxCodes() []uint16 {
	out := make([]uint16, 0, len(keyCatalog))
	for _, e := range keyCatalog {
		out = append(out, e.linux)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ScanCode returns the SendInput scan code for k.
func ScanCode(k domain.Key) (uint16, bool) {
	e, ok := keyCatalog[k]
	return e.scan, ok
}

// RobotName returns the robotgo token for k.
func RobotName(k domain.Key) (string, bool) {
	e, ok := keyCatalog[k]
	return e.robot, ok
}

// ParseKey validates a user-supplied key name.
func ParseKey(name string) (domain.Key, error) {
	k := domain.Key(name)
	if !ValidKey(k) {
		return "", fmt.Errorf("unsupported key %q (supported: %v)", name, Keys())
	}
	return k, nil
}
