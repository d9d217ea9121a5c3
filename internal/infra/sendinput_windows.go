//go:build windows

package infra

import (
	"fmt"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"

	"github.com/nullpane/reflexd/internal/domain"
	"github.com/nullpane/reflexd/internal/preset"
)

const (
	inputKeyboard = 1

	keyeventfKeyUp    = 0x0002
	keyeventfScanCode = 0x0008
)

var (
	user32        = windows.NewLazySystemDLL("user32.dll")
	procSendInput = user32.NewProc("SendInput")
)

// keyboardInput mirrors the 64-bit INPUT struct carrying a KEYBDINPUT.
// The trailing padding brings it up to the size of the mouse variant,
// which is what SendInput expects for cbSize.
type keyboardInput struct {
	Type      uint32
	_         uint32
	Vk        uint16
	Scan      uint16
	Flags     uint32
	Time      uint32
	_         uint32
	ExtraInfo uintptr
	_         [8]byte
}

// SendInputInjector implements domain.KeyInjector through the Win32
// SendInput API using raw scan codes, the closest a user process gets
// to hardware events without a driver.
type SendInputInjector struct {
	logger *zap.Logger
}

// NewSendInputInjector verifies SendInput is reachable and returns the
// OS-API tier injector.
func NewSendInputInjector(logger *zap.Logger) (domain.KeyInjector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := procSendInput.Find(); err != nil {
		return nil, fmt.Errorf("SendInput unavailable: %w", err)
	}
	return &SendInputInjector{logger: logger}, nil
}

func (s *SendInputInjector) Press(key domain.Key) error {
	scan, ok := preset.ScanCode(key)
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	return s.send(scan, keyeventfScanCode)
}

func (s *SendInputInjector) Release(key domain.Key) error {
	scan, ok := preset.ScanCode(key)
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	return s.send(scan, keyeventfScanCode|keyeventfKeyUp)
}

func (s *SendInputInjector) send(scan uint16, flags uint32) error {
	in := keyboardInput{
		Type:  inputKeyboard,
		Scan:  scan,
		Flags: flags,
	}
	n, _, callErr := procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
	if n != 1 {
		return fmt.Errorf("SendInput rejected the event: %w", callErr)
	}
	return nil
}

func (s *SendInputInjector) Tier() domain.Tier        { return domain.TierOSAPI }
func (s *SendInputInjector) Persona() *domain.Persona { return nil }
func (s *SendInputInjector) Close() error             { return nil }

// Ensure SendInputInjector implements domain.KeyInjector.
var _ domain.KeyInjector = (*SendInputInjector)(nil)
