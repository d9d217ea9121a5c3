//go:build linux

package infra

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/nullpane/reflexd/internal/domain"
	"github.com/nullpane/reflexd/internal/preset"
)

const (
	uinputPath = "/dev/uinput"

	// Device version reported to the kernel, 1.1.1.
	deviceVersion = 0x111

	busUSB    = 0x03
	evSyn     = 0x00
	evKey     = 0x01
	synReport = 0x00

	keyDown = 1
	keyUp   = 0
)

// inputID mirrors struct input_id from linux/input.h.
type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// uinputSetup mirrors struct uinput_setup from linux/uinput.h.
type uinputSetup struct {
	ID           inputID
	Name         [80]byte
	FFEffectsMax uint32
}

// UinputInjector implements domain.KeyInjector through a virtual
// kernel input device. Events it emits travel the same path as
// hardware interrupts, with the persona's USB identity attached.
type UinputInjector struct {
	f       *os.File
	persona domain.Persona
	logger  *zap.Logger
}

// NewUinputInjector creates the virtual device. Opening /dev/uinput
// needs the uinput group or root; callers fall back to a lower tier on
// error.
func NewUinputInjector(persona domain.Persona, logger *zap.Logger) (domain.KeyInjector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := os.OpenFile(uinputPath, os.O_WRONLY|unix.O_NONBLOCK, 0660)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", uinputPath, err)
	}

	inj := &UinputInjector{f: f, persona: persona, logger: logger}
	if err := inj.createDevice(); err != nil {
		f.Close()
		return nil, err
	}

	logger.Info("virtual input device created",
		zap.String("name", persona.Name),
		zap.String("usb_id", fmt.Sprintf("%04x:%04x", persona.VendorID, persona.ProductID)))
	return inj, nil
}

func (u *UinputInjector) createDevice() error {
	fd := int(u.f.Fd())

	if err := unix.IoctlSetInt(fd, unix.UI_SET_EVBIT, evKey); err != nil {
		return fmt.Errorf("failed to enable key events: %w", err)
	}
	// Declare the whole capability set. A keyboard advertising a single
	// key would stand out in any device listing.
	for _, code := range preset.LinuxCodes() {
		if err := unix.IoctlSetInt(fd, unix.UI_SET_KEYBIT, int(code)); err != nil {
			return fmt.Errorf("failed to declare key %d: %w", code, err)
		}
	}

	setup := uinputSetup{
		ID: inputID{
			Bustype: busUSB,
			Vendor:  u.persona.VendorID,
			Product: u.persona.ProductID,
			Version: deviceVersion,
		},
	}
	copy(setup.Name[:len(setup.Name)-1], u.persona.Name)

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(unix.UI_DEV_SETUP), uintptr(unsafe.Pointer(&setup))); errno != 0 {
		return fmt.Errorf("failed to set up device: %w", errno)
	}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(unix.UI_DEV_CREATE), 0); errno != 0 {
		return fmt.Errorf("failed to create device: %w", errno)
	}

	// Give udev a moment to register the node before events flow.
	time.Sleep(150 * time.Millisecond)
	return nil
}

func (u *UinputInjector) Press(key domain.Key) error {
	code, ok := preset.LinuxCode(key)
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	return u.writeKey(code, keyDown)
}

func (u *UinputInjector) Release(key domain.Key) error {
	code, ok := preset.LinuxCode(key)
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	return u.writeKey(code, keyUp)
}

func (u *UinputInjector) writeKey(code uint16, value int32) error {
	ev := encodeInputEvent(evKey, code, value)
	if _, err := u.f.Write(ev[:]); err != nil {
		return fmt.Errorf("failed to write key event: %w", err)
	}
	syn := encodeInputEvent(evSyn, synReport, 0)
	if _, err := u.f.Write(syn[:]); err != nil {
		return fmt.Errorf("failed to write syn event: %w", err)
	}
	return nil
}

// encodeInputEvent lays out struct input_event for a 64-bit kernel: a
// 16 byte timeval the kernel stamps itself, then type, code and value.
func encodeInputEvent(evType, code uint16, value int32) [24]byte {
	var buf [24]byte
	binary.LittleEndian.PutUint16(buf[16:18], evType)
	binary.LittleEndian.PutUint16(buf[18:20], code)
	binary.LittleEndian.PutUint32(buf[20:24], uint32(value))
	return buf
}

func (u *UinputInjector) Tier() domain.Tier { return domain.TierKernelDevice }

func (u *UinputInjector) Persona() *domain.Persona {
	p := u.persona
	return &p
}

// Close destroys the virtual device and releases the file handle. Safe
// to call twice.
func (u *UinputInjector) Close() error {
	if u.f == nil {
		return nil
	}
	fd := int(u.f.Fd())
	unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(unix.UI_DEV_DESTROY), 0)
	err := u.f.Close()
	u.f = nil
	return err
}

// Ensure UinputInjector implements domain.KeyInjector.
var _ domain.KeyInjector = (*UinputInjector)(nil)
