// Package infra implements infrastructure concerns: input backends,
// capture devices, stores and host probing behind the domain ports.
package infra

import (
	"os"
	"runtime"
)

// DisplayServer identifies the kind of display session a run operates
// under. It decides which injection backends are even worth probing.
type DisplayServer string

const (
	// DisplayX11 is an X11 session.
	DisplayX11 DisplayServer = "x11"
	// DisplayWayland is a Wayland session.
	DisplayWayland DisplayServer = "wayland"
	// DisplayHeadless means no graphical session was found.
	DisplayHeadless DisplayServer = "headless"
	// DisplayNative covers platforms with a single built-in display
	// stack, Windows and macOS.
	DisplayNative DisplayServer = "native"
)

// Environment holds the host facts a session start cares about.
type Environment struct {
	OS          string
	Display     DisplayServer
	HasUinput   bool // /dev/uinput opened for writing
	IsRoot      bool
	LogicalCPUs int
}

// DetectEnvironment inspects the host once at startup.
func DetectEnvironment() *Environment {
	return &Environment{
		OS:          runtime.GOOS,
		Display:     detectDisplay(),
		HasUinput:   uinputAccessible(),
		IsRoot:      os.Geteuid() == 0,
		LogicalCPUs: runtime.NumCPU(),
	}
}

func detectDisplay() DisplayServer {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		return DisplayNative
	}
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		return DisplayWayland
	}
	if os.Getenv("DISPLAY") != "" {
		return DisplayX11
	}
	return DisplayHeadless
}

// uinputAccessible reports whether a virtual kernel device could be
// created right now. The open is the same one the injector performs.
func uinputAccessible() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	f, err := os.OpenFile("/dev/uinput", os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// String returns a human-readable description of the session type.
func (d DisplayServer) String() string {
	switch d {
	case DisplayX11:
		return "X11 session"
	case DisplayWayland:
		return "Wayland session"
	case DisplayHeadless:
		return "no display session"
	case DisplayNative:
		return "native display"
	default:
		return "unknown"
	}
}
