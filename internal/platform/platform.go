package platform

import (
	"os"
	"runtime"
	"strings"
)

// Platform represents the detected platform
type Platform string

const (
	PlatformMacOS   Platform = "macos"
	PlatformLinux   Platform = "linux"
	PlatformWSL     Platform = "wsl"
	PlatformWindows Platform = "windows"
	PlatformUnknown Platform = "unknown"
)

// cached detection result
var detectedPlatform Platform
var detectionDone bool

// Detect returns the current platform, caching the result
func Detect() Platform {
	if detectionDone {
		return detectedPlatform
	}

	detectedPlatform = detectPlatform()
	detectionDone = true
	return detectedPlatform
}

func detectPlatform() Platform {
	switch runtime.GOOS {
	case "darwin":
		return PlatformMacOS
	case "windows":
		return PlatformWindows
	case "linux":
		if isWSL() {
			return PlatformWSL
		}
		return PlatformLinux
	default:
		return PlatformUnknown
	}
}

// isWSL checks for WSL signatures on a linux kernel
func isWSL() bool {
	if os.Getenv("WSL_DISTRO_NAME") != "" {
		return true
	}
	procVersion, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	v := string(procVersion)
	return strings.Contains(v, "microsoft") || strings.Contains(v, "Microsoft")
}

// HasLoginShell reports whether the platform has a login-shell concept that
// agent commands should be wrapped through so user PATH customizations apply.
func HasLoginShell() bool {
	switch Detect() {
	case PlatformWindows, PlatformUnknown:
		return false
	default:
		return true
	}
}

// LoginShell returns the user's interactive shell, falling back to /bin/sh
// when $SHELL is unset. Returns "" on platforms without login shells.
func LoginShell() string {
	if !HasLoginShell() {
		return ""
	}
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// SupportsUnixSockets returns true if the platform reliably supports Unix
// domain sockets for the daemon IPC channel.
func SupportsUnixSockets() bool {
	switch Detect() {
	case PlatformMacOS, PlatformLinux, PlatformWSL:
		return true
	default:
		return false
	}
}

// String returns a human-readable platform name
func (p Platform) String() string {
	switch p {
	case PlatformMacOS:
		return "macOS"
	case PlatformLinux:
		return "Linux"
	case PlatformWSL:
		return "WSL"
	case PlatformWindows:
		return "Windows"
	default:
		return "Unknown"
	}
}
