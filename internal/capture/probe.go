// Package capture obtains QR payloads from a client device.
//
// Probe reports which capture methods a client can use, a Selector picks one
// of three strategies (live camera stream, still image, typed code) and owns
// it until it is swapped for another, and the strategies themselves feed
// pixels to the decode engine and report results through callbacks.
package capture

import (
	"log/slog"
	"net"
	"net/url"
	"strings"
)

// Device kinds reported by an Environment
const (
	DeviceVideoInput = "videoinput"
	DeviceAudioInput = "audioinput"
)

// DisplayStandalone is the display mode of an installed app
const DisplayStandalone = "standalone"

// Device is one media device enumerated by the client
type Device struct {
	Kind  string `json:"kind"`
	Label string `json:"label,omitempty"`
}

// CaptureReport describes what the client can capture with.
// CanStream is HasCameraDevice && (SecureContext || IsLocalLikeOrigin).
type CaptureReport struct {
	SecureContext     bool `json:"secure_context"`
	HasCameraDevice   bool `json:"has_camera_device"`
	IsLocalLikeOrigin bool `json:"is_local_like_origin"`
	CanStream         bool `json:"can_stream"`
	InstalledApp      bool `json:"installed_app"`
}

// Environment exposes the runtime facts Probe inspects. Any method may fail;
// Probe treats a failure as the capability being absent.
type Environment interface {
	Origin() (*url.URL, error)
	SecureTransport() (bool, error)
	VideoDevices() ([]Device, error)
	DisplayMode() (string, error)
}

// NewCaptureReport derives CanStream from the three observed capabilities
func NewCaptureReport(secure, camera, localLike bool) CaptureReport {
	return CaptureReport{
		SecureContext:     secure,
		HasCameraDevice:   camera,
		IsLocalLikeOrigin: localLike,
		CanStream:         camera && (secure || localLike),
	}
}

// Probe inspects env and reports the viable capture capabilities. It never
// fails: errors and panics from env become false fields.
func Probe(env Environment) CaptureReport {
	secure := safeCheck("secure context", func() (bool, error) {
		return env.SecureTransport()
	})
	localLike := safeCheck("origin", func() (bool, error) {
		origin, err := env.Origin()
		if err != nil || origin == nil {
			return false, err
		}
		return IsLocalLikeHost(origin.Hostname()), nil
	})
	camera := safeCheck("device enumeration", func() (bool, error) {
		devices, err := env.VideoDevices()
		if err != nil {
			return false, err
		}
		for _, d := range devices {
			if d.Kind == DeviceVideoInput {
				return true, nil
			}
		}
		return false, nil
	})
	installed := safeCheck("display mode", func() (bool, error) {
		mode, err := env.DisplayMode()
		return mode == DisplayStandalone, err
	})

	report := NewCaptureReport(secure, camera, localLike)
	report.InstalledApp = installed
	return report
}

func safeCheck(name string, check func() (bool, error)) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("Capability check panicked", "check", name, "panic", rec)
			ok = false
		}
	}()

	ok, err := check()
	if err != nil {
		slog.Debug("Capability check failed", "check", name, "error", err)
		return false
	}
	return ok
}

// IsLocalLikeHost reports whether host is exempt from the secure-context
// requirement: localhost, *.localhost, loopback addresses and 0.0.0.0.
func IsLocalLikeHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(strings.Trim(host, "[]"), "."))
	if host == "" {
		return false
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsUnspecified()
}
