package capture

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Client hint headers sent by the scanner page
const (
	HeaderCaptureDevices = "X-Capture-Devices"
	HeaderDisplayMode    = "X-Display-Mode"
)

// RequestEnvironment describes the browser that sent an HTTP request.
// Camera and display facts come from client hint headers because only the
// browser can enumerate its own devices.
type RequestEnvironment struct {
	r *http.Request
}

// NewRequestEnvironment wraps r
func NewRequestEnvironment(r *http.Request) *RequestEnvironment {
	return &RequestEnvironment{r: r}
}

// Origin prefers the Origin header and falls back to the request host
func (e *RequestEnvironment) Origin() (*url.URL, error) {
	if origin := e.r.Header.Get("Origin"); origin != "" && origin != "null" {
		u, err := url.Parse(origin)
		if err != nil {
			return nil, fmt.Errorf("parsing origin header: %w", err)
		}
		return u, nil
	}
	if e.r.Host == "" {
		return nil, fmt.Errorf("request has no host")
	}
	scheme := "http"
	if secure, _ := e.SecureTransport(); secure {
		scheme = "https"
	}
	return &url.URL{Scheme: scheme, Host: e.r.Host}, nil
}

// SecureTransport is true for TLS requests, directly or behind a proxy
func (e *RequestEnvironment) SecureTransport() (bool, error) {
	if e.r.TLS != nil {
		return true, nil
	}
	proto := strings.ToLower(strings.TrimSpace(e.r.Header.Get("X-Forwarded-Proto")))
	return proto == "https", nil
}

// VideoDevices parses the X-Capture-Devices header, a comma list of kind[:label]
func (e *RequestEnvironment) VideoDevices() ([]Device, error) {
	raw := e.r.Header.Get(HeaderCaptureDevices)
	if raw == "" {
		return nil, nil
	}

	var devices []Device
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		kind, label, _ := strings.Cut(entry, ":")
		devices = append(devices, Device{
			Kind:  strings.ToLower(strings.TrimSpace(kind)),
			Label: strings.TrimSpace(label),
		})
	}
	return devices, nil
}

// DisplayMode returns the X-Display-Mode header, lowercased
func (e *RequestEnvironment) DisplayMode() (string, error) {
	return strings.ToLower(strings.TrimSpace(e.r.Header.Get(HeaderDisplayMode))), nil
}

// LocalEnvironment describes the machine the scanner binary runs on. A local
// process has no browser origin, so it counts as secure and local; the only
// cameras it can read are the network cameras it was configured with.
type LocalEnvironment struct {
	CameraURLs []string
}

// Origin is always http://localhost
func (e LocalEnvironment) Origin() (*url.URL, error) {
	return &url.URL{Scheme: "http", Host: "localhost"}, nil
}

// SecureTransport is always true for a local process
func (e LocalEnvironment) SecureTransport() (bool, error) {
	return true, nil
}

// VideoDevices lists the configured camera URLs that parse as http(s) URLs
func (e LocalEnvironment) VideoDevices() ([]Device, error) {
	var devices []Device
	for _, raw := range e.CameraURLs {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing camera url %q: %w", raw, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}
		devices = append(devices, Device{Kind: DeviceVideoInput, Label: u.Host})
	}
	return devices, nil
}

// DisplayMode is standalone; the binary is the installed app
func (e LocalEnvironment) DisplayMode() (string, error) {
	return DisplayStandalone, nil
}
