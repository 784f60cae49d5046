// Package clientinfo extracts advisory client metadata (device fingerprint,
// client address) from request metadata. Everything here is best-effort and
// logging/anomaly-surfacing only; none of it is an authorization input.
package clientinfo

import (
	"net"
	"net/http"
	"strings"

	"viatransfer/auth-service/internal/session/domain"
)

const unknown = "unknown"

// Metadata is the transport-independent slice of a request the session
// subsystem cares about.
type Metadata struct {
	UserAgent     string
	RemoteAddr    string // transport address, host[:port]
	XForwardedFor string // raw header value, possibly comma-separated
}

// FromRequest captures metadata from an HTTP request.
func FromRequest(r *http.Request) Metadata {
	return Metadata{
		UserAgent:     r.UserAgent(),
		RemoteAddr:    r.RemoteAddr,
		XForwardedFor: r.Header.Get("X-Forwarded-For"),
	}
}

// ClientAddress returns the client IP, preferring the first hop of
// X-Forwarded-For so the value stays stable behind a reverse proxy. Falls
// back to the transport address, then "unknown". Advisory only.
func (m Metadata) ClientAddress() string {
	if m.XForwardedFor != "" {
		first := m.XForwardedFor
		if i := strings.Index(first, ","); i >= 0 {
			first = first[:i]
		}
		if addr := strings.TrimSpace(first); addr != "" {
			return addr
		}
	}
	if m.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(m.RemoteAddr); err == nil {
			return host
		}
		return m.RemoteAddr
	}
	return unknown
}

// DeviceInfo parses the user agent into coarse platform/browser/OS fields.
// Parse failures degrade to "unknown"; this never fails.
func (m Metadata) DeviceInfo() domain.DeviceInfo {
	ua := strings.TrimSpace(m.UserAgent)
	info := domain.DeviceInfo{
		UserAgent: ua,
		Platform:  unknown,
		Browser:   unknown,
		OS:        unknown,
	}
	if ua == "" {
		return info
	}
	lower := strings.ToLower(ua)

	switch {
	case strings.Contains(lower, "windows nt"):
		info.OS = "Windows"
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"):
		info.OS = "iOS"
	case strings.Contains(lower, "android"):
		info.OS = "Android"
	case strings.Contains(lower, "mac os x"), strings.Contains(lower, "macintosh"):
		info.OS = "macOS"
	case strings.Contains(lower, "linux"):
		info.OS = "Linux"
	}

	switch {
	case strings.Contains(lower, "edg/"), strings.Contains(lower, "edge/"):
		info.Browser = "Edge"
	case strings.Contains(lower, "opr/"), strings.Contains(lower, "opera"):
		info.Browser = "Opera"
	case strings.Contains(lower, "chrome/"), strings.Contains(lower, "crios/"):
		info.Browser = "Chrome"
	case strings.Contains(lower, "firefox/"), strings.Contains(lower, "fxios/"):
		info.Browser = "Firefox"
	case strings.Contains(lower, "safari/"):
		info.Browser = "Safari"
	case strings.HasPrefix(lower, "curl/"):
		info.Browser = "curl"
	}

	switch {
	case strings.Contains(lower, "mobile"), strings.Contains(lower, "iphone"),
		strings.Contains(lower, "android"):
		info.Platform = "mobile"
	case strings.Contains(lower, "ipad"), strings.Contains(lower, "tablet"):
		info.Platform = "tablet"
	case info.OS != unknown:
		info.Platform = "desktop"
	}

	return info
}
