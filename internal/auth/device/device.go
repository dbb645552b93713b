// Package device turns request client metadata into short human-readable labels
// for audit details.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// DisplayName returns "Browser on OS" (e.g. "Chrome on macOS", "Safari on iPhone").
func DisplayName(userAgentString string) string {
	if strings.TrimSpace(userAgentString) == "" {
		return "Unknown Device"
	}

	ua := useragent.New(userAgentString)
	browser, _ := ua.Browser()
	os := ua.OS()

	if ua.Mobile() {
		if platform := ua.Platform(); platform != "" {
			return strings.TrimSpace(browser + " on " + platform)
		}
	}

	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}

// Describe labels a sign-in origin, e.g. "from Firefox on Linux (203.0.113.7)".
func Describe(userAgentString, clientIP string) string {
	label := "from " + DisplayName(userAgentString)
	if clientIP != "" {
		label += " (" + clientIP + ")"
	}
	return label
}
