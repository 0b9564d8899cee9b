package utils

import (
	"strings"

	ua "github.com/mssola/user_agent"
)

// DeviceInfo is the client description attached to request logs
type DeviceInfo struct {
	DeviceType string `json:"device_type"` // mobile, tablet, desktop, gateway
	OS         string `json:"os"`
	Browser    string `json:"browser"`
	IsBot      bool   `json:"is_bot"`
}

// ParseUserAgent extracts device information from a User-Agent header.
// Requests without one, typically SMS and USSD gateway callbacks, are reported as "gateway".
func ParseUserAgent(userAgent string) DeviceInfo {
	if strings.TrimSpace(userAgent) == "" {
		return DeviceInfo{DeviceType: "gateway", OS: "Unknown", Browser: "Unknown"}
	}

	parser := ua.New(userAgent)
	info := DeviceInfo{
		DeviceType: "desktop",
		OS:         "Unknown",
		Browser:    "Unknown",
		IsBot:      parser.Bot(),
	}

	if parser.Mobile() {
		info.DeviceType = "mobile"
		if isTablet(userAgent) {
			info.DeviceType = "tablet"
		}
	}

	if os := parser.OSInfo(); os.Name != "" {
		info.OS = strings.TrimSpace(os.Name + " " + os.Version)
	}
	if name, version := parser.Browser(); name != "" {
		info.Browser = strings.TrimSpace(name + " " + version)
	}
	return info
}

func isTablet(userAgent string) bool {
	lower := strings.ToLower(userAgent)
	for _, marker := range []string{"ipad", "tablet", "kindle", "nexus 7", "nexus 9", "sm-t"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
