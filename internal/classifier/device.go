// Package classifier derives device category, bot likelihood and client IP
// from request headers. Everything here is pure.
package classifier

import (
	"regexp"
	"strings"
)

// Device is a coarse device category.
type Device string

const (
	DeviceAndroid Device = "Android"
	DeviceIOS     Device = "iOS"
	DeviceMac     Device = "Mac"
	DeviceWindows Device = "Windows"
	DeviceLinux   Device = "Linux"
	DeviceOther   Device = "Other"
)

type deviceRule struct {
	device Device
	tokens []string
}

// Mobile tokens come first: Android user agents also contain "linux" and
// iPad agents in desktop mode contain "mac os".
var deviceRules = []deviceRule{
	{device: DeviceAndroid, tokens: []string{"android"}},
	{device: DeviceIOS, tokens: []string{"iphone", "ipad", "ipod", "ios"}},
	{device: DeviceMac, tokens: []string{"macintosh", "mac os"}},
	{device: DeviceWindows, tokens: []string{"windows"}},
	{device: DeviceLinux, tokens: []string{"linux"}},
}

var botPattern = regexp.MustCompile(`(?i)bot|crawler|spider|crawling`)

// ClassifyDevice maps a user agent to a device category.
func ClassifyDevice(userAgent string) Device {
	ua := strings.ToLower(userAgent)
	if ua == "" {
		return DeviceOther
	}

	for _, rule := range deviceRules {
		for _, token := range rule.tokens {
			if strings.Contains(ua, token) {
				return rule.device
			}
		}
	}

	return DeviceOther
}

// IsLikelyBot reports whether the user agent looks automated. An empty user
// agent counts as a bot; generic HTTP clients such as curl do not.
func IsLikelyBot(userAgent string) bool {
	if strings.TrimSpace(userAgent) == "" {
		return true
	}

	return botPattern.MatchString(userAgent)
}
