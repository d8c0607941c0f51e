package handler

import (
	"strings"

	"github.com/mssola/user_agent"
)

// DeviceInfo is a readable summary of a session's user agent
type DeviceInfo struct {
	Browser        string `json:"browser"`
	BrowserVersion string `json:"browser_version"`
	OS             string `json:"os"`
	DeviceType     string `json:"device_type"`
}

func parseDevice(userAgent *string) *DeviceInfo {
	if userAgent == nil || *userAgent == "" {
		return nil
	}

	ua := user_agent.New(*userAgent)
	browser, version := ua.Browser()

	deviceType := "desktop"
	lowered := strings.ToLower(*userAgent)
	switch {
	case ua.Bot():
		deviceType = "bot"
	case strings.Contains(lowered, "ipad") || strings.Contains(lowered, "tablet"):
		deviceType = "tablet"
	case ua.Mobile():
		deviceType = "mobile"
	}

	return &DeviceInfo{
		Browser:        browser,
		BrowserVersion: version,
		OS:             ua.OS(),
		DeviceType:     deviceType,
	}
}
