package ingestion

import (
	"strings"
)

const (
	telemetrySuffix = "telemetry"
	relaySuffix     = "relay"
)

// RelayCommand is the retained payload published to a device's relay topic.
type RelayCommand struct {
	DeviceID   string `json:"device_id"`
	RelayState string `json:"relay_state"`
	IssuedAt   string `json:"issued_at"`
}

// TelemetryTopic is the wildcard subscription covering every device,
// e.g. "devices/+/telemetry".
func TelemetryTopic(prefix string) string {
	return joinTopic(prefix, "+", telemetrySuffix)
}

// RelayTopic is the command topic of one device, e.g. "devices/esp32-01/relay".
func RelayTopic(prefix, deviceID string) string {
	return joinTopic(prefix, deviceID, relaySuffix)
}

// DeviceIDFromTopic extracts the device segment of a telemetry topic.
func DeviceIDFromTopic(prefix, topic string) (string, bool) {
	rest := topic
	if prefix != "" {
		if !strings.HasPrefix(topic, prefix+"/") {
			return "", false
		}
		rest = strings.TrimPrefix(topic, prefix+"/")
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != telemetrySuffix || parts[0] == "" {
		return "", false
	}
	return parts[0], true
}

func joinTopic(prefix, deviceID, suffix string) string {
	if prefix == "" {
		return deviceID + "/" + suffix
	}
	return prefix + "/" + deviceID + "/" + suffix
}
