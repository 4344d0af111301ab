package device

import (
	"time"
)

// DefaultLocation is stored when a device reports without a location.
const DefaultLocation = "Unknown"

// Device is the denormalized current-state record of one field unit.
type Device struct {
	DeviceID   string
	Location   string
	RelayState RelayState
	LastSeen   time.Time
	Metadata   Metadata
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RelayState is the binary state of a device's actuator.
type RelayState string

const (
	RelayOn  RelayState = "on"
	RelayOff RelayState = "off"
)

// ParseRelayState accepts exactly "on" or "off".
func ParseRelayState(s string) (RelayState, bool) {
	switch RelayState(s) {
	case RelayOn:
		return RelayOn, true
	case RelayOff:
		return RelayOff, true
	}
	return "", false
}

// Metadata holds optional descriptive attributes. A nil coordinate means the
// device never reported it.
type Metadata struct {
	Latitude  *float64 `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty" bson:"longitude,omitempty"`
}

// TelemetryUpdate is the upsert applied to a device after a reading is stored.
type TelemetryUpdate struct {
	DeviceID string
	Location string
	Metadata Metadata
	SeenAt   time.Time
}

// LaterOf returns the later of two instants; last_seen never moves backward.
func LaterOf(current, candidate time.Time) time.Time {
	if candidate.After(current) {
		return candidate
	}
	return current
}
