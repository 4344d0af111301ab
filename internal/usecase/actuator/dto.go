package actuator

import (
	"time"

	domainDevice "fluoride-monitor/internal/domain/device"
)

type SetRelayRequest struct {
	DeviceID   string `json:"device_id" validate:"required,device_id"`
	RelayState string `json:"relay_state" validate:"required,relay_state"`
}

// RelayResponse is the device summary returned after a relay change.
type RelayResponse struct {
	DeviceID   string    `json:"device_id"`
	RelayState string    `json:"relay_state"`
	LastSeen   time.Time `json:"last_seen"`
	Location   string    `json:"location"`
}

func ToRelayResponse(d *domainDevice.Device) *RelayResponse {
	if d == nil {
		return nil
	}
	return &RelayResponse{
		DeviceID:   d.DeviceID,
		RelayState: string(d.RelayState),
		LastSeen:   d.LastSeen,
		Location:   d.Location,
	}
}
