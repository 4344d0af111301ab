// Package dto holds the JSON shapes of the REST API, shared by the HTTP
// handlers and the sync client that consumes them.
package dto

import (
	"time"

	"fluoride-monitor/internal/alert"
	domainDevice "fluoride-monitor/internal/domain/device"
	domainReading "fluoride-monitor/internal/domain/reading"
	"fluoride-monitor/internal/usecase/actuator"
	"fluoride-monitor/internal/usecase/aggregation"
)

type ReadingResponse struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	Humidity  *float64  `json:"humidity"`
	Fluoride  float64   `json:"fluoride"`
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
	Sequence  int64     `json:"sequence,omitempty"`
}

type DeviceResponse struct {
	DeviceID   string                `json:"device_id"`
	Location   string                `json:"location"`
	RelayState string                `json:"relay_state"`
	LastSeen   time.Time             `json:"last_seen"`
	Metadata   domainDevice.Metadata `json:"metadata"`
}

// DeviceListItem is a device with its most recent reading, null when the
// device has never reported.
type DeviceListItem struct {
	DeviceResponse
	LastReading *ReadingResponse `json:"last_reading"`
}

type IngestResponse struct {
	Device  *DeviceResponse  `json:"device"`
	Reading *ReadingResponse `json:"reading"`
}

type DeviceListResponse struct {
	Devices []DeviceListItem `json:"devices"`
}

type ReadingListResponse struct {
	DeviceID string             `json:"device_id"`
	Count    int                `json:"count"`
	Readings []*ReadingResponse `json:"readings"`
}

type RelayStateResponse struct {
	DeviceID   string `json:"device_id"`
	RelayState string `json:"relay_state"`
}

type SetRelayBody struct {
	RelayState string `json:"relay_state"`
}

type SetRelayResponse struct {
	Message string                  `json:"message"`
	Device  *actuator.RelayResponse `json:"device"`
}

type AlertListResponse struct {
	Count  int           `json:"count"`
	Alerts []alert.Event `json:"alerts"`
}

func ToReadingResponse(r *domainReading.Reading) *ReadingResponse {
	if r == nil {
		return nil
	}
	return &ReadingResponse{
		ID:        r.ID,
		DeviceID:  r.DeviceID,
		Humidity:  r.Humidity,
		Fluoride:  r.Fluoride,
		Location:  r.Location,
		Timestamp: r.Timestamp,
		Sequence:  r.Sequence,
	}
}

func ToReadingResponses(readings []*domainReading.Reading) []*ReadingResponse {
	out := make([]*ReadingResponse, len(readings))
	for i, r := range readings {
		out[i] = ToReadingResponse(r)
	}
	return out
}

func ToDeviceResponse(d *domainDevice.Device) *DeviceResponse {
	if d == nil {
		return nil
	}
	return &DeviceResponse{
		DeviceID:   d.DeviceID,
		Location:   d.Location,
		RelayState: string(d.RelayState),
		LastSeen:   d.LastSeen,
		Metadata:   d.Metadata,
	}
}

func ToDeviceListResponse(views []aggregation.DeviceView) *DeviceListResponse {
	items := make([]DeviceListItem, len(views))
	for i, v := range views {
		items[i] = DeviceListItem{
			DeviceResponse: *ToDeviceResponse(v.Device),
			LastReading:    ToReadingResponse(v.LastReading),
		}
	}
	return &DeviceListResponse{Devices: items}
}

// ToDomain converts a decoded reading back into the domain type.
func (r *ReadingResponse) ToDomain() *domainReading.Reading {
	if r == nil {
		return nil
	}
	return &domainReading.Reading{
		ID:        r.ID,
		Sequence:  r.Sequence,
		DeviceID:  r.DeviceID,
		Humidity:  r.Humidity,
		Fluoride:  r.Fluoride,
		Location:  r.Location,
		Timestamp: r.Timestamp,
	}
}

// ToDomain converts a decoded list item into a device and its last reading.
func (i *DeviceListItem) ToDomain() (*domainDevice.Device, *domainReading.Reading) {
	state, ok := domainDevice.ParseRelayState(i.RelayState)
	if !ok {
		state = domainDevice.RelayOff
	}
	d := &domainDevice.Device{
		DeviceID:   i.DeviceID,
		Location:   i.Location,
		RelayState: state,
		LastSeen:   i.LastSeen,
		Metadata:   i.Metadata,
	}
	return d, i.LastReading.ToDomain()
}
