package ingestion

import (
	"time"

	domainDevice "fluoride-monitor/internal/domain/device"
	domainReading "fluoride-monitor/internal/domain/reading"
)

// IngestRequest is one telemetry submission, from HTTP or MQTT.
type IngestRequest struct {
	DeviceID  string           `json:"device_id" validate:"required,device_id"`
	Humidity  *float64         `json:"humidity" validate:"omitempty,gte=0,lte=100"`
	Fluoride  *float64         `json:"fluoride" validate:"required,gte=0"`
	Location  string           `json:"location"`
	Metadata  *MetadataRequest `json:"metadata"`
	Timestamp *time.Time       `json:"timestamp"`
}

type MetadataRequest struct {
	Latitude  *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
}

// IngestResult holds the post-upsert device and the stored reading.
type IngestResult struct {
	Device  *domainDevice.Device
	Reading *domainReading.Reading
}

func (m *MetadataRequest) toDomain() domainDevice.Metadata {
	if m == nil {
		return domainDevice.Metadata{}
	}
	return domainDevice.Metadata{
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
	}
}
