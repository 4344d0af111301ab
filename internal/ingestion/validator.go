package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"

	usecase "fluoride-monitor/internal/usecase/ingestion"
	"fluoride-monitor/pkg/utils"
)

var (
	ErrMalformedPayload = errors.New("malformed telemetry payload")
	ErrTopicMismatch    = errors.New("payload device_id does not match topic")
	ErrUnknownTopic     = errors.New("topic is not a telemetry topic")
)

// ParseTelemetry decodes a telemetry payload. The device id comes from the
// topic when the payload omits it; a payload naming a different device is
// rejected. Field validation happens later in the ingestion service.
func ParseTelemetry(prefix, topic string, payload []byte) (*usecase.IngestRequest, error) {
	topicDevice, ok := DeviceIDFromTopic(prefix, topic)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	var req usecase.IngestRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	payloadDevice := utils.NormalizeID(req.DeviceID)
	switch {
	case payloadDevice == "":
		req.DeviceID = topicDevice
	case payloadDevice != topicDevice:
		return nil, fmt.Errorf("%w: %q on %s", ErrTopicMismatch, payloadDevice, topic)
	}

	return &req, nil
}
