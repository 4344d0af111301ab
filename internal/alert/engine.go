package alert

import (
	"fmt"
	"strconv"
	"time"

	"fluoride-monitor/internal/domain/device"
	"fluoride-monitor/internal/domain/reading"
)

type Kind string

const (
	KindFluoride     Kind = "fluoride"
	KindHumidityHigh Kind = "humidity-high"
	KindHumidityLow  Kind = "humidity-low"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
)

// Event is a derived alert. It is recomputed from the latest readings and
// never stored.
type Event struct {
	DeviceID  string    `json:"device_id"`
	Kind      Kind      `json:"kind"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Location  string    `json:"location"`
}

// Key is the display identity of an event.
func (e Event) Key() string {
	return e.DeviceID + "|" + e.Timestamp.UTC().Format(time.RFC3339Nano) + "|" + e.Message
}

// Thresholds are strict bounds: a value equal to a bound raises nothing.
type Thresholds struct {
	FluorideMax float64
	HumidityMax float64
	HumidityMin float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		FluorideMax: 1.5,
		HumidityMax: 70,
		HumidityMin: 30,
	}
}

// Engine evaluates threshold rules. It holds no state between calls.
type Engine struct {
	thresholds Thresholds
}

func NewEngine(t Thresholds) *Engine {
	return &Engine{thresholds: t}
}

func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Evaluate returns the alerts raised by one reading: at most one fluoride
// event and at most one humidity event.
func (e *Engine) Evaluate(d *device.Device, r *reading.Reading) []Event {
	if r == nil {
		return nil
	}

	deviceID := r.DeviceID
	location := r.Location
	if d != nil {
		deviceID = d.DeviceID
		if d.Location != "" {
			location = d.Location
		}
	}

	newEvent := func(kind Kind, level Level, value float64, msg string) Event {
		return Event{
			DeviceID:  deviceID,
			Kind:      kind,
			Level:     level,
			Message:   msg,
			Value:     value,
			Timestamp: r.Timestamp,
			Location:  location,
		}
	}

	var events []Event
	if r.Fluoride > e.thresholds.FluorideMax {
		events = append(events, newEvent(KindFluoride, LevelWarning, r.Fluoride,
			fmt.Sprintf("Fluoride %.2f mg/L exceeds safe limit of %.2f mg/L", r.Fluoride, e.thresholds.FluorideMax)))
	}

	if r.Humidity != nil {
		h := *r.Humidity
		switch {
		case h > e.thresholds.HumidityMax:
			events = append(events, newEvent(KindHumidityHigh, LevelInfo, h,
				fmt.Sprintf("Humidity %.1f%% above %s%%", h, formatBound(e.thresholds.HumidityMax))))
		case h < e.thresholds.HumidityMin:
			events = append(events, newEvent(KindHumidityLow, LevelInfo, h,
				fmt.Sprintf("Humidity %.1f%% below %s%%", h, formatBound(e.thresholds.HumidityMin))))
		}
	}

	return events
}

// EvaluateFleet evaluates every device against its entry in index, in device
// list order. Devices missing from index raise nothing.
func (e *Engine) EvaluateFleet(devices []*device.Device, index map[string]*reading.Reading) []Event {
	events := []Event{}
	for _, d := range devices {
		if d == nil {
			continue
		}
		events = append(events, e.Evaluate(d, index[d.DeviceID])...)
	}
	return events
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
