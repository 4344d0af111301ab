package alerting

import (
	"context"

	"fluoride-monitor/internal/alert"
	domainDevice "fluoride-monitor/internal/domain/device"
	domainReading "fluoride-monitor/internal/domain/reading"
	"fluoride-monitor/internal/metrics"
	"fluoride-monitor/internal/usecase/aggregation"
)

// Service derives the current alert set from the latest reading of every
// device.
type Service struct {
	aggregation *aggregation.Service
	engine      *alert.Engine
}

func NewService(agg *aggregation.Service, engine *alert.Engine) *Service {
	return &Service{aggregation: agg, engine: engine}
}

func (s *Service) ActiveAlerts(ctx context.Context) ([]alert.Event, error) {
	views, err := s.aggregation.ListDevices(ctx)
	if err != nil {
		return nil, err
	}

	devices := make([]*domainDevice.Device, len(views))
	index := make(map[string]*domainReading.Reading, len(views))
	for i, v := range views {
		devices[i] = v.Device
		if v.LastReading != nil {
			index[v.Device.DeviceID] = v.LastReading
		}
	}

	events := s.engine.EvaluateFleet(devices, index)
	countByKind(events)
	return events, nil
}

func countByKind(events []alert.Event) {
	counts := make(map[alert.Kind]int)
	for _, e := range events {
		counts[e.Kind]++
	}
	for kind, n := range counts {
		metrics.AddAlerts(string(kind), n)
	}
}
