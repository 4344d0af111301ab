package aggregation

import (
	"context"

	domainDevice "fluoride-monitor/internal/domain/device"
	domainReading "fluoride-monitor/internal/domain/reading"
	"fluoride-monitor/internal/validator"
	appErrors "fluoride-monitor/pkg/errors"
)

const (
	DefaultRecentLimit = 20
	MaxRecentLimit     = 500
)

// DeviceView is a device joined with its most recent reading, if any.
type DeviceView struct {
	Device      *domainDevice.Device
	LastReading *domainReading.Reading
}

// Service answers latest-state and recent-window queries.
type Service struct {
	deviceRepo domainDevice.Repository
	readRepo   domainReading.Repository
}

func NewService(deviceRepo domainDevice.Repository, readRepo domainReading.Repository) *Service {
	return &Service{
		deviceRepo: deviceRepo,
		readRepo:   readRepo,
	}
}

// NormalizeLimit applies the default window and the upper bound.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		return MaxRecentLimit
	}
	return limit
}

// LatestPerDevice returns the newest reading of each requested device.
func (s *Service) LatestPerDevice(ctx context.Context, deviceIDs []string) (map[string]*domainReading.Reading, error) {
	latest, err := s.readRepo.LatestPerDevice(ctx, deviceIDs)
	if err != nil {
		return nil, appErrors.Unavailable("latest per device", err)
	}
	return latest, nil
}

// RecentReadings returns up to limit readings of one device, newest first.
// Unknown devices yield an empty list.
func (s *Service) RecentReadings(ctx context.Context, deviceID string, limit int) ([]*domainReading.Reading, error) {
	deviceID, err := validator.DeviceID(deviceID)
	if err != nil {
		return nil, err
	}

	readings, err := s.readRepo.Recent(ctx, deviceID, NormalizeLimit(limit))
	if err != nil {
		return nil, appErrors.Unavailable("recent readings", err)
	}
	if readings == nil {
		readings = []*domainReading.Reading{}
	}
	return readings, nil
}

// ListDevices returns every device in ascending id order with its latest
// reading attached.
func (s *Service) ListDevices(ctx context.Context) ([]DeviceView, error) {
	devices, err := s.deviceRepo.List(ctx)
	if err != nil {
		return nil, appErrors.Unavailable("list devices", err)
	}

	ids := make([]string, len(devices))
	for i, d := range devices {
		ids[i] = d.DeviceID
	}

	latest, err := s.LatestPerDevice(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]DeviceView, len(devices))
	for i, d := range devices {
		views[i] = DeviceView{Device: d, LastReading: latest[d.DeviceID]}
	}
	return views, nil
}
