package actuator

import (
	"context"
	"errors"
	"time"

	domainDevice "fluoride-monitor/internal/domain/device"
	"fluoride-monitor/internal/logger"
	"fluoride-monitor/internal/metrics"
	"fluoride-monitor/internal/validator"
	appErrors "fluoride-monitor/pkg/errors"
	"fluoride-monitor/pkg/utils"

	"go.uber.org/zap"
)

var relayMessages = validator.Messages{
	"device_id":           "device_id is required",
	"device_id:device_id": validator.DeviceIDCharsMessage,
	"relay_state":         "relay_state must be either 'on' or 'off'",
}

// FieldMessage returns the message reported for a relay request field.
func FieldMessage(field string) string {
	return relayMessages.For(field)
}

// CommandPublisher forwards a relay change to the physical device.
type CommandPublisher interface {
	PublishRelay(ctx context.Context, deviceID string, state domainDevice.RelayState) error
}

type Option func(*Service)

func WithPublisher(p CommandPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service reads and writes device relay state.
type Service struct {
	deviceRepo domainDevice.Repository
	publisher  CommandPublisher
	now        func() time.Time
}

func NewService(deviceRepo domainDevice.Repository, opts ...Option) *Service {
	s := &Service{
		deviceRepo: deviceRepo,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetRelayState reports "off" for devices that have never been seen. It
// never creates a record.
func (s *Service) GetRelayState(ctx context.Context, deviceID string) (domainDevice.RelayState, error) {
	deviceID, err := validator.DeviceID(deviceID)
	if err != nil {
		return "", err
	}

	d, err := s.deviceRepo.GetByID(ctx, deviceID)
	if errors.Is(err, domainDevice.ErrDeviceNotFound) {
		return domainDevice.RelayOff, nil
	}
	if err != nil {
		return "", appErrors.Unavailable("get relay state", err)
	}
	return d.RelayState, nil
}

// SetRelayState stores the desired state, creating the device when absent,
// then forwards the command when a publisher is configured. A failed
// publish is logged; the stored state stands.
func (s *Service) SetRelayState(ctx context.Context, req *SetRelayRequest) (*domainDevice.Device, error) {
	req.DeviceID = utils.NormalizeID(req.DeviceID)
	if err := validator.Validate(req, relayMessages); err != nil {
		metrics.IncRelayCommand("invalid", metrics.ResultInvalid)
		return nil, err
	}
	state, _ := domainDevice.ParseRelayState(req.RelayState)

	d, err := s.deviceRepo.UpsertRelay(ctx, req.DeviceID, state, s.now().UTC())
	if err != nil {
		metrics.IncRelayCommand(string(state), metrics.ResultError)
		return nil, appErrors.Unavailable("set relay state", err)
	}
	metrics.IncRelayCommand(string(state), metrics.ResultSuccess)

	logger.Info("Relay state updated",
		zap.String("device_id", d.DeviceID),
		zap.String("relay_state", string(d.RelayState)),
		zap.String("event", "relay_updated"),
	)

	if s.publisher != nil {
		if err := s.publisher.PublishRelay(ctx, d.DeviceID, state); err != nil {
			logger.Warn("Failed to forward relay command",
				zap.String("device_id", d.DeviceID),
				zap.Error(err),
			)
		}
	}

	return d, nil
}
