package syncloop

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"fluoride-monitor/internal/delivery/http/dto"
	domainDevice "fluoride-monitor/internal/domain/device"
	domainReading "fluoride-monitor/internal/domain/reading"
	"fluoride-monitor/internal/usecase/aggregation"
	appErrors "fluoride-monitor/pkg/errors"

	"github.com/go-resty/resty/v2"
)

// Source is the read/command surface the loop polls.
type Source interface {
	ListDevices(ctx context.Context) ([]aggregation.DeviceView, error)
	RecentReadings(ctx context.Context, deviceID string, limit int) ([]*domainReading.Reading, error)
	SetRelay(ctx context.Context, deviceID string, state domainDevice.RelayState) (*domainDevice.Device, error)
}

// ErrUpstream is returned when the API answers with a non-2xx status.
var ErrUpstream = errors.New("upstream request failed")

type apiError struct {
	Message string                 `json:"message"`
	Errors  []appErrors.FieldError `json:"errors"`
}

func (e *apiError) String() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Errors) > 0 {
		return e.Errors[0].Field + ": " + e.Errors[0].Message
	}
	return ""
}

// HTTPSource talks to the monitor's REST API.
type HTTPSource struct {
	client *resty.Client
}

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &HTTPSource{client: client}
}

func (s *HTTPSource) ListDevices(ctx context.Context) ([]aggregation.DeviceView, error) {
	var body dto.DeviceListResponse
	if err := s.do(ctx, http.MethodGet, "/devices", nil, &body, nil); err != nil {
		return nil, err
	}

	views := make([]aggregation.DeviceView, len(body.Devices))
	for i := range body.Devices {
		d, r := body.Devices[i].ToDomain()
		views[i] = aggregation.DeviceView{Device: d, LastReading: r}
	}
	return views, nil
}

func (s *HTTPSource) RecentReadings(ctx context.Context, deviceID string, limit int) ([]*domainReading.Reading, error) {
	var body dto.ReadingListResponse
	err := s.do(ctx, http.MethodGet, "/data/{device_id}", nil, &body, func(r *resty.Request) {
		r.SetPathParam("device_id", deviceID)
		r.SetQueryParam("limit", strconv.Itoa(limit))
	})
	if err != nil {
		return nil, err
	}

	readings := make([]*domainReading.Reading, 0, len(body.Readings))
	for _, rr := range body.Readings {
		if rr != nil {
			readings = append(readings, rr.ToDomain())
		}
	}
	return readings, nil
}

func (s *HTTPSource) SetRelay(ctx context.Context, deviceID string, state domainDevice.RelayState) (*domainDevice.Device, error) {
	var body dto.SetRelayResponse
	err := s.do(ctx, http.MethodPut, "/devices/led/{device_id}", dto.SetRelayBody{RelayState: string(state)}, &body, func(r *resty.Request) {
		r.SetPathParam("device_id", deviceID)
	})
	if err != nil {
		return nil, err
	}
	if body.Device == nil {
		return nil, appErrors.NewAppError(appErrors.CodeUpstream, "relay response without device", ErrUpstream)
	}

	relay, ok := domainDevice.ParseRelayState(body.Device.RelayState)
	if !ok {
		relay = state
	}
	return &domainDevice.Device{
		DeviceID:   body.Device.DeviceID,
		Location:   body.Device.Location,
		RelayState: relay,
		LastSeen:   body.Device.LastSeen,
	}, nil
}

func (s *HTTPSource) do(ctx context.Context, method, path string, payload, result any, configure func(*resty.Request)) error {
	var apiErr apiError
	req := s.client.R().
		SetContext(ctx).
		SetResult(result).
		SetError(&apiErr)
	if payload != nil {
		req.SetBody(payload)
	}
	if configure != nil {
		configure(req)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		msg := fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode())
		if detail := apiErr.String(); detail != "" {
			msg += ": " + detail
		}
		return appErrors.NewAppError(errorCode(resp.StatusCode()), msg, ErrUpstream)
	}
	return nil
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return appErrors.CodeValidation
	case http.StatusNotFound:
		return appErrors.CodeNotFound
	case http.StatusServiceUnavailable:
		return appErrors.CodeStoreUnavailable
	default:
		return appErrors.CodeUpstream
	}
}
