package ingestion

import (
	"context"
	"time"

	"fluoride-monitor/internal/domain"
	domainDevice "fluoride-monitor/internal/domain/device"
	domainReading "fluoride-monitor/internal/domain/reading"
	"fluoride-monitor/internal/logger"
	"fluoride-monitor/internal/metrics"
	appErrors "fluoride-monitor/pkg/errors"

	"go.uber.org/zap"
)

// ReadingSink receives every committed reading. Implementations must not
// block the caller.
type ReadingSink interface {
	WriteReading(r *domainReading.Reading)
}

// TimestampPrecision is the resolution readings are stored at.
const TimestampPrecision = time.Millisecond

type Option func(*Service)

// WithSink mirrors committed readings to a time-series store.
func WithSink(sink ReadingSink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithClock replaces the clock used for readings without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service implements reading ingestion
type Service struct {
	tx         domain.Transactor
	deviceRepo domainDevice.Repository
	readRepo   domainReading.Repository
	sink       ReadingSink
	now        func() time.Time
}

func NewService(tx domain.Transactor, deviceRepo domainDevice.Repository, readRepo domainReading.Repository, opts ...Option) *Service {
	if tx == nil {
		tx = domain.NoopTransactor{}
	}
	s := &Service{
		tx:         tx,
		deviceRepo: deviceRepo,
		readRepo:   readRepo,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest stores a reading submitted over HTTP.
func (s *Service) Ingest(ctx context.Context, req *IngestRequest) (*IngestResult, error) {
	return s.IngestFrom(ctx, metrics.SourceHTTP, req)
}

// IngestFrom validates req, appends the reading and upserts its device in
// one transaction. Invalid requests write nothing.
func (s *Service) IngestFrom(ctx context.Context, source string, req *IngestRequest) (*IngestResult, error) {
	start := time.Now()

	if err := ValidateIngestRequest(req); err != nil {
		metrics.ObserveIngest(source, metrics.ResultInvalid, time.Since(start))
		return nil, err
	}

	ts := s.now()
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		ts = *req.Timestamp
	}
	// Mongo keeps milliseconds and Postgres microseconds; store what both
	// will hand back.
	ts = ts.UTC().Truncate(TimestampPrecision)

	location := req.Location
	if location == "" {
		location = domainDevice.DefaultLocation
	}

	rd := &domainReading.Reading{
		DeviceID:  req.DeviceID,
		Humidity:  req.Humidity,
		Fluoride:  *req.Fluoride,
		Location:  location,
		Timestamp: ts,
	}

	var dev *domainDevice.Device
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.readRepo.Append(ctx, rd); err != nil {
			return err
		}

		var err error
		dev, err = s.deviceRepo.UpsertTelemetry(ctx, domainDevice.TelemetryUpdate{
			DeviceID: req.DeviceID,
			Location: location,
			Metadata: req.Metadata.toDomain(),
			SeenAt:   ts,
		})
		return err
	})
	if err != nil {
		metrics.ObserveIngest(source, metrics.ResultError, time.Since(start))
		logger.Error("Failed to ingest reading",
			zap.String("device_id", req.DeviceID),
			zap.String("source", source),
			zap.Error(err),
		)
		return nil, appErrors.Unavailable("ingest reading", err)
	}

	if s.sink != nil {
		s.sink.WriteReading(rd)
	}
	metrics.ObserveIngest(source, metrics.ResultSuccess, time.Since(start))

	logger.Debug("Reading stored",
		zap.String("device_id", rd.DeviceID),
		zap.String("reading_id", rd.ID),
		zap.Float64("fluoride", rd.Fluoride),
		zap.Time("timestamp", rd.Timestamp),
		zap.String("source", source),
	)

	return &IngestResult{Device: dev, Reading: rd}, nil
}
