package influxdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fluoride-monitor/internal/config"
	"fluoride-monitor/internal/domain/reading"
	"fluoride-monitor/internal/logger"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"
)

const (
	measurement = "sensor_reading"

	defaultConnectTimeout = 10 * time.Second
	millisecondsPerSecond = 1000
)

var (
	ErrDisabled         = errors.New("influxdb is disabled")
	ErrConnectionFailed = errors.New("influxdb connection failed")
)

// Sink mirrors stored readings into an InfluxDB bucket. Writes are batched
// and non-blocking; failures are logged and never reach the ingest caller.
type Sink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	mu     sync.RWMutex
	closed bool
}

func Connect(cfg config.InfluxConfig) (*Sink, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	}

	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	s := &Sink{client: client, writeAPI: writeAPI}
	go s.handleWriteErrors(writeAPI.Errors())

	logger.Info("InfluxDB sink connected",
		zap.String("url", cfg.URL),
		zap.String("bucket", cfg.Bucket),
	)
	return s, nil
}

func (s *Sink) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		logger.Warn("influxdb write failed", zap.Error(err))
	}
}

// WriteReading queues one reading for the next batch.
func (s *Sink) WriteReading(r *reading.Reading) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	s.writeAPI.WritePoint(ReadingPoint(r))
}

// ReadingPoint converts a reading into a line-protocol point tagged by
// device and location.
func ReadingPoint(r *reading.Reading) *write.Point {
	fields := map[string]interface{}{
		"fluoride": r.Fluoride,
		"sequence": r.Sequence,
	}
	if r.Humidity != nil {
		fields["humidity"] = *r.Humidity
	}

	return write.NewPoint(
		measurement,
		map[string]string{
			"device_id": r.DeviceID,
			"location":  r.Location,
		},
		fields,
		r.Timestamp,
	)
}

// Close flushes pending points and closes the client.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.writeAPI.Flush()
	s.client.Close()
	return nil
}
