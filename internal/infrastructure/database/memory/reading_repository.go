package memory

import (
	"context"
	"sync"
	"time"

	domainReading "fluoride-monitor/internal/domain/reading"

	"github.com/google/uuid"
)

// ReadingRepository is an append-only, per-device list of readings.
type ReadingRepository struct {
	mu       sync.RWMutex
	byDevice map[string][]*domainReading.Reading
	seq      int64
	now      func() time.Time
}

func NewReadingRepository() *ReadingRepository {
	return &ReadingRepository{
		byDevice: make(map[string][]*domainReading.Reading),
		now:      time.Now,
	}
}

func (r *ReadingRepository) Append(ctx context.Context, rd *domainReading.Reading) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	rd.ID = uuid.NewString()
	rd.Sequence = r.seq
	rd.CreatedAt = r.now().UTC()

	r.byDevice[rd.DeviceID] = append(r.byDevice[rd.DeviceID], copyReading(rd))
	return nil
}

func (r *ReadingRepository) Recent(ctx context.Context, deviceID string, limit int) ([]*domainReading.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	stored := r.byDevice[deviceID]
	readings := make([]*domainReading.Reading, 0, len(stored))
	for _, rd := range stored {
		readings = append(readings, copyReading(rd))
	}
	r.mu.RUnlock()

	domainReading.SortNewestFirst(readings)
	if limit > 0 && len(readings) > limit {
		readings = readings[:limit]
	}
	return readings, nil
}

func (r *ReadingRepository) LatestPerDevice(ctx context.Context, deviceIDs []string) (map[string]*domainReading.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	var pool []*domainReading.Reading
	for _, id := range deviceIDs {
		for _, rd := range r.byDevice[id] {
			pool = append(pool, copyReading(rd))
		}
	}
	r.mu.RUnlock()

	return domainReading.LatestByDevice(pool, deviceIDs), nil
}

// Len reports the total number of stored readings.
func (r *ReadingRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, readings := range r.byDevice {
		n += len(readings)
	}
	return n
}

func copyReading(rd *domainReading.Reading) *domainReading.Reading {
	out := *rd
	if rd.Humidity != nil {
		h := *rd.Humidity
		out.Humidity = &h
	}
	return &out
}
