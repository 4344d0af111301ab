package postgres

import (
	"context"
	"time"

	domainReading "fluoride-monitor/internal/domain/reading"
	"fluoride-monitor/internal/infrastructure/database/postgres/models"
	appErrors "fluoride-monitor/pkg/errors"

	"github.com/google/uuid"
)

// latestPerDeviceQuery is the top-1 group-by over (device_id, timestamp desc)
// with the insertion sequence as tie-break.
const latestPerDeviceQuery = `
        SELECT DISTINCT ON (device_id) *
        FROM sensor_readings
        WHERE device_id IN ?
        ORDER BY device_id ASC, timestamp DESC, sequence DESC
    `

type ReadingRepository struct {
	db *DB
}

func NewReadingRepository(db *DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

func (r *ReadingRepository) Append(ctx context.Context, rd *domainReading.Reading) error {
	model := &models.ReadingModel{
		ReadingID: uuid.NewString(),
		DeviceID:  rd.DeviceID,
		Humidity:  rd.Humidity,
		Fluoride:  rd.Fluoride,
		Location:  rd.Location,
		Timestamp: rd.Timestamp.UTC(),
		CreatedAt: time.Now().UTC(),
	}

	if err := r.db.conn(ctx).Create(model).Error; err != nil {
		return appErrors.Unavailable("append reading", err)
	}

	rd.ID = model.ReadingID
	rd.Sequence = model.Sequence
	rd.CreatedAt = model.CreatedAt
	return nil
}

func (r *ReadingRepository) Recent(ctx context.Context, deviceID string, limit int) ([]*domainReading.Reading, error) {
	var dbModels []models.ReadingModel
	err := r.db.conn(ctx).
		Where("device_id = ?", deviceID).
		Order("timestamp DESC").
		Order("sequence DESC").
		Limit(limit).
		Find(&dbModels).Error
	if err != nil {
		return nil, appErrors.Unavailable("recent readings", err)
	}

	readings := make([]*domainReading.Reading, len(dbModels))
	for i := range dbModels {
		readings[i] = toReadingEntity(&dbModels[i])
	}
	return readings, nil
}

func (r *ReadingRepository) LatestPerDevice(ctx context.Context, deviceIDs []string) (map[string]*domainReading.Reading, error) {
	latest := make(map[string]*domainReading.Reading, len(deviceIDs))
	if len(deviceIDs) == 0 {
		return latest, nil
	}

	var rows []models.ReadingModel
	if err := r.db.conn(ctx).Raw(latestPerDeviceQuery, deviceIDs).Scan(&rows).Error; err != nil {
		return nil, appErrors.Unavailable("latest readings", err)
	}

	for i := range rows {
		latest[rows[i].DeviceID] = toReadingEntity(&rows[i])
	}
	return latest, nil
}

func toReadingEntity(m *models.ReadingModel) *domainReading.Reading {
	return &domainReading.Reading{
		ID:        m.ReadingID,
		Sequence:  m.Sequence,
		DeviceID:  m.DeviceID,
		Humidity:  m.Humidity,
		Fluoride:  m.Fluoride,
		Location:  m.Location,
		Timestamp: m.Timestamp.UTC(),
		CreatedAt: m.CreatedAt,
	}
}
