package postgres

import (
	"context"
	"errors"
	"time"

	domainDevice "fluoride-monitor/internal/domain/device"
	"fluoride-monitor/internal/infrastructure/database/postgres/models"
	appErrors "fluoride-monitor/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lastSeenForward keeps last_seen monotonic under concurrent upserts.
const lastSeenForward = "GREATEST(devices.last_seen, EXCLUDED.last_seen)"

// DeviceRepository implements domain.Device.Repository interface
type DeviceRepository struct {
	db *DB
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(db *DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

func (r *DeviceRepository) UpsertTelemetry(ctx context.Context, u domainDevice.TelemetryUpdate) (*domainDevice.Device, error) {
	now := time.Now().UTC()
	model := &models.DeviceModel{
		DeviceID:   u.DeviceID,
		Location:   u.Location,
		RelayState: string(domainDevice.RelayOff),
		LastSeen:   u.SeenAt.UTC(),
		Latitude:   u.Metadata.Latitude,
		Longitude:  u.Metadata.Longitude,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := r.db.conn(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "device_id"}},
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "location"}, Value: gorm.Expr("EXCLUDED.location")},
				{Column: clause.Column{Name: "latitude"}, Value: gorm.Expr("EXCLUDED.latitude")},
				{Column: clause.Column{Name: "longitude"}, Value: gorm.Expr("EXCLUDED.longitude")},
				{Column: clause.Column{Name: "last_seen"}, Value: gorm.Expr(lastSeenForward)},
				{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("EXCLUDED.updated_at")},
			},
		}).
		Create(model).Error
	if err != nil {
		return nil, appErrors.Unavailable("upsert device telemetry", err)
	}

	return r.GetByID(ctx, u.DeviceID)
}

func (r *DeviceRepository) UpsertRelay(ctx context.Context, deviceID string, state domainDevice.RelayState, seenAt time.Time) (*domainDevice.Device, error) {
	now := time.Now().UTC()
	model := &models.DeviceModel{
		DeviceID:   deviceID,
		Location:   domainDevice.DefaultLocation,
		RelayState: string(state),
		LastSeen:   seenAt.UTC(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := r.db.conn(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "device_id"}},
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "relay_state"}, Value: gorm.Expr("EXCLUDED.relay_state")},
				{Column: clause.Column{Name: "last_seen"}, Value: gorm.Expr(lastSeenForward)},
				{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("EXCLUDED.updated_at")},
			},
		}).
		Create(model).Error
	if err != nil {
		return nil, appErrors.Unavailable("upsert device relay", err)
	}

	return r.GetByID(ctx, deviceID)
}

func (r *DeviceRepository) GetByID(ctx context.Context, deviceID string) (*domainDevice.Device, error) {
	var dbModel models.DeviceModel
	err := r.db.conn(ctx).
		Where("device_id = ?", deviceID).
		First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainDevice.ErrDeviceNotFound
	}
	if err != nil {
		return nil, appErrors.Unavailable("get device", err)
	}

	return toDeviceEntity(&dbModel), nil
}

func (r *DeviceRepository) List(ctx context.Context) ([]*domainDevice.Device, error) {
	var dbModels []models.DeviceModel
	if err := r.db.conn(ctx).Order("device_id ASC").Find(&dbModels).Error; err != nil {
		return nil, appErrors.Unavailable("list devices", err)
	}

	devices := make([]*domainDevice.Device, len(dbModels))
	for i := range dbModels {
		devices[i] = toDeviceEntity(&dbModels[i])
	}
	return devices, nil
}

func (r *DeviceRepository) Ping(ctx context.Context) error {
	return r.db.Health(ctx)
}

func toDeviceEntity(m *models.DeviceModel) *domainDevice.Device {
	return &domainDevice.Device{
		DeviceID:   m.DeviceID,
		Location:   m.Location,
		RelayState: domainDevice.RelayState(m.RelayState),
		LastSeen:   m.LastSeen.UTC(),
		Metadata: domainDevice.Metadata{
			Latitude:  m.Latitude,
			Longitude: m.Longitude,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
