package mongo

import (
	"context"
	"errors"
	"time"

	domainDevice "fluoride-monitor/internal/domain/device"
	appErrors "fluoride-monitor/pkg/errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type deviceDocument struct {
	DeviceID   string                `bson:"device_id"`
	Location   string                `bson:"location"`
	RelayState string                `bson:"relay_state"`
	LastSeen   time.Time             `bson:"last_seen"`
	Metadata   domainDevice.Metadata `bson:"metadata"`
	CreatedAt  time.Time             `bson:"created_at"`
	UpdatedAt  time.Time             `bson:"updated_at"`
}

type DeviceRepository struct {
	store *Store
}

func NewDeviceRepository(store *Store) *DeviceRepository {
	return &DeviceRepository{store: store}
}

func (r *DeviceRepository) UpsertTelemetry(ctx context.Context, u domainDevice.TelemetryUpdate) (*domainDevice.Device, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"location":   u.Location,
			"metadata":   u.Metadata,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"relay_state": string(domainDevice.RelayOff),
			"created_at":  now,
		},
		"$max": bson.M{"last_seen": u.SeenAt.UTC()},
	}
	return r.upsert(ctx, "upsert device telemetry", u.DeviceID, update)
}

func (r *DeviceRepository) UpsertRelay(ctx context.Context, deviceID string, state domainDevice.RelayState, seenAt time.Time) (*domainDevice.Device, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"relay_state": string(state),
			"updated_at":  now,
		},
		"$setOnInsert": bson.M{
			"location":   domainDevice.DefaultLocation,
			"metadata":   domainDevice.Metadata{},
			"created_at": now,
		},
		"$max": bson.M{"last_seen": seenAt.UTC()},
	}
	return r.upsert(ctx, "upsert device relay", deviceID, update)
}

func (r *DeviceRepository) upsert(ctx context.Context, op, deviceID string, update bson.M) (*domainDevice.Device, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc deviceDocument
	err := r.store.collection(devicesCollection).
		FindOneAndUpdate(ctx, bson.M{"device_id": deviceID}, update, opts).
		Decode(&doc)
	if err != nil {
		return nil, appErrors.Unavailable(op, err)
	}
	return toDeviceEntity(&doc), nil
}

func (r *DeviceRepository) GetByID(ctx context.Context, deviceID string) (*domainDevice.Device, error) {
	var doc deviceDocument
	err := r.store.collection(devicesCollection).
		FindOne(ctx, bson.M{"device_id": deviceID}).
		Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domainDevice.ErrDeviceNotFound
	}
	if err != nil {
		return nil, appErrors.Unavailable("get device", err)
	}
	return toDeviceEntity(&doc), nil
}

func (r *DeviceRepository) List(ctx context.Context) ([]*domainDevice.Device, error) {
	opts := options.Find().SetSort(bson.D{{Key: "device_id", Value: 1}})
	cursor, err := r.store.collection(devicesCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, appErrors.Unavailable("list devices", err)
	}
	defer cursor.Close(ctx)

	var docs []deviceDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, appErrors.Unavailable("list devices", err)
	}

	devices := make([]*domainDevice.Device, len(docs))
	for i := range docs {
		devices[i] = toDeviceEntity(&docs[i])
	}
	return devices, nil
}

func (r *DeviceRepository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

func toDeviceEntity(d *deviceDocument) *domainDevice.Device {
	return &domainDevice.Device{
		DeviceID:   d.DeviceID,
		Location:   d.Location,
		RelayState: domainDevice.RelayState(d.RelayState),
		LastSeen:   d.LastSeen.UTC(),
		Metadata:   d.Metadata,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}
