package mongo

import (
	"context"
	"time"

	domainReading "fluoride-monitor/internal/domain/reading"
	appErrors "fluoride-monitor/pkg/errors"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type readingDocument struct {
	ID        string    `bson:"_id"`
	Sequence  int64     `bson:"sequence"`
	DeviceID  string    `bson:"device_id"`
	Humidity  *float64  `bson:"humidity,omitempty"`
	Fluoride  float64   `bson:"fluoride"`
	Location  string    `bson:"location"`
	Timestamp time.Time `bson:"timestamp"`
	CreatedAt time.Time `bson:"created_at"`
}

type counterDocument struct {
	Seq int64 `bson:"seq"`
}

type ReadingRepository struct {
	store *Store
}

func NewReadingRepository(store *Store) *ReadingRepository {
	return &ReadingRepository{store: store}
}

// nextSequence increments the readings counter atomically.
func (r *ReadingRepository) nextSequence(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter counterDocument
	err := r.store.collection(countersCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": readingsCollection}, bson.M{"$inc": bson.M{"seq": int64(1)}}, opts).
		Decode(&counter)
	return counter.Seq, err
}

func (r *ReadingRepository) Append(ctx context.Context, rd *domainReading.Reading) error {
	seq, err := r.nextSequence(ctx)
	if err != nil {
		return appErrors.Unavailable("append reading", err)
	}

	doc := readingDocument{
		ID:        uuid.NewString(),
		Sequence:  seq,
		DeviceID:  rd.DeviceID,
		Humidity:  rd.Humidity,
		Fluoride:  rd.Fluoride,
		Location:  rd.Location,
		Timestamp: rd.Timestamp.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := r.store.collection(readingsCollection).InsertOne(ctx, doc); err != nil {
		return appErrors.Unavailable("append reading", err)
	}

	rd.ID = doc.ID
	rd.Sequence = doc.Sequence
	rd.CreatedAt = doc.CreatedAt
	return nil
}

func (r *ReadingRepository) Recent(ctx context.Context, deviceID string, limit int) ([]*domainReading.Reading, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "sequence", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.store.collection(readingsCollection).Find(ctx, bson.M{"device_id": deviceID}, opts)
	if err != nil {
		return nil, appErrors.Unavailable("recent readings", err)
	}
	return decodeReadings(ctx, cursor, "recent readings")
}

// LatestPerDevice sorts by (device, time, sequence) and keeps the first
// document of each device group.
func (r *ReadingRepository) LatestPerDevice(ctx context.Context, deviceIDs []string) (map[string]*domainReading.Reading, error) {
	latest := make(map[string]*domainReading.Reading, len(deviceIDs))
	if len(deviceIDs) == 0 {
		return latest, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"device_id": bson.M{"$in": deviceIDs}}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "device_id", Value: 1},
			{Key: "timestamp", Value: -1},
			{Key: "sequence", Value: -1},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": "$device_id",
			"doc": bson.M{"$first": "$$ROOT"},
		}}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$doc"}}},
	}

	cursor, err := r.store.collection(readingsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, appErrors.Unavailable("latest readings", err)
	}
	readings, err := decodeReadings(ctx, cursor, "latest readings")
	if err != nil {
		return nil, err
	}

	for _, rd := range readings {
		latest[rd.DeviceID] = rd
	}
	return latest, nil
}

func decodeReadings(ctx context.Context, cursor *mongo.Cursor, op string) ([]*domainReading.Reading, error) {
	defer cursor.Close(ctx)

	var docs []readingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, appErrors.Unavailable(op, err)
	}

	readings := make([]*domainReading.Reading, len(docs))
	for i := range docs {
		readings[i] = toReadingEntity(&docs[i])
	}
	return readings, nil
}

func toReadingEntity(d *readingDocument) *domainReading.Reading {
	return &domainReading.Reading{
		ID:        d.ID,
		Sequence:  d.Sequence,
		DeviceID:  d.DeviceID,
		Humidity:  d.Humidity,
		Fluoride:  d.Fluoride,
		Location:  d.Location,
		Timestamp: d.Timestamp.UTC(),
		CreatedAt: d.CreatedAt,
	}
}
