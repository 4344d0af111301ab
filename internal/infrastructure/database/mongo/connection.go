package mongo

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"fluoride-monitor/internal/config"
	"fluoride-monitor/internal/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const (
	devicesCollection  = "devices"
	readingsCollection = "readings"
	countersCollection = "counters"
)

// Store bundles the client and database handle shared by the repositories.
type Store struct {
	client       *mongo.Client
	db           *mongo.Database
	transactions bool
}

// Connect dials MongoDB with a timeout and pings the primary.
func Connect(cfg config.MongoConfig) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("MONGODB_URI not set")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.URI)
	if strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		clientOptions.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})
	}
	clientOptions.SetServerSelectionTimeout(30 * time.Second)
	clientOptions.SetConnectTimeout(30 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("unable to ping MongoDB: %w", err)
	}

	logger.Info("MongoDB connection established",
		zap.String("database", cfg.Database),
		zap.Bool("transactions", cfg.Transactions),
	)

	return &Store{
		client:       client,
		db:           client.Database(cfg.Database),
		transactions: cfg.Transactions,
	}, nil
}

// EnsureIndexes creates the unique device index and the per-device time
// index used by the recent and latest queries.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(devicesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "device_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create device index: %w", err)
	}

	_, err = s.db.Collection(readingsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "device_id", Value: 1},
			{Key: "timestamp", Value: -1},
			{Key: "sequence", Value: -1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create reading index: %w", err)
	}
	return nil
}

// WithinTransaction runs fn inside a session transaction when transactions
// are enabled. Standalone servers cannot run transactions, so with the flag
// off fn runs directly.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transactions {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(ctx)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) collection(name string) *mongo.Collection {
	return s.db.Collection(name)
}
