package device

import (
	"context"
	"time"
)

// Repository is the device registry: one record per device id. Upserts are
// atomic per device id; concurrent writers resolve by last write wins, except
// LastSeen which only moves forward.
type Repository interface {
	// UpsertTelemetry overwrites location and metadata, advances LastSeen and
	// creates the record with RelayOff when absent.
	UpsertTelemetry(ctx context.Context, update TelemetryUpdate) (*Device, error)
	// UpsertRelay sets the relay state and advances LastSeen, creating the
	// record with DefaultLocation when absent.
	UpsertRelay(ctx context.Context, deviceID string, state RelayState, seenAt time.Time) (*Device, error)
	// GetByID returns ErrDeviceNotFound for unknown ids and never creates one.
	GetByID(ctx context.Context, deviceID string) (*Device, error)
	// List returns every device ordered by ascending device id.
	List(ctx context.Context) ([]*Device, error)
	Ping(ctx context.Context) error
}
