package reading

import "context"

// Repository is the append-only reading store.
type Repository interface {
	// Append assigns ID, Sequence and CreatedAt and stores the reading.
	Append(ctx context.Context, r *Reading) error
	// Recent returns at most limit readings for a device, newest first.
	Recent(ctx context.Context, deviceID string, limit int) ([]*Reading, error)
	// LatestPerDevice returns the newest reading of each requested device.
	// Devices without readings are absent from the result.
	LatestPerDevice(ctx context.Context, deviceIDs []string) (map[string]*Reading, error)
}
