package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainDevice "fluoride-monitor/internal/domain/device"
)

// DeviceRepository keeps devices in a map guarded by a single mutex, which
// gives the same per-key atomic upsert the database backends provide.
type DeviceRepository struct {
	mu      sync.RWMutex
	devices map[string]*domainDevice.Device
	now     func() time.Time
}

func NewDeviceRepository() *DeviceRepository {
	return &DeviceRepository{
		devices: make(map[string]*domainDevice.Device),
		now:     time.Now,
	}
}

func (r *DeviceRepository) UpsertTelemetry(ctx context.Context, u domainDevice.TelemetryUpdate) (*domainDevice.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	d, ok := r.devices[u.DeviceID]
	if !ok {
		d = &domainDevice.Device{
			DeviceID:   u.DeviceID,
			RelayState: domainDevice.RelayOff,
			CreatedAt:  now,
		}
		r.devices[u.DeviceID] = d
	}
	d.Location = u.Location
	d.Metadata = copyMetadata(u.Metadata)
	d.LastSeen = domainDevice.LaterOf(d.LastSeen, u.SeenAt)
	d.UpdatedAt = now

	return copyDevice(d), nil
}

func (r *DeviceRepository) UpsertRelay(ctx context.Context, deviceID string, state domainDevice.RelayState, seenAt time.Time) (*domainDevice.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	d, ok := r.devices[deviceID]
	if !ok {
		d = &domainDevice.Device{
			DeviceID:  deviceID,
			Location:  domainDevice.DefaultLocation,
			CreatedAt: now,
		}
		r.devices[deviceID] = d
	}
	d.RelayState = state
	d.LastSeen = domainDevice.LaterOf(d.LastSeen, seenAt)
	d.UpdatedAt = now

	return copyDevice(d), nil
}

func (r *DeviceRepository) GetByID(ctx context.Context, deviceID string) (*domainDevice.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[deviceID]
	if !ok {
		return nil, domainDevice.ErrDeviceNotFound
	}
	return copyDevice(d), nil
}

func (r *DeviceRepository) List(ctx context.Context) ([]*domainDevice.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	devices := make([]*domainDevice.Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, copyDevice(d))
	}
	r.mu.RUnlock()

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].DeviceID < devices[j].DeviceID
	})
	return devices, nil
}

func (r *DeviceRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Count reports how many device records exist.
func (r *DeviceRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

func copyDevice(d *domainDevice.Device) *domainDevice.Device {
	out := *d
	out.Metadata = copyMetadata(d.Metadata)
	return &out
}

func copyMetadata(m domainDevice.Metadata) domainDevice.Metadata {
	var out domainDevice.Metadata
	if m.Latitude != nil {
		lat := *m.Latitude
		out.Latitude = &lat
	}
	if m.Longitude != nil {
		lon := *m.Longitude
		out.Longitude = &lon
	}
	return out
}
