// Package syncloop keeps a local view of the fleet up to date by polling the
// monitor API and recomputing alerts after every cycle.
package syncloop

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"fluoride-monitor/internal/alert"
	domainDevice "fluoride-monitor/internal/domain/device"
	domainReading "fluoride-monitor/internal/domain/reading"
	"fluoride-monitor/internal/logger"
	"fluoride-monitor/internal/metrics"
	"fluoride-monitor/internal/usecase/aggregation"

	"go.uber.org/zap"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultWindow   = 50
	DefaultTimeout  = 8 * time.Second
)

var (
	ErrPollInProgress = errors.New("poll already in progress")
	ErrStopped        = errors.New("sync loop stopped")
)

type Config struct {
	Interval time.Duration
	Window   int
	Timeout  time.Duration
}

// Snapshot is the externally observable result of a poll cycle. Readings is
// the cached window of the selected device, newest first.
type Snapshot struct {
	Devices    []*domainDevice.Device
	Readings   []*domainReading.Reading
	Latest     map[string]*domainReading.Reading
	Alerts     []alert.Event
	SelectedID string
	UpdatedAt  time.Time
}

type Option func(*Loop)

func WithClock(c Clock) Option {
	return func(l *Loop) { l.clock = c }
}

type relayOverride struct {
	state domainDevice.RelayState
	seen  time.Time
}

type Loop struct {
	source Source
	engine *alert.Engine
	cfg    Config
	clock  Clock
	log    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	stopped   bool
	polling   bool
	selected  string
	devices   []*domainDevice.Device
	cache     map[string][]*domainReading.Reading
	latest    map[string]*domainReading.Reading
	alerts    []alert.Event
	updatedAt time.Time
	// toggled holds relay changes not yet visible in a fetched device list.
	toggled   map[string]relayOverride

	subMu       sync.Mutex
	subscribers map[int]chan Snapshot
	nextSub     int
}

func New(source Source, engine *alert.Engine, cfg Config, opts ...Option) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if engine == nil {
		engine = alert.NewEngine(alert.DefaultThresholds())
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{
		source:      source,
		engine:      engine,
		cfg:         cfg,
		clock:       realClock{},
		log:         logger.Named("sync"),
		ctx:         ctx,
		cancel:      cancel,
		cache:       make(map[string][]*domainReading.Reading),
		latest:      make(map[string]*domainReading.Reading),
		alerts:      []alert.Event{},
		toggled:     make(map[string]relayOverride),
		subscribers: make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run polls immediately and then on every tick until ctx is done or Stop
// is called.
func (l *Loop) Run(ctx context.Context) {
	ticker := l.clock.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	l.pollAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.ctx.Done():
			return
		case <-ticker.C():
			l.pollAndLog(ctx)
		}
	}
}

func (l *Loop) pollAndLog(ctx context.Context) {
	err := l.Poll(ctx)
	switch {
	case err == nil, errors.Is(err, ErrStopped):
	case errors.Is(err, ErrPollInProgress):
		l.log.Debug("Skipping poll, previous cycle still running")
	default:
		l.log.Warn("Poll failed", zap.Error(err))
	}
}

// Stop cancels in-flight requests. No fetch is issued and no result is
// committed after it returns.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	l.cancel()

	l.subMu.Lock()
	for id, ch := range l.subscribers {
		close(ch)
		delete(l.subscribers, id)
	}
	l.subMu.Unlock()
}

// Poll runs one cycle. Overlapping calls fail with ErrPollInProgress.
func (l *Loop) Poll(ctx context.Context) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrStopped
	}
	if l.polling {
		l.mu.Unlock()
		metrics.IncSyncPoll(metrics.ResultSkipped)
		return ErrPollInProgress
	}
	l.polling = true
	previous := l.selected
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.polling = false
		l.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()
	stopCancel := context.AfterFunc(l.ctx, cancel)
	defer stopCancel()

	views, err := l.source.ListDevices(ctx)
	if err != nil {
		metrics.IncSyncPoll(metrics.ResultError)
		return err
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].Device.DeviceID < views[j].Device.DeviceID
	})

	target := selectDevice(previous, views)

	var window []*domainReading.Reading
	if target != "" {
		if l.isStopped() {
			return ErrStopped
		}
		window, err = l.source.RecentReadings(ctx, target, l.cfg.Window)
		if err != nil {
			metrics.IncSyncPoll(metrics.ResultError)
			return err
		}
	}

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrStopped
	}

	// Select may have run while the fetch was in flight.
	selected := target
	if l.selected != previous {
		selected = selectDevice(l.selected, views)
	}

	devices := make([]*domainDevice.Device, len(views))
	lastReadings := make(map[string]*domainReading.Reading, len(views))
	for i, v := range views {
		devices[i] = l.applyToggleLocked(v.Device)
		lastReadings[v.Device.DeviceID] = v.LastReading
	}
	for id := range l.toggled {
		if _, listed := lastReadings[id]; !listed {
			delete(l.toggled, id)
		}
	}

	cache := make(map[string][]*domainReading.Reading, len(l.cache)+1)
	for id, batch := range l.cache {
		if _, listed := lastReadings[id]; listed {
			cache[id] = batch
		}
	}
	if target != "" {
		cache[target] = window
	}

	latest := make(map[string]*domainReading.Reading, len(devices))
	for _, d := range devices {
		id := d.DeviceID
		batch := cache[id]
		if r := domainReading.Freshest(append(batch[:len(batch):len(batch)], lastReadings[id], l.latest[id])...); r != nil {
			latest[id] = r
		}
	}

	l.devices = devices
	l.cache = cache
	l.latest = latest
	l.selected = selected
	l.alerts = l.engine.EvaluateFleet(devices, latest)
	l.updatedAt = l.clock.Now()
	snap := l.snapshotLocked()
	l.mu.Unlock()

	metrics.IncSyncPoll(metrics.ResultSuccess)
	l.publish(snap)
	return nil
}

// Select changes the focused device. It takes effect when the next poll
// (or the one in flight) commits, if the device is listed.
func (l *Loop) Select(deviceID string) {
	l.mu.Lock()
	l.selected = deviceID
	l.mu.Unlock()
}

// ToggleRelay sends the relay command and updates the local copy of that
// device without waiting for the next poll.
func (l *Loop) ToggleRelay(ctx context.Context, deviceID string, state domainDevice.RelayState) error {
	if l.isStopped() {
		return ErrStopped
	}

	updated, err := l.source.SetRelay(ctx, deviceID, state)
	if err != nil {
		return err
	}

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrStopped
	}

	seen := l.clock.Now()
	if updated != nil && !updated.LastSeen.IsZero() {
		seen = updated.LastSeen
	}

	changed := false
	devices := make([]*domainDevice.Device, len(l.devices))
	for i, d := range l.devices {
		if d.DeviceID == deviceID {
			cp := *d
			cp.RelayState = state
			cp.LastSeen = domainDevice.LaterOf(cp.LastSeen, seen)
			devices[i] = &cp
			changed = true
			continue
		}
		devices[i] = d
	}
	if !changed {
		l.mu.Unlock()
		return nil
	}

	l.toggled[deviceID] = relayOverride{state: state, seen: seen}
	l.devices = devices
	l.alerts = l.engine.EvaluateFleet(devices, l.latest)
	l.updatedAt = l.clock.Now()
	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.publish(snap)
	return nil
}

// Snapshot returns the current state.
func (l *Loop) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Subscribe returns a channel that always holds the most recent snapshot.
// Slow readers miss intermediate snapshots, never the latest one. The
// channel is closed by Stop or by the returned cancel func.
func (l *Loop) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	l.subMu.Lock()
	if l.isStopped() {
		l.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := l.nextSub
	l.nextSub++
	l.subscribers[id] = ch
	l.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.subMu.Lock()
			defer l.subMu.Unlock()
			if c, ok := l.subscribers[id]; ok {
				close(c)
				delete(l.subscribers, id)
			}
		})
	}
}

func (l *Loop) publish(snap Snapshot) {
	l.subMu.Lock()
	defer l.subMu.Unlock()

	for _, ch := range l.subscribers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// applyToggleLocked re-applies a local relay change to a device fetched
// before the server recorded it. Once the server's last_seen catches up the
// fetched state wins and the override is dropped.
func (l *Loop) applyToggleLocked(d *domainDevice.Device) *domainDevice.Device {
	o, ok := l.toggled[d.DeviceID]
	if !ok {
		return d
	}
	if !d.LastSeen.Before(o.seen) {
		delete(l.toggled, d.DeviceID)
		return d
	}
	cp := *d
	cp.RelayState = o.state
	cp.LastSeen = o.seen
	return &cp
}

func (l *Loop) isStopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

func (l *Loop) snapshotLocked() Snapshot {
	latest := make(map[string]*domainReading.Reading, len(l.latest))
	for id, r := range l.latest {
		latest[id] = r
	}

	return Snapshot{
		Devices:    append([]*domainDevice.Device(nil), l.devices...),
		Readings:   append([]*domainReading.Reading(nil), l.cache[l.selected]...),
		Latest:     latest,
		Alerts:     append([]alert.Event{}, l.alerts...),
		SelectedID: l.selected,
		UpdatedAt:  l.updatedAt,
	}
}

// selectDevice keeps the previous selection while it is still listed,
// otherwise falls back to the first device. views must be sorted by id.
func selectDevice(previous string, views []aggregation.DeviceView) string {
	if len(views) == 0 {
		return ""
	}
	for _, v := range views {
		if v.Device.DeviceID == previous {
			return previous
		}
	}
	return views[0].Device.DeviceID
}
