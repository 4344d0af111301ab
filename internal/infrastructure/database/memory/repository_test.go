package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	domainDevice "fluoride-monitor/internal/domain/device"
	domainReading "fluoride-monitor/internal/domain/reading"
)

var base = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func TestDeviceUpsertTelemetryCreatesWithRelayOff(t *testing.T) {
	repo := NewDeviceRepository()
	ctx := context.Background()

	d, err := repo.UpsertTelemetry(ctx, domainDevice.TelemetryUpdate{DeviceID: "d1", Location: "Gorakhpur", SeenAt: base})
	if err != nil {
		t.Fatalf("UpsertTelemetry() error = %v", err)
	}
	if d.RelayState != domainDevice.RelayOff || d.Location != "Gorakhpur" || !d.LastSeen.Equal(base) {
		t.Fatalf("created device = %+v", d)
	}
}

func TestDeviceUpsertIsIdempotentPerID(t *testing.T) {
	repo := NewDeviceRepository()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := repo.UpsertTelemetry(ctx, domainDevice.TelemetryUpdate{DeviceID: "d1", Location: "L", SeenAt: base}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := repo.UpsertRelay(ctx, "d1", domainDevice.RelayOn, base); err != nil {
		t.Fatal(err)
	}
	if repo.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", repo.Count())
	}
}

func TestDeviceLastSeenNeverMovesBackward(t *testing.T) {
	repo := NewDeviceRepository()
	ctx := context.Background()

	if _, err := repo.UpsertTelemetry(ctx, domainDevice.TelemetryUpdate{DeviceID: "d1", Location: "new", SeenAt: base.Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}
	d, err := repo.UpsertTelemetry(ctx, domainDevice.TelemetryUpdate{DeviceID: "d1", Location: "stale", SeenAt: base})
	if err != nil {
		t.Fatal(err)
	}
	if !d.LastSeen.Equal(base.Add(time.Hour)) {
		t.Errorf("LastSeen = %v, want %v", d.LastSeen, base.Add(time.Hour))
	}
	if d.Location != "stale" {
		t.Errorf("Location = %q, want last write to win", d.Location)
	}
}

func TestDeviceRelayPreservesLocationAndTelemetryPreservesRelay(t *testing.T) {
	repo := NewDeviceRepository()
	ctx := context.Background()

	d, err := repo.UpsertRelay(ctx, "fresh", domainDevice.RelayOn, base)
	if err != nil {
		t.Fatal(err)
	}
	if d.Location != domainDevice.DefaultLocation || d.RelayState != domainDevice.RelayOn {
		t.Fatalf("relay-created device = %+v", d)
	}

	d, err = repo.UpsertTelemetry(ctx, domainDevice.TelemetryUpdate{DeviceID: "fresh", Location: "Well 2", SeenAt: base.Add(time.Second)})
	if err != nil {
		t.Fatal(err)
	}
	if d.RelayState != domainDevice.RelayOn {
		t.Errorf("RelayState = %q, telemetry must not reset the relay", d.RelayState)
	}

	d, err = repo.UpsertRelay(ctx, "fresh", domainDevice.RelayOff, base)
	if err != nil {
		t.Fatal(err)
	}
	if d.Location != "Well 2" {
		t.Errorf("Location = %q, relay must not touch location", d.Location)
	}
}

func TestDeviceGetByIDUnknown(t *testing.T) {
	repo := NewDeviceRepository()
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, domainDevice.ErrDeviceNotFound) {
		t.Fatalf("GetByID() error = %v, want ErrDeviceNotFound", err)
	}
	if repo.Count() != 0 {
		t.Fatal("GetByID created a record")
	}
}

func TestDeviceListSortedAndCopied(t *testing.T) {
	repo := NewDeviceRepository()
	ctx := context.Background()
	lat := 10.0
	for _, id := range []string{"c", "a", "b"} {
		if _, err := repo.UpsertTelemetry(ctx, domainDevice.TelemetryUpdate{DeviceID: id, Location: id, SeenAt: base, Metadata: domainDevice.Metadata{Latitude: &lat}}); err != nil {
			t.Fatal(err)
		}
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []string{"a", "b", "c"} {
		if devices[i].DeviceID != want {
			t.Fatalf("List()[%d] = %s, want %s", i, devices[i].DeviceID, want)
		}
	}

	*devices[0].Metadata.Latitude = 99
	again, _ := repo.GetByID(ctx, "a")
	if *again.Metadata.Latitude != 10 {
		t.Fatal("List returned shared metadata")
	}
}

func TestDeviceConcurrentUpserts(t *testing.T) {
	repo := NewDeviceRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seen := base.Add(time.Duration(i) * time.Second)
			if i%2 == 0 {
				_, _ = repo.UpsertTelemetry(ctx, domainDevice.TelemetryUpdate{DeviceID: "shared", Location: "x", SeenAt: seen})
			} else {
				_, _ = repo.UpsertRelay(ctx, "shared", domainDevice.RelayOn, seen)
			}
		}(i)
	}
	wg.Wait()

	d, err := repo.GetByID(ctx, "shared")
	if err != nil {
		t.Fatal(err)
	}
	if repo.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", repo.Count())
	}
	if !d.LastSeen.Equal(base.Add(49 * time.Second)) {
		t.Fatalf("LastSeen = %v, want the maximum", d.LastSeen)
	}
}

func TestReadingAppendAssignsIdentity(t *testing.T) {
	repo := NewReadingRepository()
	ctx := context.Background()

	first := &domainReading.Reading{DeviceID: "d1", Fluoride: 0.5, Timestamp: base}
	second := &domainReading.Reading{DeviceID: "d1", Fluoride: 0.6, Timestamp: base}
	if err := repo.Append(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := repo.Append(ctx, second); err != nil {
		t.Fatal(err)
	}

	if first.ID == "" || first.ID == second.ID {
		t.Fatalf("ids = %q, %q", first.ID, second.ID)
	}
	if second.Sequence <= first.Sequence {
		t.Fatalf("sequence did not increase: %d then %d", first.Sequence, second.Sequence)
	}
	if repo.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", repo.Len())
	}
}

func TestReadingRecentOrderAndLimit(t *testing.T) {
	repo := NewReadingRepository()
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		rd := &domainReading.Reading{DeviceID: "d1", Fluoride: float64(i), Timestamp: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.Append(ctx, rd); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.Recent(ctx, "d1", 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 20 {
		t.Fatalf("Recent() returned %d, want 20", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.After(got[i-1].Timestamp) {
			t.Fatalf("Recent() not newest first at %d", i)
		}
	}
	if got[0].Fluoride != 29 {
		t.Errorf("newest fluoride = %v, want 29", got[0].Fluoride)
	}

	none, err := repo.Recent(ctx, "unknown", 20)
	if err != nil || len(none) != 0 {
		t.Fatalf("Recent(unknown) = %v, %v", none, err)
	}
}

func TestReadingLatestPerDevice(t *testing.T) {
	repo := NewReadingRepository()
	ctx := context.Background()

	add := func(id string, minute int) *domainReading.Reading {
		rd := &domainReading.Reading{DeviceID: id, Fluoride: float64(minute), Timestamp: base.Add(time.Duration(minute) * time.Minute)}
		if err := repo.Append(ctx, rd); err != nil {
			t.Fatal(err)
		}
		return rd
	}

	add("a", 1)
	wantA := add("a", 5)
	add("a", 3)
	add("b", 2)
	tieFirst := add("c", 7)
	tieSecond := add("c", 7)

	got, err := repo.LatestPerDevice(ctx, []string{"a", "c", "nobody"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("LatestPerDevice() = %v, want a and c", got)
	}
	if got["a"].ID != wantA.ID {
		t.Errorf("latest[a] = %s, want %s", got["a"].ID, wantA.ID)
	}
	if got["c"].ID != tieSecond.ID || got["c"].ID == tieFirst.ID {
		t.Errorf("latest[c] = %s, want the later insertion", got["c"].ID)
	}
	if _, ok := got["b"]; ok {
		t.Error("unrequested device returned")
	}
}

func TestReadingCancelledContext(t *testing.T) {
	repo := NewReadingRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.Append(ctx, &domainReading.Reading{DeviceID: "d"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Append() error = %v, want context.Canceled", err)
	}
	if repo.Len() != 0 {
		t.Fatal("reading stored despite cancelled context")
	}
}

func BenchmarkLatestPerDevice(b *testing.B) {
	repo := NewReadingRepository()
	ctx := context.Background()
	ids := make([]string, 50)
	for d := range ids {
		ids[d] = fmt.Sprintf("dev-%02d", d)
		for i := 0; i < 200; i++ {
			_ = repo.Append(ctx, &domainReading.Reading{DeviceID: ids[d], Timestamp: base.Add(time.Duration(i) * time.Second)})
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := repo.LatestPerDevice(ctx, ids); err != nil {
			b.Fatal(err)
		}
	}
}
