package reading

import (
	"testing"
	"time"
)

func at(minute int) time.Time {
	return time.Date(2024, 6, 1, 12, minute, 0, 0, time.UTC)
}

func TestLatestByDevice(t *testing.T) {
	readings := []*Reading{
		{ID: "a1", DeviceID: "a", Timestamp: at(1), Sequence: 1},
		{ID: "b1", DeviceID: "b", Timestamp: at(5), Sequence: 2},
		{ID: "a2", DeviceID: "a", Timestamp: at(3), Sequence: 3},
		{ID: "a3", DeviceID: "a", Timestamp: at(2), Sequence: 4},
		{ID: "c1", DeviceID: "c", Timestamp: at(9), Sequence: 5},
	}

	got := LatestByDevice(readings, nil)
	want := map[string]string{"a": "a2", "b": "b1", "c": "c1"}
	if len(got) != len(want) {
		t.Fatalf("LatestByDevice() returned %d devices, want %d", len(got), len(want))
	}
	for device, id := range want {
		if got[device] == nil || got[device].ID != id {
			t.Errorf("latest[%s] = %+v, want %s", device, got[device], id)
		}
	}
}

func TestLatestByDeviceFiltersIDs(t *testing.T) {
	readings := []*Reading{
		{ID: "a1", DeviceID: "a", Timestamp: at(1), Sequence: 1},
		{ID: "b1", DeviceID: "b", Timestamp: at(5), Sequence: 2},
	}

	got := LatestByDevice(readings, []string{"b", "zzz"})
	if len(got) != 1 || got["b"].ID != "b1" {
		t.Fatalf("LatestByDevice() = %v", got)
	}
	if _, ok := got["zzz"]; ok {
		t.Error("device without readings must be absent")
	}
}

func TestLatestByDeviceTieBreaksOnSequence(t *testing.T) {
	readings := []*Reading{
		{ID: "later-insert", DeviceID: "a", Timestamp: at(4), Sequence: 9},
		{ID: "earlier-insert", DeviceID: "a", Timestamp: at(4), Sequence: 2},
	}
	got := LatestByDevice(readings, nil)
	if got["a"].ID != "later-insert" {
		t.Fatalf("tie resolved to %s, want later-insert", got["a"].ID)
	}
}

func TestLatestByDeviceDoesNotReorderInput(t *testing.T) {
	readings := []*Reading{
		{ID: "x", DeviceID: "b", Timestamp: at(1), Sequence: 1},
		{ID: "y", DeviceID: "a", Timestamp: at(2), Sequence: 2},
	}
	LatestByDevice(readings, nil)
	if readings[0].ID != "x" || readings[1].ID != "y" {
		t.Fatal("input slice was reordered")
	}
}

func TestSortNewestFirst(t *testing.T) {
	readings := []*Reading{
		{ID: "1", Timestamp: at(1), Sequence: 1},
		{ID: "3", Timestamp: at(3), Sequence: 2},
		{ID: "2b", Timestamp: at(2), Sequence: 4},
		{ID: "2a", Timestamp: at(2), Sequence: 3},
	}
	SortNewestFirst(readings)

	want := []string{"3", "2b", "2a", "1"}
	for i, id := range want {
		if readings[i].ID != id {
			t.Fatalf("position %d = %s, want %s", i, readings[i].ID, id)
		}
	}
}

func TestFreshest(t *testing.T) {
	old := &Reading{ID: "old", Timestamp: at(1)}
	fresh := &Reading{ID: "fresh", Timestamp: at(2)}

	if got := Freshest(nil, old, fresh, nil); got != fresh {
		t.Errorf("Freshest() = %v, want fresh", got)
	}
	if got := Freshest(); got != nil {
		t.Errorf("Freshest() with no candidates = %v, want nil", got)
	}
	var none *Reading
	if none.NewerThan(old) {
		t.Error("nil reading must never be newer")
	}
}
