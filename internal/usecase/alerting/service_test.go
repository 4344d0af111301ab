package alerting

import (
	"context"
	"testing"
	"time"

	"fluoride-monitor/internal/alert"
	"fluoride-monitor/internal/domain"
	"fluoride-monitor/internal/infrastructure/database/memory"
	"fluoride-monitor/internal/usecase/aggregation"
	"fluoride-monitor/internal/usecase/ingestion"
)

func f(v float64) *float64 { return &v }

// A Gorakhpur unit reports 2.0 mg/L fluoride at 75% humidity: one warning
// and one info event, both carrying the device location.
func TestActiveAlertsGorakhpur(t *testing.T) {
	devices := memory.NewDeviceRepository()
	readings := memory.NewReadingRepository()
	ingest := ingestion.NewService(domain.NoopTransactor{}, devices, readings)
	svc := NewService(aggregation.NewService(devices, readings), alert.NewEngine(alert.DefaultThresholds()))
	ctx := context.Background()

	ts := time.Date(2024, 10, 5, 7, 0, 0, 0, time.UTC)
	if _, err := ingest.Ingest(ctx, &ingestion.IngestRequest{
		DeviceID: "gkp-01", Location: "Gorakhpur", Fluoride: f(2.0), Humidity: f(75), Timestamp: &ts,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := ingest.Ingest(ctx, &ingestion.IngestRequest{DeviceID: "calm", Fluoride: f(0.5), Humidity: f(50)}); err != nil {
		t.Fatal(err)
	}

	events, err := svc.ActiveAlerts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("ActiveAlerts() = %+v, want 2 events", events)
	}

	if events[0].Level != alert.LevelWarning || events[0].Message != "Fluoride 2.00 mg/L exceeds safe limit of 1.50 mg/L" {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Level != alert.LevelInfo || events[1].Message != "Humidity 75.0% above 70%" {
		t.Errorf("second event = %+v", events[1])
	}
	for _, e := range events {
		if e.DeviceID != "gkp-01" || e.Location != "Gorakhpur" || !e.Timestamp.Equal(ts) {
			t.Errorf("event identity = %+v", e)
		}
	}
}

func TestActiveAlertsUseOnlyLatestReading(t *testing.T) {
	devices := memory.NewDeviceRepository()
	readings := memory.NewReadingRepository()
	ingest := ingestion.NewService(domain.NoopTransactor{}, devices, readings)
	svc := NewService(aggregation.NewService(devices, readings), alert.NewEngine(alert.DefaultThresholds()))
	ctx := context.Background()

	t1 := time.Date(2024, 10, 5, 7, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	if _, err := ingest.Ingest(ctx, &ingestion.IngestRequest{DeviceID: "d", Fluoride: f(3), Timestamp: &t1}); err != nil {
		t.Fatal(err)
	}
	if _, err := ingest.Ingest(ctx, &ingestion.IngestRequest{DeviceID: "d", Fluoride: f(0.3), Timestamp: &t2}); err != nil {
		t.Fatal(err)
	}

	events, err := svc.ActiveAlerts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("ActiveAlerts() = %+v, want none after the reading recovered", events)
	}
}
