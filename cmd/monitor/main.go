// Command monitor polls the fluoride monitor API and logs alert changes.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"fluoride-monitor/internal/alert"
	"fluoride-monitor/internal/config"
	"fluoride-monitor/internal/logger"
	"fluoride-monitor/internal/metrics"
	"fluoride-monitor/internal/syncloop"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("Failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(cfg.Server.Environment, cfg.Server.LogLevel); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	metrics.Init()

	engine := alert.NewEngine(alert.Thresholds{
		FluorideMax: cfg.Alerts.FluorideMax,
		HumidityMax: cfg.Alerts.HumidityMax,
		HumidityMin: cfg.Alerts.HumidityMin,
	})
	source := syncloop.NewHTTPSource(cfg.Sync.APIBaseURL, cfg.Sync.RequestTimeout)
	loop := syncloop.New(source, engine, syncloop.Config{
		Interval: cfg.Sync.Interval,
		Window:   cfg.Sync.Window,
		Timeout:  cfg.Sync.RequestTimeout,
	})

	logger.Info("Starting monitor",
		zap.String("api", cfg.Sync.APIBaseURL),
		zap.Duration("interval", cfg.Sync.Interval),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	updates, unsubscribe := loop.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()

	active := make(map[string]alert.Event)
	for {
		select {
		case <-ctx.Done():
			loop.Stop()
			<-done
			logger.Info("Monitor stopped")
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			logAlertChanges(active, snap)
		}
	}
}

// logAlertChanges logs alerts that appeared or cleared since the previous
// snapshot and updates active in place.
func logAlertChanges(active map[string]alert.Event, snap syncloop.Snapshot) {
	current := make(map[string]alert.Event, len(snap.Alerts))
	for _, ev := range snap.Alerts {
		current[ev.Key()] = ev
	}

	for key, ev := range current {
		if _, seen := active[key]; !seen {
			logger.Warn("Alert raised",
				zap.String("device_id", ev.DeviceID),
				zap.String("level", string(ev.Level)),
				zap.String("location", ev.Location),
				zap.String("message", ev.Message),
			)
		}
	}
	for key, ev := range active {
		if _, still := current[key]; !still {
			logger.Info("Alert cleared",
				zap.String("device_id", ev.DeviceID),
				zap.String("message", ev.Message),
			)
		}
	}

	for key := range active {
		delete(active, key)
	}
	for key, ev := range current {
		active[key] = ev
	}

	logger.Debug("Fleet synced",
		zap.Int("devices", len(snap.Devices)),
		zap.Int("alerts", len(snap.Alerts)),
		zap.String("selected", snap.SelectedID),
	)
}
