package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fluoride-monitor/internal/alert"
	"fluoride-monitor/internal/config"
	"fluoride-monitor/internal/delivery/http/handler"
	"fluoride-monitor/internal/domain"
	domainDevice "fluoride-monitor/internal/domain/device"
	domainReading "fluoride-monitor/internal/domain/reading"
	"fluoride-monitor/internal/infrastructure/database/memory"
	"fluoride-monitor/internal/infrastructure/database/mongo"
	"fluoride-monitor/internal/infrastructure/database/postgres"
	"fluoride-monitor/internal/infrastructure/influxdb"
	mqttingest "fluoride-monitor/internal/ingestion"
	"fluoride-monitor/internal/logger"
	"fluoride-monitor/internal/metrics"
	"fluoride-monitor/internal/routes"
	"fluoride-monitor/internal/usecase/actuator"
	"fluoride-monitor/internal/usecase/aggregation"
	"fluoride-monitor/internal/usecase/alerting"
	"fluoride-monitor/internal/usecase/ingestion"
	pkgmqtt "fluoride-monitor/pkg/mqtt"

	"go.uber.org/zap"
)

type store struct {
	devices  domainDevice.Repository
	readings domainReading.Repository
	tx       domain.Transactor
	pinger   handler.Pinger
	close    func()
}

func openStore(cfg *config.Config) (*store, error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		db, err := postgres.NewDB(cfg)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		devices := postgres.NewDeviceRepository(db)
		return &store{
			devices:  devices,
			readings: postgres.NewReadingRepository(db),
			tx:       db,
			pinger:   devices,
			close: func() {
				if err := db.Close(); err != nil {
					logger.Error("Failed to close database connection", zap.Error(err))
				}
			},
		}, nil

	case config.StoreMongo:
		s, err := mongo.Connect(cfg.Mongo)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.Timeout)
		defer cancel()
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = s.Close(ctx)
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		devices := mongo.NewDeviceRepository(s)
		return &store{
			devices:  devices,
			readings: mongo.NewReadingRepository(s),
			tx:       s,
			pinger:   devices,
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.Close(ctx); err != nil {
					logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
				}
			},
		}, nil

	default:
		devices := memory.NewDeviceRepository()
		return &store{
			devices:  devices,
			readings: memory.NewReadingRepository(),
			tx:       domain.NoopTransactor{},
			pinger:   devices,
			close:    func() {},
		}, nil
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("Failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	env := cfg.Server.Environment
	if env == "" {
		env = "development"
	}
	if err := logger.Init(env, cfg.Server.LogLevel); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	metrics.Init()

	logger.Info("Starting application",
		zap.String("environment", env),
		zap.String("store", cfg.Store.Driver),
	)

	st, err := openStore(cfg)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer st.close()

	var ingestOpts []ingestion.Option
	sink, err := influxdb.Connect(cfg.Influx)
	switch {
	case err == nil:
		defer func() { _ = sink.Close() }()
		ingestOpts = append(ingestOpts, ingestion.WithSink(sink))
	case errors.Is(err, influxdb.ErrDisabled):
	default:
		logger.Warn("InfluxDB mirror unavailable, continuing without it", zap.Error(err))
	}

	engine := alert.NewEngine(alert.Thresholds{
		FluorideMax: cfg.Alerts.FluorideMax,
		HumidityMax: cfg.Alerts.HumidityMax,
		HumidityMin: cfg.Alerts.HumidityMin,
	})
	logThresholds(engine.Thresholds())

	ingestService := ingestion.NewService(st.tx, st.devices, st.readings, ingestOpts...)
	agg := aggregation.NewService(st.devices, st.readings)

	var actuatorOpts []actuator.Option
	var mqttClient *mqttingest.MQTTIngestionClient
	if cfg.MQTT.Enabled {
		processor := mqttingest.NewProcessor(ingestService, engine, mqttingest.ProcessorConfig{
			TopicPrefix: cfg.MQTT.TopicPrefix,
		})
		mqttClient, err = mqttingest.NewMQTTIngestionClient(&mqttingest.MQTTIngestionConfig{
			ClientConfig: &pkgmqtt.Config{
				Broker:               cfg.MQTT.Broker,
				ClientID:             cfg.MQTT.ClientID,
				Username:             cfg.MQTT.Username,
				Password:             cfg.MQTT.Password,
				CleanSession:         true,
				KeepAlive:            cfg.MQTT.KeepAlive,
				ConnectTimeout:       cfg.MQTT.ConnectTimeout,
				AutoReconnect:        true,
				MaxReconnectInterval: time.Minute,
			},
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
		}, processor)
		if err != nil {
			logger.Fatal("Failed to configure MQTT ingestion", zap.Error(err))
		}
		if err := mqttClient.Start(); err != nil {
			logger.Fatal("Failed to start MQTT ingestion", zap.Error(err))
		}
		defer mqttClient.Stop()
		actuatorOpts = append(actuatorOpts, actuator.WithPublisher(mqttClient))
	}

	router := routes.SetupRoutes(cfg, &routes.Services{
		Ingestion:   ingestService,
		Aggregation: agg,
		Actuator:    actuator.NewService(st.devices, actuatorOpts...),
		Alerting:    alerting.NewService(agg, engine),
		Store:       st.pinger,
	})

	host := cfg.Server.Host
	if host == "" {
		host = "0.0.0.0"
	}
	port := cfg.Server.Port
	if port == "" {
		port = "3000"
	}
	addr := net.JoinHostPort(host, port)

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting",
			zap.String("address", addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", zap.Error(err))
	}

	log.Println("Server exited properly")
}

func logThresholds(t alert.Thresholds) {
	logger.Info("Alert thresholds",
		zap.Float64("fluoride_max", t.FluorideMax),
		zap.Float64("humidity_max", t.HumidityMax),
		zap.Float64("humidity_min", t.HumidityMin),
	)
}
