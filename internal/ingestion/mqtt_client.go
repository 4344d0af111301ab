package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	domainDevice "fluoride-monitor/internal/domain/device"
	"fluoride-monitor/internal/logger"
	pkgmqtt "fluoride-monitor/pkg/mqtt"

	"go.uber.org/zap"
)

// Broker is the subset of the MQTT client used for ingestion and commands.
type Broker interface {
	Connect() error
	Subscribe(topic string, qos byte, handler pkgmqtt.MessageHandler) error
	Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error
	Unsubscribe(topics ...string) error
	Disconnect()
}

// MQTTIngestionConfig describes the topics and MQTT connection parameters.
type MQTTIngestionConfig struct {
	ClientConfig *pkgmqtt.Config
	TopicPrefix  string
	QoS          byte
}

// MQTTIngestionClient feeds telemetry messages into the processor and
// forwards relay commands back to devices.
type MQTTIngestionClient struct {
	cfg       *MQTTIngestionConfig
	broker    Broker
	processor *Processor
	now       func() time.Time

	mu            sync.Mutex
	started       bool
	subscriptions []string
}

// NewMQTTIngestionClient builds a client on a real paho connection.
func NewMQTTIngestionClient(cfg *MQTTIngestionConfig, processor *Processor) (*MQTTIngestionClient, error) {
	if cfg == nil || cfg.ClientConfig == nil {
		return nil, errors.New("mqtt ingestion config is not configured")
	}
	return NewMQTTIngestionClientWithBroker(cfg, pkgmqtt.NewClient(cfg.ClientConfig), processor)
}

func NewMQTTIngestionClientWithBroker(cfg *MQTTIngestionConfig, broker Broker, processor *Processor) (*MQTTIngestionClient, error) {
	if cfg == nil {
		return nil, errors.New("mqtt ingestion config is not configured")
	}
	if processor == nil {
		return nil, errors.New("processor is required")
	}
	return &MQTTIngestionClient{
		cfg:       cfg,
		broker:    broker,
		processor: processor,
		now:       time.Now,
	}, nil
}

// Start connects, starts the processor and subscribes to telemetry.
func (c *MQTTIngestionClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	if err := c.broker.Connect(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	c.processor.Start()

	topic := TelemetryTopic(c.cfg.TopicPrefix)
	if err := c.broker.Subscribe(topic, c.cfg.QoS, c.handleTelemetryMessage); err != nil {
		c.processor.Stop()
		c.broker.Disconnect()
		return fmt.Errorf("subscribe failed for topic %s: %w", topic, err)
	}
	c.subscriptions = append(c.subscriptions, topic)
	logger.Info("Listening for telemetry", zap.String("topic", topic))

	c.started = true
	return nil
}

// Stop unsubscribes, drains the processor and disconnects.
func (c *MQTTIngestionClient) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return
	}

	if len(c.subscriptions) > 0 {
		if err := c.broker.Unsubscribe(c.subscriptions...); err != nil {
			logger.Warn("Failed to unsubscribe from MQTT topics", zap.Error(err))
		}
	}

	c.processor.Stop()
	c.broker.Disconnect()
	c.started = false
	c.subscriptions = nil

	m := c.processor.GetMetrics()
	logger.Info("MQTT ingestion stopped",
		zap.Int64("received", m.MessagesReceived),
		zap.Int64("processed", m.MessagesProcessed),
		zap.Int64("rejected", m.MessagesRejected),
		zap.Int64("failed", m.MessagesFailed),
		zap.Int64("dropped", m.MessagesDropped),
		zap.Int64("alerts_raised", m.AlertsRaised),
	)
}

func (c *MQTTIngestionClient) handleTelemetryMessage(topic string, payload []byte) {
	c.processor.Submit(topic, payload)
}

// PublishRelay publishes a retained relay command so a device that
// reconnects later still receives the latest desired state.
func (c *MQTTIngestionClient) PublishRelay(ctx context.Context, deviceID string, state domainDevice.RelayState) error {
	payload, err := json.Marshal(RelayCommand{
		DeviceID:   deviceID,
		RelayState: string(state),
		IssuedAt:   c.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	topic := RelayTopic(c.cfg.TopicPrefix, deviceID)
	if err := c.broker.Publish(ctx, topic, c.cfg.QoS, true, payload); err != nil {
		return fmt.Errorf("publish relay command to %s: %w", topic, err)
	}

	logger.Debug("Relay command published",
		zap.String("topic", topic),
		zap.String("relay_state", string(state)),
	)
	return nil
}
