package ingestion

import (
	"context"
	"sync"
	"time"

	"fluoride-monitor/internal/alert"
	"fluoride-monitor/internal/logger"
	"fluoride-monitor/internal/metrics"
	usecase "fluoride-monitor/internal/usecase/ingestion"
	appErrors "fluoride-monitor/pkg/errors"

	"go.uber.org/zap"
)

// Ingester stores one validated reading.
type Ingester interface {
	IngestFrom(ctx context.Context, source string, req *usecase.IngestRequest) (*usecase.IngestResult, error)
}

type ProcessorConfig struct {
	TopicPrefix string
	Workers     int
	BufferSize  int
	Timeout     time.Duration
}

type message struct {
	topic   string
	payload []byte
}

// Processor decouples the MQTT callback goroutine from the store: messages
// are queued and handled by a fixed pool of workers.
type Processor struct {
	cfg      ProcessorConfig
	ingester Ingester
	engine   *alert.Engine

	queue chan message
	wg    sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool

	metrics *MetricsTracker
	log     *zap.Logger
}

func NewProcessor(ingester Ingester, engine *alert.Engine, cfg ProcessorConfig) *Processor {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &Processor{
		cfg:      cfg,
		ingester: ingester,
		engine:   engine,
		queue:    make(chan message, cfg.BufferSize),
		metrics:  NewMetricsTracker(),
		log:      logger.Named("ingestion"),
	}
}

// Start launches the workers.
func (p *Processor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.log.Info("Processor started",
		zap.Int("workers", p.cfg.Workers),
		zap.Int("buffer_size", p.cfg.BufferSize),
	)
}

// Stop refuses new messages, drains the queue and waits for the workers.
func (p *Processor) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Info("Processor stopped")
}

// Submit queues a raw MQTT message. It never blocks: when the buffer is
// full the message is dropped and counted.
func (p *Processor) Submit(topic string, payload []byte) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}

	select {
	case p.queue <- message{topic: topic, payload: payload}:
		p.metrics.Update(func(m *IngestMetrics) {
			m.MessagesReceived++
			m.BufferSize = len(p.queue)
		})
		return true
	default:
		p.log.Warn("Telemetry buffer full, dropping message", zap.String("topic", topic))
		p.metrics.Update(func(m *IngestMetrics) {
			m.MessagesDropped++
		})
		return false
	}
}

func (p *Processor) worker(id int) {
	defer p.wg.Done()

	for msg := range p.queue {
		p.handle(msg)
	}
	p.log.Debug("Worker exited", zap.Int("worker", id))
}

func (p *Processor) handle(msg message) {
	start := time.Now()

	req, err := ParseTelemetry(p.cfg.TopicPrefix, msg.topic, msg.payload)
	if err != nil {
		metrics.ObserveIngest(metrics.SourceMQTT, metrics.ResultInvalid, time.Since(start))
		p.log.Warn("Invalid telemetry payload", zap.String("topic", msg.topic), zap.Error(err))
		p.metrics.Update(func(m *IngestMetrics) { m.MessagesRejected++ })
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()

	result, err := p.ingester.IngestFrom(ctx, metrics.SourceMQTT, req)
	if err != nil {
		if _, ok := appErrors.AsValidation(err); ok {
			p.log.Warn("Telemetry rejected", zap.String("topic", msg.topic), zap.Error(err))
			p.metrics.Update(func(m *IngestMetrics) { m.MessagesRejected++ })
			return
		}
		p.log.Error("Failed to store telemetry", zap.String("topic", msg.topic), zap.Error(err))
		p.metrics.Update(func(m *IngestMetrics) { m.MessagesFailed++ })
		return
	}

	var raised int
	if p.engine != nil {
		for _, ev := range p.engine.Evaluate(result.Device, result.Reading) {
			raised++
			p.log.Warn("Alert raised",
				zap.String("device_id", ev.DeviceID),
				zap.String("kind", string(ev.Kind)),
				zap.String("level", string(ev.Level)),
				zap.String("message", ev.Message),
			)
		}
	}

	took := time.Since(start)
	p.metrics.Update(func(m *IngestMetrics) {
		m.recordProcessed(time.Now(), took)
		m.AlertsRaised += int64(raised)
		m.BufferSize = len(p.queue)
	})
}

// GetMetrics returns current metrics
func (p *Processor) GetMetrics() IngestMetrics {
	return p.metrics.Snapshot()
}
