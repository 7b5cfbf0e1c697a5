package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/cloudprefix/ipranges/pkg/metrics"
)

// KafkaSinkConfig configures a KafkaSink.
type KafkaSinkConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string

	// Topic is the Kafka topic to write sync events to.
	Topic string

	// BatchTimeout is the maximum time to wait before flushing a batch.
	// Default: 1 second
	BatchTimeout time.Duration

	// WriteTimeout is the timeout for writing messages.
	// Default: 10 seconds
	WriteTimeout time.Duration
}

// KafkaSink writes sync-outcome events to a Kafka topic. Writes are
// best-effort; a broker outage must never affect the sync cycle beyond a
// logged warning.
type KafkaSink struct {
	writer *kafka.Writer
	log    *zap.SugaredLogger

	mu     sync.Mutex
	closed bool

	written atomic.Int64
	failed  atomic.Int64
}

// NewKafkaSink creates a new KafkaSink.
func NewKafkaSink(cfg KafkaSinkConfig, log *zap.SugaredLogger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
	}

	return &KafkaSink{writer: writer, log: log}, nil
}

// Publish writes one event, keyed by its type so consumers can partition on
// outcome.
func (s *KafkaSink) Publish(ctx context.Context, ev Event) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("kafka sink is closed")
	}
	s.mu.Unlock()

	value, err := json.Marshal(ev)
	if err != nil {
		s.failed.Add(1)
		metrics.EventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("marshal event: %w", err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Type),
		Value: value,
		Time:  ev.At,
	})
	if err != nil {
		s.failed.Add(1)
		metrics.EventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("write event to kafka: %w", err)
	}

	s.written.Add(1)
	metrics.EventsPublished.WithLabelValues("ok").Inc()
	return nil
}

// Close flushes and closes the underlying writer. Publish calls after Close
// fail.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.writer.Close()
}

// Stats returns the number of events written and failed since startup.
func (s *KafkaSink) Stats() (written, failed int64) {
	return s.written.Load(), s.failed.Load()
}
