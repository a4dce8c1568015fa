// Package kafka provides the "kafka" medium: each batch is produced as one
// message to a Kafka topic.
package kafka

import (
	"context"
	"time"

	ckafka "github.com/confluentinc/confluent-kafka-go/kafka"

	"github.com/admirito/avalon/errors"
	"github.com/admirito/avalon/extension"
	"github.com/admirito/avalon/medium"
)

// Config holds configuration for the Kafka medium
type Config struct {
	Topic            string
	BootstrapServers string
	ForceFlush       bool
	FlushTimeout     time.Duration
	LingerMs         int
	BatchSize        int
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Topic == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"topic is required")
	}
	if c.BootstrapServers == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"bootstrap servers are required")
	}
	return nil
}

// DefaultConfig returns the default configuration for the Kafka medium
func DefaultConfig() Config {
	return Config{
		Topic:            "avalon",
		BootstrapServers: "localhost:9092",
		FlushTimeout:     5 * time.Second,
		LingerMs:         1000,
		BatchSize:        1 << 16,
	}
}

// Medium produces payloads to one Kafka topic. The client batches and
// retries internally; delivery reports are drained in the background and
// the first failed report fails the next Write.
type Medium struct {
	config   Config
	producer *ckafka.Producer
	done     chan struct{}

	deliveryErr chan error
}

// New creates a Kafka medium from attached argument values.
func New(v extension.Values) (any, error) {
	config := DefaultConfig()
	config.Topic = v.String("topic", config.Topic)
	config.BootstrapServers = v.String("bootstrap_servers", config.BootstrapServers)
	config.ForceFlush = v.Bool("force_flush", config.ForceFlush)
	config.FlushTimeout = v.Duration("flush_timeout", config.FlushTimeout)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Medium{
		config:      config,
		done:        make(chan struct{}),
		deliveryErr: make(chan error, 1),
	}, nil
}

// Open connects the producer and starts draining delivery reports.
func (m *Medium) Open(_ context.Context) error {
	producer, err := ckafka.NewProducer(&ckafka.ConfigMap{
		"bootstrap.servers": m.config.BootstrapServers,
		"linger.ms":         m.config.LingerMs,
		"batch.size":        m.config.BatchSize,
	})
	if err != nil {
		return errors.WrapFatal(err, "Medium", "Open", "create kafka producer")
	}
	m.producer = producer

	go m.drainEvents()
	return nil
}

// drainEvents collects async delivery reports, keeping the first failure.
func (m *Medium) drainEvents() {
	for {
		select {
		case <-m.done:
			return
		case ev, ok := <-m.producer.Events():
			if !ok {
				return
			}
			msg, isMsg := ev.(*ckafka.Message)
			if isMsg && msg.TopicPartition.Error != nil {
				select {
				case m.deliveryErr <- msg.TopicPartition.Error:
				default:
				}
			}
		}
	}
}

// Write produces one payload.
func (m *Medium) Write(_ context.Context, p extension.Payload) error {
	if p.Empty() {
		return nil
	}
	data := p.Data()
	if data == nil {
		return medium.WriteFailed(errors.WrapInvalid(errors.ErrInvalidConfig,
			"Medium", "Write", "kafka medium cannot deliver raw rows"), "KafkaMedium")
	}
	if m.producer == nil {
		return medium.WriteFailed(errors.ErrNoConnection, "KafkaMedium")
	}

	// surface an earlier async delivery failure before producing more
	select {
	case err := <-m.deliveryErr:
		return medium.WriteFailed(err, "KafkaMedium")
	default:
	}

	err := m.producer.Produce(&ckafka.Message{
		TopicPartition: ckafka.TopicPartition{
			Topic:     &m.config.Topic,
			Partition: ckafka.PartitionAny,
		},
		Value: data,
	}, nil)
	if err != nil {
		return medium.WriteFailed(err, "KafkaMedium")
	}

	if m.config.ForceFlush {
		if remaining := m.producer.Flush(int(m.config.FlushTimeout.Milliseconds())); remaining > 0 {
			return medium.WriteFailed(errors.ErrConnectionTimeout, "KafkaMedium")
		}
	}
	return nil
}

// Close flushes outstanding messages and releases the producer.
func (m *Medium) Close() error {
	if m.producer == nil {
		return nil
	}
	m.producer.Flush(int(m.config.FlushTimeout.Milliseconds()))
	close(m.done)
	m.producer.Close()
	m.producer = nil
	return nil
}

// Register adds the Kafka medium and its arguments to the registry.
func Register(reg *extension.Registry) error {
	return reg.Register(extension.Descriptor{
		Family:      extension.FamilyMedium,
		Title:       "kafka",
		Description: "produce each batch as one message to a Kafka topic",
		AddArguments: func(g *extension.Group) {
			g.String("kafka-topic", "avalon",
				"Target Kafka topic")
			g.String("kafka-bootstrap-servers", "localhost:9092",
				"Comma-separated Kafka bootstrap servers")
			g.Bool("kafka-force-flush", false,
				"Flush the producer after every batch")
			g.Duration("kafka-flush-timeout", 5*time.Second,
				"Timeout for producer flushes")
		},
		New: New,
	})
}
