package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const kafkaFlushTimeoutMs = 5000

type KafkaQueue struct {
	producer *kafka.Producer
	brokers  string
	topic    string
	groupID  string
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
}

func NewKafkaQueue(brokers, topic string, logger *slog.Logger) (*KafkaQueue, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "all",
		"retries":           3,
		"batch.size":        16384,
		"linger.ms":         5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	k := &KafkaQueue{
		producer: producer,
		brokers:  brokers,
		topic:    topic,
		groupID:  "sensorgate-tail",
		logger:   logger.With("broker", "kafka", "topic", topic),
	}
	go k.drainEvents()

	return k, nil
}

// drainEvents logs client-level errors. Per-message delivery reports go to
// the channel passed to Produce and never reach this loop.
func (k *KafkaQueue) drainEvents() {
	for e := range k.producer.Events() {
		if kerr, ok := e.(kafka.Error); ok {
			k.logger.Warn("kafka client error", "code", kerr.Code().String(), "error", kerr)
		}
	}
}

func (k *KafkaQueue) Publish(ctx context.Context, key string, data []byte) error {
	// Buffered so librdkafka never blocks on a report nobody reads after ctx expires.
	deliveryChan := make(chan kafka.Event, 1)

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &k.topic,
			Partition: kafka.PartitionAny,
		},
		Value: data,
	}
	if key != "" {
		msg.Key = []byte(key)
	}

	k.mu.RLock()
	if k.closed {
		k.mu.RUnlock()
		return ErrClosed
	}
	err := k.producer.Produce(msg, deliveryChan)
	k.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("kafka produce: %w", err)
	}

	select {
	case e := <-deliveryChan:
		if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			return fmt.Errorf("kafka delivery: %w", m.TopicPartition.Error)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

// Consume reads the topic with a dedicated consumer group until ctx is done.
func (k *KafkaQueue) Consume(ctx context.Context, handler func([]byte) error) error {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": k.brokers,
		"group.id":          k.groupID,
		"auto.offset.reset": "latest",
	})
	if err != nil {
		return fmt.Errorf("failed to create Kafka consumer: %w", err)
	}
	defer consumer.Close()

	if err := consumer.Subscribe(k.topic, nil); err != nil {
		return fmt.Errorf("kafka subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := consumer.ReadMessage(100 * time.Millisecond)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.IsTimeout() {
				continue
			}
			return fmt.Errorf("kafka read: %w", err)
		}

		if err := handler(msg.Value); err != nil {
			k.logger.Error("error processing message", "error", err)
		}
	}
}

func (k *KafkaQueue) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	k.mu.Unlock()

	if remaining := k.producer.Flush(kafkaFlushTimeoutMs); remaining > 0 {
		k.logger.Warn("kafka producer closed with undelivered messages", "remaining", remaining)
	}
	k.producer.Close()
	return nil
}
