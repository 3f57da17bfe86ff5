package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/richd0tcom/sensorgate/internal/broker"
	"github.com/richd0tcom/sensorgate/internal/db"
	"github.com/richd0tcom/sensorgate/internal/domain"
)

type ServerConfig struct {
	MessageQueue   broker.MessageQueue
	SensorStore    domain.SensorStore
	Logger         *slog.Logger
	Port           string
	IngestTimeout  time.Duration
	CatalogRefresh time.Duration
	RedisAddr      string
	SensorCacheTTL time.Duration
	connectTimeout time.Duration
}

type ConfigOption func(*ServerConfig) error

func WithKafka(brokers, topic string) ConfigOption {
	return func(config *ServerConfig) error {
		mq, err := broker.NewKafkaQueue(brokers, topic, config.Logger)
		if err != nil {
			return err
		}
		config.MessageQueue = mq
		return nil
	}
}

func WithNATS(url, subject, stream string) ConfigOption {
	return func(config *ServerConfig) error {
		mq, err := broker.NewNATSQueue(url, subject, stream, config.Logger)
		if err != nil {
			return err
		}
		config.MessageQueue = mq
		return nil
	}
}

func WithMQTT(brokerURL, clientID, topic string) ConfigOption {
	return func(config *ServerConfig) error {
		mq, err := broker.NewMQTTQueue(brokerURL, clientID, topic, config.Logger)
		if err != nil {
			return err
		}
		config.MessageQueue = mq
		return nil
	}
}

// WithChannels uses an in-process queue. Records are only visible to
// consumers in the same process.
func WithChannels(buffer int) ConfigOption {
	return func(config *ServerConfig) error {
		config.MessageQueue = broker.NewChannelQueue(buffer, config.Logger)
		return nil
	}
}

func WithMessageQueue(mq broker.MessageQueue) ConfigOption {
	return func(config *ServerConfig) error {
		config.MessageQueue = mq
		return nil
	}
}

func WithMongoDB(uri, database string) ConfigOption {
	return func(config *ServerConfig) error {
		ctx, cancel := context.WithTimeout(context.Background(), config.connectTimeout)
		defer cancel()

		client, err := db.NewMongoConnection(ctx, uri)
		if err != nil {
			return err
		}
		config.SensorStore = db.NewMongoSensorStore(client, database)
		return nil
	}
}

func WithSensorStore(store domain.SensorStore) ConfigOption {
	return func(config *ServerConfig) error {
		config.SensorStore = store
		return nil
	}
}

// WithRedisCache puts a Redis read-through cache in front of the sensor
// store. An empty addr leaves the cache disabled.
func WithRedisCache(addr string, ttl time.Duration) ConfigOption {
	return func(config *ServerConfig) error {
		if addr != "" && ttl <= 0 {
			return fmt.Errorf("sensor cache TTL must be positive, got %s", ttl)
		}
		config.RedisAddr = addr
		config.SensorCacheTTL = ttl
		return nil
	}
}

func WithPort(port string) ConfigOption {
	return func(config *ServerConfig) error {
		config.Port = port
		return nil
	}
}

func WithIngestTimeout(timeout time.Duration) ConfigOption {
	return func(config *ServerConfig) error {
		if timeout <= 0 {
			return fmt.Errorf("ingest timeout must be positive, got %s", timeout)
		}
		config.IngestTimeout = timeout
		return nil
	}
}

// WithLogger must come before the queue and store options for them to use it.
func WithLogger(logger *slog.Logger) ConfigOption {
	return func(config *ServerConfig) error {
		if logger != nil {
			config.Logger = logger
		}
		return nil
	}
}

func WithCatalogRefresh(interval time.Duration) ConfigOption {
	return func(config *ServerConfig) error {
		config.CatalogRefresh = interval
		return nil
	}
}
