// Package config loads gateway configuration.
//
// Values are resolved in this order, later sources winning:
//   - built-in defaults
//   - an optional YAML file (--config flag or SENSORGATE_CONFIG)
//   - a .env file in the working directory, if present
//   - process environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const EnvConfigFile = "SENSORGATE_CONFIG"

// Message queue backends.
const (
	QueueKafka    = "kafka"
	QueueNATS     = "nats"
	QueueMQTT     = "mqtt"
	QueueChannels = "channels"
)

type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	MessageQueue MessageQueueConfig `yaml:"message_queue"`
	Mongo        MongoConfig        `yaml:"mongo"`
	Redis        RedisConfig        `yaml:"redis"`
	Catalog      CatalogConfig      `yaml:"catalog"`
	Log          LogConfig          `yaml:"log"`
}

type HTTPConfig struct {
	Port string `yaml:"port"`
	// IngestTimeout bounds the wait for every record of a batch to be
	// acknowledged by the message queue.
	IngestTimeout time.Duration `yaml:"ingest_timeout"`
}

type MessageQueueConfig struct {
	Type  string `yaml:"type"`
	Topic string `yaml:"topic"`

	KafkaBrokers string `yaml:"kafka_brokers"`

	NATSURL    string `yaml:"nats_url"`
	NATSStream string `yaml:"nats_stream"`

	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTClientID string `yaml:"mqtt_client_id"`

	ChannelBuffer int `yaml:"channel_buffer"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	// Addr enables the sensor listing cache when set.
	Addr string        `yaml:"addr"`
	TTL  time.Duration `yaml:"ttl"`
}

type CatalogConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:          "8080",
			IngestTimeout: 30 * time.Second,
		},
		MessageQueue: MessageQueueConfig{
			Type:          QueueKafka,
			Topic:         "sensor-data",
			KafkaBrokers:  "localhost:9092",
			NATSURL:       "nats://localhost:4222",
			MQTTBroker:    "tcp://localhost:1883",
			MQTTClientID:  "sensorgate",
			ChannelBuffer: 1024,
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "iot_traffic_monitoring",
		},
		Redis: RedisConfig{
			TTL: 30 * time.Second,
		},
		Catalog: CatalogConfig{
			RefreshInterval: time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load resolves the configuration. path may be empty, in which case
// SENSORGATE_CONFIG is consulted; no file at all is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.HTTP.Port, "PORT")
	setString(&cfg.MessageQueue.Type, "MESSAGE_QUEUE_TYPE")
	setString(&cfg.MessageQueue.Topic, "MESSAGE_QUEUE_TOPIC")
	setString(&cfg.MessageQueue.KafkaBrokers, "KAFKA_BROKERS")
	setString(&cfg.MessageQueue.NATSURL, "NATS_URL")
	setString(&cfg.MessageQueue.NATSStream, "NATS_STREAM")
	setString(&cfg.MessageQueue.MQTTBroker, "MQTT_BROKER")
	setString(&cfg.MessageQueue.MQTTClientID, "MQTT_CLIENT_ID")
	setString(&cfg.Mongo.URI, "MONGO_URI")
	setString(&cfg.Mongo.Database, "MONGO_DATABASE")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")

	if err := setInt(&cfg.MessageQueue.ChannelBuffer, "CHANNEL_BUFFER"); err != nil {
		return err
	}
	for key, dst := range map[string]*time.Duration{
		"INGEST_TIMEOUT":           &cfg.HTTP.IngestTimeout,
		"SENSOR_CACHE_TTL":         &cfg.Redis.TTL,
		"CATALOG_REFRESH_INTERVAL": &cfg.Catalog.RefreshInterval,
	} {
		if err := setDuration(dst, key); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) Validate() error {
	switch c.MessageQueue.Type {
	case QueueKafka, QueueNATS, QueueMQTT, QueueChannels:
	default:
		return fmt.Errorf("unknown message queue type %q", c.MessageQueue.Type)
	}
	if c.MessageQueue.Topic == "" {
		return errors.New("message queue topic must not be empty")
	}
	if c.Mongo.Database == "" {
		return errors.New("mongo database must not be empty")
	}
	if c.HTTP.IngestTimeout <= 0 {
		return fmt.Errorf("ingest timeout must be positive, got %s", c.HTTP.IngestTimeout)
	}
	if c.Redis.Addr != "" && c.Redis.TTL <= 0 {
		return fmt.Errorf("sensor cache TTL must be positive, got %s", c.Redis.TTL)
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
