package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttQoS          = 1
	mqttDisconnectMs = 250
	mqttConnectWait  = 10 * time.Second
)

// MQTTQueue publishes records with QoS 1 and waits for the broker's PUBACK.
// The paho client serialises writes internally, so concurrent Publish calls
// are safe.
type MQTTQueue struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger
}

func NewMQTTQueue(brokerURL, clientID, topic string, logger *slog.Logger) (*MQTTQueue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("broker", "mqtt", "topic", topic)

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", "error", err)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectWait) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	return &MQTTQueue{client: client, topic: topic, logger: logger}, nil
}

// Publish ignores key: MQTT has no per-message key.
func (q *MQTTQueue) Publish(ctx context.Context, _ string, data []byte) error {
	token := q.client.Publish(q.topic, mqttQoS, false, data)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt publish: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MQTTQueue) Consume(ctx context.Context, handler func([]byte) error) error {
	token := q.client.Subscribe(q.topic, mqttQoS, func(_ mqtt.Client, msg mqtt.Message) {
		if err := handler(msg.Payload()); err != nil {
			q.logger.Error("error processing message", "error", err)
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt subscribe: %w", token.Error())
	}
	defer q.client.Unsubscribe(q.topic)

	<-ctx.Done()
	return ctx.Err()
}

func (q *MQTTQueue) Close() error {
	q.client.Disconnect(mqttDisconnectMs)
	return nil
}
