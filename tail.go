package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/richd0tcom/sensorgate/core/config"
	"github.com/richd0tcom/sensorgate/core/consumer"
	"github.com/richd0tcom/sensorgate/internal/broker"
	"github.com/spf13/cobra"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log records as they arrive on the message bus",
	Long:  `Consumes the configured topic and logs the sensor id and type of each record. Useful for checking what the gateway publishes.`,
	RunE:  runTail,
}

func newQueue(mq config.MessageQueueConfig, logger *slog.Logger) (broker.MessageQueue, error) {
	switch mq.Type {
	case config.QueueNATS:
		return broker.NewNATSQueue(mq.NATSURL, mq.Topic, mq.NATSStream, logger)
	case config.QueueMQTT:
		return broker.NewMQTTQueue(mq.MQTTBroker, mq.MQTTClientID+"-tail", mq.Topic, logger)
	case config.QueueChannels:
		return nil, errors.New("tail: the channels queue is in-process and cannot be tailed")
	default:
		return broker.NewKafkaQueue(mq.KafkaBrokers, mq.Topic, logger)
	}
}

func runTail(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	queue, err := newQueue(cfg.MessageQueue, logger)
	if err != nil {
		return err
	}
	defer queue.Close()

	ctx, cancel := signalContext()
	defer cancel()

	c := consumer.NewLogConsumer("tail", logger)
	logger.Info("tailing", "queue", cfg.MessageQueue.Type, "topic", cfg.MessageQueue.Topic)

	err = queue.Consume(ctx, c.Process)
	logger.Info("tail stopped", "records", c.Seen())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
