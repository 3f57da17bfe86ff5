package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/richd0tcom/sensorgate/core/config"
	"github.com/richd0tcom/sensorgate/core/server"
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:           "sensorgate",
	Short:         "Sensor ingestion gateway",
	Long:          `Accepts batches of sensor readings over HTTP and publishes each record to the message bus.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (default $"+config.EnvConfigFile+")")
	rootCmd.AddCommand(serveCmd, seedCmd, tailCmd, simulateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the process logger.
func setup() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := config.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return config.Config{}, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func queueOption(mq config.MessageQueueConfig) server.ConfigOption {
	switch mq.Type {
	case config.QueueNATS:
		return server.WithNATS(mq.NATSURL, mq.Topic, mq.NATSStream)
	case config.QueueMQTT:
		return server.WithMQTT(mq.MQTTBroker, mq.MQTTClientID, mq.Topic)
	case config.QueueChannels:
		return server.WithChannels(mq.ChannelBuffer)
	default:
		return server.WithKafka(mq.KafkaBrokers, mq.Topic)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	srv, err := server.NewServer(
		server.WithLogger(logger),
		queueOption(cfg.MessageQueue),
		server.WithMongoDB(cfg.Mongo.URI, cfg.Mongo.Database),
		server.WithRedisCache(cfg.Redis.Addr, cfg.Redis.TTL),
		server.WithPort(cfg.HTTP.Port),
		server.WithIngestTimeout(cfg.HTTP.IngestTimeout),
		server.WithCatalogRefresh(cfg.Catalog.RefreshInterval),
	)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Error("shutdown", "error", err)
		}
		logger.Info("server shutdown complete")
	}()

	ctx, cancel := signalContext()
	defer cancel()

	logger.Info("gateway configured",
		"queue", cfg.MessageQueue.Type,
		"topic", cfg.MessageQueue.Topic,
		"database", cfg.Mongo.Database,
		"cache", cfg.Redis.Addr != "")

	return srv.Start(ctx)
}
