package main

import (
	"context"
	"fmt"
	"time"

	"github.com/richd0tcom/sensorgate/internal/db"
	"github.com/richd0tcom/sensorgate/internal/seed"
	"github.com/spf13/cobra"
)

var (
	seedCount int
	seedValue int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the sensor-config collection",
	Long:  `Generates sensor configurations around Tirana, upserts them into the sensor-config collection and creates its indexes.`,
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().IntVarP(&seedCount, "count", "n", 800, "Number of sensors to generate")
	seedCmd.Flags().Int64Var(&seedValue, "seed", 0, "Random seed (0 uses the current time)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if seedCount <= 0 {
		return fmt.Errorf("count must be positive, got %d", seedCount)
	}
	if seedValue == 0 {
		seedValue = time.Now().UnixNano()
	}

	ctx, cancel := signalContext()
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	client, err := db.NewMongoConnection(connectCtx, cfg.Mongo.URI)
	connectCancel()
	if err != nil {
		return err
	}
	store := db.NewMongoSensorStore(client, cfg.Mongo.Database)
	defer store.Close()

	sensors := seed.NewGenerator(seedValue).Generate(seedCount)
	upserted, err := store.UpsertSensors(ctx, sensors)
	if err != nil {
		return err
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		return err
	}

	logger.Info("sensor configuration seeded",
		"database", cfg.Mongo.Database,
		"collection", db.SensorConfigCollection,
		"generated", len(sensors),
		"upserted", upserted)
	return nil
}
