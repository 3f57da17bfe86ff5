package main

import (
	"fmt"
	"time"

	"github.com/richd0tcom/sensorgate/internal/simulator"
	"github.com/spf13/cobra"
)

var simConfig simulator.Config

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Send synthetic readings to a running gateway",
	Long:  `Fetches the configured sensors from the gateway and posts batches of generated readings to /ingest, then prints throughput and latency.`,
	RunE:  runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVarP(&simConfig.BaseURL, "url", "u", "http://localhost:8080", "Gateway base URL")
	f.IntVarP(&simConfig.BatchSize, "batch", "b", 50, "Readings per batch")
	f.DurationVarP(&simConfig.Interval, "interval", "i", time.Second, "Time between batches")
	f.IntVarP(&simConfig.Workers, "workers", "w", 4, "Concurrent senders")
	f.DurationVarP(&simConfig.Duration, "duration", "d", time.Minute, "How long to run (0 runs until interrupted)")
	f.IntVar(&simConfig.MaxSensors, "max-sensors", 0, "Only simulate the first N sensors (0 for all)")
	f.Int64Var(&simConfig.Seed, "seed", 0, "Random seed (0 uses the current time)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	_, logger, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	results, err := simulator.New(simConfig, nil, logger).Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	successRate, avgLatency := results.Stats()
	fmt.Printf("\n=== Simulation Results ===\n")
	fmt.Printf("Total Requests: %d\n", results.TotalRequests)
	fmt.Printf("Successful Requests: %d\n", results.SuccessRequests)
	fmt.Printf("Failed Requests: %d\n", results.FailedRequests)
	fmt.Printf("Records Sent: %d\n", results.RecordsSent)
	fmt.Printf("Success Rate: %.2f%%\n", successRate)
	fmt.Printf("Average Latency: %v\n", avgLatency.Round(time.Millisecond))
	fmt.Printf("Min Latency: %v\n", results.MinLatency.Round(time.Millisecond))
	fmt.Printf("Max Latency: %v\n", results.MaxLatency.Round(time.Millisecond))
	fmt.Printf("Throughput: %.2f records/second\n", float64(results.RecordsSent)/elapsed.Seconds())

	if len(results.Errors) > 0 {
		fmt.Printf("\n=== Errors (showing first 10) ===\n")
		for i, e := range results.Errors {
			if i >= 10 {
				fmt.Printf("... and %d more errors\n", len(results.Errors)-10)
				break
			}
			fmt.Printf("- %s\n", e)
		}
	}
	return nil
}
