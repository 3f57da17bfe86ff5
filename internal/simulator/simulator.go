// Package simulator drives the ingest API with synthetic readings for the
// configured sensors and reports throughput and latency.
package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/richd0tcom/sensorgate/internal/domain"
	"github.com/richd0tcom/sensorgate/internal/seed"
)

type Config struct {
	BaseURL    string
	BatchSize  int
	Interval   time.Duration
	Workers    int
	Duration   time.Duration
	MaxSensors int
	Seed       int64
}

type Simulator struct {
	config   Config
	client   *http.Client
	readings *ReadingGenerator
	logger   *slog.Logger
}

func New(config Config, client *http.Client, logger *slog.Logger) *Simulator {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	if config.Seed == 0 {
		config.Seed = time.Now().UnixNano()
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Simulator{
		config:   config,
		client:   client,
		readings: NewReadingGenerator(config.Seed),
		logger:   logger.With("component", "simulator"),
	}
}

// FetchSensors loads the configured sensors from the gateway. When the
// gateway has none, a small generated set is used instead.
func (s *Simulator) FetchSensors(ctx context.Context) ([]domain.SensorRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.BaseURL+"/sensors", nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sensors: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch sensors: unexpected status %d", resp.StatusCode)
	}

	var sensors []domain.SensorRecord
	if err := json.NewDecoder(resp.Body).Decode(&sensors); err != nil {
		return nil, fmt.Errorf("decode sensors: %w", err)
	}

	if len(sensors) == 0 {
		s.logger.Warn("gateway returned no sensors, using generated ones")
		sensors = seed.NewGenerator(s.config.Seed).Generate(20)
	}
	if s.config.MaxSensors > 0 && len(sensors) > s.config.MaxSensors {
		sensors = sensors[:s.config.MaxSensors]
	}
	return sensors, nil
}

// Batch builds one batch of readings from randomly chosen sensors.
func (s *Simulator) Batch(rng *rand.Rand, sensors []domain.SensorRecord) []map[string]any {
	batch := make([]map[string]any, s.config.BatchSize)
	for i := range batch {
		batch[i] = s.readings.Reading(sensors[rng.Intn(len(sensors))])
	}
	return batch
}

// Send posts one batch to the ingest endpoint.
func (s *Simulator) Send(ctx context.Context, batch []map[string]any) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/ingest", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

// Run sends a batch every interval, spread over the configured workers,
// until ctx is done or the duration elapses.
func (s *Simulator) Run(ctx context.Context) (*Results, error) {
	sensors, err := s.FetchSensors(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("starting simulation",
		"sensors", len(sensors),
		"batch_size", s.config.BatchSize,
		"interval", s.config.Interval,
		"workers", s.config.Workers)

	// In-flight requests finish even when the duration elapses mid-send.
	sendCtx := ctx
	if s.config.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Duration)
		defer cancel()
	}

	results := &Results{}
	batches := make(chan []map[string]any, s.config.Workers)

	var wg sync.WaitGroup
	for range s.config.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range batches {
				start := time.Now()
				err := s.Send(sendCtx, batch)
				results.AddResult(err == nil, len(batch), time.Since(start), err)
			}
		}()
	}

	rng := rand.New(rand.NewSource(s.config.Seed))
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			select {
			case batches <- s.Batch(rng, sensors):
			case <-ctx.Done():
				break loop
			}
		}
	}

	close(batches)
	wg.Wait()
	return results, nil
}

type Results struct {
	mu sync.RWMutex

	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	RecordsSent     int64
	TotalLatency    time.Duration
	MinLatency      time.Duration
	MaxLatency      time.Duration
	Errors          []string
}

func (r *Results) AddResult(success bool, records int, latency time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.TotalRequests++
	r.TotalLatency += latency

	if r.MinLatency == 0 || latency < r.MinLatency {
		r.MinLatency = latency
	}
	if latency > r.MaxLatency {
		r.MaxLatency = latency
	}

	if success {
		r.SuccessRequests++
		r.RecordsSent += int64(records)
		return
	}
	r.FailedRequests++
	if err != nil && len(r.Errors) < 100 {
		r.Errors = append(r.Errors, err.Error())
	}
}

// Stats returns the success rate in percent and the mean latency.
func (r *Results) Stats() (float64, time.Duration) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.TotalRequests == 0 {
		return 0, 0
	}
	successRate := float64(r.SuccessRequests) / float64(r.TotalRequests) * 100
	avgLatency := r.TotalLatency / time.Duration(r.TotalRequests)
	return successRate, avgLatency
}
