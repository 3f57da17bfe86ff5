// Package consumer reads sensor records back off the message queue.
package consumer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/richd0tcom/sensorgate/internal/domain"
)

// LogConsumer logs every record it sees. It is meant for inspecting what the
// gateway publishes, not for processing.
type LogConsumer struct {
	name   string
	logger *slog.Logger
	seen   atomic.Int64
}

func NewLogConsumer(name string, logger *slog.Logger) *LogConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogConsumer{
		name:   name,
		logger: logger.With("consumer", name),
	}
}

// Process is a broker.MessageQueue Consume handler.
func (l *LogConsumer) Process(data []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%s: decode record: %w", l.name, err)
	}

	record := domain.FromDocument(doc)
	n := l.seen.Add(1)

	attrs := []any{
		"n", n,
		"sensor_id", record.ID,
		"type", record.Type,
		"bytes", len(data),
	}
	if lon, ok := record.Longitude(); ok {
		attrs = append(attrs, "lon", lon)
	}
	if lat, ok := record.Latitude(); ok {
		attrs = append(attrs, "lat", lat)
	}
	l.logger.Info("record", attrs...)
	return nil
}

// Seen returns the number of records processed.
func (l *LogConsumer) Seen() int64 {
	return l.seen.Load()
}
