package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/richd0tcom/sensorgate/internal/broker"
	"github.com/richd0tcom/sensorgate/internal/domain"
)

// Dispatcher fans a batch of raw documents out to the message queue, one
// goroutine per document.
type Dispatcher struct {
	queue  broker.MessageQueue
	logger *slog.Logger
}

func NewDispatcher(queue broker.MessageQueue, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		queue:  queue,
		logger: logger,
	}
}

// Dispatch publishes every document and returns only after each publish has
// succeeded or failed. A failed publish does not cancel the others. The
// returned error joins every failure; sent counts the successes.
func (d *Dispatcher) Dispatch(ctx context.Context, batchID string, docs []json.RawMessage) (int, error) {
	start := time.Now()

	var (
		wg   sync.WaitGroup
		errs = make([]error, len(docs))
	)

	for i, doc := range docs {
		wg.Add(1)
		go func(i int, doc json.RawMessage) {
			defer wg.Done()

			key := domain.DocumentID(doc)
			if err := d.queue.Publish(ctx, key, doc); err != nil {
				errs[i] = fmt.Errorf("record %d (id %q): %w", i, key, err)
			}
		}(i, doc)
	}

	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	sent := len(docs) - failed

	d.logger.Debug("dispatched batch",
		"batch_id", batchID,
		"records", len(docs),
		"failed", failed,
		"duration", time.Since(start))

	if failed > 0 {
		return sent, errors.Join(errs...)
	}
	return sent, nil
}
