package geo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/richd0tcom/sensorgate/internal/domain"
)

// Catalog keeps a spatial index of the configured sensors and rebuilds it
// from the store on demand or on an interval.
type Catalog struct {
	store  domain.SensorStore
	logger *slog.Logger

	mu       sync.RWMutex
	index    *Index
	loadedAt time.Time
}

func NewCatalog(store domain.SensorStore, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		store:  store,
		logger: logger.With("component", "catalog"),
	}
}

// Refresh rebuilds the index from the store. The new index is built before
// the lock is taken so readers are never blocked on the store.
func (c *Catalog) Refresh(ctx context.Context) error {
	sensors, err := c.store.ListSensors(ctx)
	if err != nil {
		return fmt.Errorf("refresh catalog: %w", err)
	}
	idx := NewIndex(sensors)

	c.mu.Lock()
	c.index = idx
	c.loadedAt = time.Now()
	c.mu.Unlock()

	c.logger.Info("sensor catalog reloaded", "sensors", len(sensors), "indexed", idx.Len())
	return nil
}

// Index returns the current index, loading it first if needed.
func (c *Catalog) Index(ctx context.Context) (*Index, error) {
	c.mu.RLock()
	idx := c.index
	c.mu.RUnlock()

	if idx != nil {
		return idx, nil
	}
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index, nil
}

// StartAutoRefresh reloads the catalog every interval until ctx is done.
func (c *Catalog) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Error("failed to auto-refresh catalog", "error", err)
			}
		}
	}
}
