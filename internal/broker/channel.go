package broker

import (
	"context"
	"log/slog"
	"sync"
)

// ChannelQueue is an in-process queue backed by a buffered channel.
// It is meant for local runs without a broker.
type ChannelQueue struct {
	messages chan []byte
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
}

func NewChannelQueue(buffer int, logger *slog.Logger) *ChannelQueue {
	if buffer <= 0 {
		buffer = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelQueue{
		messages: make(chan []byte, buffer),
		logger:   logger.With("broker", "channels"),
	}
}

func (c *ChannelQueue) Publish(ctx context.Context, _ string, data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClosed
	}

	msg := make([]byte, len(data))
	copy(msg, data)

	select {
	case c.messages <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *ChannelQueue) Consume(ctx context.Context, handler func([]byte) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-c.messages:
			if !ok {
				return nil
			}
			if err := handler(msg); err != nil {
				c.logger.Error("error processing message", "error", err)
			}
		}
	}
}

// Len reports the number of buffered messages.
func (c *ChannelQueue) Len() int {
	return len(c.messages)
}

func (c *ChannelQueue) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.messages)
	}
	return nil
}
