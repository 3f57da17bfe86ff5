package broker

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("broker: queue closed")

// MessageQueue carries raw sensor documents to the downstream bus.
// Publish must be safe for concurrent use.
type MessageQueue interface {
	Publish(ctx context.Context, key string, data []byte) error
	Consume(ctx context.Context, handler func([]byte) error) error
	Close() error
}
