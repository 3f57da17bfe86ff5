package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const HeaderSensorID = "Sensor-Id"

// NATSQueue publishes to a JetStream subject. The backing stream is created
// on first use when it does not exist yet.
type NATSQueue struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
	stream  string
	logger  *slog.Logger
}

// StreamName derives a JetStream stream name from a subject.
func StreamName(subject string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "*", "ALL", ">", "ALL", " ", "_")
	return strings.ToUpper(r.Replace(subject))
}

func NewNATSQueue(url, subject, stream string, logger *slog.Logger) (*NATSQueue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if stream == "" {
		stream = StreamName(subject)
	}
	logger = logger.With("broker", "nats", "subject", subject)

	nc, err := nats.Connect(url,
		nats.Name("sensorgate"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	q := &NATSQueue{
		nc:      nc,
		js:      js,
		subject: subject,
		stream:  stream,
		logger:  logger,
	}
	if err := q.ensureStream(); err != nil {
		nc.Close()
		return nil, err
	}

	return q, nil
}

func (q *NATSQueue) ensureStream() error {
	_, err := q.js.StreamInfo(q.stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", q.stream, err)
	}

	_, err = q.js.AddStream(&nats.StreamConfig{
		Name:      q.stream,
		Subjects:  []string{q.subject},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", q.stream, err)
	}

	q.logger.Info("created stream", "stream", q.stream)
	return nil
}

func (q *NATSQueue) Publish(ctx context.Context, key string, data []byte) error {
	if q.nc.IsClosed() {
		return ErrClosed
	}

	msg := nats.NewMsg(q.subject)
	msg.Data = data
	if key != "" {
		msg.Header.Set(HeaderSensorID, key)
	}

	if _, err := q.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Consume delivers new messages on the subject to handler until ctx is done.
func (q *NATSQueue) Consume(ctx context.Context, handler func([]byte) error) error {
	sub, err := q.js.Subscribe(q.subject, func(msg *nats.Msg) {
		if err := handler(msg.Data); err != nil {
			q.logger.Error("error processing message", "error", err)
		}
		if err := msg.Ack(); err != nil {
			q.logger.Warn("error acknowledging message", "error", err)
		}
	}, nats.DeliverNew(), nats.ManualAck())
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	return ctx.Err()
}

func (q *NATSQueue) Close() error {
	if q.nc.IsClosed() {
		return nil
	}
	if err := q.nc.Drain(); err != nil {
		q.nc.Close()
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}
