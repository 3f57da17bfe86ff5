package broker

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runJetStream(t *testing.T) *server.Server {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	require.NoError(t, err)

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatal("nats server not ready for connections")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

func TestNATSQueuePublishConsume(t *testing.T) {
	ns := runJetStream(t)

	q, err := NewNATSQueue(ns.ClientURL(), "sensor-data", "", nil)
	require.NoError(t, err)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan string, 1)
	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- q.Consume(ctx, func(b []byte) error {
			select {
			case received <- string(b):
			default:
			}
			return nil
		})
	}()

	// Consume subscribes asynchronously; keep publishing until the
	// deliver-new consumer sees a message.
	var got string
	require.Eventually(t, func() bool {
		if err := q.Publish(ctx, "s1", []byte(`{"id":"s1"}`)); err != nil {
			return false
		}
		select {
		case got = <-received:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 4*time.Second, 10*time.Millisecond)
	assert.Equal(t, `{"id":"s1"}`, got)

	cancel()
	assert.ErrorIs(t, <-consumeErr, context.Canceled)
}

func TestNATSQueueReusesExistingStream(t *testing.T) {
	ns := runJetStream(t)

	first, err := NewNATSQueue(ns.ClientURL(), "sensor-data", "", nil)
	require.NoError(t, err)
	defer first.Close()

	second, err := NewNATSQueue(ns.ClientURL(), "sensor-data", "", nil)
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, second.Publish(context.Background(), "", []byte(`{}`)))

	info, err := second.js.StreamInfo("SENSOR_DATA")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.State.Msgs)
}

func TestNATSQueuePublishAfterClose(t *testing.T) {
	ns := runJetStream(t)

	q, err := NewNATSQueue(ns.ClientURL(), "sensor-data", "", nil)
	require.NoError(t, err)
	require.NoError(t, q.Close())

	require.Eventually(t, q.nc.IsClosed, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, q.Publish(context.Background(), "", []byte(`{}`)), ErrClosed)
}
