package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richd0tcom/sensorgate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type published struct {
	key  string
	data string
}

type fakeQueue struct {
	mu     sync.Mutex
	sent   []published
	failOn map[string]error
	block  bool
	closed bool
}

func (q *fakeQueue) Publish(ctx context.Context, key string, data []byte) error {
	if q.block {
		<-ctx.Done()
		return ctx.Err()
	}
	q.mu.Lock()
	q.sent = append(q.sent, published{key: key, data: string(data)})
	q.mu.Unlock()
	return q.failOn[key]
}

func (q *fakeQueue) Consume(context.Context, func([]byte) error) error { return nil }

func (q *fakeQueue) Close() error {
	q.closed = true
	return nil
}

func (q *fakeQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.sent)
}

type fakeStore struct {
	sensors []domain.SensorRecord
	err     error
	closed  bool
}

func (s *fakeStore) ListSensors(context.Context) ([]domain.SensorRecord, error) {
	return s.sensors, s.err
}

func (s *fakeStore) Close() error {
	s.closed = true
	return nil
}

func newTestServer(t *testing.T, q *fakeQueue, store *fakeStore, opts ...ConfigOption) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	base := []ConfigOption{
		WithLogger(logger),
		WithMessageQueue(q),
		WithSensorStore(store),
	}
	srv, err := NewServer(append(base, opts...)...)
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *Server, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func sensorAt(id string, lon, lat float64) domain.SensorRecord {
	return domain.SensorRecord{
		ID:       id,
		Type:     "Radar",
		Location: &domain.Location{Type: domain.LocationPoint, Coordinates: []float64{lon, lat}},
	}
}

func TestIngestAcceptsBatch(t *testing.T) {
	q := &fakeQueue{}
	srv := newTestServer(t, q, &fakeStore{})

	w := do(t, srv, http.MethodPost, "/ingest",
		strings.NewReader(`[{"id":"s1","type":"Radar"}, {"id":"s2","type":"Camera"}]`))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"status":"success","records_accepted":2}`, w.Body.String())
	assert.ElementsMatch(t, []published{
		{key: "s1", data: `{"id":"s1","type":"Radar"}`},
		{key: "s2", data: `{"id":"s2","type":"Camera"}`},
	}, q.sent)
}

func TestIngestForwardsUnknownFieldsUnchanged(t *testing.T) {
	q := &fakeQueue{}
	srv := newTestServer(t, q, &fakeStore{})

	doc := `{"sensor_id":"RADA-0001","data":{"vehicle_count":12},"extra":[1,2,3]}`
	w := do(t, srv, http.MethodPost, "/ingest", strings.NewReader("["+doc+"]"))

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, q.sent, 1)
	assert.Equal(t, doc, q.sent[0].data)
	assert.Equal(t, "RADA-0001", q.sent[0].key)
}

func TestIngestRejectsInvalidBodies(t *testing.T) {
	tests := []struct {
		name string
		body io.Reader
	}{
		{"absent body", nil},
		{"empty array", strings.NewReader(`[]`)},
		{"null", strings.NewReader(`null`)},
		{"object", strings.NewReader(`{"id":"s1"}`)},
		{"malformed", strings.NewReader(`[{"id":`)},
		{"array of numbers", strings.NewReader(`[1,2]`)},
		{"mixed elements", strings.NewReader(`[{"id":"s1"},"s2"]`)},
		{"null element", strings.NewReader(`[null]`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQueue{}
			srv := newTestServer(t, q, &fakeStore{})

			w := do(t, srv, http.MethodPost, "/ingest", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error":"Request body must be a non-empty JSON array."}`, w.Body.String())
			assert.Zero(t, q.count(), "nothing is dispatched for a rejected batch")
		})
	}
}

func TestIngestOneFailureFailsBatch(t *testing.T) {
	q := &fakeQueue{failOn: map[string]error{"s2": errors.New("broker unavailable")}}
	srv := newTestServer(t, q, &fakeStore{})

	w := do(t, srv, http.MethodPost, "/ingest",
		strings.NewReader(`[{"id":"s1"},{"id":"s2"},{"id":"s3"}]`))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to process batch due to an internal error."}`, w.Body.String())
	assert.Equal(t, 3, q.count(), "remaining sends are not aborted")
}

func TestIngestTimeoutFailsBatch(t *testing.T) {
	q := &fakeQueue{block: true}
	srv := newTestServer(t, q, &fakeStore{}, WithIngestTimeout(20*time.Millisecond))

	w := do(t, srv, http.MethodPost, "/ingest", strings.NewReader(`[{"id":"s1"}]`))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestIngestResubmissionResends(t *testing.T) {
	q := &fakeQueue{}
	srv := newTestServer(t, q, &fakeStore{})

	body := `[{"id":"s1"},{"id":"s2"}]`
	for range 2 {
		w := do(t, srv, http.MethodPost, "/ingest", strings.NewReader(body))
		require.Equal(t, http.StatusAccepted, w.Code)
	}
	assert.Equal(t, 4, q.count())
}

func TestListSensors(t *testing.T) {
	segment := "ROAD-TIA-001"
	store := &fakeStore{sensors: []domain.SensorRecord{
		{
			ID:            "RADA-0001",
			Type:          "Radar",
			Location:      &domain.Location{Type: domain.LocationPoint, Coordinates: []float64{19.8186, 41.3275}},
			RoadSegmentID: &segment,
		},
		{ID: "CAME-0002", Type: "Camera"},
	}}
	srv := newTestServer(t, &fakeQueue{}, store)

	w := do(t, srv, http.MethodGet, "/sensors", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[
		{
			"id": "RADA-0001",
			"type": "Radar",
			"location": {"type": "Point", "coordinates": [19.8186, 41.3275]},
			"roadSegmentId": "ROAD-TIA-001",
			"longitude": 19.8186,
			"latitude": 41.3275
		},
		{"id": "CAME-0002", "type": "Camera"}
	]`, w.Body.String())
}

func TestListSensorsEmpty(t *testing.T) {
	srv := newTestServer(t, &fakeQueue{}, &fakeStore{})

	w := do(t, srv, http.MethodGet, "/sensors", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestListSensorsStoreError(t *testing.T) {
	srv := newTestServer(t, &fakeQueue{}, &fakeStore{err: errors.New("connection refused")})

	w := do(t, srv, http.MethodGet, "/sensors", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to list sensors."}`, w.Body.String())
}

func TestNearbySensors(t *testing.T) {
	store := &fakeStore{sensors: []domain.SensorRecord{
		sensorAt("skanderbeg", 19.8186, 41.3275),
		sensorAt("blloku", 19.8300, 41.3250),
		sensorAt("airport", 19.7206, 41.4147),
	}}
	srv := newTestServer(t, &fakeQueue{}, store)

	w := do(t, srv, http.MethodGet, "/sensors/nearby?lat=41.3275&lon=19.8186&radius_km=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var results []struct {
		Sensor     struct{ ID string } `json:"sensor"`
		DistanceKm float64             `json:"distanceKm"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "skanderbeg", results[0].Sensor.ID)
	assert.Equal(t, "blloku", results[1].Sensor.ID)

	w = do(t, srv, http.MethodGet, "/sensors/nearby?lat=0&lon=0&radius_km=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestNearbySensorsBadParams(t *testing.T) {
	srv := newTestServer(t, &fakeQueue{}, &fakeStore{})

	for _, target := range []string{
		"/sensors/nearby",
		"/sensors/nearby?lat=north&lon=19.8",
		"/sensors/nearby?lat=41.3&lon=19.8&radius_km=wide",
		"/sensors/nearby?lat=95&lon=19.8",
		"/sensors/nearby?lat=41.3&lon=19.8&radius_km=-1",
		"/sensors/nearby?lat=NaN&lon=NaN",
	} {
		w := do(t, srv, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestNearbySensorsStoreError(t *testing.T) {
	srv := newTestServer(t, &fakeQueue{}, &fakeStore{err: errors.New("timeout")})

	w := do(t, srv, http.MethodGet, "/sensors/nearby?lat=41.3&lon=19.8", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, &fakeQueue{}, &fakeStore{})

	w := do(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())

	do(t, srv, http.MethodPost, "/ingest", strings.NewReader(`[{"id":"s1"}]`))
	do(t, srv, http.MethodPost, "/ingest", strings.NewReader(`[]`))

	w = do(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `sensorgate_ingest_batches_total{outcome="accepted"} 1`)
	assert.Contains(t, body, `sensorgate_ingest_batches_total{outcome="rejected"} 1`)
	assert.Contains(t, body, `sensorgate_records_dispatched_total 1`)
}

func TestNewServerRequiresQueueAndStore(t *testing.T) {
	_, err := NewServer(WithSensorStore(&fakeStore{}))
	assert.Error(t, err)

	_, err = NewServer(WithMessageQueue(&fakeQueue{}))
	assert.Error(t, err)

	_, err = NewServer(WithMessageQueue(&fakeQueue{}), WithSensorStore(&fakeStore{}), WithIngestTimeout(0))
	assert.Error(t, err)
}

func TestCloseClosesQueueAndStore(t *testing.T) {
	q := &fakeQueue{}
	store := &fakeStore{}
	srv := newTestServer(t, q, store)

	require.NoError(t, srv.Close())
	assert.True(t, q.closed)
	assert.True(t, store.closed)
}

func TestChannelsQueueIsDrainedLocally(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := NewServer(
		WithLogger(logger),
		WithChannels(2),
		WithSensorStore(&fakeStore{}),
		WithIngestTimeout(time.Second),
	)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.startBackground(ctx)

	// Ten batches of two records is well past the buffer of two.
	for i := range 10 {
		body := fmt.Sprintf(`[{"id":"a%d"},{"id":"b%d"}]`, i, i)
		w := do(t, srv, http.MethodPost, "/ingest", strings.NewReader(body))
		require.Equal(t, http.StatusAccepted, w.Code, "batch %d", i)
	}
}

func TestNewServerClosesQueueOnSetupFailure(t *testing.T) {
	q := &fakeQueue{}
	store := &fakeStore{}

	_, err := NewServer(WithMessageQueue(q), WithSensorStore(store), WithIngestTimeout(0))
	require.Error(t, err)
	assert.True(t, q.closed)
	assert.True(t, store.closed)

	q = &fakeQueue{}
	store = &fakeStore{}
	_, err = NewServer(
		WithMessageQueue(q),
		WithSensorStore(store),
		WithRedisCache("127.0.0.1:1", time.Minute),
	)
	require.Error(t, err)
	assert.True(t, q.closed)
	assert.True(t, store.closed)

	q = &fakeQueue{}
	_, err = NewServer(WithMessageQueue(q))
	require.Error(t, err)
	assert.True(t, q.closed)
}

func TestIngestLogsReceivedBatchAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	srv, err := NewServer(WithLogger(logger), WithMessageQueue(&fakeQueue{}), WithSensorStore(&fakeStore{}))
	require.NoError(t, err)

	w := do(t, srv, http.MethodPost, "/ingest", strings.NewReader(`[{"id":"s1"},{"id":"s2"}]`))
	require.Equal(t, http.StatusAccepted, w.Code)

	assert.Contains(t, buf.String(), `"msg":"received batch"`)
	assert.Contains(t, buf.String(), `"records":2`)
}
