package db

import (
	"context"
	"fmt"
	"time"

	"github.com/richd0tcom/sensorgate/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const SensorConfigCollection = "sensor-config"

type MongoSensorStore struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
}

func NewMongoConnection(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client, nil
}

func NewMongoSensorStore(client *mongo.Client, database string) *MongoSensorStore {
	db := client.Database(database)
	return &MongoSensorStore{
		client:     client,
		db:         db,
		collection: db.Collection(SensorConfigCollection),
	}
}

// ListSensors returns every sensor configuration in the collection. Documents
// are decoded loosely so a badly typed field never fails the listing.
func (m *MongoSensorStore) ListSensors(ctx context.Context) ([]domain.SensorRecord, error) {
	cursor, err := m.collection.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", SensorConfigCollection, err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", SensorConfigCollection, err)
	}

	sensors := make([]domain.SensorRecord, 0, len(docs))
	for _, doc := range docs {
		sensors = append(sensors, domain.FromDocument(normalizeDocument(doc)))
	}
	return sensors, nil
}

// UpsertSensors replaces each sensor by id, inserting the ones that do not
// exist yet.
func (m *MongoSensorStore) UpsertSensors(ctx context.Context, sensors []domain.SensorRecord) (int64, error) {
	if len(sensors) == 0 {
		return 0, nil
	}

	models := make([]mongo.WriteModel, len(sensors))
	for i, s := range sensors {
		models[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: s.ID}}).
			SetReplacement(s).
			SetUpsert(true)
	}

	opts := options.BulkWrite().SetOrdered(false)
	res, err := m.collection.BulkWrite(ctx, models, opts)
	if err != nil {
		return 0, fmt.Errorf("upsert sensors: %w", err)
	}
	return res.UpsertedCount + res.ModifiedCount, nil
}

// EnsureIndexes creates the geospatial and lookup indexes on the collection.
func (m *MongoSensorStore) EnsureIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "type", Value: 1}}},
		{Keys: bson.D{{Key: "road_segment_id", Value: 1}}},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("create indexes on %s: %w", SensorConfigCollection, err)
	}
	return nil
}

func (m *MongoSensorStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// normalizeDocument converts driver container types into plain Go maps and
// slices so the domain layer can stay free of bson types.
func normalizeDocument(doc bson.M) map[string]any {
	return normalizeValue(doc).(map[string]any)
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeValue(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeValue(val)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeValue(val)
		}
		return out
	case bson.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}
