package db

import (
	"testing"
	"time"

	"github.com/richd0tcom/sensorgate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestNormalizeDocumentNested(t *testing.T) {
	updated := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	doc := bson.M{
		"_id":  "CAME-0012",
		"type": "Camera",
		"location": bson.D{
			{Key: "type", Value: "Point"},
			{Key: "coordinates", Value: bson.A{19.8186, 41.3275}},
		},
		"last_updated": bson.NewDateTimeFromTime(updated),
		"lane_number":  int32(3),
	}

	out := normalizeDocument(doc)

	loc, ok := out["location"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{19.8186, 41.3275}, loc["coordinates"])
	assert.Equal(t, updated, out["last_updated"])

	s := domain.FromDocument(out)
	assert.Equal(t, "CAME-0012", s.ID)
	lat, ok := s.Latitude()
	require.True(t, ok)
	assert.Equal(t, 41.3275, lat)
	require.NotNil(t, s.LaneNumber)
	assert.Equal(t, 3, *s.LaneNumber)
	require.NotNil(t, s.LastUpdated)
	assert.True(t, updated.Equal(*s.LastUpdated))
}

func TestNormalizeDocumentEmbeddedM(t *testing.T) {
	out := normalizeDocument(bson.M{
		"location": bson.M{"type": "Point", "coordinates": bson.A{int32(19), 41.5}},
	})

	s := domain.FromDocument(out)
	lon, ok := s.Longitude()
	require.True(t, ok)
	assert.Equal(t, 19.0, lon)
}
