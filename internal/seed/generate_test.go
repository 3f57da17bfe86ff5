package seed

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var idPattern = regexp.MustCompile(`^[A-Z]{4}-\d{4}$`)

func TestGenerateShape(t *testing.T) {
	g := NewGenerator(42)
	fixed := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return fixed }

	sensors := g.Generate(300)
	require.Len(t, sensors, 300)

	seen := make(map[string]bool)
	for _, s := range sensors {
		assert.Regexp(t, idPattern, s.ID)
		assert.False(t, seen[s.ID], "duplicate id %s", s.ID)
		seen[s.ID] = true

		assert.Contains(t, SensorTypes, s.Type)
		require.NotNil(t, s.LastUpdated)
		assert.Equal(t, fixed, *s.LastUpdated)

		lon, ok := s.Longitude()
		require.True(t, ok)
		lat, ok := s.Latitude()
		require.True(t, ok)
		// Landmark clusters may sit outside the city box (the airport does).
		assert.InDelta(t, 19.78, lon, 0.1)
		assert.InDelta(t, 41.35, lat, 0.1)

		switch s.Type {
		case "Radar", "Camera":
			require.NotNil(t, s.RoadSegmentID)
			assert.Regexp(t, `^ROAD-(TIA|RIN|KAV|DUR|SHK)-\d{3}$`, *s.RoadSegmentID)
			require.NotNil(t, s.LaneNumber)
			assert.GreaterOrEqual(t, *s.LaneNumber, 1)
			assert.LessOrEqual(t, *s.LaneNumber, 3)
			assert.NotNil(t, s.Direction)
		case "AirQualityStation":
			require.NotNil(t, s.Height)
			assert.GreaterOrEqual(t, *s.Height, 3.0)
			assert.LessOrEqual(t, *s.Height, 8.0)
			assert.Nil(t, s.RoadSegmentID)
		case "PedestrianSensor":
			require.NotNil(t, s.AreaType)
			assert.Contains(t, areaTypes, *s.AreaType)
		case "RoadSensor":
			assert.Nil(t, s.LaneNumber)
			assert.Nil(t, s.AreaType)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a := NewGenerator(7)
	b := NewGenerator(7)
	fixed := time.Unix(0, 0)
	a.now = func() time.Time { return fixed }
	b.now = func() time.Time { return fixed }

	assert.Equal(t, a.Generate(50), b.Generate(50))
}
