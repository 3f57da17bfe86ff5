// Package geo indexes sensor locations for radius queries.
package geo

import (
	"fmt"
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/richd0tcom/sensorgate/internal/domain"
)

const (
	tolerance   = 1e-6
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
	earthRadius = 6371.0 // km
)

// Nearby is a sensor with its distance from the query point.
type Nearby struct {
	Sensor     domain.SensorRecord `json:"sensor"`
	DistanceKm float64             `json:"distanceKm"`
}

type spatialSensor struct {
	sensor   domain.SensorRecord
	lat, lon float64
	rect     rtreego.Rect
}

func (s *spatialSensor) Bounds() rtreego.Rect {
	return s.rect
}

// Index is an immutable R-tree over sensors that have both coordinates.
type Index struct {
	tree  *rtreego.Rtree
	count int
}

func NewIndex(sensors []domain.SensorRecord) *Index {
	items := make([]rtreego.Spatial, 0, len(sensors))
	for _, s := range sensors {
		lon, okLon := s.Longitude()
		lat, okLat := s.Latitude()
		if !okLon || !okLat {
			continue
		}
		items = append(items, &spatialSensor{
			sensor: s,
			lat:    lat,
			lon:    lon,
			rect:   rtreego.Point{lat, lon}.ToRect(tolerance),
		})
	}

	return &Index{
		tree:  rtreego.NewTree(dimensions, minChildren, maxChildren, items...),
		count: len(items),
	}
}

// Len returns the number of indexed sensors.
func (idx *Index) Len() int {
	return idx.count
}

// Within returns the sensors within radiusKm of (lat, lon), nearest first.
func (idx *Index) Within(lat, lon, radiusKm float64) ([]Nearby, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("coordinates out of range: lat=%v lon=%v", lat, lon)
	}
	if radiusKm <= 0 || math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) {
		return nil, fmt.Errorf("radius must be positive, got %v", radiusKm)
	}

	// Degrees of latitude per km is constant; longitude degrees widen with latitude.
	dLat := (radiusKm / earthRadius) * (180 / math.Pi)
	dLon := 180.0
	if c := math.Cos(lat * math.Pi / 180); c > 1e-6 {
		dLon = math.Min(dLat/c, 180)
	}

	bounds, err := rtreego.NewRect(
		rtreego.Point{lat - dLat, lon - dLon},
		[]float64{2 * dLat, 2 * dLon},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid radius search: %w", err)
	}

	var out []Nearby
	for _, result := range idx.tree.SearchIntersect(bounds) {
		item, ok := result.(*spatialSensor)
		if !ok {
			continue
		}
		if dist := haversineDistance(lat, lon, item.lat, item.lon); dist <= radiusKm {
			out = append(out, Nearby{Sensor: item.sensor, DistanceKm: dist})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].DistanceKm < out[j].DistanceKm
	})
	return out, nil
}

// haversineDistance calculates the distance between two lat/lon points in kilometers
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180.0
	lon1Rad := lon1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	lon2Rad := lon2 * math.Pi / 180.0

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadius * c
}
