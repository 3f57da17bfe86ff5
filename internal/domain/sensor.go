package domain

import (
	"context"
	"encoding/json"
	"time"
)

const LocationPoint = "Point"

// Location is a GeoJSON point. Coordinates are ordered [longitude, latitude].
type Location struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

// SensorRecord is the configuration or reading of a single sensor.
// Type-specific fields are optional and only populated for the sensor types
// that use them.
type SensorRecord struct {
	ID          string     `json:"id" bson:"_id"`
	Type        string     `json:"type" bson:"type"`
	Location    *Location  `json:"location,omitempty" bson:"location,omitempty"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty" bson:"last_updated,omitempty"`

	RoadSegmentID *string  `json:"roadSegmentId,omitempty" bson:"road_segment_id,omitempty"`
	LaneNumber    *int     `json:"laneNumber,omitempty" bson:"lane_number,omitempty"`
	Direction     *string  `json:"direction,omitempty" bson:"direction,omitempty"`
	Height        *float64 `json:"height,omitempty" bson:"height,omitempty"`
	AreaType      *string  `json:"areaType,omitempty" bson:"area_type,omitempty"`
	RoadName      *string  `json:"roadName,omitempty" bson:"road_name,omitempty"`
	Quality       *string  `json:"quality,omitempty" bson:"quality,omitempty"`
}

// Longitude returns the first coordinate of the record's location.
func (s SensorRecord) Longitude() (float64, bool) {
	if s.Location == nil || len(s.Location.Coordinates) < 1 {
		return 0, false
	}
	return s.Location.Coordinates[0], true
}

// Latitude returns the second coordinate of the record's location.
func (s SensorRecord) Latitude() (float64, bool) {
	if s.Location == nil || len(s.Location.Coordinates) < 2 {
		return 0, false
	}
	return s.Location.Coordinates[1], true
}

// sensorRecordJSON avoids recursing into MarshalJSON.
type sensorRecordJSON SensorRecord

// MarshalJSON adds the derived longitude and latitude to the encoded record.
func (s SensorRecord) MarshalJSON() ([]byte, error) {
	out := struct {
		sensorRecordJSON
		Longitude *float64 `json:"longitude,omitempty"`
		Latitude  *float64 `json:"latitude,omitempty"`
	}{sensorRecordJSON: sensorRecordJSON(s)}

	if lon, ok := s.Longitude(); ok {
		out.Longitude = &lon
	}
	if lat, ok := s.Latitude(); ok {
		out.Latitude = &lat
	}
	return json.Marshal(out)
}

type SensorStore interface {
	ListSensors(ctx context.Context) ([]SensorRecord, error)
	Close() error
}
