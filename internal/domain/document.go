package domain

import (
	"encoding/json"
	"math"
	"time"
)

// FromDocument builds a SensorRecord from a loosely-typed document.
// Unknown keys are ignored. Missing keys and values of an unexpected type
// leave the corresponding field unset.
//
// Keys are accepted in both the wire spelling (roadSegmentId) and the
// store spelling (road_segment_id, _id, last_updated). Readings carry the
// sensor id as sensor_id.
func FromDocument(doc map[string]any) SensorRecord {
	var s SensorRecord
	if doc == nil {
		return s
	}

	s.ID, _ = lookupString(doc, "id", "_id", "sensor_id")
	s.Type, _ = lookupString(doc, "type")

	if v, ok := lookup(doc, "location"); ok {
		s.Location = toLocation(v)
	}
	if v, ok := lookup(doc, "lastUpdated", "last_updated"); ok {
		if t, ok := toTime(v); ok {
			s.LastUpdated = &t
		}
	}

	s.RoadSegmentID = optString(doc, "roadSegmentId", "road_segment_id")
	s.Direction = optString(doc, "direction")
	s.AreaType = optString(doc, "areaType", "area_type")
	s.RoadName = optString(doc, "roadName", "road_name")
	s.Quality = optString(doc, "quality")

	if v, ok := lookup(doc, "laneNumber", "lane_number"); ok {
		if f, ok := toFloat(v); ok && f == math.Trunc(f) {
			n := int(f)
			s.LaneNumber = &n
		}
	}
	if v, ok := lookup(doc, "height"); ok {
		if f, ok := toFloat(v); ok {
			s.Height = &f
		}
	}

	return s
}

// DocumentID returns the string id of a raw JSON document, or "" when the
// document has none.
func DocumentID(raw []byte) string {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	return FromDocument(doc).ID
}

func lookup(doc map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := doc[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// lookupString returns the first of keys holding a string. Keys holding
// other types are skipped.
func lookupString(doc map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if str, ok := doc[k].(string); ok {
			return str, true
		}
	}
	return "", false
}

func optString(doc map[string]any, keys ...string) *string {
	if str, ok := lookupString(doc, keys...); ok {
		return &str
	}
	return nil
}

func toLocation(v any) *Location {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	loc := &Location{Type: LocationPoint}
	if t, ok := m["type"].(string); ok {
		loc.Type = t
	}

	switch coords := m["coordinates"].(type) {
	case []float64:
		loc.Coordinates = append([]float64(nil), coords...)
	case []any:
		// A non-numeric entry drops the coordinates rather than shifting
		// longitude/latitude positions.
		out := make([]float64, 0, len(coords))
		for _, c := range coords {
			f, ok := toFloat(c)
			if !ok {
				out = nil
				break
			}
			out = append(out, f)
		}
		loc.Coordinates = out
	}
	return loc
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}
