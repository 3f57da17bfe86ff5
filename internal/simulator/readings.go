package simulator

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/richd0tcom/sensorgate/internal/domain"
)

var (
	directions     = []string{"Northbound", "Southbound", "Eastbound", "Westbound"}
	roadConditions = []string{"Dry", "Wet", "Very Wet", "Icy", "Snow Covered"}
	riskLevels     = []string{"Low", "Medium", "High", "Critical"}
)

// Reading types produced per sensor type.
const (
	ReadingVehicleCount    = "VehicleCount"
	ReadingVehicleSpeed    = "VehicleSpeed"
	ReadingAirQuality      = "AirQuality"
	ReadingRoadCondition   = "RoadCondition"
	ReadingPedestrianCount = "PedestrianCount"
)

var readingsBySensorType = map[string][]string{
	"Radar":             {ReadingVehicleCount, ReadingVehicleSpeed},
	"Camera":            {ReadingVehicleCount, ReadingVehicleSpeed},
	"AirQualityStation": {ReadingAirQuality},
	"RoadSensor":        {ReadingRoadCondition},
	"PedestrianSensor":  {ReadingPedestrianCount},
}

// ReadingGenerator builds synthetic readings for configured sensors.
type ReadingGenerator struct {
	rng *rand.Rand
	now func() time.Time
}

func NewReadingGenerator(seed int64) *ReadingGenerator {
	return &ReadingGenerator{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
}

// Reading returns one reading document for s.
func (g *ReadingGenerator) Reading(s domain.SensorRecord) map[string]any {
	kinds, ok := readingsBySensorType[s.Type]
	if !ok {
		kinds = []string{ReadingVehicleCount}
	}
	kind := kinds[g.rng.Intn(len(kinds))]

	doc := map[string]any{
		"reading_id":       uuid.NewString(),
		"timestamp":        g.now().UTC().Format(time.RFC3339Nano),
		"sensor_id":        s.ID,
		"sensor_type":      s.Type,
		"type":             kind,
		"direction":        g.pick(directions),
		"confidence_score": g.float(0.85, 0.99),
	}
	if s.Location != nil {
		doc["location"] = s.Location
	}
	if s.RoadSegmentID != nil {
		doc["road_segment_id"] = *s.RoadSegmentID
	} else if lon, okLon := s.Longitude(); okLon {
		lat, _ := s.Latitude()
		doc["road_segment_id"] = fmt.Sprintf("ROAD-%.4f-%.4f", lon, lat)
	}
	if s.LaneNumber != nil {
		doc["lane_number"] = *s.LaneNumber
	} else {
		doc["lane_number"] = g.intn(1, 4)
	}

	doc["data"] = g.data(kind, s)
	return doc
}

func (g *ReadingGenerator) data(kind string, s domain.SensorRecord) map[string]any {
	switch kind {
	case ReadingVehicleSpeed:
		avg := g.float(40, 90)
		speeds := make([]map[string]any, g.intn(1, 5))
		for i := range speeds {
			speeds[i] = map[string]any{
				"vehicle_id": g.vehicleID(),
				"speed_kmh":  g.float(avg-10, avg+10),
			}
		}
		return map[string]any{
			"average_speed_kmh":            avg,
			"vehicle_speeds":               speeds,
			"speed_limit_kmh":              60,
			"measurement_interval_seconds": 60,
		}
	case ReadingAirQuality:
		height := 2.5
		if s.Height != nil {
			height = *s.Height
		}
		pm25 := g.float(5, 75)
		return map[string]any{
			"co_ppm":                       g.float(0.1, 9),
			"no2_ppb":                      g.float(5, 100),
			"pm2_5_ug_per_m3":              pm25,
			"pm10_ug_per_m3":               round2(pm25 * 1.5),
			"aqi":                          g.intn(20, 150),
			"sensor_height_meters":         height,
			"measurement_interval_seconds": 300,
		}
	case ReadingRoadCondition:
		return map[string]any{
			"road_condition":              g.pick(roadConditions),
			"surface_temperature_celsius": g.float(-5, 45),
			"pothole_detected":            g.rng.Float64() < 0.05,
			"icing_risk_level":            g.pick(riskLevels),
			"friction_index":              g.float(0.4, 0.9),
		}
	case ReadingPedestrianCount:
		return map[string]any{
			"pedestrian_count":             g.intn(0, 120),
			"cyclist_count":                g.intn(0, 30),
			"measurement_interval_seconds": 60,
		}
	default:
		total := g.intn(10, 200)
		return map[string]any{
			"vehicle_count": total,
			"vehicle_class_counts": map[string]int{
				"car":        total * 7 / 10,
				"truck":      g.intn(0, total*15/100),
				"bus":        g.intn(0, total*5/100),
				"motorcycle": g.intn(0, total/10),
			},
			"measurement_interval_seconds": 60,
		}
	}
}

func (g *ReadingGenerator) vehicleID() string {
	return fmt.Sprintf("%d-%c%c", g.intn(1000, 9999), 'A'+rune(g.rng.Intn(26)), 'A'+rune(g.rng.Intn(26)))
}

func (g *ReadingGenerator) pick(values []string) string {
	return values[g.rng.Intn(len(values))]
}

// intn returns an int in [lo, hi].
func (g *ReadingGenerator) intn(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.rng.Intn(hi-lo+1)
}

func (g *ReadingGenerator) float(lo, hi float64) float64 {
	return round2(lo + g.rng.Float64()*(hi-lo))
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
