package cache

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/richd0tcom/sensorgate/internal/domain"
)

// Cached listings are stored as CBOR. Struct fields fall back to their json
// tags, so the field names match the HTTP listing.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// Keep sub-second precision on lastUpdated.
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("cache: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("cache: CBOR decoder initialization failed: " + err.Error())
	}
}

func encodeSensors(sensors []domain.SensorRecord) ([]byte, error) {
	return encMode.Marshal(sensors)
}

func decodeSensors(data []byte) ([]domain.SensorRecord, error) {
	var sensors []domain.SensorRecord
	if err := decMode.Unmarshal(data, &sensors); err != nil {
		return nil, err
	}
	return sensors, nil
}
