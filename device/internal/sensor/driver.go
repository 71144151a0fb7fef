package sensor

import (
	"context"

	"labmonitor/device/internal/sensor/calib"
)

// Driver adapts one sensor model to the reading pipeline.
type Driver interface {
	Model() Model
	// Init opens the part on the bus selected by pins.
	Init(ctx context.Context, pins []int) (Handle, error)
	// CorrectTemperature maps a measured temperature and humidity to a
	// corrected temperature.
	CorrectTemperature(t, rh float64) float64
	// Derive computes the model's derived metrics from a packaged reading.
	Derive(r RawReading) Derived
}

// Handle is a live, initialized part. Handles are owned by a single slot.
type Handle interface {
	ReadRaw(ctx context.Context) (RawReading, error)
	Halt() error
}

// HeatIndexOnly derives the heat index when humidity is present.
func HeatIndexOnly(r RawReading) Derived {
	if r.Humidity == nil {
		return Derived{}
	}
	return Derived{HeatIndex: Float(calib.HeatIndex(r.Temperature, *r.Humidity))}
}
