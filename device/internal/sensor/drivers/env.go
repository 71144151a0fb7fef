package drivers

import (
	"context"

	"periph.io/x/conn/v3/physic"

	"labmonitor/device/internal/sensor"
)

// envSensor is the periph.io physic.SenseEnv shape plus Halt.
type envSensor interface {
	Sense(e *physic.Env) error
	Halt() error
}

// envHandle adapts an envSensor to sensor.Handle, reporting only the
// metrics the part actually measures.
type envHandle struct {
	dev      envSensor
	name     string
	humidity bool
	pressure bool
}

func (h *envHandle) ReadRaw(ctx context.Context) (sensor.RawReading, error) {
	if err := ctx.Err(); err != nil {
		return sensor.RawReading{}, sensor.Unavailable(h.name, err)
	}
	var e physic.Env
	if err := h.dev.Sense(&e); err != nil {
		return sensor.RawReading{}, sensor.Unavailable(h.name, err)
	}
	r := sensor.RawReading{Temperature: e.Temperature.Celsius()}
	if h.humidity {
		r.Humidity = sensor.Float(humidityPercent(e.Humidity))
	}
	if h.pressure {
		r.Pressure = sensor.Float(pressurePascal(e.Pressure))
	}
	return r, nil
}

func (h *envHandle) Halt() error { return h.dev.Halt() }

func humidityPercent(h physic.RelativeHumidity) float64 {
	return float64(h) / float64(physic.PercentRH)
}

func pressurePascal(p physic.Pressure) float64 {
	return float64(p) / float64(physic.Pascal)
}
