package drivers

import (
	"context"
	"errors"

	"periph.io/x/conn/v3/physic"

	"labmonitor/device/internal/devices/aht2x"
	"labmonitor/device/internal/devices/ens160"
	"labmonitor/device/internal/sensor"
)

// ENS160AHT21 drives the combined breakout: the AHT21 supplies temperature
// and humidity, which are fed to the ENS160 as compensation before its
// air-quality outputs are read.
func ENS160AHT21(buses Buses) sensor.Driver {
	return &driver{
		model: sensor.ModelENS160AHT21,
		open: func(_ context.Context, pins []int) (sensor.Handle, error) {
			if err := requireI2C(pins); err != nil {
				return nil, err
			}
			bus, err := buses.I2C(pins)
			if err != nil {
				return nil, err
			}
			th, err := aht2x.New(bus)
			if err != nil {
				return nil, err
			}
			return pairWith(th, func() (airSensor, error) {
				aq, err := ens160.New(bus, ens160.DefaultAddress)
				if err != nil {
					return nil, err
				}
				return aq, nil
			})
		},
		derive: deriveUBA,
	}
}

// pairWith opens the air-quality half of the breakout. The already open
// thermometer is halted when that fails.
func pairWith(th envSensor, openAQ func() (airSensor, error)) (sensor.Handle, error) {
	aq, err := openAQ()
	if err != nil {
		return nil, errors.Join(err, th.Halt())
	}
	return &comboHandle{th: th, aq: aq}, nil
}

type airSensor interface {
	Compensate(celsius, rh float64) error
	Sense() (ens160.Data, error)
	Halt() error
}

type comboHandle struct {
	th envSensor
	aq airSensor
}

func (h *comboHandle) ReadRaw(ctx context.Context) (sensor.RawReading, error) {
	const name = "ENS160_AHT21"
	if err := ctx.Err(); err != nil {
		return sensor.RawReading{}, sensor.Unavailable(name, err)
	}
	var e physic.Env
	if err := h.th.Sense(&e); err != nil {
		return sensor.RawReading{}, sensor.Unavailable(name, err)
	}
	t, rh := e.Temperature.Celsius(), humidityPercent(e.Humidity)
	if err := h.aq.Compensate(t, rh); err != nil {
		return sensor.RawReading{}, sensor.Unavailable(name, err)
	}
	d, err := h.aq.Sense()
	if err != nil {
		return sensor.RawReading{}, sensor.Unavailable(name, err)
	}
	return sensor.RawReading{
		Temperature: t,
		Humidity:    sensor.Float(rh),
		AirQuality:  sensor.Float(float64(d.AQI)),
		TVOC:        sensor.Float(float64(d.TVOC)),
		ECO2:        sensor.Float(float64(d.ECO2)),
	}, nil
}

func (h *comboHandle) Halt() error {
	return errors.Join(h.aq.Halt(), h.th.Halt())
}

// deriveUBA passes the chip's own UBA index through as the air-quality
// index.
func deriveUBA(r sensor.RawReading) sensor.Derived {
	d := sensor.HeatIndexOnly(r)
	if r.AirQuality != nil {
		d.AirQualityIndex = sensor.Float(*r.AirQuality)
	}
	return d
}
