package drivers

import (
	"context"

	"labmonitor/device/internal/devices/bme680"
	"labmonitor/device/internal/sensor"
	"labmonitor/device/internal/sensor/calib"
)

// BME680 reads temperature, humidity, pressure and hotplate gas
// resistance, and derives an air-quality index from the last two.
func BME680(buses Buses, aqi calib.AQIParams) sensor.Driver {
	return &driver{
		model: sensor.ModelBME680,
		open: func(_ context.Context, pins []int) (sensor.Handle, error) {
			var (
				dev *bme680.Dev
				err error
			)
			if usesSPI(pins) {
				port, perr := buses.SPI(pins)
				if perr != nil {
					return nil, perr
				}
				dev, err = bme680.NewSPI(port, &bme680.DefaultOpts)
			} else {
				bus, berr := buses.I2C(pins)
				if berr != nil {
					return nil, berr
				}
				dev, err = bme680.NewI2C(bus, bme680.DefaultAddress, &bme680.DefaultOpts)
			}
			if err != nil {
				return nil, err
			}
			return &gasHandle{dev: dev}, nil
		},
		correct: calib.BME680Poly.Eval,
		derive:  deriveGas(aqi),
	}
}

type gasSensor interface {
	Sense(e *bme680.Env) error
	Halt() error
}

type gasHandle struct {
	dev gasSensor
}

func (h *gasHandle) ReadRaw(ctx context.Context) (sensor.RawReading, error) {
	if err := ctx.Err(); err != nil {
		return sensor.RawReading{}, sensor.Unavailable("BME680", err)
	}
	var e bme680.Env
	if err := h.dev.Sense(&e); err != nil {
		return sensor.RawReading{}, sensor.Unavailable("BME680", err)
	}
	r := sensor.RawReading{
		Temperature: e.Temperature.Celsius(),
		Humidity:    sensor.Float(humidityPercent(e.Humidity)),
		Pressure:    sensor.Float(pressurePascal(e.Pressure)),
	}
	if e.GasValid {
		r.GasResistance = sensor.Float(e.GasResistance)
	}
	return r, nil
}

func (h *gasHandle) Halt() error { return h.dev.Halt() }

func deriveGas(p calib.AQIParams) func(sensor.RawReading) sensor.Derived {
	return func(r sensor.RawReading) sensor.Derived {
		d := sensor.HeatIndexOnly(r)
		if r.Humidity == nil || r.GasResistance == nil {
			return d
		}
		if v, err := calib.AirQualityIndex(*r.Humidity, *r.GasResistance, p); err == nil {
			d.AirQualityIndex = sensor.Float(v)
		}
		return d
	}
}
