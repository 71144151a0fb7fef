package drivers

import (
	"context"

	"periph.io/x/devices/v3/bmxx80"

	"labmonitor/device/internal/sensor"
	"labmonitor/device/internal/sensor/calib"
)

// bmxAddress is the I²C address with SDO tied high, as on most breakouts.
const bmxAddress uint16 = 0x77

// BME280 reads temperature, humidity and pressure.
func BME280(buses Buses) sensor.Driver {
	return &driver{
		model:   sensor.ModelBME280,
		open:    openBMX(buses, sensor.ModelBME280, true),
		correct: calib.BME280Poly.Eval,
		derive:  sensor.HeatIndexOnly,
	}
}

// BMP280 reads temperature and pressure.
func BMP280(buses Buses) sensor.Driver {
	return &driver{
		model: sensor.ModelBMP280,
		open:  openBMX(buses, sensor.ModelBMP280, false),
	}
}

func openBMX(buses Buses, model sensor.Model, humidity bool) func(context.Context, []int) (sensor.Handle, error) {
	return func(_ context.Context, pins []int) (sensor.Handle, error) {
		opts := bmxx80.DefaultOpts
		var (
			dev *bmxx80.Dev
			err error
		)
		if usesSPI(pins) {
			port, perr := buses.SPI(pins)
			if perr != nil {
				return nil, perr
			}
			dev, err = bmxx80.NewSPI(port, &opts)
		} else {
			bus, berr := buses.I2C(pins)
			if berr != nil {
				return nil, berr
			}
			dev, err = bmxx80.NewI2C(bus, bmxAddress, &opts)
		}
		if err != nil {
			return nil, err
		}
		return &envHandle{dev: dev, name: string(model), humidity: humidity, pressure: true}, nil
	}
}
