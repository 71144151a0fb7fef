package drivers

import (
	"context"

	"labmonitor/device/internal/devices/aht2x"
	"labmonitor/device/internal/sensor"
)

// AHT21 reads temperature and humidity.
func AHT21(buses Buses) sensor.Driver {
	return &driver{
		model: sensor.ModelAHT21,
		open: func(_ context.Context, pins []int) (sensor.Handle, error) {
			if err := requireI2C(pins); err != nil {
				return nil, err
			}
			bus, err := buses.I2C(pins)
			if err != nil {
				return nil, err
			}
			dev, err := aht2x.New(bus)
			if err != nil {
				return nil, err
			}
			return &envHandle{dev: dev, name: string(sensor.ModelAHT21), humidity: true}, nil
		},
		derive: sensor.HeatIndexOnly,
	}
}
