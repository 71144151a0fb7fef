package drivers

import (
	"context"

	"labmonitor/device/internal/devices/max31865"
	"labmonitor/device/internal/sensor"
)

// MAX31865 reads a PT100 probe through the RTD converter.
func MAX31865(buses Buses) sensor.Driver {
	return &driver{
		model: sensor.ModelMAX31865,
		open: func(_ context.Context, pins []int) (sensor.Handle, error) {
			if err := requireSPI(pins); err != nil {
				return nil, err
			}
			port, err := buses.SPI(pins)
			if err != nil {
				return nil, err
			}
			dev, err := max31865.NewSPI(port, &max31865.DefaultOpts)
			if err != nil {
				return nil, err
			}
			return &envHandle{dev: dev, name: string(sensor.ModelMAX31865)}, nil
		},
	}
}
