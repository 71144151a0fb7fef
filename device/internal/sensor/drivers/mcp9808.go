package drivers

import (
	"context"

	"periph.io/x/devices/v3/mcp9808"

	"labmonitor/device/internal/sensor"
)

// MCP9808 reads temperature only.
func MCP9808(buses Buses) sensor.Driver {
	return &driver{
		model: sensor.ModelMCP9808,
		open: func(_ context.Context, pins []int) (sensor.Handle, error) {
			if err := requireI2C(pins); err != nil {
				return nil, err
			}
			bus, err := buses.I2C(pins)
			if err != nil {
				return nil, err
			}
			dev, err := mcp9808.New(bus, &mcp9808.DefaultOpts)
			if err != nil {
				return nil, err
			}
			return &envHandle{dev: dev, name: string(sensor.ModelMCP9808)}, nil
		},
	}
}
