// Package drivers binds each supported sensor model to its periph.io
// device driver.
package drivers

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/spi"

	"labmonitor/device/internal/sensor"
	"labmonitor/device/internal/sensor/calib"
)

// Buses resolves a slot's pin list to a bus. Implemented by hw.Host.
type Buses interface {
	I2C(pins []int) (i2c.Bus, error)
	SPI(pins []int) (spi.Port, error)
}

// All returns one driver per supported model, ready for sensor.NewRegistry.
func All(buses Buses, aqi calib.AQIParams) []sensor.Driver {
	return []sensor.Driver{
		BME280(buses),
		BMP280(buses),
		BME680(buses, aqi),
		MCP9808(buses),
		MAX31865(buses),
		AHT21(buses),
		ENS160AHT21(buses),
	}
}

// driver is the common sensor.Driver shape: each model supplies how to
// open its part and how to post-process a reading.
type driver struct {
	model   sensor.Model
	open    func(ctx context.Context, pins []int) (sensor.Handle, error)
	correct func(t, rh float64) float64
	derive  func(sensor.RawReading) sensor.Derived
}

func (d *driver) Model() sensor.Model { return d.model }

func (d *driver) Init(ctx context.Context, pins []int) (sensor.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, err := d.open(ctx, pins)
	if err != nil {
		return nil, fmt.Errorf("%s init: %w", d.model, err)
	}
	return h, nil
}

func (d *driver) CorrectTemperature(t, rh float64) float64 {
	if d.correct == nil {
		return calib.Identity(t, rh)
	}
	return d.correct(t, rh)
}

func (d *driver) Derive(r sensor.RawReading) sensor.Derived {
	if d.derive == nil {
		return sensor.Derived{}
	}
	return d.derive(r)
}

// usesSPI reports whether pins is a full SPI assignment. Parts that speak
// both buses are wired over I²C otherwise.
func usesSPI(pins []int) bool { return len(pins) == 4 }

func requireSPI(pins []int) error {
	if len(pins) != 0 && len(pins) != 4 {
		return fmt.Errorf("%w: SPI needs 4 pins (CLK,MOSI,MISO,CS), got %d", sensor.ErrInvalidPins, len(pins))
	}
	return nil
}

func requireI2C(pins []int) error {
	if len(pins) != 0 && len(pins) != 2 {
		return fmt.Errorf("%w: I2C needs 2 pins (SCL,SDA), got %d", sensor.ErrInvalidPins, len(pins))
	}
	return nil
}
