// Package aht2x drives the ASAIR AHT20/AHT21 temperature and humidity
// sensor over I²C.
package aht2x

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// DefaultAddress is the fixed bus address of the AHT2x family.
const DefaultAddress uint16 = 0x38

const (
	cmdStatus    = 0x71
	cmdCalibrate = 0xBE
	cmdTrigger   = 0xAC

	statusBusy       = 0x80
	statusCalibrated = 0x08

	fullScale = 1 << 20
)

// ErrBusy is returned when the sensor is still converting after the retry
// budget is spent.
var ErrBusy = errors.New("aht2x: measurement still busy")

// Dev is a handle to an AHT2x sensor.
type Dev struct {
	d     i2c.Dev
	sleep func(time.Duration)
}

// New probes the sensor at DefaultAddress and loads its calibration if the
// status register reports it missing.
func New(bus i2c.Bus) (*Dev, error) {
	return open(bus, time.Sleep)
}

func open(bus i2c.Bus, sleep func(time.Duration)) (*Dev, error) {
	d := &Dev{d: i2c.Dev{Bus: bus, Addr: DefaultAddress}, sleep: sleep}
	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dev) String() string { return fmt.Sprintf("AHT2x{%s}", &d.d) }

func (d *Dev) init() error {
	d.sleep(40 * time.Millisecond)
	st, err := d.status()
	if err != nil {
		return err
	}
	if st&statusCalibrated != 0 {
		return nil
	}
	if err := d.d.Tx([]byte{cmdCalibrate, 0x08, 0x00}, nil); err != nil {
		return fmt.Errorf("aht2x: calibrate: %w", err)
	}
	d.sleep(10 * time.Millisecond)
	return nil
}

func (d *Dev) status() (byte, error) {
	var r [1]byte
	if err := d.d.Tx([]byte{cmdStatus}, r[:]); err != nil {
		return 0, fmt.Errorf("aht2x: status: %w", err)
	}
	return r[0], nil
}

// Sense triggers one conversion and fills Temperature and Humidity.
// Pressure is left untouched.
func (d *Dev) Sense(e *physic.Env) error {
	if err := d.d.Tx([]byte{cmdTrigger, 0x33, 0x00}, nil); err != nil {
		return fmt.Errorf("aht2x: trigger: %w", err)
	}
	d.sleep(80 * time.Millisecond)

	var raw [6]byte
	for attempt := 0; ; attempt++ {
		if err := d.d.Tx(nil, raw[:]); err != nil {
			return fmt.Errorf("aht2x: read: %w", err)
		}
		if raw[0]&statusBusy == 0 {
			break
		}
		if attempt == 2 {
			return ErrBusy
		}
		d.sleep(10 * time.Millisecond)
	}

	rh, t := convert(raw)
	e.Humidity = physic.RelativeHumidity(rh * float64(physic.PercentRH))
	e.Temperature = physic.ZeroCelsius + physic.Temperature(t*float64(physic.Celsius))
	return nil
}

// Halt is a no-op; the sensor idles between triggered conversions.
func (d *Dev) Halt() error { return nil }

// convert decodes the 20-bit humidity and temperature fields.
func convert(raw [6]byte) (rh, celsius float64) {
	h := uint32(raw[1])<<12 | uint32(raw[2])<<4 | uint32(raw[3])>>4
	t := uint32(raw[3]&0x0F)<<16 | uint32(raw[4])<<8 | uint32(raw[5])
	rh = float64(h) * 100 / fullScale
	celsius = float64(t)*200/fullScale - 50
	return rh, celsius
}
