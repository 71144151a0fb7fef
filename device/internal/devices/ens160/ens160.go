// Package ens160 drives the ScioSense ENS160 digital metal-oxide air-quality
// sensor over I²C.
package ens160

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// DefaultAddress is the address with ADDR pulled high, as on the
// ENS160+AHT21 breakout boards.
const DefaultAddress uint16 = 0x53

const (
	regPartID     = 0x00
	regOpMode     = 0x10
	regTempIn     = 0x13
	regDataStatus = 0x20
	regDataAQI    = 0x21

	partID = 0x0160

	opModeDeepSleep = 0x00
	opModeStandard  = 0x02

	statusValidityMask = 0x0C
	validityInvalid    = 0x0C
)

var (
	// ErrPartID is returned when the chip at the address is not an ENS160.
	ErrPartID = errors.New("ens160: unexpected part id")
	// ErrInvalidOutput is returned while the sensor flags its output as invalid.
	ErrInvalidOutput = errors.New("ens160: output flagged invalid")
)

// Data is one set of ENS160 outputs.
type Data struct {
	// AQI is the UBA air quality index, 1 (excellent) to 5 (unhealthy).
	AQI  uint8
	TVOC uint16 // ppb
	ECO2 uint16 // ppm equivalent CO₂
}

// Dev is a handle to an ENS160.
type Dev struct {
	d     i2c.Dev
	sleep func(time.Duration)
}

// New checks the part id at addr and switches the sensor to standard mode.
func New(bus i2c.Bus, addr uint16) (*Dev, error) {
	return open(bus, addr, time.Sleep)
}

func open(bus i2c.Bus, addr uint16, sleep func(time.Duration)) (*Dev, error) {
	d := &Dev{d: i2c.Dev{Bus: bus, Addr: addr}, sleep: sleep}
	var id [2]byte
	if err := d.d.Tx([]byte{regPartID}, id[:]); err != nil {
		return nil, fmt.Errorf("ens160: part id: %w", err)
	}
	if got := binary.LittleEndian.Uint16(id[:]); got != partID {
		return nil, fmt.Errorf("%w: %#04x", ErrPartID, got)
	}
	if err := d.d.Tx([]byte{regOpMode, opModeStandard}, nil); err != nil {
		return nil, fmt.Errorf("ens160: set mode: %w", err)
	}
	d.sleep(50 * time.Millisecond)
	return d, nil
}

func (d *Dev) String() string { return fmt.Sprintf("ENS160{%s}", &d.d) }

// Compensate feeds ambient temperature and humidity to the sensor's internal
// compensation.
func (d *Dev) Compensate(celsius, rh float64) error {
	w := make([]byte, 5)
	w[0] = regTempIn
	binary.LittleEndian.PutUint16(w[1:], uint16(math.Round((celsius+273.15)*64)))
	binary.LittleEndian.PutUint16(w[3:], uint16(math.Round(rh*512)))
	if err := d.d.Tx(w, nil); err != nil {
		return fmt.Errorf("ens160: compensate: %w", err)
	}
	return nil
}

// Sense reads the latest AQI, TVOC and eCO2 values.
func (d *Dev) Sense() (Data, error) {
	var st [1]byte
	if err := d.d.Tx([]byte{regDataStatus}, st[:]); err != nil {
		return Data{}, fmt.Errorf("ens160: status: %w", err)
	}
	if st[0]&statusValidityMask == validityInvalid {
		return Data{}, ErrInvalidOutput
	}
	var raw [5]byte
	if err := d.d.Tx([]byte{regDataAQI}, raw[:]); err != nil {
		return Data{}, fmt.Errorf("ens160: data: %w", err)
	}
	return Data{
		AQI:  raw[0] & 0x07,
		TVOC: binary.LittleEndian.Uint16(raw[1:3]),
		ECO2: binary.LittleEndian.Uint16(raw[3:5]),
	}, nil
}

// Halt puts the sensor into deep sleep.
func (d *Dev) Halt() error {
	if err := d.d.Tx([]byte{regOpMode, opModeDeepSleep}, nil); err != nil {
		return fmt.Errorf("ens160: sleep: %w", err)
	}
	return nil
}
