// Package bme680 drives the Bosch BME680 temperature, humidity, pressure
// and gas sensor over I²C or SPI in forced mode.
package bme680

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// DefaultAddress is the I²C address with SDO pulled high.
const DefaultAddress uint16 = 0x77

const (
	regChipID    = 0xD0
	regReset     = 0xE0
	regCtrlHum   = 0x72
	regCtrlMeas  = 0x74
	regConfig    = 0x75
	regCtrlGas1  = 0x71
	regResHeat0  = 0x5A
	regGasWait0  = 0x64
	regMeasStat0 = 0x1D

	chipID      = 0x61
	softReset   = 0xB6
	runGas      = 0x10
	modeForced  = 0x01
	statNewData = 0x80
	gasValid    = 0x20
	heatStable  = 0x10
)

var (
	// ErrChipID is returned when the device does not identify as a BME680.
	ErrChipID = errors.New("bme680: unexpected chip id")
	// ErrNoData is returned when a forced conversion did not complete in time.
	ErrNoData = errors.New("bme680: conversion did not complete")
)

// Oversampling is a measurement oversampling ratio.
type Oversampling byte

// Oversampling ratios accepted by the chip.
const (
	Off Oversampling = iota
	O1x
	O2x
	O4x
	O8x
	O16x
)

// Opts configures the measurement.
type Opts struct {
	Temperature Oversampling
	Pressure    Oversampling
	Humidity    Oversampling
	// Filter is the IIR filter coefficient code, 0 (off) to 7.
	Filter byte
	// HeaterTemp is the gas hotplate target in °C; 0 disables the gas
	// measurement.
	HeaterTemp float64
	// HeaterDuration is how long the hotplate is held before sampling.
	HeaterDuration time.Duration
}

// DefaultOpts matches the settings most breakout libraries ship with.
var DefaultOpts = Opts{
	Temperature:    O8x,
	Pressure:       O4x,
	Humidity:       O2x,
	Filter:         2,
	HeaterTemp:     320,
	HeaterDuration: 150 * time.Millisecond,
}

// Env is one compensated measurement.
type Env struct {
	physic.Env
	// GasResistance is the hotplate resistance in Ω. It is zero when
	// GasValid is false.
	GasResistance float64
	GasValid      bool
}

// Dev is a handle to a BME680.
type Dev struct {
	regs  registers
	opts  Opts
	cal   calibration
	sleep func(time.Duration)
	// ambient is the last measured temperature, used to target the heater.
	ambient float64
}

// NewI2C opens a BME680 on bus at addr.
func NewI2C(bus i2c.Bus, addr uint16, opts *Opts) (*Dev, error) {
	return open(&i2cRegs{d: i2c.Dev{Bus: bus, Addr: addr}}, opts, time.Sleep)
}

// NewSPI opens a BME680 on p.
func NewSPI(p spi.Port, opts *Opts) (*Dev, error) {
	c, err := p.Connect(10*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("bme680: connect: %w", err)
	}
	// Page 0 is selected after reset, -1 forces the first access to set it.
	return open(&spiRegs{c: c, page: -1}, opts, time.Sleep)
}

func open(regs registers, opts *Opts, sleep func(time.Duration)) (*Dev, error) {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	d := &Dev{regs: regs, opts: o, sleep: sleep, ambient: 25}

	if err := d.regs.write(regReset, softReset); err != nil {
		return nil, fmt.Errorf("bme680: reset: %w", err)
	}
	d.sleep(5 * time.Millisecond)
	if sr, ok := regs.(*spiRegs); ok {
		sr.page = -1
	}

	var id [1]byte
	if err := d.regs.read(regChipID, id[:]); err != nil {
		return nil, fmt.Errorf("bme680: chip id: %w", err)
	}
	if id[0] != chipID {
		return nil, fmt.Errorf("%w: %#02x", ErrChipID, id[0])
	}

	c1 := make([]byte, coeff1Len)
	c2 := make([]byte, coeff2Len)
	c3 := make([]byte, coeff3Len)
	for _, blk := range []struct {
		addr byte
		b    []byte
	}{{coeff1Addr, c1}, {coeff2Addr, c2}, {coeff3Addr, c3}} {
		if err := d.regs.read(blk.addr, blk.b); err != nil {
			return nil, fmt.Errorf("bme680: calibration %#02x: %w", blk.addr, err)
		}
	}
	d.cal = parseCalibration(c1, c2, c3)

	if err := d.regs.write(regConfig, (o.Filter&0x07)<<2); err != nil {
		return nil, fmt.Errorf("bme680: config: %w", err)
	}
	return d, nil
}

func (d *Dev) String() string { return fmt.Sprintf("BME680{%s}", d.regs) }

// Sense runs one forced-mode conversion.
func (d *Dev) Sense(e *Env) error {
	gas := d.opts.HeaterTemp > 0
	if err := d.regs.write(regCtrlHum, byte(d.opts.Humidity)&0x07); err != nil {
		return fmt.Errorf("bme680: ctrl_hum: %w", err)
	}
	if gas {
		ms := uint16(d.opts.HeaterDuration / time.Millisecond)
		if err := d.regs.write(regResHeat0, d.cal.heaterResistance(d.opts.HeaterTemp, d.ambient)); err != nil {
			return fmt.Errorf("bme680: res_heat: %w", err)
		}
		if err := d.regs.write(regGasWait0, gasWait(ms)); err != nil {
			return fmt.Errorf("bme680: gas_wait: %w", err)
		}
		if err := d.regs.write(regCtrlGas1, runGas); err != nil {
			return fmt.Errorf("bme680: ctrl_gas: %w", err)
		}
	} else if err := d.regs.write(regCtrlGas1, 0); err != nil {
		return fmt.Errorf("bme680: ctrl_gas: %w", err)
	}
	meas := byte(d.opts.Temperature&0x07)<<5 | byte(d.opts.Pressure&0x07)<<2 | modeForced
	if err := d.regs.write(regCtrlMeas, meas); err != nil {
		return fmt.Errorf("bme680: ctrl_meas: %w", err)
	}

	wait := 10 * time.Millisecond
	if gas {
		wait += d.opts.HeaterDuration
	}
	var raw [15]byte
	for attempt := 0; ; attempt++ {
		d.sleep(wait)
		if err := d.regs.read(regMeasStat0, raw[:]); err != nil {
			return fmt.Errorf("bme680: data: %w", err)
		}
		if raw[0]&statNewData != 0 {
			break
		}
		if attempt == 4 {
			return ErrNoData
		}
		wait = 10 * time.Millisecond
	}

	tAdc := uint32(raw[5])<<12 | uint32(raw[6])<<4 | uint32(raw[7])>>4
	pAdc := uint32(raw[2])<<12 | uint32(raw[3])<<4 | uint32(raw[4])>>4
	hAdc := uint16(raw[8])<<8 | uint16(raw[9])
	gAdc := uint16(raw[13])<<2 | uint16(raw[14])>>6

	celsius, tFine := d.cal.temperature(tAdc)
	d.ambient = celsius
	e.Temperature = physic.ZeroCelsius + physic.Temperature(celsius*float64(physic.Celsius))
	e.Pressure = physic.Pressure(d.cal.pressure(pAdc, tFine) * float64(physic.Pascal))
	e.Humidity = physic.RelativeHumidity(d.cal.humidity(hAdc, tFine) * float64(physic.PercentRH))
	e.GasValid = gas && raw[14]&gasValid != 0 && raw[14]&heatStable != 0
	e.GasResistance = 0
	if e.GasValid {
		e.GasResistance = d.cal.gasResistance(gAdc, raw[14])
	}
	return nil
}

// Halt turns the heater off. Forced mode returns to sleep on its own.
func (d *Dev) Halt() error {
	if err := d.regs.write(regCtrlGas1, 0); err != nil {
		return fmt.Errorf("bme680: halt: %w", err)
	}
	return nil
}
