// Package max31865 drives the Maxim MAX31865 RTD-to-digital converter over
// SPI.
package max31865

import (
	"errors"
	"fmt"
	"math"
	"time"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

const (
	regConfig = 0x00
	regRTDMSB = 0x01
	regFault  = 0x07

	writeFlag = 0x80

	cfgBias       = 0x80
	cfgOneShot    = 0x20
	cfgThreeWire  = 0x10
	cfgFaultClear = 0x02
	cfgFilter50Hz = 0x01

	// Callendar-Van Dusen coefficients for platinum RTDs (IEC 60751).
	rtdA = 3.9083e-3
	rtdB = -5.775e-7
)

// ErrFault is returned when the converter latches a fault on the RTD
// measurement.
var ErrFault = errors.New("max31865: rtd fault")

// Opts describes the probe and the board it sits on.
type Opts struct {
	// Nominal is the probe resistance at 0 °C: 100 for PT100, 1000 for PT1000.
	Nominal float64
	// Reference is the value of the board's reference resistor.
	Reference float64
	// Wires is the probe wiring: 2, 3 or 4.
	Wires int
	// Filter50Hz selects the 50 Hz mains notch filter instead of 60 Hz.
	Filter50Hz bool
}

// DefaultOpts matches the common PT100 breakout with a 430 Ω reference.
var DefaultOpts = Opts{Nominal: 100, Reference: 430, Wires: 2}

// Dev is a handle to a MAX31865.
type Dev struct {
	c     spi.Conn
	opts  Opts
	sleep func(time.Duration)
}

// NewSPI connects to the converter on p.
func NewSPI(p spi.Port, opts *Opts) (*Dev, error) {
	c, err := p.Connect(5*physic.MegaHertz, spi.Mode1, 8)
	if err != nil {
		return nil, fmt.Errorf("max31865: connect: %w", err)
	}
	return open(c, opts, time.Sleep)
}

func open(c spi.Conn, opts *Opts, sleep func(time.Duration)) (*Dev, error) {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.Nominal <= 0 || o.Reference <= 0 {
		return nil, fmt.Errorf("max31865: invalid resistances %v/%v", o.Nominal, o.Reference)
	}
	if o.Wires != 2 && o.Wires != 3 && o.Wires != 4 {
		return nil, fmt.Errorf("max31865: invalid wire count %d", o.Wires)
	}
	d := &Dev{c: c, opts: o, sleep: sleep}
	if err := d.writeConfig(d.baseConfig() | cfgFaultClear); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dev) String() string { return fmt.Sprintf("MAX31865{%s}", d.c) }

// Resistance runs one bias-settle-convert cycle and returns the probe
// resistance in ohms.
func (d *Dev) Resistance() (float64, error) {
	base := d.baseConfig()
	if err := d.writeConfig(base | cfgBias | cfgFaultClear); err != nil {
		return 0, err
	}
	d.sleep(10 * time.Millisecond)
	if err := d.writeConfig(base | cfgBias | cfgOneShot); err != nil {
		return 0, err
	}
	d.sleep(65 * time.Millisecond)

	raw, err := d.read(regRTDMSB, 2)
	if err != nil {
		return 0, err
	}
	if err := d.writeConfig(base); err != nil {
		return 0, err
	}
	if raw[1]&0x01 != 0 {
		f, _ := d.read(regFault, 1)
		if len(f) == 1 {
			return 0, fmt.Errorf("%w: status %#02x", ErrFault, f[0])
		}
		return 0, ErrFault
	}
	code := (uint16(raw[0])<<8 | uint16(raw[1])) >> 1
	return float64(code) * d.opts.Reference / 32768, nil
}

// Sense fills Temperature. Humidity and Pressure are left untouched.
func (d *Dev) Sense(e *physic.Env) error {
	r, err := d.Resistance()
	if err != nil {
		return err
	}
	c := Temperature(r, d.opts.Nominal)
	e.Temperature = physic.ZeroCelsius + physic.Temperature(c*float64(physic.Celsius))
	return nil
}

// Halt turns the bias voltage off.
func (d *Dev) Halt() error {
	return d.writeConfig(d.baseConfig())
}

// Temperature converts an RTD resistance to °C. Above 0 °C it solves the
// Callendar-Van Dusen quadratic; below it uses the fifth-order fit over the
// resistance ratio.
func Temperature(r, nominal float64) float64 {
	z1 := -rtdA
	z2 := rtdA*rtdA - 4*rtdB
	z3 := 4 * rtdB / nominal
	z4 := 2 * rtdB
	t := (math.Sqrt(z2+z3*r) + z1) / z4
	if t >= 0 {
		return t
	}

	rt := r / nominal * 100
	p := rt
	t = -242.02 + 2.2228*p
	p *= rt
	t += 2.5859e-3 * p
	p *= rt
	t -= 4.8260e-6 * p
	p *= rt
	t -= 2.8183e-8 * p
	p *= rt
	t += 1.5243e-10 * p
	return t
}

func (d *Dev) baseConfig() byte {
	var cfg byte
	if d.opts.Wires == 3 {
		cfg |= cfgThreeWire
	}
	if d.opts.Filter50Hz {
		cfg |= cfgFilter50Hz
	}
	return cfg
}

func (d *Dev) writeConfig(v byte) error {
	if err := d.c.Tx([]byte{regConfig | writeFlag, v}, nil); err != nil {
		return fmt.Errorf("max31865: write config: %w", err)
	}
	return nil
}

func (d *Dev) read(reg byte, n int) ([]byte, error) {
	w := make([]byte, n+1)
	r := make([]byte, n+1)
	w[0] = reg
	if err := d.c.Tx(w, r); err != nil {
		return nil, fmt.Errorf("max31865: read %#02x: %w", reg, err)
	}
	return r[1:], nil
}
