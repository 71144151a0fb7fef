package ens160

import (
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3/i2c/i2ctest"
)

func noSleep(time.Duration) {}

func initOps() []i2ctest.IO {
	return []i2ctest.IO{
		{Addr: DefaultAddress, W: []byte{regPartID}, R: []byte{0x60, 0x01}},
		{Addr: DefaultAddress, W: []byte{regOpMode, opModeStandard}},
	}
}

func TestSense(t *testing.T) {
	ops := append(initOps(),
		i2ctest.IO{Addr: DefaultAddress, W: []byte{regDataStatus}, R: []byte{0x82}},
		i2ctest.IO{Addr: DefaultAddress, W: []byte{regDataAQI}, R: []byte{0x02, 0x2C, 0x01, 0x20, 0x03}},
	)
	bus := &i2ctest.Playback{Ops: ops, DontPanic: true}
	d, err := open(bus, DefaultAddress, noSleep)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, err := d.Sense()
	if err != nil {
		t.Fatalf("Sense: %v", err)
	}
	want := Data{AQI: 2, TVOC: 300, ECO2: 800}
	if got != want {
		t.Errorf("Sense = %+v; want %+v", got, want)
	}
}

func TestSenseInvalid(t *testing.T) {
	ops := append(initOps(),
		i2ctest.IO{Addr: DefaultAddress, W: []byte{regDataStatus}, R: []byte{0x0C}},
	)
	d, err := open(&i2ctest.Playback{Ops: ops, DontPanic: true}, DefaultAddress, noSleep)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := d.Sense(); !errors.Is(err, ErrInvalidOutput) {
		t.Errorf("Sense error = %v; want ErrInvalidOutput", err)
	}
}

func TestOpenWrongPart(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops:       []i2ctest.IO{{Addr: DefaultAddress, W: []byte{regPartID}, R: []byte{0x61, 0x01}}},
		DontPanic: true,
	}
	if _, err := open(bus, DefaultAddress, noSleep); !errors.Is(err, ErrPartID) {
		t.Errorf("open error = %v; want ErrPartID", err)
	}
}

func TestCompensateAndHalt(t *testing.T) {
	// 25 °C -> 298.15 K * 64 = 19082 (0x4A8A); 50 %RH * 512 = 25600 (0x6400).
	ops := append(initOps(),
		i2ctest.IO{Addr: DefaultAddress, W: []byte{regTempIn, 0x8A, 0x4A, 0x00, 0x64}},
		i2ctest.IO{Addr: DefaultAddress, W: []byte{regOpMode, opModeDeepSleep}},
	)
	bus := &i2ctest.Playback{Ops: ops, DontPanic: true}
	d, err := open(bus, DefaultAddress, noSleep)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := d.Compensate(25, 50); err != nil {
		t.Fatalf("Compensate: %v", err)
	}
	if err := d.Halt(); err != nil {
		t.Fatalf("Halt: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("unconsumed ops: %v", err)
	}
}
